// internal/domain/models/member.go
package models

import "time"

// Member is the denormalized roster record kept under each group when a
// user joins. It duplicates the identity fields so the roster can be
// rendered without a user-directory lookup.
type Member struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	JoinedAt    int64  `json:"joinedAt"` // unix milliseconds
}

// JoinedTime returns JoinedAt as a time.Time.
func (m Member) JoinedTime() time.Time {
	return time.UnixMilli(m.JoinedAt)
}

// User returns the identity portion of the roster record.
func (m Member) User() User {
	return User{UID: m.UID, Email: m.Email, DisplayName: m.DisplayName}
}
