// internal/domain/models/user.go
package models

// User is the identity shape exposed by the external identity provider.
// It is consumed read-only; profile management lives outside this service.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// IsZero reports whether the user carries no identity at all.
func (u User) IsZero() bool {
	return u.UID == "" && u.Email == "" && u.DisplayName == ""
}
