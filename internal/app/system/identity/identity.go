// Package identity centralizes display-identity resolution.
//
// Identity fields are optional everywhere they appear (uploader records,
// comment authors, chat senders), and every surface that shows or indexes
// a user must resolve them the same way. The precedence is fixed:
// display name, else the local part of the email, else the raw uid.
//
// The email fallback deliberately truncates at the "@". Some surfaces
// used to render the full address while others showed only the local
// part; resolving to the local part everywhere keeps labels consistent
// and avoids echoing addresses into chat logs and search results.
package identity

import (
	"strings"

	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Display resolves the label shown and indexed for a user.
func Display(u models.User) string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if u.Email != "" {
		if at := strings.IndexByte(u.Email, '@'); at > 0 {
			return u.Email[:at]
		}
		return u.Email
	}
	return u.UID
}

// MemberRecord builds the denormalized roster record for a joining user,
// with the display name already resolved so roster rendering never has to
// re-apply the precedence.
func MemberRecord(u models.User, joinedAt int64) models.Member {
	return models.Member{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: Display(u),
		JoinedAt:    joinedAt,
	}
}
