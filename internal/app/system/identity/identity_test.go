package identity_test

import (
	"testing"

	"github.com/virtualstudy/studypoint/internal/app/system/identity"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

func TestDisplay_PrefersDisplayName(t *testing.T) {
	u := models.User{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"}
	if got := identity.Display(u); got != "Ada" {
		t.Errorf("got %q, want %q", got, "Ada")
	}
}

func TestDisplay_FallsBackToEmailLocalPart(t *testing.T) {
	u := models.User{UID: "u1", Email: "ada@example.com"}
	if got := identity.Display(u); got != "ada" {
		t.Errorf("got %q, want %q", got, "ada")
	}
}

func TestDisplay_FallsBackToUID(t *testing.T) {
	u := models.User{UID: "u1"}
	if got := identity.Display(u); got != "u1" {
		t.Errorf("got %q, want %q", got, "u1")
	}
}

func TestDisplay_BlankDisplayNameIsSkipped(t *testing.T) {
	u := models.User{UID: "u1", Email: "ada@example.com", DisplayName: "   "}
	if got := identity.Display(u); got != "ada" {
		t.Errorf("got %q, want %q", got, "ada")
	}
}

func TestMemberRecord_ResolvesName(t *testing.T) {
	u := models.User{UID: "u1", Email: "ada@example.com"}
	m := identity.MemberRecord(u, 1700000000000)
	if m.DisplayName != "ada" {
		t.Errorf("display name: got %q, want %q", m.DisplayName, "ada")
	}
	if m.JoinedAt != 1700000000000 {
		t.Errorf("joinedAt: got %d", m.JoinedAt)
	}
}
