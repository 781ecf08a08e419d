// internal/app/features/groups/handler.go

// Package groups serves the fixed group list, membership changes, and
// rosters.
package groups

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accessgate "github.com/virtualstudy/studypoint/internal/app/store/access"
	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Handler serves the group endpoints.
type Handler struct {
	Gate *accessgate.Gate
	Log  *zap.Logger
}

// NewHandler constructs a groups Handler.
func NewHandler(gate *accessgate.Gate, logger *zap.Logger) *Handler {
	return &Handler{Gate: gate, Log: logger}
}

type groupEntry struct {
	models.Group
	Member bool `json:"member"`
}

// List handles GET /groups: every fixed group with the caller's
// membership flag.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	out := make([]groupEntry, 0, len(models.Groups()))
	for _, g := range models.Groups() {
		member, err := h.Gate.IsMember(r.Context(), user.UID, g.ID)
		if err != nil {
			httpapi.Error(w, h.Log, err)
			return
		}
		out = append(out, groupEntry{Group: g, Member: member})
	}
	httpapi.Respond(w, http.StatusOK, out)
}

// Join handles POST /groups/{gid}/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")
	if err := h.Gate.Join(r.Context(), user, gid); err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	httpapi.Respond(w, http.StatusOK, map[string]any{"group": gid, "member": true})
}

// Leave handles POST /groups/{gid}/leave.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")
	if err := h.Gate.Leave(r.Context(), user, gid); err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	httpapi.Respond(w, http.StatusOK, map[string]any{"group": gid, "member": false})
}

// Members handles GET /groups/{gid}/members: the roster ordered by join
// time. The roster feed is a subscription; this endpoint takes its first
// delivery and releases it.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	gid := chi.URLParam(r, "gid")

	type delivery struct {
		members []models.Member
		err     error
	}
	first := make(chan delivery, 1)
	cancel, err := h.Gate.Roster(r.Context(), gid, func(ms []models.Member, rerr error) {
		select {
		case first <- delivery{members: ms, err: rerr}:
		default:
		}
	})
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	defer cancel()

	select {
	case d := <-first:
		if d.err != nil {
			httpapi.Error(w, h.Log, d.err)
			return
		}
		if d.members == nil {
			d.members = []models.Member{}
		}
		httpapi.Respond(w, http.StatusOK, d.members)
	case <-time.After(timeouts.Medium()):
		httpapi.Error(w, h.Log, &faults.TimeoutError{Op: "roster read"})
	}
}
