// internal/app/features/groups/routes.go
package groups

import (
	"github.com/go-chi/chi/v5"

	"github.com/virtualstudy/studypoint/internal/app/system/auth"
)

// Routes returns the subrouter mounted under /groups.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.List)
	r.Post("/{gid}/join", h.Join)
	r.Post("/{gid}/leave", h.Leave)
	r.Get("/{gid}/members", h.Members)
	return r
}
