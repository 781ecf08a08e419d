// internal/app/features/materials/routes.go
package materials

import (
	"github.com/go-chi/chi/v5"
)

// Register adds the material routes to the group subrouter. Material
// paths are group-scoped, so they live under /groups alongside the
// membership routes; the group router's middleware already requires a
// signed-in caller.
func Register(r chi.Router, h *Handler) {
	r.Get("/{gid}/materials", h.List)
	r.Post("/{gid}/materials", h.Create)
	r.Post("/{gid}/materials/{mid}/reuse", h.Reuse)
	r.Get("/{gid}/materials/{mid}/comments", h.Thread)
	r.Post("/{gid}/materials/{mid}/comments", h.AddComment)
	r.Post("/{gid}/materials/{mid}/comments/{cid}/replies", h.AddReply)
}
