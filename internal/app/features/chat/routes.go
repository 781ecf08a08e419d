// internal/app/features/chat/routes.go
package chat

import (
	"github.com/go-chi/chi/v5"

	"github.com/virtualstudy/studypoint/internal/app/system/auth"
)

// Routes returns the subrouter mounted under /chat.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/{room}/messages", h.Messages)
	r.Post("/{room}/messages", h.Send)
	r.Get("/{room}/ws", h.Live)
	return r
}
