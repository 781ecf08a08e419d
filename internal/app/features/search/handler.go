// internal/app/features/search/handler.go

// Package search serves the cross-group search endpoint.
package search

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	searchagg "github.com/virtualstudy/studypoint/internal/app/system/search"
)

// Handler serves queries against the live search index.
type Handler struct {
	Index *searchagg.Aggregator
	Log   *zap.Logger
}

// NewHandler constructs a search Handler.
func NewHandler(index *searchagg.Aggregator, logger *zap.Logger) *Handler {
	return &Handler{Index: index, Log: logger}
}

// Query handles GET /search?q=term.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	res := h.Index.Query(r.URL.Query().Get("q"))
	if res.Materials == nil {
		res.Materials = []searchagg.MaterialHit{}
	}
	if res.Groups == nil {
		res.Groups = []searchagg.GroupHit{}
	}
	if res.Users == nil {
		res.Users = []searchagg.UserHit{}
	}
	httpapi.Respond(w, http.StatusOK, res)
}

// Routes returns the subrouter mounted under /search.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.Query)
	return r
}
