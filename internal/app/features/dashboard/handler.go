// internal/app/features/dashboard/handler.go

// Package dashboard serves the insights endpoint backing the landing
// dashboard: global highlights, per-group stats, and the caller's own
// contribution numbers.
package dashboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	"github.com/virtualstudy/studypoint/internal/app/system/insights"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Handler serves the dashboard endpoints.
type Handler struct {
	Insights *insights.Aggregator
	Log      *zap.Logger
}

// NewHandler constructs a dashboard Handler.
func NewHandler(agg *insights.Aggregator, logger *zap.Logger) *Handler {
	return &Handler{Insights: agg, Log: logger}
}

type insightsResponse struct {
	insights.Overview
	Me insights.UserStats `json:"me"`
}

// Serve handles GET /dashboard/insights.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	resp := insightsResponse{
		Overview: h.Insights.Overview(),
		Me:       h.Insights.User(user.UID),
	}
	if resp.Recent == nil {
		resp.Recent = []models.Material{}
	}
	if resp.Popular == nil {
		resp.Popular = []models.Material{}
	}
	httpapi.Respond(w, http.StatusOK, resp)
}

// Group handles GET /dashboard/insights/groups/{gid}.
func (h *Handler) Group(w http.ResponseWriter, r *http.Request) {
	gid := chi.URLParam(r, "gid")
	stats, ok := h.Insights.Group(gid)
	if !ok {
		httpapi.Error(w, h.Log, &faults.ValidationError{Field: "group", Reason: "unknown group " + gid})
		return
	}
	httpapi.Respond(w, http.StatusOK, stats)
}

// Routes returns the subrouter mounted under /dashboard.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/insights", h.Serve)
	r.Get("/insights/groups/{gid}", h.Group)
	return r
}
