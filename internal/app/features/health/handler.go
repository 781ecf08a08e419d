// internal/app/features/health/handler.go
package health

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
)

// Pinger is the piece of the store backend the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Store Pinger
	Log   *zap.Logger
}

// NewHandler constructs a health Handler. A nil store skips the backend
// probe (memory backend).
func NewHandler(store Pinger, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and {"status":"ok","backend":"connected"}.
// On store failure: 503 and {"status":"error","backend":"disconnected",...}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backend: "connected"}
	if h.Store == nil {
		resp.Backend = "memory"
		httpapi.Respond(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		h.Log.Error("health-check: store ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Backend = "disconnected"
		resp.Error = err.Error()
		httpapi.Respond(w, http.StatusServiceUnavailable, resp)
		return
	}
	httpapi.Respond(w, http.StatusOK, resp)
}
