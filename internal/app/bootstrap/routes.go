// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatfeature "github.com/virtualstudy/studypoint/internal/app/features/chat"
	dashboardfeature "github.com/virtualstudy/studypoint/internal/app/features/dashboard"
	groupsfeature "github.com/virtualstudy/studypoint/internal/app/features/groups"
	healthfeature "github.com/virtualstudy/studypoint/internal/app/features/health"
	materialsfeature "github.com/virtualstudy/studypoint/internal/app/features/materials"
	searchfeature "github.com/virtualstudy/studypoint/internal/app/features/search"
	"github.com/virtualstudy/studypoint/internal/app/system/auth"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, backend connections, and the
// Startup hook have completed, so the component layer in deps is live.
// Every feature router except health requires a signed-in caller; the
// auth middleware resolves identity globally so handlers can read it
// with auth.CurrentUser.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	mw := auth.NewMiddleware(deps.Verifier, logger)

	r := chi.NewRouter()
	r.Use(mw.LoadUser)

	// Health check endpoint for load balancers and orchestrators. The
	// memory backend has no connection to probe.
	var pinger healthfeature.Pinger
	if deps.Firestore != nil {
		pinger = deps.Firestore
	}
	healthHandler := healthfeature.NewHandler(pinger, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Groups and the material operations nested under them share the
	// /groups subrouter.
	groupsHandler := groupsfeature.NewHandler(deps.Gate, logger)
	gr := groupsfeature.Routes(groupsHandler)
	materialsHandler := materialsfeature.NewHandler(deps.Materials, deps.Comments, deps.Uploads, logger)
	materialsfeature.Register(gr, materialsHandler)
	r.Mount("/groups", gr)

	chatHandler := chatfeature.NewHandler(deps.Chat, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler))

	searchHandler := searchfeature.NewHandler(deps.Search, logger)
	r.Mount("/search", searchfeature.Routes(searchHandler))

	dashboardHandler := dashboardfeature.NewHandler(deps.Insights, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler))

	return r, nil
}
