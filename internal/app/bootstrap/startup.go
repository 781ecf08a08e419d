// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
	"github.com/virtualstudy/studypoint/internal/app/system/upload"
)

// Startup runs one-time application initialization after backends are
// connected but before the HTTP handler is built: it applies the
// configured operation limits and starts the search and insights
// aggregators so their indexes are warming while the server comes up.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	upload.SetMaxFileSize(appCfg.UploadMaxBytes)
	timeouts.Configure(0, 0, 0, appCfg.UploadTimeout, appCfg.CommitTimeout)

	// The aggregators outlive the startup context; Shutdown closes them.
	if err := deps.Search.Start(context.Background()); err != nil {
		logger.Error("search aggregator start failed", zap.Error(err))
		return err
	}
	if err := deps.Insights.Start(context.Background()); err != nil {
		deps.Search.Close()
		logger.Error("insights aggregator start failed", zap.Error(err))
		return err
	}

	logger.Info("aggregators started")
	return nil
}
