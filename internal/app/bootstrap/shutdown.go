// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down the aggregators and store backends.
// Aggregators go first so no subscription callbacks land on a closing
// store.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Search != nil {
		deps.Search.Close()
	}
	if deps.Insights != nil {
		deps.Insights.Close()
	}

	if deps.Firestore != nil {
		logger.Info("closing firestore client")
		if err := deps.Firestore.Close(); err != nil {
			logger.Error("firestore close failed", zap.Error(err))
			return err
		}
	}
	if deps.Memory != nil {
		deps.Memory.Close()
	}
	return nil
}
