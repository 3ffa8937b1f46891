// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the background workers and disconnects from MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc != nil {
		svc.stop()
		logger.Info("console workers stopped", zap.Int("live_consoles", svc.consoles.Len()))
	}
	if deps.PayDeskMongoClient != nil {
		logger.Info("disconnecting PayDesk MongoDB client")
		if err := deps.PayDeskMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
