// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/app/system/catalog"
	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/cryptobox"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/ratelimit"
	"github.com/dalemusser/paydesk/internal/app/system/timeouts"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services is the process-wide state Startup builds and BuildHandler and
// Shutdown use.
type services struct {
	catalog    *catalog.Catalog
	upstream   *upstream.Client
	audit      *audit.Store
	limiter    *ratelimit.Limiter
	dispatcher *dispatch.Dispatcher
	consoles   *console.Registry
	policy     dispatch.BatchPolicy

	cleanup     *workers.ConsoleCleanup
	stopLimiter context.CancelFunc
}

var svc *services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It loads
// the screen catalog, builds the backend client and dispatcher, and starts
// the background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	s, err := buildServices(appCfg, deps, logger)
	if err != nil {
		return err
	}
	s.start(appCfg, logger)
	svc = s
	return nil
}

func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	timeouts.Configure(timeouts.Config{
		Fetch:  appCfg.FetchTimeout,
		Action: appCfg.ActionTimeout,
		Batch:  appCfg.BatchTimeout,
	})

	cat, err := loadCatalog(appCfg.ScreensFile)
	if err != nil {
		logger.Error("screen catalog load failed", zap.String("file", appCfg.ScreensFile), zap.Error(err))
		return nil, err
	}
	logger.Info("screen catalog loaded", zap.Int("screens", len(cat.Screens())))

	var box *cryptobox.Box
	if appCfg.CryptoPassphrase != "" {
		box, err = cryptobox.New(cryptobox.Config{
			Passphrase: appCfg.CryptoPassphrase,
			KDF:        appCfg.CryptoKDF,
			Iterations: appCfg.CryptoIterations,
		})
		if err != nil {
			return nil, fmt.Errorf("crypto: %w", err)
		}
	}

	up, err := upstream.New(upstream.Config{
		BaseURL: appCfg.WebservicesURL,
		Timeout: appCfg.UpstreamTimeout,
		Box:     box,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}

	var store *audit.Store
	if deps.PayDeskMongoDatabase != nil {
		store = audit.New(deps.PayDeskMongoDatabase)
	}
	auditLog := auditlog.New(store, logger, auditlog.Config{
		Actions: appCfg.AuditLogActions,
		Batches: appCfg.AuditLogBatches,
	})

	var limiter *ratelimit.Limiter
	if appCfg.ActionRateLimit > 0 {
		limiter = ratelimit.New(appCfg.ActionRateLimit, appCfg.ActionRateWindow)
	}

	disp := dispatch.New(up, dispatch.Options{Audit: auditLog, Limiter: limiter, Logger: logger})

	return &services{
		catalog:    cat,
		upstream:   up,
		audit:      store,
		limiter:    limiter,
		dispatcher: disp,
		consoles:   console.NewRegistry(cat, up, disp, logger),
		policy:     dispatch.BatchPolicy{Size: appCfg.BatchSize, Delay: appCfg.BatchDelay},
	}, nil
}

// start launches the idle console sweeper and the rate limiter sweeper.
func (s *services) start(appCfg AppConfig, logger *zap.Logger) {
	s.cleanup = workers.NewConsoleCleanup(s.consoles, logger, appCfg.ConsoleSweepInterval, appCfg.ConsoleIdleTTL)
	s.cleanup.Start()

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimiter = cancel
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}
}

// stop halts the background workers. It is safe to call more than once.
func (s *services) stop() {
	if s.cleanup != nil {
		s.cleanup.Stop()
	}
	if s.stopLimiter != nil {
		s.stopLimiter()
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
