// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/paydesk/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/paydesk/internal/app/features/errors"
	healthfeature "github.com/dalemusser/paydesk/internal/app/features/health"
	screensfeature "github.com/dalemusser/paydesk/internal/app/features/screens"
	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. PayDesk applies the session middleware
// and mounts the health check, the screen consoles and the audit trail.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("bootstrap: Startup has not run")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := session.NewManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.ActorHeader, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	return newRouter(svc, sessionMgr, deps, logger), nil
}

func newRouter(s *services, sessionMgr *session.Manager, deps DBDeps, logger *zap.Logger) chi.Router {
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.PayDeskMongoClient, s.consoles, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Group(func(r chi.Router) {
		// Every console belongs to a session; Load issues one on first use.
		r.Use(sessionMgr.Load)

		screensHandler := screensfeature.NewHandler(s.catalog, s.consoles, s.policy, sessionMgr, errLog, logger)
		r.Mount("/screens", screensfeature.Routes(screensHandler))
		r.Mount("/session", screensfeature.SessionRoutes(screensHandler))

		if s.audit != nil {
			auditHandler := auditlogfeature.NewHandler(s.audit, errLog, logger)
			r.Mount("/audit", auditlogfeature.Routes(auditHandler))
		}
	})

	return r
}
