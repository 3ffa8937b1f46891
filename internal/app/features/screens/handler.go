// internal/app/features/screens/handler.go
package screens

import (
	"net/http"
	"net/url"

	uierrors "github.com/dalemusser/paydesk/internal/app/features/errors"
	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Catalog lists the configured screens. *catalog.Catalog satisfies it.
type Catalog interface {
	Screens() []*models.Screen
}

// Handler serves every screen through the console registry.
type Handler struct {
	Catalog  Catalog
	Consoles *console.Registry
	Policy   dispatch.BatchPolicy
	Sessions *session.Manager // nil disables DELETE /session
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
}

// NewHandler constructs the screens feature handler.
func NewHandler(cat Catalog, consoles *console.Registry, policy dispatch.BatchPolicy, sessions *session.Manager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Catalog:  cat,
		Consoles: consoles,
		Policy:   policy,
		Sessions: sessions,
		Log:      logger,
		ErrLog:   errLog,
	}
}

// identity returns the session identity Load attached. Requests that
// bypassed the middleware share one anonymous session.
func identity(r *http.Request) session.Identity {
	if id, ok := session.Current(r); ok {
		return id
	}
	return session.Identity{ID: "anonymous"}
}

// consoleFor resolves the {screen} URL parameter to this session's console.
func (h *Handler) consoleFor(w http.ResponseWriter, r *http.Request) (*console.Console, session.Identity, bool) {
	id := identity(r)
	c, err := h.Consoles.Get(id.ID, chi.URLParam(r, "screen"))
	if err != nil {
		h.ErrLog.Respond(w, r, "screen lookup failed", err, "Unknown screen.")
		return nil, id, false
	}
	return c, id, true
}

// pathParam returns an unescaped URL parameter. Composite row keys
// contain "|", which clients send percent-encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
