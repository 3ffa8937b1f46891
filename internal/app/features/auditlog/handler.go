// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	uierrors "github.com/dalemusser/paydesk/internal/app/features/errors"
	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"go.uber.org/zap"
)

// EventStore is the read side of the audit store. *audit.Store satisfies it.
type EventStore interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

type Handler struct {
	Events EventStore
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an Audit Log feature handler over events.
func NewHandler(events EventStore, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
		ErrLog: errLog,
	}
}
