// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"go.uber.org/zap"
)

// Destinations accepted by Config fields.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"  // MongoDB only
	DestLog = "log" // zap only
	DestOff = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Actions controls logging for single row actions.
	// Values: "all", "db", "log", "off"
	Actions string
	// Batches controls logging for batch runs (summary and per-item events).
	// Values: "all", "db", "log", "off"
	Batches string
}

// ValidDest reports whether s is one of the accepted destinations.
func ValidDest(s string) bool {
	switch s {
	case DestAll, DestDB, DestLog, DestOff:
		return true
	}
	return false
}

// Logger records dispatched actions to MongoDB (via audit.Store) and to
// structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case "db"
// destinations are skipped.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// OriginFromRequest builds the audit origin for an HTTP request.
func OriginFromRequest(r *http.Request, sessionID, actor string) models.Origin {
	return models.Origin{
		SessionID: sessionID,
		Actor:     actor,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP extracts the client IP from the request.
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.String("request_id", event.RequestID),
		zap.String("screen", event.Screen),
		zap.String("verb", event.Verb),
		zap.Bool("success", event.Success),
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Message != "" {
		fields = append(fields, zap.String("message", event.Message))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAction:
		setting = l.config.Actions
	case audit.CategoryBatch:
		setting = l.config.Batches
	}
	if setting == "" {
		setting = DestAll
	}
	if setting == DestOff {
		return
	}

	if setting == DestAll || setting == DestLog {
		l.logToZap(event)
	}

	if (setting == DestAll || setting == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
				zap.String("request_id", event.RequestID),
			)
		}
	}
}

func actionEvent(req models.ActionRequest, target, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAction,
		EventType: eventType,
		RequestID: req.ID,
		Screen:    req.Screen,
		Verb:      req.Verb,
		Target:    target,
		SessionID: req.Origin.SessionID,
		Actor:     req.Origin.Actor,
		IP:        req.Origin.IP,
		UserAgent: req.Origin.UserAgent,
		Success:   success,
	}
}

// --- Action Events ---

// ActionSucceeded logs an action the backend accepted.
func (l *Logger) ActionSucceeded(ctx context.Context, req models.ActionRequest, target, message string) {
	ev := actionEvent(req, target, audit.EventActionSucceeded, true)
	ev.Message = message
	ev.Details = formDetails(req.Form)
	l.Log(ctx, ev)
}

// ActionFailed logs an action that reached the backend and failed, either
// in transport or by a non-ok status.
func (l *Logger) ActionFailed(ctx context.Context, req models.ActionRequest, target, message, reason string) {
	ev := actionEvent(req, target, audit.EventActionFailed, false)
	ev.Message = message
	ev.FailureReason = reason
	ev.Details = formDetails(req.Form)
	l.Log(ctx, ev)
}

// ActionRejected logs an action blocked by validation. Nothing was sent.
func (l *Logger) ActionRejected(ctx context.Context, req models.ActionRequest, target, reason string) {
	ev := actionEvent(req, target, audit.EventActionRejected, false)
	ev.FailureReason = reason
	l.Log(ctx, ev)
}

// ActionThrottled logs an action refused by the per-session rate limit.
func (l *Logger) ActionThrottled(ctx context.Context, req models.ActionRequest, target string) {
	l.Log(ctx, actionEvent(req, target, audit.EventActionThrottled, false))
}

// --- Batch Events ---

// BatchSummary is what a finished batch run reports.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled bool
}

// BatchFinished logs the summary of a batch run. Per-item outcomes are
// logged separately under the same request id.
func (l *Logger) BatchFinished(ctx context.Context, req models.ActionRequest, sum BatchSummary) {
	eventType := audit.EventBatchCompleted
	if sum.Cancelled {
		eventType = audit.EventBatchCancelled
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBatch,
		EventType: eventType,
		RequestID: req.ID,
		Screen:    req.Screen,
		Verb:      req.Verb,
		SessionID: req.Origin.SessionID,
		Actor:     req.Origin.Actor,
		IP:        req.Origin.IP,
		UserAgent: req.Origin.UserAgent,
		Success:   sum.Failed == 0 && !sum.Cancelled,
		Details: map[string]string{
			"total":     strconv.Itoa(sum.Total),
			"succeeded": strconv.Itoa(sum.Succeeded),
			"failed":    strconv.Itoa(sum.Failed),
			"skipped":   strconv.Itoa(sum.Skipped),
		},
	})
}

// formDetails copies the inline form input into event details, truncating
// long free text.
func formDetails(form map[string]string) map[string]string {
	if len(form) == 0 {
		return nil
	}
	out := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 200 {
			v = v[:200]
		}
		out["form_"+k] = v
	}
	return out
}
