// internal/app/features/errors/errors.go
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Prompt  string `json:"prompt,omitempty"`
}

// ErrorLogger logs handler failures with request context and writes the
// JSON error body.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger returns an ErrorLogger writing to logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// LogServerError logs err at error level and responds 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg, append(requestFields(r), zap.Error(err))...)
	WriteJSON(w, http.StatusInternalServerError, Body{Status: "error", Message: userMsg})
}

// LogBadRequest logs err at warn level and responds 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg, append(requestFields(r), zap.Error(err))...)
	WriteJSON(w, http.StatusBadRequest, Body{Status: "error", Message: userMsg})
}

// Respond maps err to a status code and writes userMsg. Server-side
// failures are logged at error level, everything else at debug.
func (e *ErrorLogger) Respond(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	status := StatusFor(err)
	fields := append(requestFields(r), zap.Error(err), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		e.Log.Error(msg, fields...)
	} else {
		e.Log.Debug(msg, fields...)
	}
	WriteJSON(w, status, Body{Status: "error", Message: userMsg})
}

// StatusFor classifies the errors the console stack returns.
func StatusFor(err error) int {
	var (
		verr *dispatch.ValidationError
		aerr *upstream.AppError
		terr *upstream.TransportError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, dispatch.ErrConfirmationRequired), stderrors.Is(err, console.ErrBusy):
		return http.StatusConflict
	case stderrors.Is(err, dispatch.ErrRateLimited):
		return http.StatusTooManyRequests
	case stderrors.Is(err, console.ErrUnknownScreen), stderrors.Is(err, console.ErrUnknownRow),
		stderrors.Is(err, dispatch.ErrUnknownAction):
		return http.StatusNotFound
	case stderrors.Is(err, console.ErrUnknownColumn), stderrors.Is(err, console.ErrInvalidPerPage),
		stderrors.Is(err, dispatch.ErrNotBatchable):
		return http.StatusBadRequest
	case stderrors.As(err, &aerr):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.As(err, &terr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestFields(r *http.Request) []zap.Field {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if id, ok := session.Current(r); ok {
		fields = append(fields, zap.String("session_id", id.ID))
		if id.Actor != "" {
			fields = append(fields, zap.String("actor", id.Actor))
		}
	}
	return fields
}
