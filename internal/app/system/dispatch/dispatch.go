// Package dispatch turns a row and a verb into a POST to the verb's
// endpoint, reports the outcome as a notice, and asks the caller to
// resynchronize after a success.
//
// Nothing here mutates records. The only way the visible table changes
// after an action is the single refetch that follows a successful POST.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/paydesk/internal/app/system/ratelimit"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnknownAction is returned when the screen has no action for a verb.
	ErrUnknownAction = errors.New("dispatch: unknown action")
	// ErrConfirmationRequired is returned when an action with a confirmation
	// prompt arrives unconfirmed. Outcome.Prompt carries the prompt.
	ErrConfirmationRequired = errors.New("dispatch: confirmation required")
	// ErrRateLimited is returned when the session sent too many actions.
	ErrRateLimited = errors.New("dispatch: too many actions")
	// ErrNotBatchable is returned when a batch is requested for an action
	// that does not allow it.
	ErrNotBatchable = errors.New("dispatch: action cannot run as a batch")
)

// MsgRateLimited is shown when ErrRateLimited is returned.
const MsgRateLimited = "Too many actions. Please wait a moment and try again."

// Refetcher resynchronizes the visible record set after a successful action.
type Refetcher interface {
	Resync(ctx context.Context) error
}

// RefetchFunc adapts a function to Refetcher.
type RefetchFunc func(ctx context.Context) error

// Resync calls f.
func (f RefetchFunc) Resync(ctx context.Context) error { return f(ctx) }

// Options configures a Dispatcher.
type Options struct {
	Audit   *auditlog.Logger   // nil disables auditing
	Limiter *ratelimit.Limiter // nil disables rate limiting
	Logger  *zap.Logger
}

// Dispatcher sends row actions upstream. It is safe for concurrent use.
type Dispatcher struct {
	up    upstream.Poster
	audit *auditlog.Logger
	limit *ratelimit.Limiter
	log   *zap.Logger
}

// New returns a Dispatcher posting through up.
func New(up upstream.Poster, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{up: up, audit: opts.Audit, limit: opts.Limiter, log: log}
}

// Outcome describes what happened to one action request.
type Outcome struct {
	RequestID string
	Sent      bool          // a POST was issued
	OK        bool          // the backend accepted it
	Prompt    string        // set with ErrConfirmationRequired
	Notice    models.Notice // always set
	ResyncErr error         // refetch after success failed
}

// Do validates and sends req against screen. The returned Outcome always
// carries a Notice; err classifies failures (*ValidationError,
// *upstream.AppError, *upstream.TransportError, ErrUnknownAction,
// ErrConfirmationRequired, ErrRateLimited). On success rf is resynced
// exactly once.
func (d *Dispatcher) Do(ctx context.Context, screen *models.Screen, req models.ActionRequest, rf Refetcher) (Outcome, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Screen = screen.Name
	out := Outcome{RequestID: req.ID}
	target := req.Target.Key(screen.KeyFields)

	act, ok := screen.Action(req.Verb)
	if !ok {
		out.Notice = notice(models.NoticeError, "Unknown action.")
		return out, ErrUnknownAction
	}

	if err := Validate(screen, act, req.Target, req.Form); err != nil {
		d.audit.ActionRejected(ctx, req, target, err.Error())
		out.Notice = notice(models.NoticeWarning, err.Error())
		return out, err
	}

	if act.Confirm != "" && !req.Confirmed {
		out.Prompt = act.Confirm
		out.Notice = notice(models.NoticeInfo, act.Confirm)
		return out, ErrConfirmationRequired
	}

	if !d.limit.Allow(req.Origin.SessionID) {
		d.audit.ActionThrottled(ctx, req, target)
		out.Notice = notice(models.NoticeWarning, MsgRateLimited)
		return out, ErrRateLimited
	}

	msg, err := d.send(ctx, screen, act, req, target)
	out.Sent = upstream.Sent(err)
	if err != nil {
		out.Notice = notice(models.NoticeError, htmlsanitize.PlainText(upstream.UserMessage(err, upstream.MsgUpdateFailed)))
		return out, err
	}

	out.OK = true
	out.Notice = successNotice(act, msg)
	if rf != nil {
		if err := rf.Resync(ctx); err != nil {
			d.log.Warn("resync after action failed",
				zap.String("request_id", req.ID),
				zap.String("screen", screen.Name),
				zap.Error(err))
			out.ResyncErr = err
		}
	}
	return out, nil
}

// send posts one action, audits the result and returns the server message.
func (d *Dispatcher) send(ctx context.Context, screen *models.Screen, act models.Action, req models.ActionRequest, target string) (string, error) {
	payload := BuildPayload(screen, act, req.Target, req.Form)

	env, err := d.up.Post(ctx, act.Endpoint, payload)
	if err != nil {
		reason := "transport"
		var app *upstream.AppError
		switch {
		case errors.As(err, &app):
			reason = "app_error"
		case !upstream.Sent(err):
			reason = "not_sent"
		}
		d.log.Info("action failed",
			zap.String("request_id", req.ID),
			zap.String("screen", screen.Name),
			zap.String("verb", act.Verb),
			zap.String("target", target),
			zap.Error(err))
		d.audit.ActionFailed(ctx, req, target, upstream.UserMessage(err, upstream.MsgUpdateFailed), reason)
		return "", err
	}

	d.log.Info("action succeeded",
		zap.String("request_id", req.ID),
		zap.String("screen", screen.Name),
		zap.String("verb", act.Verb),
		zap.String("target", target))
	d.audit.ActionSucceeded(ctx, req, target, env.Message)
	return env.Message, nil
}

func successNotice(act models.Action, msg string) models.Notice {
	if msg = htmlsanitize.PlainText(msg); msg != "" {
		return notice(models.NoticeSuccess, msg)
	}
	return notice(models.NoticeSuccess, actionLabel(act)+" succeeded.")
}

// BuildPayload assembles the request body for act: static params, then
// declared form fields, then the row's identifying fields. Identifying
// fields are copied with their original JSON values.
func BuildPayload(screen *models.Screen, act models.Action, target models.Record, form map[string]string) map[string]any {
	p := make(map[string]any, len(act.Params)+len(act.Fields)+2)
	for k, v := range act.Params {
		p[k] = v
	}
	for _, f := range act.Fields {
		if v := strings.TrimSpace(form[f.Name]); v != "" {
			if f.Kind == models.FieldAmount {
				v = strings.ReplaceAll(v, ",", "")
			}
			p[f.Name] = v
		}
	}
	for _, f := range IDFields(screen, act) {
		if v, ok := target[f]; ok {
			p[f] = v
		}
	}
	return p
}

func notice(level, msg string) models.Notice {
	return models.Notice{Level: level, Message: msg}
}
