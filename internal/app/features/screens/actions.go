// internal/app/features/screens/actions.go
package screens

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/paydesk/internal/app/features/errors"
	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/csvutil"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/limits"
	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/dalemusser/paydesk/internal/app/system/timeouts"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"go.uber.org/zap"
)

// Form keys with a meaning of their own; everything else is action input.
const (
	formConfirmed = "confirmed"
	formRequestID = "request_id"
	formKeys      = "keys"
	formKeysFile  = "keys_file"
)

// ServeAction handles POST /screens/{screen}/rows/{key}/{verb}.
//
// An action with a confirmation prompt answers 409 with the prompt until
// the client resends it with confirmed=1.
func (h *Handler) ServeAction(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.consoleFor(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxActionFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}

	req := newRequest(r, id, pathParam(r, "verb"))
	key := pathParam(r, "key")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Action(), h.Log, "action "+req.Verb)
	defer cancel()

	out, err := c.Dispatch(ctx, key, req)
	if err != nil {
		h.respondFailure(w, r, err, out.Notice, out.Prompt, "action failed",
			zap.String("screen", c.Screen().Name), zap.String("verb", req.Verb), zap.String("key", key))
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, actionResponse{
		Status:    "ok",
		RequestID: out.RequestID,
		Notice:    out.Notice,
		Stale:     out.ResyncErr != nil,
		View:      newViewResponse(c.View()),
	})
}

// ServeBatch handles POST /screens/{screen}/batch/{verb}. Keys come from
// repeated keys values or from an uploaded CSV in keys_file.
func (h *Handler) ServeBatch(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.consoleFor(w, r)
	if !ok {
		return
	}

	keys, err := batchKeys(w, r, c.Screen().KeyFields)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "batch keys rejected", err, err.Error())
		return
	}

	req := newRequest(r, id, pathParam(r, "verb"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "batch "+req.Verb)
	defer cancel()

	rep, err := c.Batch(ctx, keys, req, h.Policy)
	switch {
	case err == nil:
	case rep.Cancelled:
		// partial results are still worth returning
		h.Log.Warn("batch cancelled",
			zap.String("request_id", rep.RequestID),
			zap.Int("succeeded", rep.Succeeded),
			zap.Error(err))
	default:
		notice := rep.Notice
		if errors.Is(err, dispatch.ErrConfirmationRequired) {
			notice.Message = fmt.Sprintf("%s (%d rows)", notice.Message, len(keys))
		}
		h.respondFailure(w, r, err, notice, notice.Message, "batch failed",
			zap.String("screen", c.Screen().Name), zap.String("verb", req.Verb), zap.Int("keys", len(keys)))
		return
	}

	status := "ok"
	if rep.Cancelled {
		status = "cancelled"
	}
	uierrors.WriteJSON(w, http.StatusOK, batchResponse{
		Status: status,
		Report: rep,
		Stale:  rep.ResyncErr != nil,
		View:   newViewResponse(c.View()),
	})
}

// respondFailure writes the error body for a rejected or failed action.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error, n models.Notice, prompt, msg string, fields ...zap.Field) {
	if errors.Is(err, dispatch.ErrConfirmationRequired) {
		uierrors.WriteJSON(w, http.StatusConflict, uierrors.Body{Status: "confirm", Message: n.Message, Prompt: prompt})
		return
	}
	text := n.Message
	if text == "" {
		text = defaultMessage(err)
	}
	h.Log.Debug(msg, append(fields, zap.Error(err))...)
	h.ErrLog.Respond(w, r, msg, err, text)
}

func defaultMessage(err error) string {
	if errors.Is(err, console.ErrUnknownRow) {
		return "That row is no longer loaded. Refresh and try again."
	}
	switch uierrors.StatusFor(err) {
	case http.StatusConflict:
		return msgBusy
	case http.StatusNotFound:
		return "Not found."
	case http.StatusTooManyRequests:
		return dispatch.MsgRateLimited
	default:
		return "Request failed."
	}
}

// newRequest builds the ActionRequest from the parsed form.
func newRequest(r *http.Request, id session.Identity, verb string) models.ActionRequest {
	form := make(map[string]string)
	for k, vals := range r.PostForm {
		switch k {
		case formConfirmed, formRequestID, formKeys:
			continue
		}
		if len(vals) > 0 {
			form[k] = vals[0]
		}
	}
	return models.ActionRequest{
		ID:        strings.TrimSpace(r.PostFormValue(formRequestID)),
		Verb:      verb,
		Form:      form,
		Confirmed: truthy(r.PostFormValue(formConfirmed)),
		Origin:    auditlog.OriginFromRequest(r, id.ID, id.Actor),
	}
}

// batchKeys parses the form, multipart or urlencoded, and returns the
// selected row keys.
func batchKeys(w http.ResponseWriter, r *http.Request, keyFields []string) ([]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBatchFormSize)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(limits.MaxBatchFormSize); err != nil {
			return nil, fmt.Errorf("invalid upload: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form data: %w", err)
	}

	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k = strings.TrimSpace(k); k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range r.PostForm[formKeys] {
		add(k)
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File[formKeysFile]) > 0 {
		f, err := r.MultipartForm.File[formKeysFile][0].Open()
		if err != nil {
			return nil, fmt.Errorf("open keys file: %w", err)
		}
		defer f.Close()
		fileKeys, err := csvutil.ReadKeys(f, keyFields)
		if err != nil {
			return nil, fmt.Errorf("keys file: %w", err)
		}
		for _, k := range fileKeys {
			add(k)
		}
	}
	if len(keys) > csvutil.MaxRows {
		return nil, csvutil.ErrTooManyRows
	}
	return keys, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
