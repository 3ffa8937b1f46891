package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch defaults.
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = time.Second
)

// BatchPolicy is the fixed pacing of a batch run: Size items are sent
// concurrently, then the runner waits Delay before the next group.
type BatchPolicy struct {
	Size  int
	Delay time.Duration
}

func (p BatchPolicy) normalized() BatchPolicy {
	if p.Size <= 0 {
		p.Size = DefaultBatchSize
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// ItemResult is the outcome for one row of a batch.
type ItemResult struct {
	Key     string `json:"key"`
	Sent    bool   `json:"sent"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// BatchReport aggregates a batch run.
type BatchReport struct {
	RequestID string        `json:"request_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"` // failed validation, never sent
	Cancelled bool          `json:"cancelled"`
	Items     []ItemResult  `json:"items"`
	Notice    models.Notice `json:"notice"`
	ResyncErr error         `json:"-"`
}

// Batch runs one verb over many rows. Rows that fail CheckRow are skipped;
// the form is validated once for the whole run. Items inside a group run
// concurrently and groups run one after another, with policy.Delay between
// them. Cancelling ctx stops the run before the next group. A single
// resync follows the run when anything was sent.
func (d *Dispatcher) Batch(ctx context.Context, screen *models.Screen, req models.ActionRequest, targets []models.Record, policy BatchPolicy, rf Refetcher) (BatchReport, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Screen = screen.Name
	rep := BatchReport{RequestID: req.ID, Total: len(targets)}

	act, ok := screen.Action(req.Verb)
	if !ok {
		rep.Notice = notice(models.NoticeError, "Unknown action.")
		return rep, ErrUnknownAction
	}
	if !act.Batchable {
		rep.Notice = notice(models.NoticeError, actionLabel(act)+" cannot be applied to several rows.")
		return rep, ErrNotBatchable
	}
	if len(targets) == 0 {
		err := invalid("keys", "Select at least one row.")
		rep.Notice = notice(models.NoticeWarning, err.Message)
		return rep, err
	}
	if err := CheckForm(act, req.Form); err != nil {
		d.audit.ActionRejected(ctx, req, "", err.Error())
		rep.Notice = notice(models.NoticeWarning, err.Error())
		return rep, err
	}
	if act.Confirm != "" && !req.Confirmed {
		rep.Notice = notice(models.NoticeInfo, act.Confirm)
		return rep, ErrConfirmationRequired
	}
	if !d.limit.Allow(req.Origin.SessionID) {
		d.audit.ActionThrottled(ctx, req, "")
		rep.Notice = notice(models.NoticeWarning, MsgRateLimited)
		return rep, ErrRateLimited
	}

	policy = policy.normalized()
	rep.Items = make([]ItemResult, len(targets))

	attempted := make([]bool, len(targets))
	sendable := make([]int, 0, len(targets))
	for i, t := range targets {
		rep.Items[i].Key = t.Key(screen.KeyFields)
		if err := CheckRow(screen, act, t); err != nil {
			rep.Items[i].Message = err.Error()
			rep.Skipped++
			continue
		}
		sendable = append(sendable, i)
	}

	for start := 0; start < len(sendable); start += policy.Size {
		if start > 0 && !sleep(ctx, policy.Delay) {
			rep.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
		end := min(start+policy.Size, len(sendable))

		var g errgroup.Group
		for _, idx := range sendable[start:end] {
			item := &rep.Items[idx]
			itemReq := req
			itemReq.Target = targets[idx]
			attempted[idx] = true
			g.Go(func() error {
				msg, err := d.send(ctx, screen, act, itemReq, item.Key)
				item.Sent = upstream.Sent(err)
				if err != nil {
					item.Message = upstream.UserMessage(err, upstream.MsgUpdateFailed)
					return nil
				}
				item.OK = true
				item.Message = msg
				return nil
			})
		}
		_ = g.Wait()
	}

	sent := 0
	for i, it := range rep.Items {
		if !attempted[i] {
			continue
		}
		if it.Sent {
			sent++
		}
		if it.OK {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}

	d.log.Info("batch finished",
		zap.String("request_id", req.ID),
		zap.String("screen", screen.Name),
		zap.String("verb", act.Verb),
		zap.Int("total", rep.Total),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped),
		zap.Bool("cancelled", rep.Cancelled))
	d.audit.BatchFinished(ctx, req, auditlog.BatchSummary{
		Total:     rep.Total,
		Succeeded: rep.Succeeded,
		Failed:    rep.Failed,
		Skipped:   rep.Skipped,
		Cancelled: rep.Cancelled,
	})

	rep.Notice = batchNotice(act, rep)

	if sent > 0 && rf != nil {
		// The run's own context may be cancelled; the resync still happens.
		if err := rf.Resync(context.WithoutCancel(ctx)); err != nil {
			d.log.Warn("resync after batch failed",
				zap.String("request_id", req.ID),
				zap.Error(err))
			rep.ResyncErr = err
		}
	}

	if rep.Cancelled {
		return rep, context.Cause(ctx)
	}
	return rep, nil
}

// sleep waits d or until ctx is done; it reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func batchNotice(act models.Action, rep BatchReport) models.Notice {
	msg := fmt.Sprintf("%s: %d succeeded, %d failed", actionLabel(act), rep.Succeeded, rep.Failed)
	if rep.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", rep.Skipped)
	}
	if rep.Cancelled {
		msg += " (cancelled)"
	}
	msg += "."

	level := models.NoticeSuccess
	switch {
	case rep.Succeeded == 0:
		level = models.NoticeError
	case rep.Failed > 0 || rep.Skipped > 0 || rep.Cancelled:
		level = models.NoticeWarning
	}
	return notice(level, msg)
}
