package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/dalemusser/paydesk/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func approveRequest() models.ActionRequest {
	return models.ActionRequest{
		ID:     "req-1",
		Screen: "deposits",
		Verb:   "approve",
		Form:   map[string]string{"reason": "ok"},
		Origin: models.Origin{SessionID: "sess-1", IP: "10.0.0.1"},
	}
}

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.ActionSucceeded(ctx, approveRequest(), "42", "Approved")
	logger.BatchFinished(ctx, approveRequest(), auditlog.BatchSummary{Total: 1})
}

func TestLogger_LogOnly(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Actions: auditlog.DestLog})
	logger.ActionSucceeded(ctx, approveRequest(), "42", "Approved")
	logger.ActionFailed(ctx, approveRequest(), "43", "Insufficient balance", "app_error")

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Errorf("levels = %v, %v", entries[0].Level, entries[1].Level)
	}
	fields := entries[0].ContextMap()
	if fields["target"] != "42" || fields["detail_form_reason"] != "ok" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLogger_Off(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Actions: auditlog.DestOff, Batches: auditlog.DestOff})
	logger.ActionSucceeded(ctx, approveRequest(), "42", "Approved")
	logger.BatchFinished(ctx, approveRequest(), auditlog.BatchSummary{Total: 2, Succeeded: 2})

	if logs.Len() != 0 {
		t.Errorf("expected nothing logged, got %d entries", logs.Len())
	}
}

func TestLogger_DB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Actions: auditlog.DestDB, Batches: auditlog.DestDB})
	req := approveRequest()
	logger.ActionRejected(ctx, req, "42", "reason is required")
	logger.BatchFinished(ctx, req, auditlog.BatchSummary{Total: 3, Succeeded: 2, Failed: 1})

	events, err := store.GetByRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByRequest failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	var sawBatch bool
	for _, ev := range events {
		if ev.Category == audit.CategoryBatch {
			sawBatch = true
			if ev.Success {
				t.Error("batch with a failure recorded as success")
			}
			if ev.Details["failed"] != "1" {
				t.Errorf("failed detail = %q", ev.Details["failed"])
			}
		}
	}
	if !sawBatch {
		t.Error("batch summary not stored")
	}
}

func TestOriginFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/screens/deposits/rows/1/approve", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.Header.Set("User-Agent", "TestBrowser/1.0")

	o := auditlog.OriginFromRequest(r, "sess-9", "ops")
	if o.IP != "203.0.113.9" || o.UserAgent != "TestBrowser/1.0" || o.SessionID != "sess-9" || o.Actor != "ops" {
		t.Errorf("origin = %+v", o)
	}
}

func TestValidDest(t *testing.T) {
	for _, s := range []string{"all", "db", "log", "off"} {
		if !auditlog.ValidDest(s) {
			t.Errorf("ValidDest(%q) = false", s)
		}
	}
	if auditlog.ValidDest("mongo") {
		t.Error("ValidDest accepted an unknown destination")
	}
}
