package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"github.com/dalemusser/paydesk/internal/testutil"
)

func actionEvent(screen, verb string, success bool) audit.Event {
	eventType := audit.EventActionSucceeded
	if !success {
		eventType = audit.EventActionFailed
	}
	return audit.Event{
		Category:  audit.CategoryAction,
		EventType: eventType,
		RequestID: "req-" + screen + "-" + verb,
		Screen:    screen,
		Verb:      verb,
		Target:    "42",
		SessionID: "sess-1",
		IP:        "192.168.1.1",
		Success:   success,
	}
}

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Log(ctx, actionEvent("deposits", "approve", true)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
	if events[0].Screen != "deposits" || events[0].Verb != "approve" || events[0].Target != "42" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestStore_Log_AutoSetsTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	before := time.Now().Add(-time.Second)
	if err := store.Log(ctx, actionEvent("deposits", "approve", true)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	after := time.Now().Add(time.Second)

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.Before(before) || events[0].Timestamp.After(after) {
		t.Errorf("expected timestamp to be set to current time, got %v", events[0].Timestamp)
	}
}

func TestStore_Log_WithDetails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := actionEvent("withdrawals", "reject", true)
	ev.Details = map[string]string{"reason": "duplicate"}
	if err := store.Log(ctx, ev); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByRequest(ctx, ev.RequestID)
	if err != nil {
		t.Fatalf("GetByRequest failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Details["reason"] != "duplicate" {
		t.Errorf("expected reason=duplicate, got %s", events[0].Details["reason"])
	}
}

func TestStore_Query_ByScreenAndVerb(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, ev := range []audit.Event{
		actionEvent("deposits", "approve", true),
		actionEvent("deposits", "reject", true),
		actionEvent("withdrawals", "approve", false),
	} {
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{Screen: "deposits"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 deposit events, got %d", len(events))
	}

	events, err = store.Query(ctx, audit.QueryFilter{Verb: "approve"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 approve events, got %d", len(events))
	}

	failed := false
	events, err = store.Query(ctx, audit.QueryFilter{Success: &failed})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 || events[0].Screen != "withdrawals" {
		t.Errorf("expected the one failed withdrawal, got %+v", events)
	}
}

func TestStore_Query_ByTimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now()
	oneHourAgo := now.Add(-time.Hour)

	old := actionEvent("deposits", "approve", true)
	old.Timestamp = now.Add(-2 * time.Hour)
	recent := actionEvent("deposits", "approve", true)
	recent.Timestamp = now

	for _, ev := range []audit.Event{old, recent} {
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{StartTime: &oneHourAgo})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 recent event, got %d", len(events))
	}
}

func TestStore_Query_WithOffset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := store.Log(ctx, actionEvent("sms", "resend", true)); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestStore_CountByFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	count, err := store.CountByFilter(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, actionEvent("deposits", "approve", true)); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryBatch, EventType: audit.EventBatchCompleted, Screen: "automation", Verb: "start", Success: true}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	count, err = store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryAction})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	// Calling again should be idempotent
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Second EnsureIndexes failed: %v", err)
	}
}
