package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/envelope"
	"github.com/dalemusser/paydesk/internal/app/system/ratelimit"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	Script  string
	Payload map[string]any
}

// fakePoster stands in for the PHP backend.
type fakePoster struct {
	mu      sync.Mutex
	calls   []call
	respond func(script string, payload map[string]any) (envelope.Envelope, error)
}

func (f *fakePoster) Post(_ context.Context, ep models.Endpoint, payload any) (envelope.Envelope, error) {
	p, _ := payload.(map[string]any)
	f.mu.Lock()
	f.calls = append(f.calls, call{Script: ep.Script, Payload: p})
	f.mu.Unlock()
	if f.respond == nil {
		return envelope.Envelope{Status: "ok", OK: true, Message: "Done"}, nil
	}
	return f.respond(ep.Script, p)
}

func (f *fakePoster) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type countingRefetcher struct {
	mu sync.Mutex
	n  int
}

func (c *countingRefetcher) Resync(context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingRefetcher) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func depositScreen() *models.Screen {
	return &models.Screen{
		Name:      "deposits",
		KeyFields: []string{"id"},
		Columns: []models.Column{
			{Name: "Status", Field: "status", Options: []models.Option{{Value: "0", Label: "Pending"}, {Value: "1", Label: "Approved"}}},
		},
		Actions: []models.Action{
			{
				Verb:          "approve",
				Label:         "Approve",
				Endpoint:      models.Endpoint{Script: "deposit/approve.php"},
				AllowedStatus: []string{"0"},
				Batchable:     true,
			},
			{
				Verb:          "reject",
				Label:         "Reject",
				Endpoint:      models.Endpoint{Script: "deposit/reject.php"},
				Confirm:       "Reject this deposit?",
				AllowedStatus: []string{"0"},
				Fields:        []models.FormField{{Name: "reason", Label: "Reason", Required: true, MaxLen: 100}},
			},
			{
				Verb:     "adjust",
				Label:    "Adjust",
				Endpoint: models.Endpoint{Script: "deposit/adjust.php"},
				Params:   map[string]string{"mode": "manual"},
				Fields: []models.FormField{
					{Name: "amount", Label: "Amount", Kind: models.FieldAmount, Required: true},
					{Name: "channel", Label: "Channel", Kind: models.FieldEnum, Options: []models.Option{{Value: "bank"}, {Value: "wallet"}}},
				},
			},
		},
	}
}

func row(id, status string) models.Record {
	return models.Record{"id": id, "status": status, "amount": json.Number("100.00")}
}

func TestDo_ApprovePendingSendsIDAndRefetchesOnce(t *testing.T) {
	up := &fakePoster{}
	rf := &countingRefetcher{}
	d := dispatch.New(up, dispatch.Options{})

	out, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{Verb: "approve", Target: row("7", "0")}, rf)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !out.Sent || !out.OK {
		t.Errorf("outcome = %+v", out)
	}
	want := []call{{Script: "deposit/approve.php", Payload: map[string]any{"id": "7"}}}
	if diff := cmp.Diff(want, up.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if rf.Count() != 1 {
		t.Errorf("refetches = %d, want 1", rf.Count())
	}
	if out.Notice.Level != models.NoticeSuccess || out.Notice.Message != "Done" {
		t.Errorf("notice = %+v", out.Notice)
	}
	if out.RequestID == "" {
		t.Error("request id not assigned")
	}
}

func TestDo_RejectWithEmptyReasonSendsNothing(t *testing.T) {
	up := &fakePoster{}
	rf := &countingRefetcher{}
	d := dispatch.New(up, dispatch.Options{})

	out, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{
		Verb: "reject", Target: row("7", "0"), Form: map[string]string{"reason": "   "}, Confirmed: true,
	}, rf)

	var ve *dispatch.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.Field != "reason" {
		t.Errorf("field = %q", ve.Field)
	}
	if len(up.Calls()) != 0 || rf.Count() != 0 {
		t.Errorf("calls = %d, refetches = %d; want none", len(up.Calls()), rf.Count())
	}
	if out.Sent || out.Notice.Message != "Reason is required." {
		t.Errorf("outcome = %+v", out)
	}
}

func TestDo_RowPrecondition(t *testing.T) {
	up := &fakePoster{}
	d := dispatch.New(up, dispatch.Options{})

	out, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{Verb: "approve", Target: row("7", "1")}, nil)
	var ve *dispatch.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if out.Notice.Message != "Approve is not available for a row with status Approved." {
		t.Errorf("notice = %q", out.Notice.Message)
	}
	if len(up.Calls()) != 0 {
		t.Error("request sent for a non-pending row")
	}
}

func TestDo_ConfirmationRequired(t *testing.T) {
	up := &fakePoster{}
	d := dispatch.New(up, dispatch.Options{})

	out, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{
		Verb: "reject", Target: row("7", "0"), Form: map[string]string{"reason": "dup"},
	}, nil)
	if !errors.Is(err, dispatch.ErrConfirmationRequired) {
		t.Fatalf("err = %v", err)
	}
	if out.Prompt != "Reject this deposit?" || len(up.Calls()) != 0 {
		t.Errorf("outcome = %+v, calls = %d", out, len(up.Calls()))
	}
}

func TestDo_AppErrorShowsServerMessageAndSkipsRefetch(t *testing.T) {
	up := &fakePoster{respond: func(string, map[string]any) (envelope.Envelope, error) {
		return envelope.Envelope{Status: "error"}, &upstream.AppError{Status: "error", Message: "<b>Insufficient</b> balance"}
	}}
	rf := &countingRefetcher{}
	d := dispatch.New(up, dispatch.Options{})

	out, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{Verb: "approve", Target: row("7", "0")}, rf)
	var app *upstream.AppError
	if !errors.As(err, &app) {
		t.Fatalf("err = %v, want *AppError", err)
	}
	if out.Notice.Level != models.NoticeError || out.Notice.Message != "Insufficient balance" {
		t.Errorf("notice = %+v", out.Notice)
	}
	if rf.Count() != 0 {
		t.Error("refetched after a failed action")
	}
}

func TestDo_TransportErrorUsesFixedMessage(t *testing.T) {
	up := &fakePoster{respond: func(string, map[string]any) (envelope.Envelope, error) {
		return envelope.Envelope{}, &upstream.TransportError{Script: "x", Err: errors.New("connection refused")}
	}}
	d := dispatch.New(up, dispatch.Options{})

	out, _ := d.Do(context.Background(), depositScreen(), models.ActionRequest{Verb: "approve", Target: row("7", "0")}, nil)
	if out.Notice.Message != upstream.MsgUpdateFailed {
		t.Errorf("notice = %q", out.Notice.Message)
	}
}

func TestDo_MissingCryptoIsNotSent(t *testing.T) {
	up := &fakePoster{respond: func(string, map[string]any) (envelope.Envelope, error) {
		return envelope.Envelope{}, upstream.ErrNoCrypto
	}}
	rf := &countingRefetcher{}
	d := dispatch.New(up, dispatch.Options{})

	out, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{Verb: "approve", Target: row("7", "0")}, rf)
	if !errors.Is(err, upstream.ErrNoCrypto) {
		t.Fatalf("err = %v, want ErrNoCrypto", err)
	}
	if out.Sent || out.OK {
		t.Errorf("outcome = %+v, want not sent", out)
	}
	if out.Notice.Message != upstream.MsgUpdateFailed {
		t.Errorf("notice = %q", out.Notice.Message)
	}
	if rf.Count() != 0 {
		t.Error("refetched after nothing was sent")
	}
}

func TestDo_PayloadMergesParamsFormAndID(t *testing.T) {
	up := &fakePoster{}
	d := dispatch.New(up, dispatch.Options{})

	_, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{
		Verb:   "adjust",
		Target: row("9", "1"),
		Form:   map[string]string{"amount": "1,250.50", "channel": "bank", "id": "spoofed", "extra": "ignored"},
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	want := map[string]any{"id": "9", "mode": "manual", "amount": "1250.50", "channel": "bank"}
	if diff := cmp.Diff(want, up.Calls()[0].Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDo_UnknownVerb(t *testing.T) {
	d := dispatch.New(&fakePoster{}, dispatch.Options{})
	if _, err := d.Do(context.Background(), depositScreen(), models.ActionRequest{Verb: "explode", Target: row("1", "0")}, nil); !errors.Is(err, dispatch.ErrUnknownAction) {
		t.Errorf("err = %v", err)
	}
}

func TestDo_RateLimited(t *testing.T) {
	up := &fakePoster{}
	d := dispatch.New(up, dispatch.Options{Limiter: ratelimit.New(1, time.Minute)})
	req := models.ActionRequest{Verb: "approve", Target: row("7", "0"), Origin: models.Origin{SessionID: "s1"}}

	if _, err := d.Do(context.Background(), depositScreen(), req, nil); err != nil {
		t.Fatalf("first Do: %v", err)
	}
	if _, err := d.Do(context.Background(), depositScreen(), req, nil); !errors.Is(err, dispatch.ErrRateLimited) {
		t.Errorf("second Do err = %v, want ErrRateLimited", err)
	}
	if len(up.Calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(up.Calls()))
	}
}

func TestCheckForm(t *testing.T) {
	act := depositScreen().Actions[2]
	tests := []struct {
		name    string
		form    map[string]string
		wantErr string
	}{
		{"ok", map[string]string{"amount": "10"}, ""},
		{"ok two decimals", map[string]string{"amount": "10.25"}, ""},
		{"missing amount", map[string]string{}, "Amount is required."},
		{"zero amount", map[string]string{"amount": "0"}, "Amount must be a positive amount."},
		{"negative amount", map[string]string{"amount": "-5"}, "Amount must be a positive amount."},
		{"three decimals", map[string]string{"amount": "1.005"}, "Amount must be a positive amount."},
		{"not a number", map[string]string{"amount": "ten"}, "Amount must be a positive amount."},
		{"bad enum", map[string]string{"amount": "1", "channel": "cash"}, "Please select a valid channel."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dispatch.CheckForm(act, tt.form)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckRow_MissingID(t *testing.T) {
	s := depositScreen()
	err := dispatch.CheckRow(s, s.Actions[0], models.Record{"status": "0"})
	var ve *dispatch.ValidationError
	if !errors.As(err, &ve) || ve.Field != "id" {
		t.Errorf("err = %v", err)
	}
}
