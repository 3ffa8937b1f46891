package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// PHPHandler answers one script. payload is the decoded data field; the
// return value is written as the JSON response.
type PHPHandler func(payload map[string]any) any

// PHPServer fakes the webservices backend: form-encoded POSTs with a
// plain JSON data field, routed by script path under /ws/.
type PHPServer struct {
	*httptest.Server

	mu       sync.Mutex
	scripts  map[string]PHPHandler
	calls    map[string]int
	payloads map[string][]map[string]any
}

// NewPHPServer starts a fake backend that is closed when the test ends.
func NewPHPServer(t testing.TB) *PHPServer {
	t.Helper()
	s := &PHPServer{
		scripts:  make(map[string]PHPHandler),
		calls:    make(map[string]int),
		payloads: make(map[string][]map[string]any),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the webservices URL to configure the upstream client with.
func (s *PHPServer) BaseURL() string { return s.URL + "/ws" }

// Handle registers h for script.
func (s *PHPServer) Handle(script string, h PHPHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[script] = h
}

// Calls returns how many times script was posted to.
func (s *PHPServer) Calls(script string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[script]
}

// Payloads returns the decoded payloads posted to script, oldest first.
func (s *PHPServer) Payloads(script string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.payloads[script]))
	copy(out, s.payloads[script])
	return out
}

func (s *PHPServer) serve(w http.ResponseWriter, r *http.Request) {
	script := strings.TrimPrefix(r.URL.Path, "/ws/")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	var payload map[string]any
	if data := r.PostForm.Get("data"); data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			http.Error(w, "bad data", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	h, ok := s.scripts[script]
	s.calls[script]++
	s.payloads[script] = append(s.payloads[script], payload)
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h(payload))
}

// DepositTable is an in-memory deposit list with approve and reject
// scripts, registered on a PHPServer by Serve.
type DepositTable struct {
	mu   sync.Mutex
	rows []models.Record
}

// NewDepositTable returns n deposits. Odd IDs are pending (status "0"),
// even IDs approved (status "1"); amounts are id*100.
func NewDepositTable(n int) *DepositTable {
	rows := make([]models.Record, n)
	for i := range rows {
		id := i + 1
		status := "0"
		if id%2 == 0 {
			status = "1"
		}
		rows[i] = models.Record{
			"id":           fmt.Sprint(id),
			"merchantCode": fmt.Sprintf("M%03d", id%3),
			"accountNo":    fmt.Sprintf("ACC-%04d", id),
			"amount":       fmt.Sprintf("%d.00", id*100),
			"createdAt":    "2026-03-01 10:00:00",
			"status":       status,
		}
	}
	return &DepositTable{rows: rows}
}

// Serve registers deposit/list.php, deposit/approve.php and
// deposit/reject.php on s.
func (d *DepositTable) Serve(s *PHPServer) {
	s.Handle("deposit/list.php", func(map[string]any) any {
		d.mu.Lock()
		defer d.mu.Unlock()
		out := make([]models.Record, len(d.rows))
		for i, r := range d.rows {
			out[i] = maps.Clone(r)
		}
		return map[string]any{"status": "ok", "records": out}
	})
	s.Handle("deposit/approve.php", d.transition("1", "Deposit approved"))
	s.Handle("deposit/reject.php", d.transition("2", ""))
}

func (d *DepositTable) transition(status, msg string) PHPHandler {
	return func(p map[string]any) any {
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, r := range d.rows {
			if r["id"] == p["id"] {
				if r["status"] != "0" {
					return map[string]any{"status": "error", "message": "Deposit already processed"}
				}
				r["status"] = status
				return map[string]any{"status": "ok", "message": msg}
			}
		}
		return map[string]any{"status": "error", "message": "Deposit not found"}
	}
}

// Status returns the current status of deposit id.
func (d *DepositTable) Status(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.rows {
		if r["id"] == id {
			return r.String("status")
		}
	}
	return ""
}
