package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/paydesk/internal/app/system/session"
)

// TestOperator is the session identity injected by WithOperator.
var TestOperator = session.Identity{ID: "0b6f7c52-2a9d-4c39-9d7e-51a3b2c1d001", Actor: "ops.tester"}

// WithOperator attaches id to the request, bypassing the session
// middleware.
func WithOperator(r *http.Request, id session.Identity) *http.Request {
	return session.WithIdentity(r, id)
}

// NewRequest creates a request carrying TestOperator.
func NewRequest(method, target string) *http.Request {
	return WithOperator(httptest.NewRequest(method, target, nil), TestOperator)
}

// NewFormRequest creates an urlencoded POST carrying TestOperator.
func NewFormRequest(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return WithOperator(r, TestOperator)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t testing.TB, expected int) {
	t.Helper()
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t testing.TB, expected string) {
	t.Helper()
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON unmarshals the response body into v.
func (r *ResponseRecorder) DecodeJSON(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, r.Body.String())
	}
}
