package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager("test-session-key-must-be-32-chars-long", "test-session", "", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func capture(got *session.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := session.Current(r)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		*got = id
	})
}

func TestLoad_IssuesAndReusesID(t *testing.T) {
	m := newManager(t)
	var first, second session.Identity

	req := httptest.NewRequest("GET", "/screens", nil)
	req.Header.Set(session.DefaultActorHeader, " alice ")
	rec := httptest.NewRecorder()
	m.Load(capture(&first)).ServeHTTP(rec, req)

	if _, err := uuid.Parse(first.ID); err != nil {
		t.Fatalf("session ID %q is not a uuid", first.ID)
	}
	if first.Actor != "alice" {
		t.Errorf("actor = %q, want alice", first.Actor)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "test-session" || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	req = httptest.NewRequest("GET", "/screens", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	m.Load(capture(&second)).ServeHTTP(rec, req)

	if second.ID != first.ID {
		t.Errorf("second request got %q, want %q", second.ID, first.ID)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("existing session should not be re-issued")
	}
}

func TestLoad_TamperedCookieGetsNewID(t *testing.T) {
	m := newManager(t)
	var got session.Identity

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "test-session", Value: "forged"})
	rec := httptest.NewRecorder()
	m.Load(capture(&got)).ServeHTTP(rec, req)

	if _, err := uuid.Parse(got.ID); err != nil {
		t.Errorf("ID = %q", got.ID)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Error("expected a fresh cookie")
	}
}

func TestEnd_ExpiresCookie(t *testing.T) {
	m := newManager(t)
	var got session.Identity

	rec := httptest.NewRecorder()
	m.Load(capture(&got)).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest("DELETE", "/session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	id, err := m.End(rec, req)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if id != got.ID {
		t.Errorf("End returned %q, want %q", id, got.ID)
	}
	c := rec.Result().Cookies()
	if len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("cookie not expired: %+v", c)
	}
}

func TestNewManager_RandomKeyWhenEmpty(t *testing.T) {
	if _, err := session.NewManager("", "", "", "", true, nil); err != nil {
		t.Fatalf("NewManager: %v", err)
	}
}
