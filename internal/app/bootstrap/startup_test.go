package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/dalemusser/paydesk/internal/testutil"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		WebservicesURL:       "https://bo.example.com/ws",
		UpstreamTimeout:      30 * time.Second,
		MongoURI:             "mongodb://localhost:27017",
		MongoDatabase:        "paydesk_test",
		SessionName:          session.DefaultName,
		ActorHeader:          session.DefaultActorHeader,
		AuditLogActions:      "all",
		AuditLogBatches:      "log",
		ConsoleIdleTTL:       30 * time.Minute,
		ConsoleSweepInterval: time.Minute,
		BatchSize:            5,
		BatchDelay:           time.Second,
		ActionRateLimit:      30,
		ActionRateWindow:     time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"bad mongo uri", func(c *AppConfig) { c.MongoURI = "localhost:27017" }, "MongoDB URI"},
		{"bad webservices url", func(c *AppConfig) { c.WebservicesURL = "not a url" }, "webservices_url"},
		{"unknown kdf", func(c *AppConfig) { c.CryptoPassphrase = "secret"; c.CryptoKDF = "scrypt" }, "crypto"},
		{"pbkdf2 ok", func(c *AppConfig) { c.CryptoPassphrase = "secret"; c.CryptoKDF = "pbkdf2" }, ""},
		{"bad audit dest", func(c *AppConfig) { c.AuditLogActions = "both" }, "audit_log_actions"},
		{"zero batch size", func(c *AppConfig) { c.BatchSize = 0 }, "batch_size"},
		{"negative delay", func(c *AppConfig) { c.BatchDelay = -time.Second }, "batch_delay"},
		{"rate limit without window", func(c *AppConfig) { c.ActionRateWindow = 0 }, "action_rate_window"},
		{"rate limit disabled", func(c *AppConfig) { c.ActionRateLimit = 0; c.ActionRateWindow = 0 }, ""},
		{"zero idle ttl", func(c *AppConfig) { c.ConsoleIdleTTL = 0 }, "console_idle_ttl"},
		{"zero sweep interval", func(c *AppConfig) { c.ConsoleSweepInterval = 0 }, "console_sweep_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(nil, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	cat, err := loadCatalog("")
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if _, ok := cat.Screen("deposits"); !ok {
		t.Error("default catalog has no deposits screen")
	}

	if _, err := loadCatalog("testdata/does-not-exist.yaml"); err == nil {
		t.Error("expected an error for a missing screens file")
	}
}

func TestBuildServices_EncryptedNeedsValidKDF(t *testing.T) {
	cfg := validConfig()
	cfg.CryptoPassphrase = "secret"
	cfg.CryptoKDF = "rot13"
	if _, err := buildServices(cfg, DBDeps{}, testLogger()); err == nil {
		t.Fatal("expected crypto error")
	}
}

func TestRouter_ServesScreensWithSession(t *testing.T) {
	php := testutil.NewPHPServer(t)
	testutil.NewDepositTable(3).Serve(php)

	cfg := validConfig()
	cfg.WebservicesURL = php.BaseURL()
	s, err := buildServices(cfg, DBDeps{}, testLogger())
	if err != nil {
		t.Fatalf("buildServices: %v", err)
	}
	s.start(cfg, testLogger())
	defer s.stop()

	sm, err := session.NewManager("", session.DefaultName, "", session.DefaultActorHeader, false, testLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	router := newRouter(s, sm, DBDeps{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/screens/deposits", nil)
	req.Header.Set(session.DefaultActorHeader, "ops.alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total":3`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("no session cookie issued")
	}
	if s.consoles.Len() != 1 {
		t.Errorf("consoles = %d, want 1", s.consoles.Len())
	}

	// the audit route is only mounted with a store
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/audit without a store: status = %d, want 404", rec.Code)
	}
}
