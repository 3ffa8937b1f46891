// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/app/system/cryptobox"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/session"
	"github.com/dalemusser/paydesk/internal/app/system/timeouts"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for PayDesk.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: webservices_url, mongo_uri, etc.
//   - Environment variables: PAYDESK_WEBSERVICES_URL, PAYDESK_MONGO_URI, etc.
//   - Command-line flags: --webservices_url, --mongo_uri, etc.
var appConfigKeys = []config.AppKey{
	// PHP backend
	{Name: "webservices_url", Default: "http://localhost:8081/ws", Desc: "Base URL of the PHP webservices"},
	{Name: "upstream_timeout", Default: "90s", Desc: "Default timeout for one backend request"},

	// CRYPTO codec
	{Name: "crypto_passphrase", Default: "", Desc: "Passphrase shared with the backend for encrypted endpoints"},
	{Name: "crypto_kdf", Default: cryptobox.KDFEVP, Desc: "Key derivation: 'evp' (CryptoJS compatible) or 'pbkdf2'"},
	{Name: "crypto_iterations", Default: cryptobox.DefaultIterations, Desc: "PBKDF2 iterations"},

	{Name: "screens_file", Default: "", Desc: "YAML screen catalog (blank uses the built-in screens)"},

	// Audit store
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "paydesk", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Sessions
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: session.DefaultName, Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "actor_header", Default: session.DefaultActorHeader, Desc: "Request header carrying the operator name set by the auth proxy"},

	// Audit logging settings
	{Name: "audit_log_actions", Default: "all", Desc: "Row action logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_batches", Default: "all", Desc: "Batch logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Consoles
	{Name: "console_idle_ttl", Default: "30m", Desc: "Release a session's console after this much inactivity"},
	{Name: "console_sweep_interval", Default: "5m", Desc: "How often idle consoles are swept"},

	// Batches
	{Name: "batch_size", Default: dispatch.DefaultBatchSize, Desc: "Rows sent concurrently per batch chunk"},
	{Name: "batch_delay", Default: "1s", Desc: "Pause between batch chunks"},

	// Rate limiting
	{Name: "action_rate_limit", Default: 30, Desc: "Actions one session may send per window (0 disables)"},
	{Name: "action_rate_window", Default: "1m", Desc: "Rate limit window"},

	// Request deadlines
	{Name: "fetch_timeout", Default: "95s", Desc: "Deadline for a list fetch request"},
	{Name: "action_timeout", Default: "3m", Desc: "Deadline for a row action request"},
	{Name: "batch_timeout", Default: "15m", Desc: "Deadline for a batch request"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, PAYDESK_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PAYDESK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		WebservicesURL:  appValues.String("webservices_url"),
		UpstreamTimeout: appValues.Duration("upstream_timeout", upstream.DefaultTimeout),

		CryptoPassphrase: appValues.String("crypto_passphrase"),
		CryptoKDF:        appValues.String("crypto_kdf"),
		CryptoIterations: appValues.Int("crypto_iterations"),

		ScreensFile: appValues.String("screens_file"),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		ActorHeader:   appValues.String("actor_header"),

		AuditLogActions: appValues.String("audit_log_actions"),
		AuditLogBatches: appValues.String("audit_log_batches"),

		ConsoleIdleTTL:       appValues.Duration("console_idle_ttl", 30*time.Minute),
		ConsoleSweepInterval: appValues.Duration("console_sweep_interval", 5*time.Minute),

		BatchSize:  appValues.Int("batch_size"),
		BatchDelay: appValues.Duration("batch_delay", dispatch.DefaultBatchDelay),

		ActionRateLimit:  appValues.Int("action_rate_limit"),
		ActionRateWindow: appValues.Duration("action_rate_window", time.Minute),

		FetchTimeout:  appValues.Duration("fetch_timeout", timeouts.DefaultFetch),
		ActionTimeout: appValues.Duration("action_timeout", timeouts.DefaultAction),
		BatchTimeout:  appValues.Duration("batch_timeout", timeouts.DefaultBatch),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Bad URIs, unknown audit destinations and unusable pacing values are
// caught here, before anything connects.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if _, err := upstream.ParseBaseURL(appCfg.WebservicesURL); err != nil {
		logger.Error("invalid webservices URL", zap.Error(err))
		return fmt.Errorf("invalid webservices_url: %w", err)
	}
	if appCfg.CryptoPassphrase != "" {
		if _, err := cryptobox.New(cryptobox.Config{
			Passphrase: appCfg.CryptoPassphrase,
			KDF:        appCfg.CryptoKDF,
			Iterations: appCfg.CryptoIterations,
		}); err != nil {
			return fmt.Errorf("invalid crypto settings: %w", err)
		}
	}
	for name, v := range map[string]string{
		"audit_log_actions": appCfg.AuditLogActions,
		"audit_log_batches": appCfg.AuditLogBatches,
	} {
		if !auditlog.ValidDest(v) {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", name, v)
		}
	}
	if appCfg.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1 (got %d)", appCfg.BatchSize)
	}
	if appCfg.BatchDelay < 0 {
		return fmt.Errorf("batch_delay must not be negative (got %s)", appCfg.BatchDelay)
	}
	if appCfg.ActionRateLimit < 0 {
		return fmt.Errorf("action_rate_limit must not be negative (got %d)", appCfg.ActionRateLimit)
	}
	if appCfg.ActionRateLimit > 0 && appCfg.ActionRateWindow <= 0 {
		return fmt.Errorf("action_rate_window must be positive when action_rate_limit is set")
	}
	if appCfg.ConsoleIdleTTL <= 0 {
		return fmt.Errorf("console_idle_ttl must be positive (got %s)", appCfg.ConsoleIdleTTL)
	}
	if appCfg.ConsoleSweepInterval <= 0 {
		return fmt.Errorf("console_sweep_interval must be positive (got %s)", appCfg.ConsoleSweepInterval)
	}

	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.CryptoPassphrase == "" {
		logger.Warn("crypto_passphrase is empty; encrypted screens will fail")
	}
	return nil
}
