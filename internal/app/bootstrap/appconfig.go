// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (PAYDESK_*), configuration
// files, or command-line flags (loaded in LoadConfig). Framework settings
// such as ports, TLS and log level live in WAFFLE's CoreConfig.
type AppConfig struct {
	// PHP webservices backend
	WebservicesURL  string        // base URL the endpoint scripts hang off, e.g. https://bo.example.com/ws
	UpstreamTimeout time.Duration // default per-request timeout; endpoints may override

	// CRYPTO codec for encrypted endpoints (blank passphrase disables them)
	CryptoPassphrase string
	CryptoKDF        string // "evp" or "pbkdf2"
	CryptoIterations int    // pbkdf2 only

	// Screen catalog (blank uses the built-in screens)
	ScreensFile string

	// MongoDB connection configuration (audit trail)
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: paydesk-session)
	SessionDomain string // Cookie domain (blank means current host)
	ActorHeader   string // header the auth proxy puts the operator name in

	// Audit logging destinations: "all", "db", "log" or "off"
	AuditLogActions string
	AuditLogBatches string

	// Console lifecycle
	ConsoleIdleTTL       time.Duration // idle consoles are released after this long
	ConsoleSweepInterval time.Duration

	// Batch pacing
	BatchSize  int           // rows sent concurrently per chunk
	BatchDelay time.Duration // pause between chunks

	// Per-session action rate limit (0 disables)
	ActionRateLimit  int
	ActionRateWindow time.Duration

	// Request deadlines
	FetchTimeout  time.Duration
	ActionTimeout time.Duration
	BatchTimeout  time.Duration
}
