// internal/app/bootstrap/hooks.go
package bootstrap

import "github.com/dalemusser/waffle/app"

// Hooks is the paydesk service lifecycle: load and validate PAYDESK_*
// config, connect the audit database and its indexes, build the screen
// catalog and consoles, then serve the BFF router until shutdown stops
// the cleanup workers.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "paydesk",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema,
	Startup:        Startup,
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}
