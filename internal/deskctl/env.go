package deskctl

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dalemusser/paydesk/internal/app/system/auditlog"
	"github.com/dalemusser/paydesk/internal/app/system/catalog"
	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/cryptobox"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// appEnv is what every subcommand works with once the root command has
// loaded the configuration.
type appEnv struct {
	cfg       Config
	log       *zap.Logger
	cat       *catalog.Catalog
	up        *upstream.Client
	disp      *dispatch.Dispatcher
	sessionID string
}

func (a *appEnv) setup(cfg Config, log *zap.Logger) error {
	cat, err := catalog.Default()
	if cfg.ScreensFile != "" {
		cat, err = catalog.Load(cfg.ScreensFile)
	}
	if err != nil {
		return err
	}

	var box *cryptobox.Box
	if cfg.CryptoPassphrase != "" {
		box, err = cryptobox.New(cryptobox.Config{
			Passphrase: cfg.CryptoPassphrase,
			KDF:        cfg.CryptoKDF,
			Iterations: cfg.CryptoIterations,
		})
		if err != nil {
			return fmt.Errorf("crypto: %w", err)
		}
	}

	up, err := upstream.New(upstream.Config{
		BaseURL: cfg.WebservicesURL,
		Timeout: cfg.Timeout,
		Box:     box,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	// no audit store from the terminal; actions go to the structured log
	audit := auditlog.New(nil, log, auditlog.Config{Actions: auditlog.DestLog, Batches: auditlog.DestLog})

	a.cfg = cfg
	a.log = log
	a.cat = cat
	a.up = up
	a.disp = dispatch.New(up, dispatch.Options{Audit: audit, Logger: log})
	a.sessionID = "cli-" + uuid.NewString()
	return nil
}

// openConsole returns a console for screen with the records fetched.
func (a *appEnv) openConsole(ctx context.Context, screen string, params map[string]string) (*console.Console, error) {
	s, ok := a.cat.Screen(screen)
	if !ok {
		return nil, fmt.Errorf("%w: %q (try deskctl screens)", console.ErrUnknownScreen, screen)
	}
	c := console.New(s, a.up, a.disp, a.log)
	if err := c.Refresh(ctx, params); err != nil {
		return nil, fmt.Errorf("load %s: %s: %w", screen, upstream.UserMessage(err, upstream.MsgLoadFailed), err)
	}
	return c, nil
}

func (a *appEnv) policy() dispatch.BatchPolicy {
	return dispatch.BatchPolicy{Size: a.cfg.BatchSize, Delay: a.cfg.BatchDelay}
}

func (a *appEnv) request(verb string, form map[string]string, confirmed bool) models.ActionRequest {
	host, _ := os.Hostname()
	return models.ActionRequest{
		ID:        uuid.NewString(),
		Verb:      verb,
		Form:      form,
		Confirmed: confirmed,
		Origin: models.Origin{
			SessionID: a.sessionID,
			Actor:     a.cfg.Actor,
			IP:        host,
			UserAgent: "deskctl",
		},
	}
}

// viewFlags are the filter, sort and page controls shared by list, export
// and browse.
type viewFlags struct {
	filters []string
	params  []string
	sort    string
	desc    bool
	page    int
	perPage int
}

func (f *viewFlags) apply(c *console.Console) error {
	filters, err := parsePairs(f.filters)
	if err != nil {
		return fmt.Errorf("--filter: %w", err)
	}
	for _, col := range sortedKeys(filters) {
		if err := c.SetFilter(col, filters[col]); err != nil {
			return fmt.Errorf("filter %q: %w", col, err)
		}
	}
	if f.sort != "" {
		dir := grid.Asc
		if f.desc {
			dir = grid.Desc
		}
		if err := c.SetSort(f.sort, dir); err != nil {
			return fmt.Errorf("sort %q: %w", f.sort, err)
		}
	}
	if f.perPage > 0 {
		if err := c.SetPerPage(f.perPage); err != nil {
			return fmt.Errorf("--per-page %d: %w", f.perPage, err)
		}
	}
	if f.page > 0 {
		c.SetPage(f.page)
	}
	return nil
}

// parsePairs splits name=value arguments.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not name=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
