package console

import (
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"go.uber.org/zap"
)

// ErrUnknownScreen is returned for a screen name the catalog lacks.
var ErrUnknownScreen = errors.New("console: unknown screen")

// ScreenSource resolves screen names. *catalog.Catalog satisfies it.
type ScreenSource interface {
	Screen(name string) (*models.Screen, bool)
}

type regKey struct {
	session string
	screen  string
}

// Registry holds one Console per (session, screen). It is safe for
// concurrent use.
type Registry struct {
	screens ScreenSource
	up      upstream.Poster
	disp    *dispatch.Dispatcher
	log     *zap.Logger

	mu       sync.Mutex
	consoles map[regKey]*Console
}

// NewRegistry returns an empty registry.
func NewRegistry(screens ScreenSource, up upstream.Poster, disp *dispatch.Dispatcher, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		screens:  screens,
		up:       up,
		disp:     disp,
		log:      log,
		consoles: make(map[regKey]*Console),
	}
}

// Get returns the console for session and screen, creating it on first use.
func (r *Registry) Get(sessionID, screen string) (*Console, error) {
	s, ok := r.screens.Screen(screen)
	if !ok {
		return nil, ErrUnknownScreen
	}
	k := regKey{session: sessionID, screen: s.Name}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.consoles[k]; ok {
		return c, nil
	}
	c := New(s, r.up, r.disp, r.log.With(zap.String("session_id", sessionID)))
	r.consoles[k] = c
	return c, nil
}

// Len returns the number of live consoles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consoles)
}

// EvictIdle drops consoles unused for longer than ttl. Busy consoles are
// kept. It returns how many were dropped.
func (r *Registry) EvictIdle(now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, c := range r.consoles {
		if c.Busy() {
			continue
		}
		if now.Sub(c.IdleSince()) > ttl {
			delete(r.consoles, k)
			n++
		}
	}
	return n
}

// DropSession removes every console of a session.
func (r *Registry) DropSession(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.consoles {
		if k.session == sessionID {
			delete(r.consoles, k)
			n++
		}
	}
	return n
}
