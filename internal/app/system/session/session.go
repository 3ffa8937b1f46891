// Package session gives every browser a stable console session ID.
//
// Operators are authenticated by the proxy in front of the service; the
// proxy passes the operator name in a header. The session cookie only
// ties a browser to its consoles so the record set, filters and page
// survive between requests.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	// DefaultName is the cookie name used when none is configured.
	DefaultName = "paydesk-session"
	// DefaultActorHeader carries the operator name set by the auth proxy.
	DefaultActorHeader = "X-Remote-User"

	idKey = "console_id"
)

// Identity is what Load puts in the request context.
type Identity struct {
	ID    string // console session ID
	Actor string // operator name from the proxy, may be empty
}

type ctxKey struct{}

// Current returns the identity attached by Load.
func Current(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity returns r carrying id. Used by Load and by tests.
func WithIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))
}

// Manager reads and issues session cookies.
type Manager struct {
	store       *sessions.CookieStore
	name        string
	actorHeader string
	log         *zap.Logger
}

// NewManager builds a cookie-backed manager. An empty key gets a random
// one, which means sessions do not survive a restart. secure selects
// Secure cookies with SameSite=None; otherwise SameSite=Lax for plain
// http development.
func NewManager(key, name, domain, actorHeader string, secure bool, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var keyBytes []byte
	switch {
	case key == "":
		keyBytes = securecookie.GenerateRandomKey(32)
		if keyBytes == nil {
			return nil, errors.New("session: cannot generate a signing key")
		}
		logger.Warn("session key not set; using a random key, sessions reset on restart")
	case len(key) < 32:
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(key)))
		keyBytes = []byte(key)
	default:
		keyBytes = []byte(key)
	}
	if name == "" {
		name = DefaultName
	}
	if actorHeader == "" {
		actorHeader = DefaultActorHeader
	}

	store := sessions.NewCookieStore(keyBytes)
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	return &Manager{store: store, name: name, actorHeader: actorHeader, log: logger}, nil
}

// Load attaches an Identity to every request, issuing a new session ID
// when the cookie is missing or fails verification.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get returns a fresh session alongside a decode error
		sess, err := m.store.Get(r, m.name)
		if err != nil {
			m.log.Debug("session cookie rejected", zap.Error(err))
		}

		id, _ := sess.Values[idKey].(string)
		if _, perr := uuid.Parse(id); perr != nil {
			id = uuid.NewString()
			sess.Values[idKey] = id
			if err := sess.Save(r, w); err != nil {
				m.log.Error("session save failed", zap.Error(err))
			}
		}

		actor := strings.TrimSpace(r.Header.Get(m.actorHeader))
		next.ServeHTTP(w, WithIdentity(r, Identity{ID: id, Actor: actor}))
	})
}

// End expires the session cookie and returns the ID it carried.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, _ := m.store.Get(r, m.name)
	id, _ := sess.Values[idKey].(string)
	sess.Options.MaxAge = -1
	delete(sess.Values, idKey)
	return id, sess.Save(r, w)
}
