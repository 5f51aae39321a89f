package launch

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CookieName is the opaque session cookie that keys launch contexts.
const CookieName = "scorecard_session"

// ErrNoLaunch is returned by Consume when the session has no pending
// launch context; /app renders a diagnostic instead of crashing.
var ErrNoLaunch = errors.New("no launch context for this session")

// Context is the launch state created at /launch and consumed exactly
// once at /app. State is the anti-forgery token the authorization
// server must echo back.
type Context struct {
	ClientID     string
	Scopes       string
	FHIRURL      string
	AuthorizeURL string
	TokenURL     string
	State        string
	CreatedAt    time.Time
}

// Store holds launch contexts keyed by session cookie, in memory, with
// a TTL. Two launches on the same session do not race meaningfully:
// last write wins, which is the intended single-user single-flow
// behavior.
type Store struct {
	mu       sync.Mutex
	contexts map[string]*Context
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		contexts: make(map[string]*Context),
		ttl:      ttl,
	}
}

// Create stores the launch context for a session, replacing any
// previous one.
func (s *Store) Create(sessionID string, ctx *Context) {
	ctx.CreatedAt = time.Now()
	s.mu.Lock()
	s.contexts[sessionID] = ctx
	s.mu.Unlock()
}

// Consume retrieves and removes the launch context for a session
// (one-time use). Returns ErrNoLaunch when none is pending or the
// pending one has expired.
func (s *Store) Consume(sessionID string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[sessionID]
	if !ok {
		return nil, ErrNoLaunch
	}
	delete(s.contexts, sessionID)

	if time.Since(ctx.CreatedAt) > s.ttl {
		return nil, ErrNoLaunch
	}
	return ctx, nil
}

// Cleanup removes expired launch contexts from the store.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, ctx := range s.contexts {
		if now.Sub(ctx.CreatedAt) > s.ttl {
			delete(s.contexts, id)
		}
	}
}

// StartCleanup runs Cleanup periodically until the done channel closes.
func (s *Store) StartCleanup(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// SessionID returns the request's session cookie value, minting and
// setting a fresh one when the browser has none yet.
func SessionID(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
