package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartmarks/smartmarks/internal/results"
)

// CookieName is the session cookie.
const CookieName = "smartmarks_session"

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// DefaultMaxTokenSessions bounds how many API client sessions are kept.
const DefaultMaxTokenSessions = 1024

// Config configures a Store.
type Config struct {
	TTL time.Duration
	// Secure marks the cookie Secure; enable behind HTTPS.
	Secure          bool
	DefaultLanguage string
	DefaultTheme    string
	// Backend is handed to each session's results controller.
	Backend results.Backend
	// MaxTokenSessions caps bearer-token sessions; the least recently used
	// one is evicted to make room.
	MaxTokenSessions int
	Logger           *slog.Logger
}

// Store is an in-memory session registry.
type Store struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxTokenSessions <= 0 {
		cfg.MaxTokenSessions = DefaultMaxTokenSessions
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = ThemeDark
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// New creates and registers a session.
func (st *Store) New() *Session {
	s := st.newSession(uuid.NewString(), st.now())
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// bearerNamespace derives session IDs for API clients from their token.
var bearerNamespace = uuid.MustParse("6f1c2f5e-8a0b-4c55-9a34-3e1d7c0b5a21")

// ForToken returns the session of an API client identified by its backend
// token, creating it on first use. The ID is derived from the token so the
// same client keeps its results across requests without a cookie.
// Callers should Delete the session once the backend rejects the token.
func (st *Store) ForToken(token string) *Session {
	id := uuid.NewSHA1(bearerNamespace, []byte(token)).String()
	if s, ok := st.Get(id); ok {
		return s
	}

	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok && !s.expired(now, st.cfg.TTL) {
		return s
	}
	s := st.newSession(id, now)
	s.token = token
	s.bearer = true
	st.evictTokenSessionLocked(id)
	st.sessions[id] = s
	return s
}

// evictTokenSessionLocked drops the least recently used bearer session when
// the cap is reached. skip is the ID about to be stored.
func (st *Store) evictTokenSessionLocked(skip string) {
	var (
		count  int
		oldest *Session
		seen   time.Time
	)
	for id, s := range st.sessions {
		if !s.bearer || id == skip {
			continue
		}
		count++
		if last := s.lastUsed(); oldest == nil || last.Before(seen) {
			oldest, seen = s, last
		}
	}
	if count < st.cfg.MaxTokenSessions || oldest == nil {
		return
	}
	delete(st.sessions, oldest.ID)
	st.logger.Debug("evicted API session", "session", oldest.ID, "limit", st.cfg.MaxTokenSessions)
}

func (st *Store) newSession(id string, now time.Time) *Session {
	return &Session{
		ID:       id,
		Results:  results.NewController(st.cfg.Backend),
		language: st.cfg.DefaultLanguage,
		theme:    st.cfg.DefaultTheme,
		lastSeen: now,
	}
}

// Get returns a live session and marks it as used.
func (st *Store) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := st.now()
	if s.expired(now, st.cfg.TTL) {
		st.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete removes a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (st *Store) Sweep() int {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.expired(now, st.cfg.TTL) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (st *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.logger.Info("expired sessions removed", "count", n, "remaining", st.Len())
			}
		}
	}
}

// Load returns the request's session, creating one and setting the cookie
// when there is none.
func (st *Store) Load(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(CookieName); err == nil {
		if s, ok := st.Get(c.Value); ok {
			return s
		}
	}
	s := st.New()
	http.SetCookie(w, st.cookie(s.ID))
	return s
}

func (st *Store) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(st.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   st.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session stored in ctx, or nil.
func From(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
