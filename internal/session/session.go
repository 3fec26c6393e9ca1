// Package session holds the client's authentication token.
//
// A Session is the single source of truth for "is the user signed in". It
// caches the token in memory and mirrors every write to durable storage so
// the token survives restarts. There is no logout or expiry: a session ends
// only when its storage is cleared from outside the program.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clive/intake-tui/internal/storage"
)

// DefaultKey is the storage key the token is kept under
const DefaultKey = "token"

// ErrEmptyToken is returned when SetToken is given an empty token
var ErrEmptyToken = errors.New("session: token must not be empty")

// Session caches the current token and persists it through a storage.Store.
// Methods are safe for concurrent use; bubbletea commands run off the UI goroutine.
type Session struct {
	mu     sync.RWMutex
	store  storage.Store
	key    string
	token  string
	loaded bool
	logger *slog.Logger
}

// New creates a session backed by store. Nothing is read until Load or Token.
func New(store storage.Store, key string, logger *slog.Logger) *Session {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, key: key, logger: logger}
}

// Load reads any persisted token into memory
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Session) loadLocked(ctx context.Context) error {
	token, err := s.store.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.token = ""
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.token = token
	s.loaded = true
	return nil
}

// Token returns the current token, querying storage if nothing has been loaded yet
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	if s.loaded {
		token := s.token
		s.mu.RUnlock()
		return token, token != ""
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(context.Background()); err != nil {
			// Unreadable storage means signed out; retried on the next call
			s.logger.Warn("session storage unreadable", "error", err)
			return "", false
		}
	}
	return s.token, s.token != ""
}

// SetToken stores t in memory and in durable storage.
// If the storage write fails the in-memory token is still set, so the running
// process is signed in, and the error is returned for the caller to report.
func (s *Session) SetToken(ctx context.Context, t string) error {
	if t == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	s.token = t
	s.loaded = true
	s.mu.Unlock()

	if err := s.store.Set(ctx, s.key, t); err != nil {
		s.logger.Warn("session token not persisted", "error", err)
		return fmt.Errorf("persist session: %w", err)
	}
	s.logger.Info("session token stored")
	return nil
}

// Authenticated reports whether a token is present
func (s *Session) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

// Identity returns the subject of the token for display, or "" when the
// token is not a JWT. The signature is NOT verified; never use this for decisions.
func (s *Session) Identity() string {
	token, ok := s.Token()
	if !ok {
		return ""
	}
	return identityFromToken(token)
}

func identityFromToken(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	if email, ok := claims["email"].(string); ok {
		return email
	}
	return ""
}
