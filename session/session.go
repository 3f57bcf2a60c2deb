// Package session implements the login gate in front of the editor.
//
// A session is two entries in a Storage: the logged-in identifier and an
// expiry instant in epoch milliseconds. A session is valid only while both
// are present, the expiry parses as a number and the current time is
// strictly before it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Storage keys.
const (
	KeyUser       = "loggedInUserEmail"
	KeyExpiration = "loginExpiration"
)

// DefaultTTL is how long a login stays valid.
const DefaultTTL = 5 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrStorage            = errors.New("session: storage unavailable")
)

// Storage persists session entries across restarts.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Credentials is the single identifier/secret pair accepted by Login.
type Credentials struct {
	Identifier string
	Secret     string
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager logs users in and out and answers whether a session is live.
type Manager struct {
	storage Storage
	creds   Credentials
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewManager creates a Manager over storage.
func NewManager(storage Storage, creds Credentials, opts ...Option) *Manager {
	m := &Manager{
		storage: storage,
		creds:   creds,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login checks identifier and secret and, on a match, persists a session
// that expires TTL from now. It returns the expiry instant.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (time.Time, error) {
	if identifier != m.creds.Identifier || secret != m.creds.Secret {
		m.logger.Info("login rejected", "user", identifier)
		return time.Time{}, ErrInvalidCredentials
	}

	exp := m.now().Add(m.ttl)
	if err := m.storage.Set(ctx, KeyUser, identifier); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := m.storage.Set(ctx, KeyExpiration, strconv.FormatInt(exp.UnixMilli(), 10)); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	m.logger.Info("login", "user", identifier, "expires_at", exp)
	return exp, nil
}

// Restore reports the logged-in user when a valid session is stored.
// Expired or malformed sessions are removed. Storage errors are treated
// as logged out.
func (m *Manager) Restore(ctx context.Context) (string, bool) {
	user, okUser, err := m.storage.Get(ctx, KeyUser)
	if err != nil {
		m.logger.Warn("failed to read session", "key", KeyUser, "error", err)
		return "", false
	}
	raw, okExp, err := m.storage.Get(ctx, KeyExpiration)
	if err != nil {
		m.logger.Warn("failed to read session", "key", KeyExpiration, "error", err)
		return "", false
	}

	if okUser && okExp && user != "" && Valid(raw, m.now()) {
		return user, true
	}
	if okUser || okExp {
		m.logger.Debug("discarding stale session", "user", user)
		m.clear(ctx)
	}
	return "", false
}

// Logout removes the stored session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.clear(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (m *Manager) clear(ctx context.Context) error {
	var errs []error
	for _, k := range []string{KeyUser, KeyExpiration} {
		if err := m.storage.Delete(ctx, k); err != nil {
			m.logger.Warn("failed to clear session", "key", k, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Valid reports whether raw, an expiry in epoch milliseconds, lies strictly
// after now. Non-numeric input is never valid.
func Valid(raw string, now time.Time) bool {
	exp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return now.UnixMilli() < exp
}
