// Package session issues and validates emulator API session tokens.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/store"
)

const (
	tokenLength = 32

	// TTL is the lifetime of a session token.
	TTL = 3600 * time.Second

	// DefaultAccessToken is accepted when no access tokens are configured.
	DefaultAccessToken = "dev-token"
)

// ErrInvalidAccessToken is returned for unknown API access tokens.
var ErrInvalidAccessToken = errors.New("invalid access token")

// Manager exchanges API access tokens for session tokens.
type Manager struct {
	store        *store.Store
	accessTokens map[string]bool
	now          func() time.Time
}

// NewManager creates a Manager accepting the given access tokens.
func NewManager(s *store.Store, accessTokens ...string) *Manager {
	if len(accessTokens) == 0 {
		accessTokens = []string{DefaultAccessToken}
	}
	allowed := make(map[string]bool, len(accessTokens))
	for _, t := range accessTokens {
		if t != "" {
			allowed[t] = true
		}
	}
	return &Manager{store: s, accessTokens: allowed, now: time.Now}
}

// SetClock replaces the clock used for expiry.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create opens a session for an access token.
func (m *Manager) Create(accessToken string) (string, time.Duration, error) {
	if !m.accessTokens[accessToken] {
		return "", 0, ErrInvalidAccessToken
	}

	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", 0, fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	if err := m.store.PutSession(token, m.now().Add(TTL)); err != nil {
		return "", 0, fmt.Errorf("failed to store session: %w", err)
	}
	return token, TTL, nil
}

// Validate reports whether a session token exists and has not expired.
// Expired tokens are removed.
func (m *Manager) Validate(token string) (bool, error) {
	expiresAt, err := m.store.SessionExpiry(token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get session: %w", err)
	}

	if m.now().After(expiresAt) {
		_ = m.store.DeleteSession(token)
		return false, nil
	}
	return true, nil
}

// Revoke ends a session.
func (m *Manager) Revoke(token string) error {
	return m.store.DeleteSession(token)
}
