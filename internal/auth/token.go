// Package auth holds the short-lived bearer token used by the push
// channel. The token is the only shared mutable state in the delivery
// pipeline: many concurrent sends read it, a refresh replaces it.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
)

// FirebaseScope is the OAuth scope required by the FCM v1 API.
const FirebaseScope = "https://www.googleapis.com/auth/firebase.messaging"

// TokenFetcher obtains a fresh bearer token and its expiry.
type TokenFetcher func(ctx context.Context) (string, time.Time, error)

// TokenManager caches one bearer token behind a read-write lock.
// Readers never block each other; the fetch runs outside the lock so
// no network I/O happens while the write guard is held.
type TokenManager struct {
	fetch  TokenFetcher
	logger *slog.Logger

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// NewTokenManager creates a TokenManager. The cache starts empty;
// callers are expected to Refresh once at startup and treat a failure
// there as fatal.
func NewTokenManager(fetch TokenFetcher, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		fetch:  fetch,
		logger: logger,
	}
}

// Token returns the cached token, or false if the cache has never
// been populated.
func (m *TokenManager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", false
	}
	return m.token, true
}

// Refresh fetches a new token and atomically replaces the cached one.
// On failure the previous token stays in place and the error is
// returned; runtime callers log it and keep going with the old token.
// Concurrent refreshes are allowed, last writer wins.
func (m *TokenManager) Refresh(ctx context.Context) error {
	token, expiry, err := m.fetch(ctx)
	if err != nil {
		m.logger.Error("token refresh failed, keeping previous token", "error", err)
		return fmt.Errorf("failed to fetch token: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.expiry = expiry
	m.mu.Unlock()

	m.logger.Info("credential token refreshed", "expires_at", expiry)
	return nil
}

// GoogleTokenFetcher builds a TokenFetcher that exchanges the service
// account at credentialsPath for an FCM-scoped access token.
func GoogleTokenFetcher(credentialsPath string) TokenFetcher {
	return func(ctx context.Context) (string, time.Time, error) {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("failed to read service account file: %w", err)
		}

		conf, err := google.JWTConfigFromJSON(data, FirebaseScope)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("failed to parse service account: %w", err)
		}

		token, err := conf.TokenSource(ctx).Token()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("failed to obtain access token: %w", err)
		}

		return token.AccessToken, token.Expiry, nil
	}
}
