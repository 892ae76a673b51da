package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"time"
)

const (
	stateLength    = 16
	verifierLength = 64

	// pendingStateTTL bounds how long an unconsumed login attempt stays
	// replayable. Spotify authorization codes expire well before this.
	pendingStateTTL = 10 * time.Minute
)

// GenerateOpaqueToken returns n characters of URL-safe cryptographic randomness.
// Used for both the OAuth state and the PKCE code verifier.
func GenerateOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}

// DeriveCodeChallenge computes the S256 code challenge for a PKCE verifier:
// base64url(sha256(verifier)) without padding.
func DeriveCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type pendingState struct {
	verifier  string
	expiresAt time.Time
}

// AuthState holds the process-wide auth bookkeeping: pending state -> verifier
// entries for in-flight logins, and user id -> refresh token for completed
// ones. Both are ephemeral and lost on restart.
type AuthState struct {
	mu      sync.Mutex
	pending map[string]pendingState
	refresh map[string]string
	ttl     time.Duration
	now     func() time.Time
}

func NewAuthState() *AuthState {
	return &AuthState{
		pending: make(map[string]pendingState),
		refresh: make(map[string]string),
		ttl:     pendingStateTTL,
		now:     time.Now,
	}
}

// PutVerifier records a pending login attempt and sweeps expired entries so
// abandoned logins do not accumulate.
func (s *AuthState) PutVerifier(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, p := range s.pending {
		if now.After(p.expiresAt) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingState{verifier: verifier, expiresAt: now.Add(s.ttl)}
}

// ConsumeVerifier returns the verifier for a state and deletes the entry.
// A state is single-use: a second consume, or a consume after the TTL,
// reports failure.
func (s *AuthState) ConsumeVerifier(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if s.now().After(p.expiresAt) {
		return "", false
	}
	return p.verifier, true
}

func (s *AuthState) SetRefreshToken(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[userID] = token
}

func (s *AuthState) RefreshToken(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[userID]
	return t, ok
}
