package acc

import (
	"context"
	"errors"
	"sync"
)

// ErrTokenExpired is returned by TokenSource implementations when the cached
// access token is no longer valid and a refresh is required.
var ErrTokenExpired = errors.New("acc: access token expired")

// TokenSource supplies the bearer token for every platform request. The
// pipeline never runs the OAuth authorization flow itself; it only consumes
// tokens and asks for refreshes.
type TokenSource interface {
	// AccessToken returns the current token, or ErrTokenExpired when the
	// caller should trigger Refresh.
	AccessToken(ctx context.Context) (string, error)

	// Refresh obtains a new token, replacing the current one. Stale carries
	// the token the caller was rejected with, or empty when the expiry was
	// reported by AccessToken rather than by the platform.
	Refresh(ctx context.Context, stale string) (string, error)
}

// StaticTokenSource wraps a fixed token that never refreshes. Useful for
// tests and short-lived CLI sessions.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(context.Context) (string, error) { return string(s), nil }

func (s StaticTokenSource) Refresh(context.Context, string) (string, error) {
	return string(s), nil
}

// SingleFlightSource serializes refreshes across concurrent workers. A worker
// arriving while a refresh for the same expiry is in flight, or after it
// completed, receives the token that refresh produced instead of issuing its
// own. The stale token a caller hands to Refresh decides which case it is:
// a caller rejected with a pre-refresh token reuses the cached result, a
// caller rejected with the cached token itself forces a new refresh.
type SingleFlightSource struct {
	mu      sync.Mutex
	wrapped TokenSource

	refreshed string
	haveFresh bool
}

// NewSingleFlightSource wraps source with single-flight refresh semantics.
func NewSingleFlightSource(source TokenSource) *SingleFlightSource {
	return &SingleFlightSource{wrapped: source}
}

func (s *SingleFlightSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.wrapped.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			// New expiry epoch: the next Refresh must hit the wrapped source.
			s.haveFresh = false
		}
		return "", err
	}
	return token, nil
}

func (s *SingleFlightSource) Refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveFresh && stale == s.refreshed {
		// The cached token itself was rejected by the platform; serving it
		// again would loop the caller into a second rejection.
		s.haveFresh = false
	}

	// A refresh already covered this expiry; the token it produced is still
	// the freshest available.
	if s.haveFresh {
		return s.refreshed, nil
	}

	token, err := s.wrapped.Refresh(ctx, stale)
	if err != nil {
		return "", err
	}
	s.refreshed = token
	s.haveFresh = true
	return token, nil
}
