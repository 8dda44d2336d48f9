package acc_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-formexport/pkg/acc"
)

type countingSource struct {
	mu      sync.Mutex
	current string
	expired bool

	refreshn atomic.Int32
}

func (s *countingSource) AccessToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired {
		return "", acc.ErrTokenExpired
	}
	return s.current, nil
}

func (s *countingSource) Refresh(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.refreshn.Add(1)
	s.current = fmt.Sprintf("token-%d", n)
	s.expired = false
	return s.current, nil
}

func TestSingleFlightRefreshCollapsesConcurrentWorkers(t *testing.T) {
	inner := &countingSource{current: "token-0", expired: true}
	source := acc.NewSingleFlightSource(inner)

	const workers = 16
	tokens := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Workers that arrive after the refresh get a valid token
			// directly; only those that observed the expiry ask for one.
			token, err := source.AccessToken(context.Background())
			if err != nil {
				token, err = source.Refresh(context.Background(), "")
				if err != nil {
					t.Errorf("refresh: %v", err)
					return
				}
			}
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	if got := inner.refreshn.Load(); got != 1 {
		t.Fatalf("expected a single underlying refresh, got %d", got)
	}
	for i, token := range tokens {
		if token != "token-1" {
			t.Fatalf("worker %d got %q, want token-1", i, token)
		}
	}
}

func TestSingleFlightRefreshesAgainOnNextExpiry(t *testing.T) {
	inner := &countingSource{current: "token-0", expired: true}
	source := acc.NewSingleFlightSource(inner)

	if _, err := source.AccessToken(context.Background()); err == nil {
		t.Fatal("expected expiry")
	}
	if _, err := source.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// The refreshed token expires later; the next refresh must hit the
	// wrapped source rather than replay the cached token.
	inner.mu.Lock()
	inner.expired = true
	inner.mu.Unlock()

	if _, err := source.AccessToken(context.Background()); err == nil {
		t.Fatal("expected second expiry")
	}
	token, err := source.Refresh(context.Background(), "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if token != "token-2" {
		t.Fatalf("expected token-2, got %q", token)
	}
	if got := inner.refreshn.Load(); got != 2 {
		t.Fatalf("expected two underlying refreshes, got %d", got)
	}
}

// Expiry reported only by the platform: the wrapped source keeps returning
// its current token, so the only signal is the rejected token a caller hands
// to Refresh.
func TestSingleFlightRefreshesAgainWhenRefreshedTokenRejected(t *testing.T) {
	inner := &countingSource{current: "token-0"}
	source := acc.NewSingleFlightSource(inner)
	ctx := context.Background()

	// First epoch: token-0 is rejected remotely, the caller refreshes.
	if token, err := source.AccessToken(ctx); err != nil || token != "token-0" {
		t.Fatalf("access token = %q, %v", token, err)
	}
	if token, err := source.Refresh(ctx, "token-0"); err != nil || token != "token-1" {
		t.Fatalf("refresh = %q, %v", token, err)
	}
	// A straggler from the same epoch reuses the cached result.
	if token, err := source.Refresh(ctx, "token-0"); err != nil || token != "token-1" {
		t.Fatalf("refresh = %q, %v", token, err)
	}

	// Second epoch: token-1 is rejected remotely. The cached result must
	// not be replayed.
	token, err := source.Refresh(ctx, "token-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if token != "token-2" {
		t.Fatalf("expected token-2, got %q", token)
	}
	if got := inner.refreshn.Load(); got != 2 {
		t.Fatalf("expected two underlying refreshes, got %d", got)
	}
}
