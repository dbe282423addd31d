// Package ratelimit implements the adaptive per-client request governor.
//
// Each external client owns one Governor. The governor maintains a current
// inter-request delay between a floor and a ceiling: successful requests
// decay the delay geometrically toward the floor, rate-limit responses
// double it toward the ceiling. Pacing itself is delegated to a
// rate.Limiter whose limit is re-armed whenever the delay changes.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// decayFactor shrinks the delay after each successful request.
	decayFactor = 0.9

	// backoffFactor grows the delay after a rate-limit response.
	backoffFactor = 2.0
)

// Governor paces requests for a single external client.
type Governor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	current  time.Duration
	min      time.Duration
	max      time.Duration
	cooldown time.Duration
}

// New creates a governor with the given delay floor and ceiling.
// The initial delay is the floor. cooldown is slept once on each
// rate-limit response in addition to the grown delay.
func New(min, max, cooldown time.Duration) *Governor {
	return &Governor{
		limiter:  rate.NewLimiter(limitFor(min), 1),
		current:  min,
		min:      min,
		max:      max,
		cooldown: cooldown,
	}
}

// Preset governors matching each upstream service's documented tolerance.

// ForArxiv paces arXiv API requests (3s floor, per arXiv's crawl guidance).
func ForArxiv() *Governor { return New(3*time.Second, 30*time.Second, 5*time.Second) }

// ForOpenAlex paces OpenAlex requests (polite pool).
func ForOpenAlex() *Governor { return New(150*time.Millisecond, 5*time.Second, time.Second) }

// ForS2 paces Semantic Scholar requests conservatively.
func ForS2() *Governor { return New(3*time.Second, 60*time.Second, 10*time.Second) }

// ForGitHub paces GitHub API requests.
func ForGitHub() *Governor { return New(100*time.Millisecond, 5*time.Second, time.Second) }

// Wait blocks until the current delay has elapsed since the previous
// request, or until ctx is cancelled. This is the only suspension point
// the governor introduces on the happy path.
func (g *Governor) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Success records a successful request, decaying the delay toward the floor.
func (g *Governor) Success() {
	g.mu.Lock()
	defer g.mu.Unlock()

	decayed := time.Duration(float64(g.current) * decayFactor)
	if decayed < g.min {
		decayed = g.min
	}
	g.setDelay(decayed)
}

// Backoff records a rate-limit response: the delay doubles toward the
// ceiling and an absolute cooldown is slept before returning. The caller
// decides whether to retry after the next Wait.
func (g *Governor) Backoff(ctx context.Context) error {
	g.mu.Lock()
	grown := time.Duration(float64(g.current) * backoffFactor)
	if grown > g.max {
		grown = g.max
	}
	g.setDelay(grown)
	cooldown := g.cooldown
	g.mu.Unlock()

	select {
	case <-time.After(cooldown):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay returns the current inter-request delay.
func (g *Governor) Delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// setDelay re-arms the limiter. Caller holds g.mu.
func (g *Governor) setDelay(d time.Duration) {
	g.current = d
	g.limiter.SetLimit(limitFor(d))
}

func limitFor(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}
