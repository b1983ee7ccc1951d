// Package ratelimit implements the per-provider permit gate described in
// spec §4.2: Acquire suspends a caller until both the concurrency cap and the
// request-rate cap admit it; token throughput is charged separately through
// ReserveTokens. Grounded on the teacher's
// llm/tools/ratelimit.go shape (per-scope limiter registry) but built on
// golang.org/x/time/rate instead of a hand-rolled sliding window, since the
// ecosystem already solves this well.
package ratelimit

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docagents/substrate/types"
)

// Config enumerates the per-provider admission caps from spec §6.
type Config struct {
	MaxConcurrent     int
	RequestsPerMinute int
	TokensPerMinute   int
}

// DefaultConfig matches a conservative single-provider cloud budget.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4, RequestsPerMinute: 60, TokensPerMinute: 90_000}
}

// Permit is the transient right to issue one outbound call. Release must be
// called exactly once, including when the caller is cancelled before the
// call happens.
type Permit struct {
	release func()
}

// Release drops the permit's concurrency slot.
func (p *Permit) Release() {
	if p.release != nil {
		p.release()
	}
}

// providerLimiter is the per-provider gate: a semaphore for concurrency plus
// two token-bucket limiters for request and token throughput.
type providerLimiter struct {
	sem      chan struct{}
	requests *rate.Limiter
	tokens   *rate.Limiter
}

// Limiter is the process-wide rate limiter shared by every agent instance
// for a given provider set.
type Limiter struct {
	mu       sync.Mutex
	limiters map[types.Provider]*providerLimiter
	configs  map[types.Provider]Config
	logger   *zap.Logger
}

// NewLimiter builds a limiter pre-seeded with per-provider configs.
func NewLimiter(configs map[types.Provider]Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		limiters: make(map[types.Provider]*providerLimiter),
		configs:  configs,
		logger:   logger.With(zap.String("component", "ratelimit")),
	}
}

func (l *Limiter) get(provider types.Provider) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pl, ok := l.limiters[provider]; ok {
		return pl
	}

	cfg, ok := l.configs[provider]
	if !ok {
		cfg = DefaultConfig()
	}

	rps := requestsPerSecond(cfg.RequestsPerMinute)
	tps := requestsPerSecond(cfg.TokensPerMinute)

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	pl := &providerLimiter{
		sem:      make(chan struct{}, maxConcurrent),
		requests: rate.NewLimiter(rps, max(cfg.RequestsPerMinute, 1)),
		tokens:   rate.NewLimiter(tps, max(cfg.TokensPerMinute, 1)),
	}
	l.limiters[provider] = pl
	return pl
}

// requestsPerSecond converts a per-minute cap to rate.Limit. A zero cap maps
// to rate.Inf: spec §8 calls for "indefinite suspension ... until
// cancellation" only at the concurrency gate, so a zero per-minute cap
// disables the throughput gate rather than wedging every caller forever —
// see DESIGN.md for the Open-Question resolution.
func requestsPerSecond(perMinute int) rate.Limit {
	if perMinute <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(perMinute) / 60.0)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Acquire suspends the caller until a concurrency slot and the provider's
// request-rate budget both admit it, then returns a Permit the caller must
// Release. A cancelled waiter releases its slot without issuing a permit.
func (l *Limiter) Acquire(ctx context.Context, provider types.Provider) (*Permit, error) {
	pl := l.get(provider)

	select {
	case pl.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := pl.requests.Wait(ctx); err != nil {
		<-pl.sem
		return nil, err
	}

	released := false
	return &Permit{release: func() {
		if released {
			return
		}
		released = true
		<-pl.sem
	}}, nil
}

// ReserveTokens charges the provider's token-throughput budget ahead of a
// call, using an estimate from the caller (typically a tokenizer). This
// meters admission; it never blocks the caller indefinitely beyond the
// context deadline.
func (l *Limiter) ReserveTokens(ctx context.Context, provider types.Provider, estimatedTokens int) error {
	if estimatedTokens <= 0 {
		return nil
	}
	pl := l.get(provider)
	return pl.tokens.WaitN(ctx, estimatedTokens)
}
