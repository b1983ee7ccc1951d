package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/docagents/substrate/types"
)

// RetryConfig configures exponential backoff, grounded on the teacher's
// llm/retry/backoff.go RetryPolicy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterRatio float64
}

// DefaultRetryConfig matches spec §4.3's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterRatio: 0.2}
}

// statsEntry is the per-agent-kind RetryStatistics accumulator.
type statsEntry struct {
	attempts atomic.Int64
	retries  atomic.Int64
	success  atomic.Int64
}

// Policy wraps a unit of work keyed by agent-kind with retry + circuit
// breaker semantics, implementing spec §4.3's algorithm end to end.
type Policy struct {
	cfg     RetryConfig
	breaker *Breaker
	logger  *zap.Logger

	mu    sync.Mutex
	stats map[types.AgentKind]*statsEntry
}

// NewPolicy builds a retry policy sharing the given breaker registry.
func NewPolicy(cfg RetryConfig, breaker *Breaker, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.JitterRatio < 0 {
		cfg.JitterRatio = 0.2
	}
	return &Policy{
		cfg:     cfg,
		breaker: breaker,
		logger:  logger.With(zap.String("component", "retry_policy")),
		stats:   make(map[types.AgentKind]*statsEntry),
	}
}

func (p *Policy) statsFor(kind types.AgentKind) *statsEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[kind]
	if !ok {
		s = &statsEntry{}
		p.stats[kind] = s
	}
	return s
}

// Stats returns a snapshot of RetryStatistics for an agent-kind.
func (p *Policy) Stats(kind types.AgentKind) types.RetryStatistics {
	s := p.statsFor(kind)
	return types.RetryStatistics{
		TotalAttempts: s.attempts.Load(),
		TotalRetries:  s.retries.Load(),
		SuccessCount:  s.success.Load(),
	}
}

// Work is the unit of execution the retry policy wraps.
type Work func(ctx context.Context) (types.Value, error)

// Result carries the outcome of Execute, including how many retries it took
// — tests assert on Retries directly per spec §8 scenario 2.
type Result struct {
	Value   types.Value
	Retries int
}

// Execute implements spec §4.3's full algorithm for one agent-kind.
func (p *Policy) Execute(ctx context.Context, kind types.AgentKind, work Work) (*Result, error) {
	stats := p.statsFor(kind)

	if err := p.breaker.BeforeCall(kind); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		stats.attempts.Add(1)

		value, err := work(ctx)
		if err == nil {
			p.breaker.AfterCall(kind, true)
			stats.success.Add(1)
			return &Result{Value: value, Retries: attempt - 1}, nil
		}
		lastErr = err

		kindOfErr := Classify(err)
		if kindOfErr != types.ErrProviderTransient {
			// Non-retryable: surface immediately, still counts as one
			// breaker failure (spec §8 scenario 4).
			p.breaker.AfterCall(kind, false)
			return nil, err
		}

		if attempt >= p.cfg.MaxAttempts {
			break
		}

		stats.retries.Add(1)
		delay := p.backoffDelay(attempt)
		p.logger.Debug("retrying after transient failure",
			zap.String("agent_kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			p.breaker.AfterCall(kind, false)
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	p.breaker.AfterCall(kind, false)
	return nil, fmt.Errorf("exhausted %d attempts: %w", p.cfg.MaxAttempts, lastErr)
}

// backoffDelay implements base_delay * 2^(attempt-1) capped at max_delay,
// with +/- jitter_ratio jitter.
func (p *Policy) backoffDelay(attempt int) time.Duration {
	delay := float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.cfg.MaxDelay) {
		delay = float64(p.cfg.MaxDelay)
	}
	jitter := delay * p.cfg.JitterRatio
	delay += (rand.Float64()*2 - 1) * jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
