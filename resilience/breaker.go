package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docagents/substrate/types"
)

// BreakerConfig configures the per-agent-kind circuit breaker (spec §6).
type BreakerConfig struct {
	FailureThreshold int
	OpenDuration     time.Duration
	HalfOpenProbe    int // number of probe calls admitted in HALF_OPEN
}

// DefaultBreakerConfig matches spec §4.3's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, OpenDuration: 60 * time.Second, HalfOpenProbe: 1}
}

// breakerEntry is the per-agent-kind state machine.
type breakerEntry struct {
	mu              sync.Mutex
	state           types.CircuitState
	failureCount    int
	lastStateChange time.Time
	halfOpenInUse   int
}

// Breaker manages one breakerEntry per agent-kind under a shared registry.
// Transitions only occur under the entry's own lock, per spec §3's invariant.
type Breaker struct {
	cfg     BreakerConfig
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[types.AgentKind]*breakerEntry
}

// NewBreaker builds a breaker registry.
func NewBreaker(cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 60 * time.Second
	}
	if cfg.HalfOpenProbe <= 0 {
		cfg.HalfOpenProbe = 1
	}
	return &Breaker{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "circuit_breaker")),
		entries: make(map[types.AgentKind]*breakerEntry),
	}
}

func (b *Breaker) entry(kind types.AgentKind) *breakerEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[kind]
	if !ok {
		e = &breakerEntry{state: types.CircuitClosed, lastStateChange: time.Now()}
		b.entries[kind] = e
	}
	return e
}

// BeforeCall implements spec §4.3 step 1. Returns ErrCircuitOpen fast when
// the breaker is open and its cool-down has not elapsed. When the cool-down
// has elapsed it admits a single probe by transitioning to HALF_OPEN.
func (b *Breaker) BeforeCall(kind types.AgentKind) error {
	e := b.entry(kind)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case types.CircuitClosed:
		return nil

	case types.CircuitOpen:
		if time.Since(e.lastStateChange) >= b.cfg.OpenDuration {
			b.transition(kind, e, types.CircuitHalfOpen)
			e.halfOpenInUse = 1
			return nil
		}
		return types.NewError(types.ErrCircuitOpen, "before_call", "", "circuit breaker open for "+string(kind), nil)

	case types.CircuitHalfOpen:
		if e.halfOpenInUse >= b.cfg.HalfOpenProbe {
			return types.NewError(types.ErrCircuitOpen, "before_call", "", "half-open probe budget exhausted for "+string(kind), nil)
		}
		e.halfOpenInUse++
		return nil

	default:
		return nil
	}
}

// AfterCall implements spec §4.3 steps 3/6: record the outcome and drive the
// state machine. success must reflect whether the attempt sequence (all
// retries) ultimately succeeded.
func (b *Breaker) AfterCall(kind types.AgentKind, success bool) {
	e := b.entry(kind)
	e.mu.Lock()
	defer e.mu.Unlock()

	if success {
		if e.state == types.CircuitHalfOpen {
			b.transition(kind, e, types.CircuitClosed)
		}
		e.failureCount = 0
		e.halfOpenInUse = 0
		return
	}

	e.failureCount++

	switch e.state {
	case types.CircuitHalfOpen:
		b.transition(kind, e, types.CircuitOpen)
		e.halfOpenInUse = 0
	case types.CircuitClosed:
		if e.failureCount >= b.cfg.FailureThreshold {
			b.transition(kind, e, types.CircuitOpen)
		}
	}
}

// transition must be called with e.mu held.
func (b *Breaker) transition(kind types.AgentKind, e *breakerEntry, to types.CircuitState) {
	from := e.state
	e.state = to
	e.lastStateChange = time.Now()
	if from != to {
		b.logger.Info("circuit breaker transition",
			zap.String("agent_kind", string(kind)),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
}

// State returns the current state for an agent-kind, for observability and
// tests.
func (b *Breaker) State(kind types.AgentKind) types.CircuitState {
	e := b.entry(kind)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reset forces an agent-kind's breaker back to CLOSED.
func (b *Breaker) Reset(kind types.AgentKind) {
	e := b.entry(kind)
	e.mu.Lock()
	defer e.mu.Unlock()
	b.transition(kind, e, types.CircuitClosed)
	e.failureCount = 0
	e.halfOpenInUse = 0
}
