// Package dispatch implements spec §4.9's fallback dispatcher: on a primary
// agent's terminal failure, it replays the task against a local-provider
// twin agent of the same kind. Grounded on the teacher's
// llm/providers/retry_wrapper.go failover shape, generalized from
// per-request retries to agent-kind-granularity fallback.
package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/resilience"
	"github.com/docagents/substrate/types"
)

// Dispatcher routes a task to its primary agent and, on terminal failure,
// to a same-kind local-provider fallback if one is registered and enabled.
type Dispatcher struct {
	primaries map[types.AgentKind]agent.Agent
	fallbacks map[types.AgentKind]agent.Agent
	enabled   bool
	logger    *zap.Logger
}

// Config controls whether fallback dispatch is attempted at all, matching
// spec §6's `local_provider_enabled` configuration flag.
type Config struct {
	LocalProviderEnabled bool
}

func New(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		primaries: make(map[types.AgentKind]agent.Agent),
		fallbacks: make(map[types.AgentKind]agent.Agent),
		enabled:   cfg.LocalProviderEnabled,
		logger:    logger.With(zap.String("component", "dispatch")),
	}
}

// RegisterPrimary binds the primary agent for a kind.
func (d *Dispatcher) RegisterPrimary(a agent.Agent) {
	d.primaries[a.AgentKind()] = a
}

// RegisterFallback binds the local-provider twin agent for a kind. A
// fallback agent must be built with no retry policy (nil in
// agent.NewBase) so it never re-enters the breaker/retry layer, per spec
// §4.9.
func (d *Dispatcher) RegisterFallback(a agent.Agent) {
	if a.Provider() != types.ProviderLocal {
		d.logger.Warn("registering non-local agent as fallback", zap.String("agent_kind", string(a.AgentKind())), zap.String("provider", string(a.Provider())))
	}
	d.fallbacks[a.AgentKind()] = a
}

// Dispatch submits task to its primary agent. On a terminal failure it
// attempts the registered fallback, if any and if enabled, and marks the
// result accordingly — spec §4.9's used_fallback/primary_failure_reason
// contract.
func (d *Dispatcher) Dispatch(ctx context.Context, task *types.AgentTask) *types.AgentResult {
	primary, ok := d.primaries[task.Kind]
	if !ok {
		return &types.AgentResult{
			TaskID:       task.ID,
			Success:      false,
			ErrorMessage: types.NewError(types.ErrInvalidInput, "dispatch", "", "no primary agent registered for kind "+string(task.Kind), nil).Error(),
			ErrorKind:    types.ErrInvalidInput,
		}
	}

	result := primary.Process(ctx, task)
	if result.Success {
		return result
	}

	if !d.isFallbackEligible(result) {
		return result
	}

	fallback, ok := d.fallbacks[task.Kind]
	if !ok {
		return result
	}

	d.logger.Info("attempting fallback",
		zap.String("agent_kind", string(task.Kind)),
		zap.String("task_id", task.ID),
		zap.String("primary_failure_reason", result.ErrorMessage),
	)

	fallbackResult := fallback.Process(ctx, task)
	if !fallbackResult.Success {
		combined := types.NewError(
			types.ErrFallbackFailed,
			"dispatch",
			string(fallback.Provider()),
			"primary failed: "+result.ErrorMessage+"; fallback failed: "+fallbackResult.ErrorMessage,
			nil,
		)
		return &types.AgentResult{
			TaskID:               task.ID,
			Success:              false,
			ErrorMessage:         combined.Error(),
			ErrorKind:            types.ErrFallbackFailed,
			Duration:             result.Duration + fallbackResult.Duration,
			Metrics:              fallbackResult.Metrics,
			UsedFallback:         true,
			PrimaryFailureReason: result.ErrorMessage,
		}
	}

	fallbackResult.UsedFallback = true
	fallbackResult.PrimaryFailureReason = result.ErrorMessage
	return fallbackResult
}

// isFallbackEligible reports whether the primary's failure is the kind of
// terminal provider outcome spec §4.9 routes to fallback (non-retryable
// provider error, exhausted retries, or an open breaker). A task rejected
// as ErrInvalidInput never reaches the provider at all, so replaying it
// against the local twin would only fail again for the same reason —
// that failure is returned as-is instead of being masked behind
// FALLBACK_FAILED.
func (d *Dispatcher) isFallbackEligible(result *types.AgentResult) bool {
	if !d.enabled || result.Success {
		return false
	}
	return result.ErrorKind != types.ErrInvalidInput
}

// Stats exposes the retry policy's per-kind statistics for callers that
// want visibility into the resilience layer without reaching into it
// directly — spec.md §3's RetryStatistics, wired per SPEC_FULL.md §5.
func Stats(policy *resilience.Policy, kind types.AgentKind) types.RetryStatistics {
	return policy.Stats(kind)
}
