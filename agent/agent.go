// Package agent implements the agent base from spec §4.6: lifecycle, task
// validation, metrics enrichment, error classification, and lazy client
// binding. Grounded on the teacher's agent/base.go composition shape (a
// BaseAgent holding a provider binding, memory, tools, logger) but recast
// around AgentTask/AgentResult instead of Input/Output, and around
// composition-only — no inheritance tree, per Design Notes §9.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docagents/substrate/chatclient"
	"github.com/docagents/substrate/metering"
	"github.com/docagents/substrate/ratelimit"
	"github.com/docagents/substrate/resilience"
	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

// Logic is the task-specific algorithm a concrete agent (C8) supplies. The
// base handles validation, retry/breaker wrapping, metrics, and lazy
// binding; Logic only does the domain work.
type Logic interface {
	// CanHandle reports whether this agent can process the task, e.g. by
	// checking required input keys.
	CanHandle(task *types.AgentTask) bool
	// EstimateProcessingTime is a deterministic function of input size.
	EstimateProcessingTime(task *types.AgentTask) time.Duration
	// ProcessWithConfig is the agent's task logic. It may call
	// Base.ExecutePrompt one or more times and fan out onto the pool.
	ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error)
}

// Agent is the uniform interface every concrete and fallback agent exposes.
type Agent interface {
	AgentKind() types.AgentKind
	Provider() types.Provider
	CanHandle(task *types.AgentTask) bool
	EstimateProcessingTime(task *types.AgentTask) time.Duration
	LoadStatus() types.LoadStatus
	Process(ctx context.Context, task *types.AgentTask) *types.AgentResult
}

// Base is the composed agent: it *has* a provider binding, a retry policy
// (nil for fallback agents, per spec §4.9), a rate limiter, a meter, and a
// worker pool, plus the Logic strategy supplied by the concrete agent.
type Base struct {
	kind     types.AgentKind
	provider types.Provider
	logic    Logic

	client  *chatclient.LazyClient
	limiter *ratelimit.Limiter
	retry   *resilience.Policy // nil disables retry entirely (fallback agents)
	meter   *metering.Instance
	pool    workerpool.LoadSnapshot
	tok     *metering.Tokenizer
	logger  *zap.Logger
}

// baseBinder is implemented by concrete Logic types that need a back
// reference to the Base that owns them (to call ExecutePrompt). NewBase
// calls it after construction, resolving the circular dependency between
// Base (which needs a Logic) and Logic (which needs Base.ExecutePrompt)
// without an interface cycle.
type baseBinder interface {
	BindBase(b *Base)
}

// NewBase wires the shared infrastructure around one concrete Logic. retry
// may be nil: Process then calls ProcessWithConfig directly on the caller's
// goroutine without retry/breaker wrapping; it is not submitted to the
// worker pool, which the Base only reads for load status. This is how
// fallback agents are built (see dispatch package).
func NewBase(
	kind types.AgentKind,
	provider types.Provider,
	logic Logic,
	bind chatclient.Binder,
	limiter *ratelimit.Limiter,
	retry *resilience.Policy,
	meter *metering.Instance,
	pool workerpool.LoadSnapshot,
	tok *metering.Tokenizer,
	logger *zap.Logger,
) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Base{
		kind:     kind,
		provider: provider,
		logic:    logic,
		client:   chatclient.NewLazyClient(bind),
		limiter:  limiter,
		retry:    retry,
		meter:    meter,
		pool:     pool,
		tok:      tok,
		logger:   logger.With(zap.String("agent_kind", string(kind)), zap.String("provider", string(provider))),
	}
	if binder, ok := logic.(baseBinder); ok {
		binder.BindBase(b)
	}
	return b
}

func (b *Base) AgentKind() types.AgentKind { return b.kind }
func (b *Base) Provider() types.Provider   { return b.provider }

func (b *Base) CanHandle(task *types.AgentTask) bool {
	return task != nil && task.Kind == b.kind && b.logic.CanHandle(task)
}

func (b *Base) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	return b.logic.EstimateProcessingTime(task)
}

func (b *Base) LoadStatus() types.LoadStatus {
	if b.pool == nil {
		return types.LoadLow
	}
	return b.pool.Snapshot().Status()
}

// Process implements spec §4.6's dispatch algorithm.
func (b *Base) Process(ctx context.Context, task *types.AgentTask) *types.AgentResult {
	start := time.Now()

	if task == nil || !b.CanHandle(task) {
		taskID := ""
		if task != nil {
			taskID = task.ID
		}
		return b.failureResult(taskID, start, types.NewError(types.ErrInvalidInput, "process", string(b.provider), "task is nil or agent cannot handle this kind", nil))
	}

	var (
		value types.Value
		err   error
	)

	if b.retry == nil {
		// Fallback agents: no retry policy, run directly (spec §4.6 step 2).
		value, err = b.logic.ProcessWithConfig(ctx, task)
	} else {
		result, rerr := b.retry.Execute(ctx, b.kind, func(ctx context.Context) (types.Value, error) {
			v, perr := b.logic.ProcessWithConfig(ctx, task)
			if perr != nil {
				return nil, fmt.Errorf("process_with_config: %w", perr)
			}
			return v, nil
		})
		if rerr != nil {
			err = rerr
		} else {
			value = result.Value
		}
	}

	if err != nil {
		b.logger.Error("agent task failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return b.failureResult(task.ID, start, err)
	}

	end := time.Now()
	return &types.AgentResult{
		TaskID:   task.ID,
		Success:  true,
		Result:   value,
		Duration: end.Sub(start),
		Metrics: types.ProcessingMetrics{
			AgentKind: b.kind,
			Provider:  b.provider,
			StartedAt: start,
			EndedAt:   end,
			PoolLoad:  b.LoadStatus(),
		},
	}
}

func (b *Base) failureResult(taskID string, start time.Time, err error) *types.AgentResult {
	end := time.Now()
	return &types.AgentResult{
		TaskID:       taskID,
		Success:      false,
		ErrorMessage: err.Error(),
		ErrorKind:    types.Kind(err),
		Duration:     end.Sub(start),
		Metrics: types.ProcessingMetrics{
			AgentKind: b.kind,
			Provider:  b.provider,
			StartedAt: start,
			EndedAt:   end,
			PoolLoad:  b.LoadStatus(),
		},
	}
}

// ExecutePrompt is the helper concrete agents (C8) call one or more times.
// It lazily binds the client, acquires a rate-limit permit, invokes the
// provider, feeds the usage meter, and returns the response. On failure it
// synthesizes an operator-facing error naming the operation, root cause, and
// a retryability hint, then re-raises — spec §4.6.
func (b *Base) ExecutePrompt(ctx context.Context, prompt chatclient.Prompt) (*chatclient.Response, error) {
	client, err := b.client.Get()
	if err != nil {
		return nil, types.NewError(types.ErrProviderTransient, "execute_prompt", string(b.provider), "client binding failed, will retry on next use", err)
	}

	if b.limiter != nil {
		permit, err := b.limiter.Acquire(ctx, b.provider)
		if err != nil {
			return nil, fmt.Errorf("execute_prompt: rate limiter acquire: %w", err)
		}
		defer permit.Release()

		if b.tok != nil {
			estimated := 0
			for _, m := range prompt.Messages {
				estimated += b.tok.EstimateTokens(m.Text)
			}
			if err := b.limiter.ReserveTokens(ctx, b.provider, estimated); err != nil {
				return nil, fmt.Errorf("execute_prompt: token budget: %w", err)
			}
		}
	}

	resp, err := client.Call(ctx, prompt)
	if err != nil {
		kind := resilience.Classify(err)
		hint := "not retryable"
		if kind == types.ErrProviderTransient {
			hint = "retryable"
		}
		return nil, types.NewError(kind, "execute_prompt", string(b.provider),
			fmt.Sprintf("provider call failed (%s): %v", hint, err), err)
	}

	if resp.Usage != nil && b.meter != nil {
		b.meter.Record(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	} else if resp.Usage == nil {
		b.logger.Warn("provider response missing usage metadata, skipping meter update")
	}

	return resp, nil
}

// Meter exposes the instance meter for tests and callers that need direct
// access to token_usage_stats()/reset_instance_counters().
func (b *Base) Meter() *metering.Instance { return b.meter }
