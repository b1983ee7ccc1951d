// Package metering implements the token/cost meter from spec §4.5. Grounded
// on the teacher's types/token.go (TokenUsage) and internal/metrics/collector.go
// (prometheus counters), split into a per-instance tier and a process-wide
// tier keyed by (agent_kind, provider).
package metering

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/docagents/substrate/types"
)

// RateTable maps a provider to its (cost-per-1M-input-tokens,
// cost-per-1M-output-tokens) pair, denominated in micro-cents (one
// hundred-millionth of a dollar) per spec §4.5/§3. Keeping the rate at
// per-1M-token granularity, rather than per-token, lets sub-micro-cent
// per-token rates (e.g. 2.5 micro-cents/token) stay exact integers instead
// of truncating. Illustrative defaults from spec §4.5; injected, not
// constants, per the Design Notes §9 recast.
type RateTable map[types.Provider]Rate

// Rate is the cost-per-1,000,000-tokens pair for one provider, in
// micro-cents.
type Rate struct {
	In  int64
	Out int64
}

// DefaultRateTable matches spec §4.5's illustrative figures: 2.5/10.0
// micro-cents per token for primary-cloud-A, expressed here per 1M tokens
// so CostOf's division by 1_000_000 recovers the exact per-token rate.
func DefaultRateTable() RateTable {
	return RateTable{
		types.ProviderPrimaryCloudA: {In: 2_500_000, Out: 10_000_000}, // 2.5 / 10.0 micro-cents per token
		types.ProviderPrimaryCloudB: {In: 3_000_000, Out: 15_000_000}, // 3.0 / 15.0
		types.ProviderResearchCloud: {In: 1_000_000, Out: 1_000_000},  // 1.0 / 1.0
		types.ProviderLocal:         {In: 0, Out: 0},
	}
}

// counterKey is (agent_kind, provider).
type counterKey struct {
	kind     types.AgentKind
	provider types.Provider
}

// counters is one striped accumulator for a (kind, provider) pair.
type counters struct {
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
	costMicro    atomic.Int64
	requests     atomic.Int64
}

func (c *counters) add(rec types.UsageRecord) {
	c.inputTokens.Add(int64(rec.InputTokens))
	c.outputTokens.Add(int64(rec.OutputTokens))
	c.costMicro.Add(rec.CostMicroCents)
	c.requests.Add(1)
}

func (c *counters) snapshot() Totals {
	return Totals{
		InputTokens:    c.inputTokens.Load(),
		OutputTokens:   c.outputTokens.Load(),
		CostMicroCents: c.costMicro.Load(),
		Requests:       c.requests.Load(),
	}
}

// Totals is a point-in-time read of one counters bucket.
type Totals struct {
	InputTokens    int64
	OutputTokens   int64
	CostMicroCents int64
	Requests       int64
}

// promMetrics is the process-wide prometheus surface, mirroring the
// teacher's internal/metrics/collector.go llm* CounterVecs.
type promMetrics struct {
	tokensTotal  *prometheus.CounterVec
	costTotal    *prometheus.CounterVec
	requestTotal *prometheus.CounterVec
}

func newPromMetrics(reg prometheus.Registerer, namespace string) *promMetrics {
	m := &promMetrics{
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total", Help: "Total tokens consumed.",
		}, []string{"agent_kind", "provider", "direction"}),
		costTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_cost_micro_cents_total", Help: "Total cost in micro-cents.",
		}, []string{"agent_kind", "provider"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_requests_total", Help: "Total provider requests with usage metadata.",
		}, []string{"agent_kind", "provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.tokensTotal, m.costTotal, m.requestTotal)
	}
	return m
}

// Process is the process-wide meter: shared across every agent instance,
// lifetime equal to the process, per spec §3.
type Process struct {
	mu       sync.RWMutex
	buckets  map[counterKey]*counters
	prom     *promMetrics
	logger   *zap.Logger
}

// NewProcess builds the process-wide meter. reg may be nil to skip
// prometheus registration (tests typically pass nil or a fresh registry).
func NewProcess(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Process {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{
		buckets: make(map[counterKey]*counters),
		prom:    newPromMetrics(reg, namespace),
		logger:  logger.With(zap.String("component", "meter")),
	}
}

func (p *Process) bucket(kind types.AgentKind, provider types.Provider) *counters {
	key := counterKey{kind: kind, provider: provider}

	p.mu.RLock()
	c, ok := p.buckets[key]
	p.mu.RUnlock()
	if ok {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.buckets[key]; ok {
		return c
	}
	c = &counters{}
	p.buckets[key] = c
	return c
}

// Record atomically increments both the process-wide bucket and exports to
// prometheus. Never called with a nil usage — callers skip the call entirely
// when the provider omitted usage metadata (spec §4.5).
func (p *Process) Record(kind types.AgentKind, provider types.Provider, rec types.UsageRecord) {
	p.bucket(kind, provider).add(rec)

	if p.prom == nil {
		return
	}
	p.prom.tokensTotal.WithLabelValues(string(kind), string(provider), "input").Add(float64(rec.InputTokens))
	p.prom.tokensTotal.WithLabelValues(string(kind), string(provider), "output").Add(float64(rec.OutputTokens))
	p.prom.costTotal.WithLabelValues(string(kind), string(provider)).Add(float64(rec.CostMicroCents))
	p.prom.requestTotal.WithLabelValues(string(kind), string(provider)).Inc()
}

// Totals returns the process-wide snapshot for a (kind, provider) pair.
func (p *Process) Totals(kind types.AgentKind, provider types.Provider) Totals {
	return p.bucket(kind, provider).snapshot()
}

// Instance is a per-agent-instance meter. reset() zeroes only this tier;
// the process-wide tier is unaffected, per spec §8's round-trip law.
type Instance struct {
	kind     types.AgentKind
	provider types.Provider
	process  *Process
	rates    RateTable

	local counters
}

// NewInstance builds a per-instance meter that also feeds the shared process
// meter on every Record call.
func NewInstance(kind types.AgentKind, provider types.Provider, process *Process, rates RateTable) *Instance {
	if rates == nil {
		rates = DefaultRateTable()
	}
	return &Instance{kind: kind, provider: provider, process: process, rates: rates}
}

// CostOf computes the micro-cent cost for a usage pair against the
// instance's per-1M-token rate table: tokens * rate_per_1M / 1_000_000,
// per spec §4.5/§8 scenario 6 (1000 in + 500 out at the primary-cloud-A
// illustrative rate yields 1000*2.5 + 500*10.0 = 7500 micro-cents).
func (i *Instance) CostOf(inputTokens, outputTokens int) int64 {
	rate := i.rates[i.provider]
	return int64(inputTokens)*rate.In/1_000_000 + int64(outputTokens)*rate.Out/1_000_000
}

// Record builds a UsageRecord from provider-reported usage and feeds both
// tiers. Missing usage is the caller's responsibility to skip — Record
// itself never fails.
func (i *Instance) Record(inputTokens, outputTokens int) types.UsageRecord {
	rec := types.UsageRecord{
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		CostMicroCents: i.CostOf(inputTokens, outputTokens),
	}
	i.local.add(rec)
	if i.process != nil {
		i.process.Record(i.kind, i.provider, rec)
	}
	return rec
}

// TokenUsageStats returns this instance's own counters.
func (i *Instance) TokenUsageStats() Totals {
	return i.local.snapshot()
}

// ResetInstanceCounters zeroes only the per-instance tier.
func (i *Instance) ResetInstanceCounters() {
	i.local.inputTokens.Store(0)
	i.local.outputTokens.Store(0)
	i.local.costMicro.Store(0)
	i.local.requests.Store(0)
}
