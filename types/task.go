package types

import (
	"time"

	"github.com/google/uuid"
)

// AgentKind discriminates what an agent does.
type AgentKind string

const (
	KindStructureExtractor AgentKind = "STRUCTURE_EXTRACTOR"
	KindSummarizer         AgentKind = "SUMMARIZER"
	KindConceptExplainer   AgentKind = "CONCEPT_EXPLAINER"
	KindCitationVerifier   AgentKind = "CITATION_VERIFIER"
	KindMetadataEnhancer   AgentKind = "METADATA_ENHANCER"
	KindDiscovery          AgentKind = "DISCOVERY"
)

// Provider identifies a model-serving endpoint.
type Provider string

const (
	ProviderPrimaryCloudA Provider = "primary-cloud-a"
	ProviderPrimaryCloudB Provider = "primary-cloud-b"
	ProviderResearchCloud Provider = "research-cloud"
	ProviderLocal         Provider = "local"
)

// Value is a tree of primitives, sequences, and string-keyed mappings —
// the structured input/output carried by AgentTask and AgentResult.
type Value = map[string]any

// AgentTask is an immutable request. Never mutated after construction.
type AgentTask struct {
	ID           string
	Kind         AgentKind
	Input        Value
	SubmittedAt  time.Time
}

// NewAgentTask builds a task with a freshly generated ID.
func NewAgentTask(kind AgentKind, input Value) *AgentTask {
	return &AgentTask{
		ID:          uuid.NewString(),
		Kind:        kind,
		Input:       input,
		SubmittedAt: time.Now(),
	}
}

// AgentResult is the outcome of dispatching exactly one AgentTask.
type AgentResult struct {
	TaskID               string
	Success              bool
	Result               Value
	ErrorMessage         string
	ErrorKind            ErrorKind
	Duration             time.Duration
	Metrics              ProcessingMetrics
	UsedFallback         bool
	PrimaryFailureReason string
}

// ProcessingMetrics is a diagnostic snapshot attached to every result.
type ProcessingMetrics struct {
	AgentKind AgentKind
	Provider  Provider
	StartedAt time.Time
	EndedAt   time.Time
	PoolLoad  LoadStatus
}

// UsageRecord is the (input_tokens, output_tokens, cost) triple for one call.
// CostMicroCents is fixed-point: one hundred-millionth of a dollar.
type UsageRecord struct {
	InputTokens    int
	OutputTokens   int
	CostMicroCents int64
}

// TotalTokens reports prompt+completion tokens for this call.
func (u UsageRecord) TotalTokens() int { return u.InputTokens + u.OutputTokens }

// CircuitState is one of Closed, Open, HalfOpen for a given agent-kind.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// RetryStatistics aggregates attempts/retries/success-ratio per agent-kind.
type RetryStatistics struct {
	TotalAttempts int64
	TotalRetries  int64
	SuccessCount  int64
}

// SuccessRatio returns 0 when no attempts have been recorded yet.
func (s RetryStatistics) SuccessRatio() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalAttempts)
}

// LoadStatus is derived from worker-pool occupancy thresholds 0.6 and 0.9.
type LoadStatus string

const (
	LoadLow    LoadStatus = "LOW"
	LoadMedium LoadStatus = "MEDIUM"
	LoadHigh   LoadStatus = "HIGH"
)

// DeriveLoadStatus implements the occupancy thresholds from spec §8.
func DeriveLoadStatus(active, max int) LoadStatus {
	if max <= 0 {
		return LoadLow
	}
	ratio := float64(active) / float64(max)
	switch {
	case ratio > 0.9:
		return LoadHigh
	case ratio > 0.6:
		return LoadMedium
	default:
		return LoadLow
	}
}
