package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewAgentTask_GeneratesID(t *testing.T) {
	task1 := NewAgentTask(KindSummarizer, Value{"paperId": "p1"})
	task2 := NewAgentTask(KindSummarizer, Value{"paperId": "p1"})

	assert.NotEmpty(t, task1.ID)
	assert.NotEqual(t, task1.ID, task2.ID, "submitting the same input twice yields independent task identities")
}

func TestUsageRecord_TotalTokens(t *testing.T) {
	u := UsageRecord{InputTokens: 120, OutputTokens: 340}
	assert.Equal(t, 460, u.TotalTokens())
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "CLOSED"},
		{CircuitOpen, "OPEN"},
		{CircuitHalfOpen, "HALF_OPEN"},
		{CircuitState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestRetryStatistics_SuccessRatio(t *testing.T) {
	assert.Equal(t, 0.0, RetryStatistics{}.SuccessRatio())
	assert.Equal(t, 0.75, RetryStatistics{TotalAttempts: 4, SuccessCount: 3}.SuccessRatio())
}

func TestDeriveLoadStatus_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		active int
		max    int
		want   LoadStatus
	}{
		{"zero max defaults to low", 3, 0, LoadLow},
		{"well under threshold", 1, 10, LoadLow},
		{"exactly at medium boundary stays low", 6, 10, LoadLow},
		{"just above medium boundary", 7, 10, LoadMedium},
		{"exactly at high boundary stays medium", 9, 10, LoadMedium},
		{"just above high boundary", 10, 10, LoadHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveLoadStatus(tt.active, tt.max))
		})
	}
}

// TestProperty_LoadStatusMatchesRatio checks the exact boundary law from
// spec §8 across randomly generated pool occupancy values.
func TestProperty_LoadStatusMatchesRatio(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		max := rapid.IntRange(1, 1000).Draw(rt, "max")
		active := rapid.IntRange(0, max*2).Draw(rt, "active")

		status := DeriveLoadStatus(active, max)
		ratio := float64(active) / float64(max)

		switch {
		case ratio > 0.9:
			if status != LoadHigh {
				rt.Fatalf("ratio %.4f expected HIGH, got %s", ratio, status)
			}
		case ratio > 0.6:
			if status != LoadMedium {
				rt.Fatalf("ratio %.4f expected MEDIUM, got %s", ratio, status)
			}
		default:
			if status != LoadLow {
				rt.Fatalf("ratio %.4f expected LOW, got %s", ratio, status)
			}
		}
	})
}
