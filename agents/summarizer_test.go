package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

func TestSummarizer_CanHandle(t *testing.T) {
	s := NewSummarizer(providers.NewOpenAIShaper())

	assert.True(t, s.CanHandle(types.NewAgentTask(types.KindSummarizer, types.Value{"textContent": "hello"})))
	assert.False(t, s.CanHandle(types.NewAgentTask(types.KindSummarizer, types.Value{"textContent": ""})))
	assert.False(t, s.CanHandle(types.NewAgentTask(types.KindSummarizer, types.Value{"textContent": "hi", "summaryType": "bogus"})))
	assert.True(t, s.CanHandle(types.NewAgentTask(types.KindSummarizer, types.Value{"textContent": "hi", "summaryType": "brief"})))
}

func TestSummarizer_ProcessWithConfig_DefaultsToStandardBand(t *testing.T) {
	words := strings.Repeat("result analysis significant findings conclusion ", 15)
	client := &scriptedClient{replies: []string{words}}

	s := NewSummarizer(providers.NewOpenAIShaper())
	newBoundBase(t, s, types.KindSummarizer, client)

	task := types.NewAgentTask(types.KindSummarizer, types.Value{"textContent": "long paper text", "paperId": "p1"})
	result, err := s.ProcessWithConfig(context.Background(), task)
	require.NoError(t, err)

	summary, ok := result["summary"].(types.Value)
	require.True(t, ok)
	assert.Equal(t, "standard", summary["summaryType"])
	assert.Greater(t, summary["qualityScore"].(int), 0)
}

func TestSummarizer_ProcessWithConfig_RejectsUnknownSummaryType(t *testing.T) {
	s := NewSummarizer(providers.NewOpenAIShaper())
	newBoundBase(t, s, types.KindSummarizer, &scriptedClient{})

	task := types.NewAgentTask(types.KindSummarizer, types.Value{"textContent": "x", "summaryType": "nonsense"})
	_, err := s.ProcessWithConfig(context.Background(), task)
	require.Error(t, err)
}

func TestSummaryQuality_PenalizesUnderAndOverLength(t *testing.T) {
	band := summaryBands[SummaryStandard]

	tooShort := summaryQuality("too short", 5, band)
	justRight := summaryQuality(strings.Repeat("word ", 70), 70, band)
	tooLong := summaryQuality(strings.Repeat("word ", 500), 500, band)

	assert.Greater(t, justRight, tooShort)
	assert.Greater(t, justRight, tooLong)
}
