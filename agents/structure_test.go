package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

func TestStructureExtractor_CanHandle(t *testing.T) {
	s := NewStructureExtractor(providers.NewOpenAIShaper())

	assert.True(t, s.CanHandle(types.NewAgentTask(types.KindStructureExtractor, types.Value{"textContent": "hello"})))
	assert.False(t, s.CanHandle(types.NewAgentTask(types.KindStructureExtractor, types.Value{"textContent": "  "})))
	assert.False(t, s.CanHandle(types.NewAgentTask(types.KindStructureExtractor, types.Value{})))
}

func TestStructureExtractor_ProcessWithConfig_LocatesSections(t *testing.T) {
	reply := "Abstract:\nShort abstract body here.\n\nIntroduction:\nThis is the introduction text with enough words to not be trivial.\n\nReferences:\n[1] Some citation."
	client := &scriptedClient{replies: []string{reply}}

	s := NewStructureExtractor(providers.NewOpenAIShaper())
	newBoundBase(t, s, types.KindStructureExtractor, client)

	task := types.NewAgentTask(types.KindStructureExtractor, types.Value{"textContent": "full paper text", "paperId": "p1"})
	result, err := s.ProcessWithConfig(context.Background(), task)
	require.NoError(t, err)

	sections, ok := result["sections"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, sections, "abstract")
	assert.Contains(t, sections, "introduction")
	assert.Contains(t, sections, "references")

	score, ok := result["structureScore"].(int)
	require.True(t, ok)
	assert.Greater(t, score, 0)
	assert.Equal(t, "p1", result["paperId"])
}

func TestStructureExtractor_ProcessWithConfig_RejectsEmptyText(t *testing.T) {
	s := NewStructureExtractor(providers.NewOpenAIShaper())
	newBoundBase(t, s, types.KindStructureExtractor, &scriptedClient{})

	task := types.NewAgentTask(types.KindStructureExtractor, types.Value{"textContent": "   "})
	_, err := s.ProcessWithConfig(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.Kind(err))
}

func TestScoreStructure_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, scoreStructure(map[string]string{}))
}

func TestScoreStructure_ShortBodyHalvesWeight(t *testing.T) {
	full := scoreStructure(map[string]string{"abstract": "this is a sufficiently long abstract body for full credit"})
	short := scoreStructure(map[string]string{"abstract": "short"})
	assert.Greater(t, full, short)
}
