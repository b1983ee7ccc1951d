package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

func TestConceptExplainer_CanHandle(t *testing.T) {
	c := NewConceptExplainer(nil, providers.NewOpenAIShaper())
	assert.True(t, c.CanHandle(types.NewAgentTask(types.KindConceptExplainer, types.Value{"textContent": "hello"})))
	assert.False(t, c.CanHandle(types.NewAgentTask(types.KindConceptExplainer, types.Value{"textContent": ""})))
}

func TestConceptExplainer_ProcessWithConfig_ExplainsAllLevels(t *testing.T) {
	client := &routingClient{routes: []routeRule{
		{contains: "Extract the top 20 technical terms", reply: `["gradient descent", "backpropagation"]`},
		{contains: "Explain each of these terms", reply: `{"gradient descent": "a thing", "backpropagation": "another thing"}`},
		{contains: "relationship graph", reply: `{"nodes": ["gradient descent", "backpropagation"], "edges": []}`},
	}}

	pool := newTestPool(t)
	c := NewConceptExplainer(pool, providers.NewOpenAIShaper())
	newBoundBase(t, c, types.KindConceptExplainer, client)

	task := types.NewAgentTask(types.KindConceptExplainer, types.Value{"textContent": "a paper about ml", "paperId": "p1"})
	result, err := c.ProcessWithConfig(context.Background(), task)
	require.NoError(t, err)

	terms, ok := result["terms"].([]string)
	require.True(t, ok)
	assert.Len(t, terms, 2)

	byLevel, ok := result["explanationsByLevel"].(map[string]types.Value)
	require.True(t, ok)
	assert.Len(t, byLevel, 4) // HIGH_SCHOOL, UNDERGRADUATE, GRADUATE, EXPERT

	graph, ok := result["relationshipGraph"].(types.Value)
	require.True(t, ok)
	assert.NotNil(t, graph["nodes"])
}

func TestBatchTerms_EmptyYieldsOneEmptyBatch(t *testing.T) {
	batches := batchTerms(nil, 5)
	assert.Len(t, batches, 1)
	assert.Empty(t, batches[0])
}

func TestBatchTerms_SplitsBySize(t *testing.T) {
	terms := []string{"a", "b", "c", "d", "e", "f"}
	batches := batchTerms(terms, 4)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[1], 2)
}
