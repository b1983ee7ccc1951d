package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/external"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

func TestCitationVerifier_CanHandle(t *testing.T) {
	c := NewCitationVerifier(&fakeSearch{}, providers.NewPerplexityShaper())
	assert.True(t, c.CanHandle(types.NewAgentTask(types.KindCitationVerifier, types.Value{"citations": []any{}})))
	assert.False(t, c.CanHandle(types.NewAgentTask(types.KindCitationVerifier, types.Value{})))
}

func TestCitationVerifier_VerifiesByDOIWithoutCallingModel(t *testing.T) {
	search := &fakeSearch{resolveDOI: map[string]*external.DiscoveredPaper{
		"10.1/x": {ID: "p1", Title: "Known Paper", DOI: "10.1/x", Year: 2020},
	}}
	client := &scriptedClient{}
	c := NewCitationVerifier(search, providers.NewPerplexityShaper())
	newBoundBase(t, c, types.KindCitationVerifier, client)

	task := types.NewAgentTask(types.KindCitationVerifier, types.Value{
		"citations": []any{types.Value{"doi": "10.1/x"}},
	})
	result, err := c.ProcessWithConfig(context.Background(), task)
	require.NoError(t, err)

	citations := result["citations"].([]types.Value)
	require.Len(t, citations, 1)
	assert.True(t, citations[0]["verified"].(bool))
	assert.Equal(t, "doi", citations[0]["method"])
	assert.Equal(t, 0, client.calls, "DOI match should short-circuit without a model call")
}

func TestCitationVerifier_FallsBackToTitleFuzzyMatch(t *testing.T) {
	search := &fakeSearch{byTitle: map[string][]external.DiscoveredPaper{
		"Some Paper": {{ID: "p2", Title: "Some Paper", Year: 2019}},
	}}
	client := &scriptedClient{replies: []string{`{"index": 0, "confidence": 0.9}`}}
	c := NewCitationVerifier(search, providers.NewPerplexityShaper())
	newBoundBase(t, c, types.KindCitationVerifier, client)

	task := types.NewAgentTask(types.KindCitationVerifier, types.Value{
		"citations": []any{types.Value{"title": "Some Paper"}},
	})
	result, err := c.ProcessWithConfig(context.Background(), task)
	require.NoError(t, err)

	citations := result["citations"].([]types.Value)
	require.Len(t, citations, 1)
	assert.True(t, citations[0]["verified"].(bool))
	assert.Equal(t, "title_fuzzy_match", citations[0]["method"])
}

func TestCitationVerifier_NoCandidatesYieldsUnverified(t *testing.T) {
	search := &fakeSearch{}
	c := NewCitationVerifier(search, providers.NewPerplexityShaper())
	newBoundBase(t, c, types.KindCitationVerifier, &scriptedClient{})

	task := types.NewAgentTask(types.KindCitationVerifier, types.Value{
		"citations": []any{types.Value{"title": "Unknown Paper"}},
	})
	result, err := c.ProcessWithConfig(context.Background(), task)
	require.NoError(t, err)

	citations := result["citations"].([]types.Value)
	require.Len(t, citations, 1)
	assert.False(t, citations[0]["verified"].(bool))
}

func TestParseMatchReply_TolerantOfMissingFields(t *testing.T) {
	idx, confidence := parseMatchReply(`{"index": "2"}`)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 0.0, confidence)

	idx2, _ := parseMatchReply(`not json`)
	assert.Equal(t, -1, idx2)
}
