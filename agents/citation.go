package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/external"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

const verifiedConfidenceThreshold = 0.7

// CitationVerifier implements spec §4.8's citation verifier: DOI lookup,
// then arXiv-id lookup, then AI-assisted title fuzzy match, in that order.
type CitationVerifier struct {
	base   *agent.Base
	search external.Search
	shaper providers.Shaper
}

func NewCitationVerifier(search external.Search, shaper providers.Shaper) *CitationVerifier {
	return &CitationVerifier{search: search, shaper: shaper}
}

func (c *CitationVerifier) BindBase(b *agent.Base) { c.base = b }

func (c *CitationVerifier) CanHandle(task *types.AgentTask) bool {
	_, ok := task.Input["citations"].([]any)
	return ok
}

func (c *CitationVerifier) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	citations, _ := task.Input["citations"].([]any)
	return time.Duration(3+len(citations)*2) * time.Second
}

func (c *CitationVerifier) ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error) {
	raw, ok := task.Input["citations"].([]any)
	if !ok {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "citations is missing or not a list", nil)
	}

	verified := make([]types.Value, 0, len(raw))
	for _, item := range raw {
		citation, _ := item.(types.Value)
		result, err := c.verifyOne(ctx, citation)
		if err != nil {
			return nil, err
		}
		verified = append(verified, result)
	}

	return types.Value{
		"paperId":    task.Input["paperId"],
		"citations":  verified,
	}, nil
}

func (c *CitationVerifier) verifyOne(ctx context.Context, citation types.Value) (types.Value, error) {
	doi, _ := citation["doi"].(string)
	arxivID, _ := citation["arxivId"].(string)
	title, _ := citation["title"].(string)

	if doi != "" {
		if paper, err := c.search.ResolveDOI(ctx, doi); err == nil && paper != nil {
			return verifiedResult(paper, 1.0, "doi"), nil
		}
	}
	if arxivID != "" {
		if paper, err := c.search.ResolveArxiv(ctx, arxivID); err == nil && paper != nil {
			return verifiedResult(paper, 1.0, "arxiv"), nil
		}
	}
	if title == "" {
		return types.Value{"verified": false, "reason": "no doi, arxiv id, or title to match against"}, nil
	}

	candidates, err := c.search.SearchByTitle(ctx, title, external.SearchConfig{MinScore: 0.4, Limit: 5}, 5)
	if err != nil {
		return nil, fmt.Errorf("search by title: %w", err)
	}
	if len(candidates) == 0 {
		return types.Value{"verified": false, "reason": "no candidates found", "title": title}, nil
	}

	best, confidence, err := c.bestMatch(ctx, title, candidates)
	if err != nil {
		return nil, err
	}

	result := verifiedResult(best, confidence, "title_fuzzy_match")
	return result, nil
}

func (c *CitationVerifier) bestMatch(ctx context.Context, title string, candidates []external.DiscoveredPaper) (*external.DiscoveredPaper, float64, error) {
	var sb strings.Builder
	for i, cand := range candidates {
		fmt.Fprintf(&sb, "%d. %s (%s, %d)\n", i, cand.Title, strings.Join(cand.Authors, "; "), cand.Year)
	}

	prompt := c.shaper.FactCheck(
		fmt.Sprintf("The citation titled %q refers to one of the numbered candidates below.", title),
		sb.String()+"\nReply with JSON: {\"index\": <candidate index>, \"confidence\": <0-1 float>}.",
	)

	resp, err := c.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, 0, err
	}

	idx, confidence := parseMatchReply(resp.Text)
	if idx < 0 || idx >= len(candidates) {
		idx = 0
	}
	return &candidates[idx], confidence, nil
}

func verifiedResult(paper *external.DiscoveredPaper, confidence float64, method string) types.Value {
	return types.Value{
		"verified":      confidence >= verifiedConfidenceThreshold,
		"confidence":    confidence,
		"method":        method,
		"matchedPaper": types.Value{
			"id":    paper.ID,
			"title": paper.Title,
			"doi":   paper.DOI,
			"year":  paper.Year,
		},
	}
}

// parseMatchReply extracts {"index": N, "confidence": F}, tolerating extra
// fields, missing fields and an index given as a string. A reply that is not
// valid JSON (for example one with a trailing comma) yields index -1.
func parseMatchReply(text string) (int, float64) {
	obj := parseJSONObject(text)
	idx := -1
	if v, ok := obj["index"]; ok {
		switch n := v.(type) {
		case float64:
			idx = int(n)
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				idx = parsed
			}
		}
	}
	confidence := 0.0
	if v, ok := obj["confidence"]; ok {
		if f, ok := v.(float64); ok {
			confidence = f
		}
	}
	return idx, confidence
}
