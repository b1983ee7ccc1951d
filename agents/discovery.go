package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/external"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

const discoveryCandidateLimit = 10

// DiscoveryAgent finds papers related to a given one: it searches by the
// source paper's title and keyword phrases, scores candidates by a plain
// text-overlap similarity, then asks the model to re-rank the top slice.
type DiscoveryAgent struct {
	base   *agent.Base
	search external.Search
	shaper providers.Shaper
}

func NewDiscoveryAgent(search external.Search, shaper providers.Shaper) *DiscoveryAgent {
	return &DiscoveryAgent{search: search, shaper: shaper}
}

func (d *DiscoveryAgent) BindBase(b *agent.Base) { d.base = b }

func (d *DiscoveryAgent) CanHandle(task *types.AgentTask) bool {
	title, ok := task.Input["title"].(string)
	return ok && strings.TrimSpace(title) != ""
}

func (d *DiscoveryAgent) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	return 10 * time.Second
}

func (d *DiscoveryAgent) ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error) {
	title, _ := task.Input["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "title is empty", nil)
	}
	keywords, _ := task.Input["keywords"].([]any)

	queries := []string{title}
	for _, k := range keywords {
		if s, ok := k.(string); ok && s != "" {
			queries = append(queries, s)
		}
	}

	candidates, err := d.gatherCandidates(ctx, queries, title)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return types.Value{"paperId": task.Input["paperId"], "related": []types.Value{}}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > discoveryCandidateLimit {
		candidates = candidates[:discoveryCandidateLimit]
	}

	reranked, err := d.rerank(ctx, title, candidates)
	if err != nil {
		return nil, err
	}

	return types.Value{
		"paperId": task.Input["paperId"],
		"related": reranked,
	}, nil
}

type scoredCandidate struct {
	paper external.DiscoveredPaper
	score float64
}

func (d *DiscoveryAgent) gatherCandidates(ctx context.Context, queries []string, sourceTitle string) ([]scoredCandidate, error) {
	seen := make(map[string]scoredCandidate)
	for _, q := range queries {
		papers, err := d.search.SearchByTitle(ctx, q, external.SearchConfig{MinScore: 0.2, Limit: discoveryCandidateLimit}, discoveryCandidateLimit)
		if err != nil {
			continue
		}
		for _, p := range papers {
			if p.Title == sourceTitle {
				continue
			}
			score := titleOverlapScore(sourceTitle, p.Title)
			if existing, ok := seen[p.ID]; !ok || score > existing.score {
				seen[p.ID] = scoredCandidate{paper: p, score: score}
			}
		}
	}
	out := make([]scoredCandidate, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out, nil
}

// titleOverlapScore is a cheap Jaccard-over-words similarity used to
// pre-rank candidates before the more expensive AI re-rank pass.
func titleOverlapScore(a, b string) float64 {
	aw := wordSet(a)
	bw := wordSet(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	intersection := 0
	for w := range aw {
		if bw[w] {
			intersection++
		}
	}
	union := len(aw) + len(bw) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

func (d *DiscoveryAgent) rerank(ctx context.Context, sourceTitle string, candidates []scoredCandidate) ([]types.Value, error) {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s (%s, %d) [overlap=%.2f]\n", i, c.paper.Title, strings.Join(c.paper.Authors, "; "), c.paper.Year, c.score)
	}

	prompt := d.shaper.JSONOutput(
		fmt.Sprintf("Given the source paper %q, rank these candidates by research relevance, most relevant first.", sourceTitle),
		sb.String()+"\nReply with a JSON array of candidate indices, most relevant first.",
	)
	resp, err := d.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}

	order := parseJSONIntArray(resp.Text)
	if len(order) == 0 {
		order = defaultOrder(len(candidates))
	}

	results := make([]types.Value, 0, len(order))
	usedIdx := make(map[int]bool)
	for _, idx := range order {
		if idx < 0 || idx >= len(candidates) || usedIdx[idx] {
			continue
		}
		usedIdx[idx] = true
		c := candidates[idx]
		results = append(results, types.Value{
			"id":            c.paper.ID,
			"title":         c.paper.Title,
			"authors":       c.paper.Authors,
			"year":          c.paper.Year,
			"doi":           c.paper.DOI,
			"overlapScore":  c.score,
		})
	}
	return results, nil
}

func defaultOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
