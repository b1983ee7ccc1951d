package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/external"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

// fieldConfidenceWeights gives each source's contribution to a merged field,
// per spec §4.8's "per-field confidence weights" requirement.
var fieldConfidenceWeights = map[string]float64{
	"doi_resolver":         1.0,
	"crossref_index":       0.8,
	"semantic_scholar_like": 0.7,
	"author_disambiguation": 0.6,
}

// MetadataEnhancer implements spec §4.8's metadata enhancer: four parallel
// source queries, then an AI synthesis prompt that merges them.
type MetadataEnhancer struct {
	base   *agent.Base
	pool   *workerpool.Pool
	search external.Search
	shaper providers.Shaper
}

func NewMetadataEnhancer(pool *workerpool.Pool, search external.Search, shaper providers.Shaper) *MetadataEnhancer {
	return &MetadataEnhancer{pool: pool, search: search, shaper: shaper}
}

func (m *MetadataEnhancer) BindBase(b *agent.Base) { m.base = b }

func (m *MetadataEnhancer) CanHandle(task *types.AgentTask) bool {
	title, ok := task.Input["title"].(string)
	return ok && strings.TrimSpace(title) != ""
}

func (m *MetadataEnhancer) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	return 8 * time.Second
}

func (m *MetadataEnhancer) ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error) {
	title, _ := task.Input["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "title is empty", nil)
	}
	doi, _ := task.Input["doi"].(string)

	tasks := []workerpool.Task{
		m.sourceTask("doi_resolver", func(ctx context.Context) (*external.DiscoveredPaper, error) {
			if doi == "" {
				return nil, nil
			}
			return m.search.ResolveDOI(ctx, doi)
		}),
		m.sourceTask("crossref_index", func(ctx context.Context) (*external.DiscoveredPaper, error) {
			return firstOrNil(m.search.SearchByTitle(ctx, title, external.SearchConfig{MinScore: 0.5}, 1))
		}),
		m.sourceTask("semantic_scholar_like", func(ctx context.Context) (*external.DiscoveredPaper, error) {
			return firstOrNil(m.search.SearchByTitle(ctx, title, external.SearchConfig{MinScore: 0.3}, 3))
		}),
		m.sourceTask("author_disambiguation", func(ctx context.Context) (*external.DiscoveredPaper, error) {
			return firstOrNil(m.search.SearchByTitle(ctx, title, external.SearchConfig{MinScore: 0.2}, 5))
		}),
	}

	results, err := FanOut(ctx, m.pool, tasks)
	if err != nil {
		return nil, err
	}

	sources := make(map[string]types.Value)
	for _, r := range results {
		if r == nil {
			continue
		}
		name, _ := r["source"].(string)
		record, _ := r["record"].(types.Value)
		if name != "" && record != nil {
			sources[name] = record
		}
	}

	merged, conflicts := mergeSources(sources)

	synthesisPrompt := m.shaper.JSONOutput(
		"Given these candidate metadata records from independent sources, pick the most likely correct values and explain your reasoning in one sentence per conflicting field.",
		describeSourcesForPrompt(sources),
	)
	resp, err := m.base.ExecutePrompt(ctx, synthesisPrompt)
	if err != nil {
		return nil, err
	}
	merged["synthesisNotes"] = strings.TrimSpace(resp.Text)

	return types.Value{
		"paperId":   task.Input["paperId"],
		"metadata":  merged,
		"conflicts": conflicts,
		"sources":   sources,
	}, nil
}

func (m *MetadataEnhancer) sourceTask(name string, fn func(ctx context.Context) (*external.DiscoveredPaper, error)) workerpool.Task {
	return func(ctx context.Context) (types.Value, error) {
		paper, err := fn(ctx)
		if err != nil {
			// Best-effort: an external source failing doesn't fail the
			// whole enhancement, it just contributes no data.
			return types.Value{"source": name, "record": nil}, nil
		}
		if paper == nil {
			return types.Value{"source": name, "record": nil}, nil
		}
		return types.Value{"source": name, "record": types.Value{
			"title":         paper.Title,
			"authors":       paper.Authors,
			"year":          paper.Year,
			"journal":       paper.Journal,
			"venue":         paper.Venue,
			"citationCount": paper.CitationCount,
			"doi":           paper.DOI,
		}}, nil
	}
}

func firstOrNil(papers []external.DiscoveredPaper, err error) (*external.DiscoveredPaper, error) {
	if err != nil || len(papers) == 0 {
		return nil, err
	}
	return &papers[0], nil
}

// mergeSources picks, per field, the value from the highest-weighted source
// that supplied it, and records any field where sources disagree —
// conflicts are recorded, not resolved by voting alone, per spec §4.8.
func mergeSources(sources map[string]types.Value) (types.Value, []types.Value) {
	fields := []string{"title", "authors", "year", "journal", "venue", "citationCount", "doi"}
	merged := types.Value{}
	var conflicts []types.Value

	orderedSources := []string{"doi_resolver", "crossref_index", "semantic_scholar_like", "author_disambiguation"}

	for _, field := range fields {
		var best any
		bestWeight := -1.0
		values := map[string]any{}

		for _, name := range orderedSources {
			record, ok := sources[name]
			if !ok {
				continue
			}
			v, present := record[field]
			if !present || isZero(v) {
				continue
			}
			values[name] = v
			if w := fieldConfidenceWeights[name]; w > bestWeight {
				bestWeight = w
				best = v
			}
		}

		if best != nil {
			merged[field] = best
		}
		if hasDisagreement(values) {
			conflicts = append(conflicts, types.Value{"field": field, "values": values})
		}
	}

	return merged, conflicts
}

func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case int:
		return x == 0
	}
	return false
}

func hasDisagreement(values map[string]any) bool {
	if len(values) < 2 {
		return false
	}
	var first any
	for _, v := range values {
		if first == nil {
			first = v
			continue
		}
		if fmt.Sprintf("%v", v) != fmt.Sprintf("%v", first) {
			return true
		}
	}
	return false
}

func describeSourcesForPrompt(sources map[string]types.Value) string {
	var sb strings.Builder
	for name, record := range sources {
		fmt.Fprintf(&sb, "%s: %v\n", name, record)
	}
	return sb.String()
}
