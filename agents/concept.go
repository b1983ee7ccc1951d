package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

// ExplanationLevel enumerates the four audience levels from spec §4.8.
type ExplanationLevel string

const (
	LevelHighSchool   ExplanationLevel = "HIGH_SCHOOL"
	LevelUndergrad    ExplanationLevel = "UNDERGRADUATE"
	LevelGraduate     ExplanationLevel = "GRADUATE"
	LevelExpert       ExplanationLevel = "EXPERT"
)

var allLevels = []ExplanationLevel{LevelHighSchool, LevelUndergrad, LevelGraduate, LevelExpert}

const (
	maxTerms      = 20
	termBatchSize = 5
)

// ConceptExplainer implements spec §4.8's concept explainer: extract terms,
// fan out level x batch explanation prompts plus a relationship-graph
// synthesis, join all before returning.
type ConceptExplainer struct {
	base   *agent.Base
	pool   *workerpool.Pool
	shaper providers.Shaper
}

func NewConceptExplainer(pool *workerpool.Pool, shaper providers.Shaper) *ConceptExplainer {
	return &ConceptExplainer{pool: pool, shaper: shaper}
}

func (c *ConceptExplainer) BindBase(b *agent.Base) { c.base = b }

func (c *ConceptExplainer) CanHandle(task *types.AgentTask) bool {
	text, ok := task.Input["textContent"].(string)
	return ok && strings.TrimSpace(text) != ""
}

func (c *ConceptExplainer) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	return 15 * time.Second
}

func (c *ConceptExplainer) ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error) {
	text, _ := task.Input["textContent"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "textContent is empty", nil)
	}

	terms, err := c.extractTerms(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}

	batches := batchTerms(terms, termBatchSize)

	type branchJob struct {
		level ExplanationLevel
		batch []string
	}
	var jobs []branchJob
	for _, level := range allLevels {
		for _, batch := range batches {
			jobs = append(jobs, branchJob{level: level, batch: batch})
		}
	}

	tasks := make([]workerpool.Task, 0, len(jobs)+1)
	for _, job := range jobs {
		job := job
		tasks = append(tasks, func(ctx context.Context) (types.Value, error) {
			explanations, err := c.explainBatch(ctx, job.level, job.batch)
			if err != nil {
				return nil, err
			}
			return types.Value{"level": string(job.level), "explanations": explanations}, nil
		})
	}
	tasks = append(tasks, func(ctx context.Context) (types.Value, error) {
		graph, err := c.synthesizeGraph(ctx, terms)
		if err != nil {
			return nil, err
		}
		return types.Value{"relationshipGraph": graph}, nil
	})

	results, err := FanOut(ctx, c.pool, tasks)
	if err != nil {
		return nil, err
	}

	explanationsByLevel := make(map[string]types.Value)
	var relationshipGraph types.Value
	for _, r := range results {
		if g, ok := r["relationshipGraph"]; ok {
			relationshipGraph, _ = g.(types.Value)
			continue
		}
		level, _ := r["level"].(string)
		batch, _ := r["explanations"].(types.Value)
		merged, ok := explanationsByLevel[level]
		if !ok {
			merged = types.Value{}
		}
		for k, v := range batch {
			merged[k] = v
		}
		explanationsByLevel[level] = merged
	}

	return types.Value{
		"paperId":           task.Input["paperId"],
		"terms":             terms,
		"explanationsByLevel": explanationsByLevel,
		"relationshipGraph": relationshipGraph,
	}, nil
}

func (c *ConceptExplainer) extractTerms(ctx context.Context, text string) ([]string, error) {
	prompt := c.shaper.JSONOutput(
		"Extract the top 20 technical terms by conceptual complexity from this text. Return a JSON array of strings, most complex first.",
		providers.TruncateTo(text, maxStructureInputChars),
	)
	resp, err := c.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseJSONStringArray(resp.Text), nil
}

func (c *ConceptExplainer) explainBatch(ctx context.Context, level ExplanationLevel, batch []string) (types.Value, error) {
	instruction := fmt.Sprintf("Explain each of these terms at a %s level. Return a JSON object mapping term to explanation.", levelDescription(level))
	prompt := c.shaper.JSONOutput(instruction, strings.Join(batch, ", "))
	resp, err := c.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseJSONStringMap(resp.Text), nil
}

func (c *ConceptExplainer) synthesizeGraph(ctx context.Context, terms []string) (types.Value, error) {
	prompt := c.shaper.JSONOutput(
		"Given these terms, synthesize a relationship graph as JSON: {\"nodes\": [...], \"edges\": [{\"from\":..., \"to\":..., \"relation\":...}]}.",
		strings.Join(terms, ", "),
	)
	resp, err := c.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseJSONObject(resp.Text), nil
}

func levelDescription(level ExplanationLevel) string {
	switch level {
	case LevelHighSchool:
		return "high school"
	case LevelUndergrad:
		return "undergraduate"
	case LevelGraduate:
		return "graduate"
	case LevelExpert:
		return "expert"
	default:
		return "general"
	}
}

func batchTerms(terms []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(terms); i += size {
		end := i + size
		if end > len(terms) {
			end = len(terms)
		}
		batches = append(batches, terms[i:end])
	}
	if len(batches) == 0 {
		batches = [][]string{{}}
	}
	return batches
}
