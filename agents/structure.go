package agents

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

// canonicalSections is the ordered list the structure extractor scores
// presence against (spec §4.8).
var canonicalSections = []string{
	"abstract", "introduction", "methods", "results", "discussion", "conclusion", "references",
}

// sectionVariants accepts plural, colon-suffixed, and line-start variants of
// each canonical section name, per spec §4.8's deterministic section locator.
var sectionVariants = map[string][]string{
	"abstract":     {"abstract"},
	"introduction": {"introduction", "background"},
	"methods":      {"methods", "method", "methodology", "materials and methods"},
	"results":      {"results", "result", "findings"},
	"discussion":   {"discussion"},
	"conclusion":   {"conclusion", "conclusions"},
	"references":   {"references", "bibliography", "works cited"},
}

const maxStructureInputChars = 8000

// StructureExtractor implements spec §4.8's paper-structure extractor.
type StructureExtractor struct {
	base   *agent.Base
	shaper providers.Shaper
}

// NewStructureExtractor builds the structure-extraction agent logic; wire it
// into an agent.Base via agent.NewBase with kind=types.KindStructureExtractor.
func NewStructureExtractor(shaper providers.Shaper) *StructureExtractor {
	return &StructureExtractor{shaper: shaper}
}

// BindBase lets the dispatcher attach the composed Base after construction —
// agents are built bottom-up (Logic first, then Base wraps it), but the
// helper methods on Base (ExecutePrompt) are needed inside ProcessWithConfig,
// so Base holds a reference back. This mirrors the teacher's BaseAgent
// composition rather than a constructor cycle.
func (s *StructureExtractor) BindBase(b *agent.Base) { s.base = b }

func (s *StructureExtractor) CanHandle(task *types.AgentTask) bool {
	text, ok := task.Input["textContent"].(string)
	return ok && strings.TrimSpace(text) != ""
}

func (s *StructureExtractor) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	text, _ := task.Input["textContent"].(string)
	n := len(text)
	if n > maxStructureInputChars {
		n = maxStructureInputChars
	}
	return time.Duration(2+n/2000) * time.Second
}

func (s *StructureExtractor) ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error) {
	text, _ := task.Input["textContent"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "textContent is empty", nil)
	}

	truncated := providers.TruncateTo(text, maxStructureInputChars)
	prompt := s.shaper.Analysis(
		"Extract the document's section structure. Reproduce each section heading and a short excerpt of its body.",
		truncated,
	)

	resp, err := s.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}

	sections := locateSections(resp.Text)
	score := scoreStructure(sections)

	return types.Value{
		"sections":        sections,
		"structureScore":  score,
		"paperId":         task.Input["paperId"],
	}, nil
}

// locateSections implements the deterministic section-locator: for each
// canonical section, find the first line (case-insensitively, optionally
// colon-suffixed) matching one of its variants, and take everything up to
// the next located heading as that section's body.
func locateSections(text string) map[string]string {
	lines := strings.Split(text, "\n")

	type hit struct {
		section string
		line    int
	}
	var hits []hit

	for lineIdx, line := range lines {
		trimmed := strings.TrimSpace(strings.ToLower(line))
		trimmed = strings.TrimSuffix(trimmed, ":")
		for section, variants := range sectionVariants {
			for _, variant := range variants {
				if trimmed == variant || isHeadingMatch(trimmed, variant) {
					hits = append(hits, hit{section: section, line: lineIdx})
					break
				}
			}
		}
	}

	sections := make(map[string]string)
	for i, h := range hits {
		end := len(lines)
		if i+1 < len(hits) {
			end = hits[i+1].line
		}
		if _, done := sections[h.section]; done {
			continue
		}
		body := strings.TrimSpace(strings.Join(lines[h.line+1:end], "\n"))
		sections[h.section] = body
	}
	return sections
}

var headingPunct = regexp.MustCompile(`^[#*\s\d.]+`)

func isHeadingMatch(trimmedLine, variant string) bool {
	stripped := headingPunct.ReplaceAllString(trimmedLine, "")
	return stripped == variant
}

// scoreStructure rates 0-100 from presence of canonical sections: each
// present section counts an equal share of 100, halved when its body is
// shorter than 20 characters. The order of sections does not affect the
// score. This is an Open Question resolution documented in DESIGN.md.
func scoreStructure(sections map[string]string) int {
	if len(sections) == 0 {
		return 0
	}
	perSection := 100.0 / float64(len(canonicalSections))
	score := 0.0
	for _, name := range canonicalSections {
		body, ok := sections[name]
		if !ok {
			continue
		}
		weight := perSection
		if len(strings.TrimSpace(body)) < 20 {
			weight *= 0.5 // present but suspiciously short
		}
		score += weight
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}
