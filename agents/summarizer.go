package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/types"
)

// SummaryType enumerates the three bands from spec §6.
type SummaryType string

const (
	SummaryBrief    SummaryType = "brief"
	SummaryStandard SummaryType = "standard"
	SummaryDetailed SummaryType = "detailed"
)

type wordBand struct{ min, max int }

// summaryBands are the explicit min/max word-count configs from spec §4.8.
var summaryBands = map[SummaryType]wordBand{
	SummaryBrief:    {min: 30, max: 75},
	SummaryStandard: {min: 50, max: 100},
	SummaryDetailed: {min: 150, max: 300},
}

var academicKeywords = []string{
	"method", "results", "analysis", "significant", "hypothesis",
	"dataset", "evaluation", "experiment", "findings", "conclusion",
}

// Summarizer implements spec §4.8's content summarizer — this is also the
// local twin used by the fallback dispatcher for every other agent kind's
// "lower-quality but functional" substitute shape, instantiated separately
// per kind.
type Summarizer struct {
	base   *agent.Base
	shaper providers.Shaper
}

func NewSummarizer(shaper providers.Shaper) *Summarizer {
	return &Summarizer{shaper: shaper}
}

func (s *Summarizer) BindBase(b *agent.Base) { s.base = b }

func (s *Summarizer) CanHandle(task *types.AgentTask) bool {
	text, ok := task.Input["textContent"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return false
	}
	if st, ok := task.Input["summaryType"].(string); ok {
		switch SummaryType(st) {
		case SummaryBrief, SummaryStandard, SummaryDetailed:
		default:
			return false
		}
	}
	return true
}

func (s *Summarizer) EstimateProcessingTime(task *types.AgentTask) time.Duration {
	text, _ := task.Input["textContent"].(string)
	return time.Duration(1+len(text)/3000) * time.Second
}

func (s *Summarizer) ProcessWithConfig(ctx context.Context, task *types.AgentTask) (types.Value, error) {
	text, _ := task.Input["textContent"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "textContent is empty", nil)
	}

	summaryType := SummaryStandard
	if st, ok := task.Input["summaryType"].(string); ok && st != "" {
		summaryType = SummaryType(st)
	}
	band, ok := summaryBands[summaryType]
	if !ok {
		return nil, types.NewError(types.ErrInvalidInput, "process_with_config", "", "unknown summaryType: "+string(summaryType), nil)
	}

	instruction := fmt.Sprintf(
		"Summarize the following text in %d-%d words. Keep key academic terminology intact.",
		band.min, band.max,
	)
	prompt := s.shaper.Analysis(instruction, text)

	resp, err := s.base.ExecutePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}

	summary := strings.TrimSpace(resp.Text)
	wordCount := len(strings.Fields(summary))
	quality := summaryQuality(summary, wordCount, band)

	return types.Value{
		"paperId": task.Input["paperId"],
		"summary": types.Value{
			"text":         summary,
			"wordCount":    wordCount,
			"summaryType":  string(summaryType),
			"qualityScore": quality,
		},
	}, nil
}

// summaryQuality derives a 0-100 score from adherence to the target band
// plus the presence of academic keywords, per spec §4.8.
func summaryQuality(summary string, wordCount int, band wordBand) int {
	adherence := 100.0
	switch {
	case wordCount < band.min:
		deficit := float64(band.min-wordCount) / float64(band.min)
		adherence = max0(100 - deficit*100)
	case wordCount > band.max:
		excess := float64(wordCount-band.max) / float64(band.max)
		adherence = max0(100 - excess*100)
	}

	lower := strings.ToLower(summary)
	hits := 0
	for _, kw := range academicKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	keywordScore := float64(hits) / float64(len(academicKeywords)) * 100

	score := 0.7*adherence + 0.3*keywordScore
	if score > 100 {
		score = 100
	}
	return int(score)
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
