// Package providers supplies the thin per-provider specialization layer
// from spec §4.7: prompt-shaping helpers only, no behavioral logic. Grounded
// on the teacher's llm/providers/config.go (BaseProviderConfig embedding).
package providers

import (
	"fmt"
	"strings"

	"github.com/docagents/substrate/chatclient"
)

// Shaper decorates a raw instruction into a provider-appropriate prompt.
// Each concrete provider favors a different framing per spec §4.7.
type Shaper interface {
	// Analysis frames a request as deep structural/semantic analysis.
	Analysis(instruction, body string) chatclient.Prompt
	// JSONOutput frames a request that must return strict JSON.
	JSONOutput(instruction, body string) chatclient.Prompt
	// FactCheck frames a request as verification against known facts.
	FactCheck(claim, context string) chatclient.Prompt
	// Research frames a request that benefits from citation-aware answers.
	Research(question string) chatclient.Prompt
	// StepByStep frames a request as an explicit reasoning chain.
	StepByStep(instruction, body string) chatclient.Prompt
}

type baseShaper struct {
	systemPrefix string
}

func (s baseShaper) sys(extra string) chatclient.Message {
	text := s.systemPrefix
	if extra != "" {
		text = text + " " + extra
	}
	return chatclient.Message{Role: chatclient.RoleSystem, Text: text}
}

func (s baseShaper) Analysis(instruction, body string) chatclient.Prompt {
	return chatclient.Prompt{Messages: []chatclient.Message{
		s.sys("Perform careful structural and semantic analysis before answering."),
		{Role: chatclient.RoleUser, Text: fmt.Sprintf("%s\n\n%s", instruction, body)},
	}}
}

func (s baseShaper) JSONOutput(instruction, body string) chatclient.Prompt {
	return chatclient.Prompt{Messages: []chatclient.Message{
		s.sys("Respond with strict JSON only, no prose, no markdown fences."),
		{Role: chatclient.RoleUser, Text: fmt.Sprintf("%s\n\n%s", instruction, body)},
	}}
}

func (s baseShaper) FactCheck(claim, context string) chatclient.Prompt {
	return chatclient.Prompt{Messages: []chatclient.Message{
		s.sys("Verify the claim strictly against the supplied context. State your confidence as a number between 0 and 1."),
		{Role: chatclient.RoleUser, Text: fmt.Sprintf("Claim: %s\n\nContext:\n%s", claim, context)},
	}}
}

func (s baseShaper) Research(question string) chatclient.Prompt {
	return chatclient.Prompt{Messages: []chatclient.Message{
		s.sys("Answer using up-to-date research and cite sources inline."),
		{Role: chatclient.RoleUser, Text: question},
	}}
}

func (s baseShaper) StepByStep(instruction, body string) chatclient.Prompt {
	return chatclient.Prompt{Messages: []chatclient.Message{
		s.sys("Think step by step, showing each reasoning step before the final answer."),
		{Role: chatclient.RoleUser, Text: fmt.Sprintf("%s\n\n%s", instruction, body)},
	}}
}

// OpenAIShaper favors structured analysis and JSON-mode framing.
type OpenAIShaper struct{ baseShaper }

func NewOpenAIShaper() OpenAIShaper {
	return OpenAIShaper{baseShaper{systemPrefix: "You are a precise technical analysis assistant."}}
}

// AnthropicShaper favors careful step-by-step and fact-checking framing.
type AnthropicShaper struct{ baseShaper }

func NewAnthropicShaper() AnthropicShaper {
	return AnthropicShaper{baseShaper{systemPrefix: "You are a meticulous, cautious reasoning assistant."}}
}

// PerplexityShaper favors research framing with citations.
type PerplexityShaper struct{ baseShaper }

func NewPerplexityShaper() PerplexityShaper {
	return PerplexityShaper{baseShaper{systemPrefix: "You are a research assistant with access to current literature."}}
}

// LocalShaper keeps prompts short and direct — local models tend to have
// smaller context windows and weaker instruction following.
type LocalShaper struct{ baseShaper }

func NewLocalShaper() LocalShaper {
	return LocalShaper{baseShaper{systemPrefix: "Answer concisely and directly."}}
}

// TruncateTo clamps text to a maximum character length, used by agents that
// must bound prompt size (e.g. the structure extractor's 8,000-char cap).
func TruncateTo(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return strings.TrimSpace(text[:maxChars])
}
