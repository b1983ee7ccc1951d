package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docagents/substrate/types"
)

// PerplexityConfig configures the research-oriented client.
type PerplexityConfig struct {
	BaseConfig
}

// PerplexityClient is OpenAI-wire-compatible but answers with citations,
// used by agents that need research framing (§4.7).
type PerplexityClient struct {
	cfg  PerplexityConfig
	http httpDoer
}

func NewPerplexityClient(cfg PerplexityConfig, doer httpDoer) *PerplexityClient {
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.perplexity.ai"
	}
	return &PerplexityClient{cfg: cfg, http: doer}
}

func (c *PerplexityClient) Provider() types.Provider { return types.ProviderResearchCloud }

func (c *PerplexityClient) Call(ctx context.Context, prompt Prompt) (*Response, error) {
	reqBody := openAIChatRequest{Model: c.cfg.Model, MaxTokens: prompt.MaxTokens}
	for _, m := range prompt.Messages {
		reqBody.Messages = append(reqBody.Messages, openAIChatMessage{Role: string(m.Role), Content: m.Text})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	callCtx := ctx
	if prompt.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, prompt.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, MapHTTPError(resp.StatusCode, readErrorBody(resp), string(c.Provider()))
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("perplexity: empty choices")
	}

	return &Response{
		Text:         out.Choices[0].Message.Content,
		FinishReason: out.Choices[0].FinishReason,
		Usage: &Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}
