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

// AnthropicConfig configures the Anthropic-shaped client.
type AnthropicConfig struct {
	BaseConfig
	AnthropicVersion string
}

// AnthropicClient speaks the Anthropic messages wire shape: auth via
// x-api-key, system prompt split out from the message list.
type AnthropicClient struct {
	cfg  AnthropicConfig
	http httpDoer
}

func NewAnthropicClient(cfg AnthropicConfig, doer httpDoer) *AnthropicClient {
	if doer == nil {
		doer = &http.Client{Timeout: 90 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = "2023-06-01"
	}
	return &AnthropicClient{cfg: cfg, http: doer}
}

func (c *AnthropicClient) Provider() types.Provider { return types.ProviderPrimaryCloudB }

type anthropicRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []openAIChatMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Call(ctx context.Context, prompt Prompt) (*Response, error) {
	reqBody := anthropicRequest{Model: c.cfg.Model, MaxTokens: prompt.MaxTokens}
	if reqBody.MaxTokens == 0 {
		reqBody.MaxTokens = 4096
	}
	for _, m := range prompt.Messages {
		if m.Role == RoleSystem {
			reqBody.System = m.Text
			continue
		}
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

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.AnthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, MapHTTPError(resp.StatusCode, readErrorBody(resp), string(c.Provider()))
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var text string
	if len(out.Content) > 0 {
		text = out.Content[0].Text
	}

	return &Response{
		Text:         text,
		FinishReason: out.StopReason,
		Usage: &Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
		},
	}, nil
}
