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

// OpenAIConfig configures the OpenAI-shaped client.
type OpenAIConfig struct {
	BaseConfig
	Organization string
}

// OpenAIClient speaks the OpenAI chat-completions wire shape.
type OpenAIClient struct {
	cfg  OpenAIConfig
	http httpDoer
}

// NewOpenAIClient builds a client; a nil doer is replaced by an http.Client
// with a 60-second timeout.
func NewOpenAIClient(cfg OpenAIConfig, doer httpDoer) *OpenAIClient {
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{cfg: cfg, http: doer}
}

func (c *OpenAIClient) Provider() types.Provider { return types.ProviderPrimaryCloudA }

type openAIChatRequest struct {
	Model     string              `json:"model"`
	Messages  []openAIChatMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Call(ctx context.Context, prompt Prompt) (*Response, error) {
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
	if c.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.cfg.Organization)
	}

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
		return nil, fmt.Errorf("openai: empty choices")
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
