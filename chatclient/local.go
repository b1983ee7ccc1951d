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

// LocalConfig configures the locally-hosted fallback provider. Unlike the
// cloud configs, a zero-value LocalConfig is usable — construction must
// never fail even if the local server is not yet reachable (spec §4.1, §9).
type LocalConfig struct {
	BaseConfig
}

// LocalClient talks to a locally-hosted model server over an OpenAI-shaped
// wire protocol (the common shape for self-hosted inference servers).
type LocalClient struct {
	cfg  LocalConfig
	http httpDoer
}

// NewLocalClient always succeeds; no network probe happens here.
func NewLocalClient(cfg LocalConfig, doer httpDoer) *LocalClient {
	if doer == nil {
		doer = &http.Client{Timeout: 120 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "local-twin"
	}
	return &LocalClient{cfg: cfg, http: doer}
}

func (c *LocalClient) Provider() types.Provider { return types.ProviderLocal }

func (c *LocalClient) Call(ctx context.Context, prompt Prompt) (*Response, error) {
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

	resp, err := c.http.Do(req)
	if err != nil {
		// Unreachable local server: always retryable, never a fatal
		// classification, since there is nowhere further to fall back to.
		return nil, types.NewError(types.ErrProviderTransient, "call", string(c.Provider()), "local provider unreachable", err)
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
		return nil, fmt.Errorf("local: empty choices")
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
