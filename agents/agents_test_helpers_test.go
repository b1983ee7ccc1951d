package agents

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/chatclient"
	"github.com/docagents/substrate/external"
	"github.com/docagents/substrate/metering"
	"github.com/docagents/substrate/ratelimit"
	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

// scriptedClient replies with canned text in call order, or an error if set.
type scriptedClient struct {
	replies []string
	err     error
	calls   int
}

func (c *scriptedClient) Call(ctx context.Context, prompt chatclient.Prompt) (*chatclient.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	i := c.calls
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	c.calls++
	text := ""
	if i >= 0 {
		text = c.replies[i]
	}
	return &chatclient.Response{Text: text, Usage: &chatclient.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10}}, nil
}

func (c *scriptedClient) Provider() types.Provider { return types.ProviderPrimaryCloudA }

// routingClient picks its canned reply by matching a substring against the
// prompt's final user message, so it stays deterministic under concurrent
// fan-out where call order isn't guaranteed.
type routingClient struct {
	routes  []routeRule
	fallback string
}

type routeRule struct {
	contains string
	reply    string
}

func (c *routingClient) Call(ctx context.Context, prompt chatclient.Prompt) (*chatclient.Response, error) {
	text := ""
	if len(prompt.Messages) > 0 {
		text = prompt.Messages[len(prompt.Messages)-1].Text
	}
	for _, r := range c.routes {
		if strings.Contains(text, r.contains) {
			return &chatclient.Response{Text: r.reply, Usage: &chatclient.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10}}, nil
		}
	}
	return &chatclient.Response{Text: c.fallback, Usage: &chatclient.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10}}, nil
}

func (c *routingClient) Provider() types.Provider { return types.ProviderPrimaryCloudA }

func newBoundBase(t *testing.T, logic agent.Logic, kind types.AgentKind, client chatclient.ChatClient) *agent.Base {
	t.Helper()
	limiter := ratelimit.NewLimiter(nil, zap.NewNop())
	meter := metering.NewInstance(kind, types.ProviderPrimaryCloudA, nil, nil)
	binder := func() (chatclient.ChatClient, error) { return client, nil }
	return agent.NewBase(kind, types.ProviderPrimaryCloudA, logic, binder, limiter, nil, meter, nil, nil, zap.NewNop())
}

func newTestPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	pool := workerpool.New(workerpool.Config{CoreSize: 4, MaxSize: 4, QueueCapacity: 64})
	t.Cleanup(pool.Close)
	return pool
}

// fakeSearch is a scriptable external.Search double.
type fakeSearch struct {
	byTitle      map[string][]external.DiscoveredPaper
	resolveDOI   map[string]*external.DiscoveredPaper
	resolveArxiv map[string]*external.DiscoveredPaper
	err          error
}

func (f *fakeSearch) SearchByTitle(ctx context.Context, title string, cfg external.SearchConfig, limit int) ([]external.DiscoveredPaper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTitle[title], nil
}

func (f *fakeSearch) ResolveDOI(ctx context.Context, doi string) (*external.DiscoveredPaper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resolveDOI[doi], nil
}

func (f *fakeSearch) ResolveArxiv(ctx context.Context, id string) (*external.DiscoveredPaper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resolveArxiv[id], nil
}
