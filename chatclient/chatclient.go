// Package chatclient defines the capability boundary between the agent
// substrate and any model-serving provider. Providers are an external
// collaborator: the concrete clients in this package build HTTP requests and
// send them through the minimal httpDoer seam, so they stay testable without
// a real network.
package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/docagents/substrate/types"
)

// Role is a message participant in a prompt.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a prompt.
type Message struct {
	Role Role
	Text string
}

// Prompt is an ordered message sequence submitted to a provider.
type Prompt struct {
	Messages  []Message
	MaxTokens int
	Timeout   time.Duration
}

// Usage carries provider-reported token counts. Nil when the provider did
// not return usage metadata for a call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is what a provider call returns on success.
type Response struct {
	Text         string
	Usage        *Usage
	FinishReason string
}

// ChatClient is the single capability every provider binding exposes.
// Any error is raised verbatim; classification is the caller's job
// (see resilience.Classify).
type ChatClient interface {
	Call(ctx context.Context, prompt Prompt) (*Response, error)
	Provider() types.Provider
}

// Binder lazily produces a ChatClient. Agents hold a Binder instead of a
// ChatClient directly so construction never fails when a provider (especially
// the local one) is temporarily unreachable — first use re-attempts binding.
type Binder func() (ChatClient, error)

// LazyClient wraps a Binder, caching the first successful bind. Concurrent
// agent goroutines on the shared worker pool may call Get simultaneously
// before the first successful bind, so access to client is mutex-guarded.
type LazyClient struct {
	mu     sync.Mutex
	bind   Binder
	client ChatClient
}

// NewLazyClient returns a client that defers binding until first use.
func NewLazyClient(bind Binder) *LazyClient {
	return &LazyClient{bind: bind}
}

// Get returns the bound client, attempting to bind if not yet bound or if
// the previous bind attempt failed.
func (l *LazyClient) Get() (ChatClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}
	c, err := l.bind()
	if err != nil {
		return nil, err
	}
	l.client = c
	return l.client, nil
}
