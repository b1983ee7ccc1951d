package metering

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer estimates prompt tokens ahead of a call, so the rate limiter can
// charge the token-throughput budget before the provider reports real usage.
// The estimate is not compared with the usage a provider reports.
type Tokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTokenizer loads a cl100k_base encoding, the closest ecosystem
// equivalent to a model-agnostic estimator across the providers in
// spec §4.7 (OpenAI, Anthropic, Perplexity, local all tokenize similarly
// enough for admission-control purposes).
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Tokenizer{enc: enc}, nil
}

// EstimateTokens counts tokens in a single string.
func (t *Tokenizer) EstimateTokens(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}
