package chatclient

import "net/http"

// httpDoer is the seam between a concrete provider client and the transport.
// Production wiring passes nil, and each constructor then creates its own
// http.Client with a timeout; tests pass a fake.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseConfig holds the fields shared by every cloud provider, mirroring the
// teacher's BaseProviderConfig embedding pattern (llm/providers/config.go).
type BaseConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}
