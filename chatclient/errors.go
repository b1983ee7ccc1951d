package chatclient

import (
	"io"
	"net/http"
	"strings"

	"github.com/docagents/substrate/types"
)

// MapHTTPError maps a provider's HTTP status code to a structured error with
// the retry hint the resilience package will act on. Grounded on the
// teacher's llm/providers/common.go MapHTTPError, generalized to types.Error.
func MapHTTPError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return types.NewError(types.ErrProviderFatal, "call", provider, msg, nil)
	case http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return types.NewError(types.ErrProviderTransient, "call", provider, msg, nil)
	case 529: // model overloaded, used by some providers
		return types.NewError(types.ErrProviderTransient, "call", provider, msg, nil)
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "overloaded") || strings.Contains(lower, "capacity") {
			return types.NewError(types.ErrProviderTransient, "call", provider, msg, nil)
		}
		return types.NewError(types.ErrProviderFatal, "call", provider, msg, nil)
	default:
		if status >= 500 {
			return types.NewError(types.ErrProviderTransient, "call", provider, msg, nil)
		}
		return types.NewError(types.ErrUnknown, "call", provider, msg, nil)
	}
}

func readErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "failed to read error response"
	}
	return string(data)
}
