package chatclient

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/types"
)

func TestNewLocalClient_NeverFailsConstruction(t *testing.T) {
	client := NewLocalClient(LocalConfig{}, nil)
	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:11434/v1", client.cfg.BaseURL)
	assert.Equal(t, "local-twin", client.cfg.Model)
	assert.Equal(t, types.ProviderLocal, client.Provider())
}

func TestLocalClient_UnreachableServerIsClassifiedTransient(t *testing.T) {
	doer := &fakeDoer{err: errors.New("dial tcp: connection refused")}
	client := NewLocalClient(LocalConfig{}, doer)

	_, err := client.Call(context.Background(), Prompt{Messages: []Message{{Role: RoleUser, Text: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderTransient, types.Kind(err))
}

func TestLocalClient_CallSuccess(t *testing.T) {
	doer := &fakeDoer{response: jsonResponse(http.StatusOK, `{
		"choices": [{"message": {"role": "assistant", "content": "local reply"}}]
	}`)}
	client := NewLocalClient(LocalConfig{}, doer)

	resp, err := client.Call(context.Background(), Prompt{Messages: []Message{{Role: RoleUser, Text: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "local reply", resp.Text)
}
