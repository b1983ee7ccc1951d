package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

func TestFanOut_CollectsAllResults(t *testing.T) {
	pool := newTestPool(t)

	tasks := []workerpool.Task{
		func(ctx context.Context) (types.Value, error) { return types.Value{"n": 1}, nil },
		func(ctx context.Context) (types.Value, error) { return types.Value{"n": 2}, nil },
		func(ctx context.Context) (types.Value, error) { return types.Value{"n": 3}, nil },
	}

	results, err := FanOut(context.Background(), pool, tasks)
	require.NoError(t, err)
	require.Len(t, results, 3)

	sum := 0
	for _, r := range results {
		sum += r["n"].(int)
	}
	assert.Equal(t, 6, sum)
}

func TestFanOut_PropagatesFirstError(t *testing.T) {
	pool := newTestPool(t)

	tasks := []workerpool.Task{
		func(ctx context.Context) (types.Value, error) { return types.Value{"ok": true}, nil },
		func(ctx context.Context) (types.Value, error) { return nil, errors.New("boom") },
	}

	_, err := FanOut(context.Background(), pool, tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFanOut_EmptyTaskListReturnsEmptyResults(t *testing.T) {
	pool := newTestPool(t)
	results, err := FanOut(context.Background(), pool, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
