package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docagents/substrate/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.CoreSize)
	assert.Equal(t, 16, cfg.MaxSize)
	assert.Equal(t, 256, cfg.QueueCapacity)
}

func TestPool_SubmitAndWait(t *testing.T) {
	p := New(Config{CoreSize: 2, MaxSize: 2, QueueCapacity: 4})
	defer p.Close()

	future, err := p.Submit(context.Background(), func(ctx context.Context) (types.Value, error) {
		return types.Value{"result": 42}, nil
	})
	require.NoError(t, err)

	value, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value["result"])
}

func TestPool_PropagatesTaskError(t *testing.T) {
	p := New(Config{CoreSize: 1, MaxSize: 1, QueueCapacity: 1})
	defer p.Close()

	boom := errors.New("boom")
	future, err := p.Submit(context.Background(), func(ctx context.Context) (types.Value, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = future.Wait(context.Background())
	assert.Equal(t, boom, err)
}

func TestPool_WaitRespectsCallerCancellation(t *testing.T) {
	p := New(Config{CoreSize: 1, MaxSize: 1, QueueCapacity: 1})
	defer p.Close()

	block := make(chan struct{})
	future, err := p.Submit(context.Background(), func(ctx context.Context) (types.Value, error) {
		<-block
		return types.Value{}, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = future.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}

func TestPool_SubmitAfterCloseFails(t *testing.T) {
	p := New(Config{CoreSize: 1, MaxSize: 1, QueueCapacity: 1})
	p.Close()

	_, err := p.Submit(context.Background(), func(ctx context.Context) (types.Value, error) {
		return types.Value{}, nil
	})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_SnapshotReportsOccupancy(t *testing.T) {
	p := New(Config{CoreSize: 2, MaxSize: 2, QueueCapacity: 4})
	defer p.Close()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for i := 0; i < 2; i++ {
		_, err := p.Submit(context.Background(), func(ctx context.Context) (types.Value, error) {
			started.Done()
			<-release
			return types.Value{}, nil
		})
		require.NoError(t, err)
	}
	started.Wait()

	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Active)
	assert.Equal(t, 2, snap.Capacity)
	assert.Equal(t, types.LoadHigh, snap.Status())

	close(release)
}

func TestPool_ConcurrentTasksAllComplete(t *testing.T) {
	p := New(Config{CoreSize: 4, MaxSize: 4, QueueCapacity: 64})
	defer p.Close()

	var completed atomic.Int64
	futures := make([]*Future, 50)
	for i := 0; i < 50; i++ {
		f, err := p.Submit(context.Background(), func(ctx context.Context) (types.Value, error) {
			completed.Add(1)
			return types.Value{}, nil
		})
		require.NoError(t, err)
		futures[i] = f
	}
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int64(50), completed.Load())
}

func TestSnapshot_Status(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want types.LoadStatus
	}{
		{"low occupancy", Snapshot{Active: 1, Capacity: 10}, types.LoadLow},
		{"medium occupancy", Snapshot{Active: 7, Capacity: 10}, types.LoadMedium},
		{"high occupancy", Snapshot{Active: 10, Capacity: 10}, types.LoadHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.Status())
		})
	}
}
