package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_FIFO(t *testing.T) {
	b := NewBuffer()

	require.True(t, b.Enqueue(QueueCommand{CommandID: "A"}))
	require.True(t, b.Enqueue(QueueCommand{CommandID: "B"}))
	require.True(t, b.Enqueue(Play{}))
	assert.Equal(t, 3, b.Len())

	a, ok := b.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "A", a.(QueueCommand).CommandID)

	a, ok = b.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "B", a.(QueueCommand).CommandID)

	a, ok = b.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, Play{}, a)

	_, ok = b.TryDequeue()
	assert.False(t, ok)
}

func TestBuffer_EnqueueAfterClose(t *testing.T) {
	b := NewBuffer()
	b.Close()
	b.Close() // idempotent

	assert.False(t, b.Enqueue(Play{}))
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_DrainProcessesRemainingAfterClose(t *testing.T) {
	b := NewBuffer()
	b.HandleAction(QueueCommand{CommandID: "A"})
	b.HandleAction(QueueCommand{CommandID: "B"})
	b.Close()

	var got []string
	err := b.Drain(context.Background(), func(_ context.Context, a Action) {
		got = append(got, a.(QueueCommand).CommandID)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestBuffer_DrainWakesOnEnqueue(t *testing.T) {
	b := NewBuffer()
	got := make(chan Action, 1)

	done := make(chan error, 1)
	go func() {
		done <- b.Drain(context.Background(), func(_ context.Context, a Action) {
			got <- a
		})
	}()

	b.Enqueue(Pause{})

	select {
	case a := <-got:
		assert.Equal(t, Pause{}, a)
	case <-time.After(time.Second):
		t.Fatal("drain did not wake on enqueue")
	}

	b.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drain did not return after close")
	}
}

func TestBuffer_DrainContextCancel(t *testing.T) {
	b := NewBuffer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Drain(ctx, func(context.Context, Action) {})
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("drain did not return after cancel")
	}
}
