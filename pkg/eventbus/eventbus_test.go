package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBus(client)
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, ChannelApplication)
	require.NoError(t, err)

	event, err := NewEvent(EventPriorityChanged, ApplicationEvent{ApplicationID: "app-1", Priority: 3, PreviousPriority: 2})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, ChannelApplication, event))

	select {
	case received := <-events:
		require.NotNil(t, received)
		assert.Equal(t, EventPriorityChanged, received.Type)

		var payload ApplicationEvent
		require.NoError(t, received.Decode(&payload))
		assert.Equal(t, "app-1", payload.ApplicationID)
		assert.Equal(t, 3, payload.Priority)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, ChannelDepartment)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
