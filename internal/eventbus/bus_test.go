// ABOUTME: Tests for the in-memory event bus
// ABOUTME: Covers fan-out, name filtering, context cleanup and close

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublish_FansOutByName(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	a, _ := b.Subscribe(ctx, ConfigUpdated)
	c, _ := b.Subscribe(ctx, ConfigUpdated)
	vis, _ := b.Subscribe(ctx, VisibilityChange)

	b.Publish(Event{Name: ConfigUpdated})

	assert.Equal(t, ConfigUpdated, receive(t, a).Name)
	ev := receive(t, c)
	assert.False(t, ev.At.IsZero())

	select {
	case <-vis:
		t.Fatal("visibility subscriber received a config event")
	default:
	}

	b.Publish(Event{Name: VisibilityChange, Visible: true})
	assert.True(t, receive(t, vis).Visible)
}

func TestPublish_DropsWhenFull(t *testing.T) {
	b := New(nil)
	ch, _ := b.Subscribe(context.Background(), ExitIntent)

	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(Event{Name: ExitIntent})
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestSubscribe_ContextCancelUnsubscribes(t *testing.T) {
	b := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := b.Subscribe(ctx, ConfigUpdated)
	require.Equal(t, 1, b.SubscriberCount(ConfigUpdated))

	cancel()
	require.Eventually(t, func() bool {
		return b.SubscriberCount(ConfigUpdated) == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok, "channel is closed after unsubscribe")
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := New(nil)
	_, id := b.Subscribe(context.Background(), ConfigUpdated)

	b.Unsubscribe(ConfigUpdated, id)
	b.Unsubscribe(ConfigUpdated, id)
	b.Unsubscribe("unknown", id)
	assert.Equal(t, 0, b.SubscriberCount(ConfigUpdated))
}

func TestClose(t *testing.T) {
	b := New(nil)
	ch, _ := b.Subscribe(context.Background(), ConfigUpdated)

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(context.Background(), ConfigUpdated)
	_, ok = <-late
	assert.False(t, ok)

	b.Publish(Event{Name: ConfigUpdated})
}
