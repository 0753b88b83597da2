package live

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver_PublishReachesSubscribersOfPost(t *testing.T) {
	o := NewObserver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := o.Subscribe(ctx, "post-1")
	other := o.Subscribe(ctx, "post-2")

	o.Publish(Event{Type: EventReplyCreated, PostID: "post-1", Reply: &domain.Reply{ID: "r1"}})

	select {
	case ev := <-events:
		assert.Equal(t, EventReplyCreated, ev.Type)
		assert.Equal(t, "r1", ev.Reply.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for another post: %+v", ev)
	default:
	}
}

func TestObserver_UnsubscribeOnCancel(t *testing.T) {
	o := NewObserver()
	ctx, cancel := context.WithCancel(context.Background())

	events := o.Subscribe(ctx, "post-1")
	assert.Equal(t, 1, o.Subscribers("post-1"))

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel is closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	assert.Equal(t, 0, o.Subscribers("post-1"))

	// Публикация без подписчиков не паникует
	o.Publish(Event{Type: EventCountersUpdated, PostID: "post-1"})
}

func TestObserver_SlowSubscriberDoesNotBlock(t *testing.T) {
	o := NewObserver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := o.Subscribe(ctx, "post-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			o.Publish(Event{Type: EventCountersUpdated, PostID: "post-1", Counters: &domain.Counters{Likes: int64(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	require.Len(t, events, subscriberBuffer)
	first := <-events
	assert.Equal(t, int64(0), first.Counters.Likes)
}
