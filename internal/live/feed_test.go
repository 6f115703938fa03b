package live

import (
	"testing"
	"time"
)

func TestFeedPublishSubscribe(t *testing.T) {
	feed := NewFeed()
	events, cancel := feed.Subscribe("anon_a")
	defer cancel()

	feed.Publish("anon_a", Event{Kind: "point_completed", PointID: 2})

	select {
	case ev := <-events:
		if ev.Kind != "point_completed" || ev.PointID != 2 {
			t.Errorf("got event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestFeedIsolatesPlayers(t *testing.T) {
	feed := NewFeed()
	events, cancel := feed.Subscribe("anon_a")
	defer cancel()

	feed.Publish("anon_b", Event{Kind: "progress"})

	select {
	case ev := <-events:
		t.Fatalf("received another player's event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeedCancelUnsubscribes(t *testing.T) {
	feed := NewFeed()
	_, cancel := feed.Subscribe("anon_a")

	if got := feed.SubscriberCount("anon_a"); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}
	cancel()
	if got := feed.SubscriberCount("anon_a"); got != 0 {
		t.Fatalf("SubscriberCount after cancel = %d, want 0", got)
	}

	// Publishing to a player with no subscribers must not panic.
	feed.Publish("anon_a", Event{Kind: "reset"})
}

func TestFeedSlowSubscriberDoesNotBlock(t *testing.T) {
	feed := NewFeed()
	_, cancel := feed.Subscribe("anon_a")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody drains the channel; publishes past the buffer are dropped.
		for i := 0; i < 100; i++ {
			feed.Publish("anon_a", Event{Kind: "progress", PointID: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
