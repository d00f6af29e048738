package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStream = "notifications-test"

func newStreamClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	// Created up front so events published before Start are not skipped.
	require.NoError(t, rdb.XGroupCreateMkStream(context.Background(), testStream, "group", "$").Err())
	return rdb
}

func pending(t *testing.T, rdb *redis.Client) int64 {
	t.Helper()
	p, err := rdb.XPending(context.Background(), testStream, "group").Result()
	require.NoError(t, err)
	return p.Count
}

func publishTestNotification(t *testing.T, rdb *redis.Client) {
	t.Helper()
	err := NewPublisher(rdb).Publish(context.Background(), testStream, NotificationCreated, NotificationEvent{
		Entity: EntityMovements, Kind: KindCreate, Recipient: "ana",
	})
	require.NoError(t, err)
}

func TestSubscriber_DeliversPublishedEvents(t *testing.T) {
	rdb := newStreamClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan NotificationEvent, 1)
	sub := NewSubscriber(rdb, SubscriberConfig{
		Group: "group", Consumer: "c1", Stream: testStream,
		BlockDuration: 20 * time.Millisecond,
		Handler: func(_ context.Context, ev Event) error {
			var n NotificationEvent
			if err := DecodeData(ev, &n); err != nil {
				return err
			}
			received <- n
			return nil
		},
	})
	done := make(chan error, 1)
	go func() { done <- sub.Start(ctx) }()

	publishTestNotification(t, rdb)
	select {
	case n := <-received:
		assert.Equal(t, "ana", n.Recipient)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
	assert.Equal(t, int64(0), pending(t, rdb))
}

func TestSubscriber_RetriesFailedMessage(t *testing.T) {
	rdb := newStreamClient(t)
	ctx := context.Background()

	calls := 0
	sub := NewSubscriber(rdb, SubscriberConfig{
		Group: "group", Consumer: "c1", Stream: testStream,
		BlockDuration: 10 * time.Millisecond,
		RetryAfter:    10 * time.Millisecond,
		Handler: func(context.Context, Event) error {
			calls++
			if calls == 1 {
				return errors.New("hub unavailable")
			}
			return nil
		},
	})

	publishTestNotification(t, rdb)
	require.NoError(t, sub.readMessages(ctx))
	require.Equal(t, 1, calls)
	require.Equal(t, int64(1), pending(t, rdb), "failed message stays pending")

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, sub.retryPending(ctx))
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(0), pending(t, rdb))
}

func TestSubscriber_DropsAfterMaxDeliveries(t *testing.T) {
	rdb := newStreamClient(t)
	ctx := context.Background()

	calls := 0
	sub := NewSubscriber(rdb, SubscriberConfig{
		Group: "group", Consumer: "c1", Stream: testStream,
		BlockDuration: 10 * time.Millisecond,
		RetryAfter:    10 * time.Millisecond,
		MaxDeliveries: 2,
		Handler: func(context.Context, Event) error {
			calls++
			return errors.New("hub unavailable")
		},
	})

	publishTestNotification(t, rdb)
	require.NoError(t, sub.readMessages(ctx))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, sub.retryPending(ctx))
	require.Equal(t, 2, calls)
	require.Equal(t, int64(1), pending(t, rdb))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, sub.retryPending(ctx))
	assert.Equal(t, 2, calls, "not handled a third time")
	assert.Equal(t, int64(0), pending(t, rdb))
}

func TestSubscriber_FreshMessagesAreNotRetried(t *testing.T) {
	rdb := newStreamClient(t)
	ctx := context.Background()

	calls := 0
	sub := NewSubscriber(rdb, SubscriberConfig{
		Group: "group", Consumer: "c1", Stream: testStream,
		BlockDuration: 10 * time.Millisecond,
		RetryAfter:    time.Hour,
		Handler: func(context.Context, Event) error {
			calls++
			return errors.New("hub unavailable")
		},
	})

	publishTestNotification(t, rdb)
	require.NoError(t, sub.readMessages(ctx))
	require.NoError(t, sub.retryPending(ctx))
	assert.Equal(t, 1, calls, "not idle long enough to be claimed")
	assert.Equal(t, int64(1), pending(t, rdb))
}
