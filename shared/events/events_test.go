package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// roundTrip mimics what a stream consumer sees after Redis stores the event.
func roundTrip(t *testing.T, ev Event) Event {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	out, err := DecodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"event": string(raw)}})
	require.NoError(t, err)
	return out
}

func TestDecodeMessage_InvalidFormat(t *testing.T) {
	_, err := DecodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"other": "x"}})
	require.Error(t, err)

	_, err = DecodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"event": "{not json"}})
	require.Error(t, err)
}

func TestDecodeData(t *testing.T) {
	ev := roundTrip(t, Event{ID: "e1", Type: NotificationCreated, Data: NotificationEvent{
		Entity: EntityAccounts, Kind: KindUpdate, Recipient: "ana", Data: map[string]string{"iban": "ES00"},
	}})
	var n NotificationEvent
	require.NoError(t, DecodeData(ev, &n))
	require.Equal(t, EntityAccounts, n.Entity)
	require.Equal(t, "ana", n.Recipient)
}

func TestKafkaForwarder_OnlyMovements(t *testing.T) {
	w := &fakeWriter{}
	f := &KafkaForwarder{writer: w}
	ctx := context.Background()

	movement := roundTrip(t, Event{ID: "e1", Type: NotificationCreated, Timestamp: time.Now(), Data: NotificationEvent{
		Entity: EntityMovements, Kind: KindCreate, Recipient: "ana",
	}})
	card := roundTrip(t, Event{ID: "e2", Type: NotificationCreated, Data: NotificationEvent{
		Entity: EntityCards, Kind: KindCreate, Recipient: "ana",
	}})
	other := roundTrip(t, Event{ID: "e3", Type: "something.else"})

	require.NoError(t, f.Handle(ctx, movement))
	require.NoError(t, f.Handle(ctx, card))
	require.NoError(t, f.Handle(ctx, other))
	require.Len(t, w.msgs, 1)
	require.Equal(t, []byte("ana"), w.msgs[0].Key)
}

func TestKafkaForwarder_WriteError(t *testing.T) {
	f := &KafkaForwarder{writer: &fakeWriter{err: errors.New("broker down")}}
	ev := roundTrip(t, Event{ID: "e1", Type: NotificationCreated, Data: NotificationEvent{Entity: EntityMovements, Recipient: "ana"}})
	require.Error(t, f.Handle(context.Background(), ev))
}
