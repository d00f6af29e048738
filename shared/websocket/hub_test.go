package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivesbank/backend/shared/events"
)

func attach(h *Hub, username string) *client {
	c := newClient(username, nil)
	h.register(c)
	return c
}

func TestHub_SendToUserOnlyReachesThatUser(t *testing.T) {
	h := NewHub(events.EntityMovements)
	ana1 := attach(h, "ana")
	ana2 := attach(h, "ana")
	bob := attach(h, "bob")

	sent := h.SendToUser("ana", []byte("hello"))
	assert.Equal(t, 2, sent)
	assert.Len(t, ana1.send, 1)
	assert.Len(t, ana2.send, 1)
	assert.Len(t, bob.send, 0)

	assert.Equal(t, 0, h.SendToUser("nobody", []byte("x")))
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(events.EntityCards)
	a := attach(h, "ana")
	b := attach(h, "bob")
	assert.Equal(t, 2, h.Broadcast([]byte("all")))
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}

func TestHub_SlowClientDropped(t *testing.T) {
	h := NewHub(events.EntityAccounts)
	c := attach(h, "ana")
	for i := 0; i < sendBuffer; i++ {
		require.Equal(t, 1, h.SendToUser("ana", []byte("m")))
	}
	assert.Equal(t, 0, h.SendToUser("ana", []byte("overflow")))
	assert.Equal(t, 0, h.Connections())
	assert.Equal(t, sendClosed, c.trySend([]byte("late")))
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	h := NewHub(events.EntityAccounts)
	c := attach(h, "ana")
	h.unregister(c)
	h.unregister(c)
	assert.Equal(t, 0, h.Connections())
}

func TestRouter_Handle(t *testing.T) {
	movements := NewHub(events.EntityMovements)
	accounts := NewHub(events.EntityAccounts)
	r := NewRouter(movements, accounts)
	c := attach(accounts, "ana")

	raw, _ := json.Marshal(events.Event{ID: "e1", Type: events.NotificationCreated, Data: events.NotificationEvent{
		Entity: events.EntityAccounts, Kind: events.KindUpdate, Recipient: "ana",
		Data: map[string]string{"iban": "ES9121000418450200051332"}, CreatedAt: "2024-01-01T00:00:00Z",
	}})
	var ev events.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.NoError(t, r.Handle(context.Background(), ev))

	require.Len(t, c.send, 1)
	var n Notification
	require.NoError(t, json.Unmarshal(<-c.send, &n))
	assert.Equal(t, events.EntityAccounts, n.Entity)
	assert.Equal(t, events.KindUpdate, n.Type)
	assert.Equal(t, "2024-01-01T00:00:00Z", n.CreatedAt)
}

func TestRouter_UnknownEntity(t *testing.T) {
	r := NewRouter(NewHub(events.EntityMovements))
	ev := events.Event{Type: events.NotificationCreated, Data: events.NotificationEvent{Entity: "OTHER"}}
	require.Error(t, r.Handle(context.Background(), ev))
	require.NoError(t, r.Handle(context.Background(), events.Event{Type: "ignored"}))
}

func TestWelcomeMessage(t *testing.T) {
	assert.Equal(t, "Actualizaciones WebSocket: MOVEMENTS - Vives Bank", welcomeMessage(events.EntityMovements))
}
