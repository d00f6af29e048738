package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vivesbank/backend/shared/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

type sendResult int

const (
	sendQueued sendResult = iota
	sendFull
	sendClosed
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	id       string
	username string
	conn     *websocket.Conn
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(username string, conn *websocket.Conn) *client {
	return &client{
		id:       uuid.NewString(),
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *client) trySend(msg []byte) sendResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return sendClosed
	}
	select {
	case c.send <- msg:
		return sendQueued
	default:
		return sendFull
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve upgrades an authenticated request and streams notifications to it
// until either side closes the connection.
func (h *Hub) Serve(c *gin.Context) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Str("entity", h.entity).Msg("websocket upgrade failed")
		return
	}

	cl := newClient(username, conn)
	h.register(cl)
	cl.trySend([]byte(welcomeMessage(h.entity)))
	logger.Info().Str("entity", h.entity).Str("user", username).Str("conn", cl.id).Msg("websocket connected")

	go h.writePump(cl)
	h.readPump(cl)
}

func welcomeMessage(entity string) string {
	return "Actualizaciones WebSocket: " + entity + " - Vives Bank"
}

// readPump discards client messages; it exists to process control frames and
// detect disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		logger.Info().Str("entity", h.entity).Str("user", c.username).Str("conn", c.id).Msg("websocket disconnected")
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine writing to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
