package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one WebSocket connection. It follows at most one seat at a time.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string

	mu       sync.Mutex
	gameID   uuid.UUID
	playerID uuid.UUID
}

func (c *Client) seat() (gameID, playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID, c.playerID
}

func (c *Client) attach(gameID, playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID, c.playerID = gameID, playerID
}

func (c *Client) leave() {
	c.attach(uuid.Nil, uuid.Nil)
}

func (h *Hub) upgrader() *websocket.Upgrader {
	origins := h.cfg.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		remote: r.RemoteAddr,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump(h.cfg.WriteTimeout, h.cfg.ReadTimeout)
	go client.readPump(h)
}

// pingPeriod leaves a peer time to answer before its read deadline.
func pingPeriod(readTimeout time.Duration) time.Duration {
	return readTimeout * 9 / 10
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	if h.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	pongWait := h.cfg.ReadTimeout
	if pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("remote", c.remote), zap.Error(err))
			}
			return
		}
		if pongWait > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
		h.handleMessage(c, message)
	}
}

func (c *Client) writePump(writeWait, pongWait time.Duration) {
	var ping <-chan time.Time
	if pongWait > 0 {
		ticker := time.NewTicker(pingPeriod(pongWait))
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.conn.Close()

	deadline := func() {
		if writeWait > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		}
	}
	for {
		select {
		case message, ok := <-c.send:
			deadline()
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping:
			deadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
