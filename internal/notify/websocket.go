package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"civicwatch/internal/auth"
	"civicwatch/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 16
)

// Message types exchanged over the socket.
const (
	MessageAuthenticate  = "authenticate"
	MessageAuthenticated = "authenticated"
	MessageNotification  = "notification"
	MessageError         = "error"
)

var (
	// ErrConnClosed is returned when sending to a connection that has gone away.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client has not drained its buffer.
	ErrSendBufferFull = errors.New("send buffer full")
)

// TokenVerifier resolves bearer tokens to identities.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Envelope is the wire format of every server and client message.
type Envelope struct {
	Type    string              `json:"type"`
	Token   string              `json:"token,omitempty"`
	UserID  string              `json:"userId,omitempty"`
	Message string              `json:"message,omitempty"`
	Data    *model.Notification `json:"data,omitempty"`
}

// Hub upgrades HTTP requests to websocket connections and binds them to users.
type Hub struct {
	registry *Registry
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a hub. allowedOrigin "*" accepts any browser origin.
func NewHub(registry *Registry, verifier TokenVerifier, allowedOrigin string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// ServeHTTP upgrades the request. A "token" query parameter authenticates immediately;
// otherwise the client sends an authenticate message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &client{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	h.logger.Debug("websocket connected", "conn_id", client.id, "remote", r.RemoteAddr)

	go client.writePump()

	if token := r.URL.Query().Get("token"); token != "" {
		h.authenticate(client, token)
	}
	h.readPump(client)
}

func (h *Hub) authenticate(c *client, token string) {
	identity, err := h.verifier.Verify(token)
	if err != nil {
		_ = c.enqueue(Envelope{Type: MessageError, Message: "invalid or expired token"})
		return
	}
	// A connection belongs to one user at a time.
	if previous, ok := h.registry.Unregister(c); ok && previous != identity.ID {
		h.logger.Debug("websocket re-authenticated", "conn_id", c.id, "previous_user_id", previous)
	}
	h.registry.Register(identity.ID, c)
	h.logger.Debug("websocket authenticated", "conn_id", c.id, "user_id", identity.ID)
	_ = c.enqueue(Envelope{Type: MessageAuthenticated, UserID: identity.ID.String()})
}

func (h *Hub) readPump(c *client) {
	defer func() {
		if userID, ok := h.registry.Unregister(c); ok {
			h.logger.Debug("websocket disconnected", "conn_id", c.id, "user_id", userID)
		}
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "conn_id", c.id, "error", err)
			}
			return
		}

		var msg Envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = c.enqueue(Envelope{Type: MessageError, Message: "malformed message"})
			continue
		}
		switch msg.Type {
		case MessageAuthenticate:
			h.authenticate(c, msg.Token)
		default:
			_ = c.enqueue(Envelope{Type: MessageError, Message: "unknown message type"})
		}
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) ID() string {
	return c.id
}

// Send queues a notification without blocking.
func (c *client) Send(n model.Notification) error {
	return c.enqueue(Envelope{Type: MessageNotification, Data: &n})
}

func (c *client) enqueue(msg Envelope) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
