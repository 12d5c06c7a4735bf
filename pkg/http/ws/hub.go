package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub manages WebSocket connections per quiz session and routes messages to
// a session or to every session bound to a user.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection // session_id -> connection
	users       map[uuid.UUID][]uuid.UUID // user_id -> []session_id
	bound       map[uuid.UUID]uuid.UUID   // session_id -> user_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		users:       make(map[uuid.UUID][]uuid.UUID),
		bound:       make(map[uuid.UUID]uuid.UUID),
		logger:      logger,
	}
}

// RegisterConnection attaches a connection to a session, closing any previous one.
func (h *Hub) RegisterConnection(sessionID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[sessionID]; exists && old != conn {
		old.Close()
	}

	h.connections[sessionID] = conn
	h.logger.Info().Str("session_id", sessionID.String()).Msg("connection registered")
}

// UnregisterConnection removes conn if it is still the session's connection.
func (h *Hub) UnregisterConnection(sessionID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[sessionID]
	if !exists || current != conn {
		return
	}
	current.Close()
	delete(h.connections, sessionID)
	h.logger.Info().Str("session_id", sessionID.String()).Msg("connection unregistered")
}

// DropSession closes the session's connection and forgets its user binding.
func (h *Hub) DropSession(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[sessionID]; exists {
		conn.Close()
		delete(h.connections, sessionID)
	}
	h.unbindLocked(sessionID)
}

// BindUser associates a session with a signed-in user for user-targeted pushes.
func (h *Hub) BindUser(sessionID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.bound[sessionID]; ok {
		if current == userID {
			return
		}
		h.unbindLocked(sessionID)
	}
	h.bound[sessionID] = userID
	h.users[userID] = append(h.users[userID], sessionID)
}

// UnbindUser removes the session's user association.
func (h *Hub) UnbindUser(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(sessionID)
}

func (h *Hub) unbindLocked(sessionID uuid.UUID) {
	userID, ok := h.bound[sessionID]
	if !ok {
		return
	}
	delete(h.bound, sessionID)

	sessions := h.users[userID]
	for i, sid := range sessions {
		if sid == sessionID {
			sessions = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(sessions) == 0 {
		delete(h.users, userID)
	} else {
		h.users[userID] = sessions
	}
}

// SendToSession delivers a message to one session's connection.
func (h *Hub) SendToSession(sessionID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[sessionID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// SendToUser delivers a message to every connected session bound to the user.
// ErrConnectionNotFound is returned when none is connected to this hub.
func (h *Hub) SendToUser(userID uuid.UUID, msg Message) error {
	h.mu.RLock()
	var conns []*Connection
	for _, sid := range h.users[userID] {
		if conn, ok := h.connections[sid]; ok {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return ErrConnectionNotFound
	}

	var firstErr error
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil && firstErr == nil {
			firstErr = err
			h.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("send_to_user_failed")
		}
	}
	return firstErr
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 64),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump sends messages from the send queue and keeps the peer alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Str("type", msg.Type).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Session connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
