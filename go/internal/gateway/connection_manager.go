package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns the play websocket connections. Each connection
// drives its own PlaySession.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock
	metrics  Metrics
}

// Connection represents a WebSocket connection to a player
type Connection struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager
	Play    *PlaySession

	ctx    context.Context
	cancel context.CancelFunc
	sendMu sync.Mutex
	closed bool

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    54 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock, metrics Metrics) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		clock:   clock,
		metrics: metrics,
	}
}

// UpgradeConnection upgrades the request and starts a play session on it.
// newPlay builds the session given the connection's send function.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string, newPlay func(id string, send SendFunc) *PlaySession) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ctx:         ctx,
		cancel:      cancel,
		ConnectedAt: cm.clock.Now(),
	}
	connection.Play = newPlay(connection.ID, connection.enqueue)

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	connection.Play.SendSnapshot()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Msg("play connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true
	cm.metrics.ConnectionOpened()

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and tears down its play session.
// It is safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	if exists {
		delete(cm.connections, conn)
		cm.metrics.ConnectionClosed()
	}
	cm.mu.Unlock()

	if !exists {
		return
	}

	conn.cancel()
	go func() {
		// Close waits for a background finish call.
		conn.Play.Close()
		conn.closeSend()
	}()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("connection unregistered")
}

// CloseAll drops every connection, used on shutdown.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	states := make(map[string]int)
	for conn := range cm.connections {
		states[string(conn.Play.Controller().State())]++
	}

	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"session_states":    states,
	}
}

// enqueue marshals and queues a message without blocking the caller. A slow
// client loses messages rather than stalling the game.
func (c *Connection) enqueue(msgType ServerMessageType, payload interface{}) {
	data, err := encodeServerMessage(msgType, payload, c.Manager.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("type", string(msgType)).Msg("failed to marshal server message")
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("type", string(msgType)).
			Msg("connection send buffer full, dropping message")
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client commands and applies them in order.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.enqueue(ServerError, ErrorPayload{Message: "invalid message"})
		return
	}
	c.Manager.metrics.ClientMessage(string(msg.Type))

	log.Debug().
		Str("connection_id", c.ID).
		Str("type", string(msg.Type)).
		Msg("received client message")

	if err := c.Play.Handle(c.ctx, msg); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("type", string(msg.Type)).
			Msg("client message failed")
		c.enqueue(ServerError, ErrorPayload{Message: err.Error()})
	}
}

// Metrics is what the gateway reports on top of the controller metrics.
type Metrics interface {
	session.Metrics
	ConnectionOpened()
	ConnectionClosed()
	ClientMessage(msgType string)
}

type NoOpMetrics struct {
	session.NoOpMetrics
}

func (NoOpMetrics) ConnectionOpened() {}
func (NoOpMetrics) ConnectionClosed() {}
func (NoOpMetrics) ClientMessage(msgType string) {}
