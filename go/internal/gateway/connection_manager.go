package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/poker-everest/go/internal/poker"
	"github.com/mcdev12/poker-everest/go/internal/poker/events"
	"github.com/mcdev12/poker-everest/go/internal/session"
	"github.com/mcdev12/poker-everest/go/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// EventHandler defines what the gateway needs from the room service.
type EventHandler interface {
	Handle(ctx context.Context, connID string, event events.Event) error
	Disconnect(ctx context.Context, connID string) error
}

// ConnectionMetrics defines the transport counters the gateway reports.
type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	EventHandled(eventType, outcome string)
}

type noopConnectionMetrics struct{}

func (noopConnectionMetrics) ConnectionOpened()           {}
func (noopConnectionMetrics) ConnectionClosed()           {}
func (noopConnectionMetrics) EventHandled(string, string) {}

// Event outcomes reported to ConnectionMetrics.
const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
	outcomeMalformed = "malformed"
)

// ConnectionManager manages WebSocket connections for poker rooms
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// Room messages leave through one goroutine in issue order
	broadcastCh chan BroadcastMessage

	bus      Bus
	sessions *session.Registry
	handler  EventHandler
	metrics  ConnectionMetrics
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager
	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	HandlerTimeout  time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a message for every connection in a room, or for one
// connection when ConnID is set.
type BroadcastMessage struct {
	RoomID  string
	ConnID  string
	Message *events.Message
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		HandlerTimeout:  10 * time.Second,
		MaxMessageSize:  64 * 1024, // task backups can be large
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. metrics
// may be nil.
func NewConnectionManager(config ConnectionConfig, sessions *session.Registry, bus Bus, metrics ConnectionMetrics) *ConnectionManager {
	if metrics == nil {
		metrics = noopConnectionMetrics{}
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for high throughput
		bus:         bus,
		sessions:    sessions,
		metrics:     metrics,
	}
}

// SetEventHandler installs the room service. It must be called before the
// first connection is accepted.
func (cm *ConnectionManager) SetEventHandler(handler EventHandler) {
	cm.handler = handler
}

// Start subscribes to the room bus and processes outbound messages until
// ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	if err := cm.bus.Subscribe(cm.deliver); err != nil {
		return fmt.Errorf("subscribe to room bus: %w", err)
	}
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return nil
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn.ID] = conn
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.metrics.ConnectionOpened()
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", total).
		Msg("connection registered")
}

// unregisterConnection removes a connection and closes its send channel.
// Only the first call for a connection has any effect.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	if _, exists := cm.connections[conn.ID]; !exists {
		cm.mu.Unlock()
		return false
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)
	cm.mu.Unlock()

	cm.metrics.ConnectionClosed()
	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
	return true
}

// ToRoom queues msg for every connection in roomID, on any process.
func (cm *ConnectionManager) ToRoom(roomID string, msg *events.Message) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Message: msg}:
	default:
		log.Warn().Str("room_id", roomID).Msg("broadcast channel full, dropping message")
	}
}

// ToConnection queues msg for one local connection.
func (cm *ConnectionManager) ToConnection(connID string, msg *events.Message) {
	select {
	case cm.broadcastCh <- BroadcastMessage{ConnID: connID, Message: msg}:
	default:
		log.Warn().Str("connection_id", connID).Msg("broadcast channel full, dropping direct message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	frame, err := message.Message.Encode()
	if err != nil {
		log.Error().Err(err).Str("message_type", string(message.Message.Type)).Msg("failed to marshal message for broadcast")
		return
	}

	if message.ConnID != "" {
		cm.send([]string{message.ConnID}, frame)
		return
	}

	env := Envelope{RoomID: message.RoomID, Frame: frame}
	if migrated, ok := message.Message.Data.(events.RoomMigratedPayload); ok {
		env.MigratedFrom = migrated.OldRoomID
	}
	if err := cm.bus.Publish(env); err != nil {
		log.Error().Err(err).Str("room_id", message.RoomID).Msg("failed to publish room message")
	}
}

// deliver fans an envelope out to the local connections of its room.
func (cm *ConnectionManager) deliver(env Envelope) {
	if env.MigratedFrom != "" {
		if moved := cm.sessions.Migrate(env.MigratedFrom, env.RoomID); moved > 0 {
			log.Debug().
				Str("old_room_id", env.MigratedFrom).
				Str("room_id", env.RoomID).
				Int("connections", moved).
				Msg("connections migrated")
		}
	}

	targets := cm.sessions.Connections(env.RoomID)
	cm.send(targets, env.Frame)

	log.Debug().
		Str("room_id", env.RoomID).
		Int("connections", len(targets)).
		Msg("room message delivered")
}

// send writes frame to the named local connections. A connection whose
// buffer is full is closed.
func (cm *ConnectionManager) send(connIDs []string, frame []byte) {
	var slow []*Connection

	cm.mu.RLock()
	for _, id := range connIDs {
		conn, ok := cm.connections[id]
		if !ok {
			continue
		}
		select {
		case conn.Send <- frame:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// dispatch decodes one inbound frame and runs it through the handler. A
// panic ends only this event.
func (cm *ConnectionManager) dispatch(connID string, frame []byte) {
	defer telemetry.Recover("event", map[string]string{"connection_id": connID})

	event, err := events.Decode(frame)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", connID).Msg("dropping malformed frame")
		cm.metrics.EventHandled("unknown", outcomeMalformed)
		return
	}
	eventType := string(event.EventType())

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.HandlerTimeout)
	defer cancel()

	outcome := outcomeOK
	if err := cm.handler.Handle(ctx, connID, event); err != nil {
		if poker.IsRejection(err) {
			outcome = outcomeRejected
			log.Debug().
				Err(err).
				Str("connection_id", connID).
				Str("event_type", eventType).
				Msg("event rejected")
		} else {
			outcome = outcomeError
			log.Error().
				Err(err).
				Str("connection_id", connID).
				Str("event_type", eventType).
				Msg("failed to handle event")
			telemetry.CaptureError(err, map[string]string{"event_type": eventType})
		}
	}
	cm.metrics.EventHandled(eventType, outcome)
}

func (cm *ConnectionManager) disconnect(connID string) {
	defer telemetry.Recover("disconnect", map[string]string{"connection_id": connID})

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.HandlerTimeout)
	defer cancel()

	if err := cm.handler.Disconnect(ctx, connID); err != nil {
		log.Error().Err(err).Str("connection_id", connID).Msg("failed to remove player on disconnect")
	}
}

// Shutdown closes every open connection.
func (cm *ConnectionManager) Shutdown() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
	log.Info().Int("connections", len(conns)).Msg("closed websocket connections")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	total := len(cm.connections)
	cm.mu.RUnlock()

	rooms := cm.sessions.RoomCounts()
	return map[string]interface{}{
		"total_connections": total,
		"active_rooms":      len(rooms),
		"room_connections":  rooms,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
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
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client events until the connection drops, then removes
// the player from their room.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		c.Manager.disconnect(c.ID)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Manager.dispatch(c.ID, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
