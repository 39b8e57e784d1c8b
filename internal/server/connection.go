package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/liaptui/liaptui/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Protocol-error rate limit: more than protoErrLimit malformed messages
	// inside protoErrWindow closes the channel.
	protoErrLimit  = 8
	protoErrWindow = 10 * time.Second
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	logger    *log.Logger
	registry  *Registry
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu         sync.RWMutex
	playerName string
	room       *Room
	protoErrs  []time.Time
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, registry *Registry) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		send:     make(chan *Message, 256),
		logger:   logger.WithPrefix("conn"),
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done exposes the connection lifetime for cleanup hooks.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()

		if room := c.currentRoom(); room != nil {
			room.HandleDisconnect(c)
		}
		c.registry.unwatchLobby(c)
	})
	return err
}

// Send queues a message for delivery to the client.
func (c *Connection) Send(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown.
			c.logger.Debug("attempted to send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) sendEvent(event MessageType, data interface{}) {
	msg, err := NewMessage(event, data)
	if err != nil {
		c.logger.Error("failed to encode message", "event", event, "error", err)
		return
	}
	_ = c.Send(msg)
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	c.sendEvent(MessageTypeError, ErrorData{Code: code, Message: message})
}

// PlayerName returns the name bound to this channel, if any.
func (c *Connection) PlayerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerName
}

func (c *Connection) setSession(name string, room *Room) {
	c.mu.Lock()
	c.playerName = name
	c.room = room
	c.mu.Unlock()
	c.registry.unwatchLobby(c)
}

func (c *Connection) currentRoom() *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

// detachRoom drops the room association, returning the channel to the lobby.
func (c *Connection) detachRoom() {
	c.mu.Lock()
	c.room = nil
	c.mu.Unlock()
	c.registry.watchLobby(c)
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// protocolError reports a malformed inbound message and closes the channel
// when the sender keeps offending.
func (c *Connection) protocolError(message string) {
	c.sendError("invalid_message", message)

	c.mu.Lock()
	now := time.Now()
	cutoff := now.Add(-protoErrWindow)
	kept := c.protoErrs[:0]
	for _, at := range c.protoErrs {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	c.protoErrs = append(kept, now)
	overLimit := len(c.protoErrs) > protoErrLimit
	c.mu.Unlock()

	if overLimit {
		c.logger.Warn("closing connection after repeated protocol errors", "player", c.PlayerName())
		_ = c.Close()
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "event", msg.Event, "player", c.PlayerName())

	switch msg.Event {
	case MessageTypeCreateRoom:
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse create_room data")
			return
		}
		c.handleCreateRoom(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse join_room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeClientReady:
		var data ClientReadyData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse client_ready data")
			return
		}
		c.handleClientReady(data)

	case MessageTypeLeaveRoom, MessageTypeLeaveGame:
		c.handleLeave()

	case MessageTypeAddBot:
		var data AddBotData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.protocolError("failed to parse add_bot data")
				return
			}
		}
		c.withRoom(func(room *Room) error {
			return room.AddBot(c.PlayerName(), data.Slot)
		})

	case MessageTypeRemovePlayer:
		var data RemovePlayerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse remove_player data")
			return
		}
		c.withRoom(func(room *Room) error {
			return room.RemovePlayer(c.PlayerName(), data.PlayerID)
		})

	case MessageTypeStartGame:
		c.withRoom(func(room *Room) error {
			return room.Start(c.PlayerName())
		})

	case MessageTypeDeclare:
		var data DeclareData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse declare data")
			return
		}
		c.enqueue(game.Action{Type: game.ActionDeclare, Value: data.Value})

	case MessageTypePlay:
		var data PlayData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse play data")
			return
		}
		c.enqueue(game.Action{Type: game.ActionPlay, PieceIndexes: data.PieceIndices})

	case MessageTypeRedealDecision:
		var data RedealDecisionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.protocolError("failed to parse redeal_decision data")
			return
		}
		c.enqueue(game.Action{Type: game.ActionRedealDecision, Accept: data.Accept})

	case MessageTypeRequestRedeal, MessageTypeAcceptRedeal:
		c.enqueue(game.Action{Type: game.ActionRedealDecision, Accept: true})

	case MessageTypeDeclineRedeal:
		c.enqueue(game.Action{Type: game.ActionRedealDecision, Accept: false})

	case MessageTypeSyncRequest:
		c.handleSyncRequest()

	case MessageTypePing:
		c.sendEvent(MessageTypeAck, nil)

	case MessageTypeAck:
		// Nothing to do.

	default:
		c.protocolError("unknown event type: " + msg.Event.String())
	}
}

func (c *Connection) handleCreateRoom(data CreateRoomData) {
	if data.PlayerName == "" {
		c.sendError("invalid_name", "player name required")
		return
	}
	if c.currentRoom() != nil {
		c.sendError("already_in_room", "leave the current room first")
		return
	}

	room, err := c.registry.CreateRoom()
	if err != nil {
		c.sendError("create_failed", err.Error())
		return
	}
	if _, err := room.Join(data.PlayerName, c); err != nil {
		room.Close("host failed to join")
		c.sendError("create_failed", err.Error())
		return
	}
	c.setSession(data.PlayerName, room)
	c.sendEvent(MessageTypeRoomCreated, RoomCreatedData{
		RoomID:   room.ID,
		HostName: data.PlayerName,
	})
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	if data.PlayerName == "" {
		c.sendError("invalid_name", "player name required")
		return
	}
	if c.currentRoom() != nil {
		c.sendError("already_in_room", "leave the current room first")
		return
	}

	room := c.registry.GetRoom(data.RoomID)
	if room == nil {
		c.sendError("room_not_found", "no room with id "+data.RoomID)
		return
	}

	// A join into a running game only succeeds as a session reclaim.
	if room.Started() {
		if err := room.Reclaim(data.PlayerName, c); err != nil {
			c.sendError("join_failed", err.Error())
			return
		}
		c.setSession(data.PlayerName, room)
		return
	}

	seat, err := room.Join(data.PlayerName, c)
	if err != nil {
		c.sendError("join_failed", err.Error())
		return
	}
	c.setSession(data.PlayerName, room)
	c.sendEvent(MessageTypeRoomJoined, room.RoomJoinedPayload(seat))
}

func (c *Connection) handleClientReady(data ClientReadyData) {
	if c.currentRoom() != nil {
		c.sendError("already_in_room", "session already active")
		return
	}
	room := c.registry.GetRoom(data.RoomID)
	if room == nil {
		c.sendError("room_not_found", "no room with id "+data.RoomID)
		return
	}
	if err := room.Reclaim(data.PlayerName, c); err != nil {
		c.sendError("reclaim_failed", err.Error())
		return
	}
	c.setSession(data.PlayerName, room)
}

func (c *Connection) handleLeave() {
	room := c.currentRoom()
	if room == nil {
		c.sendError("not_in_room", "no room to leave")
		return
	}
	room.Leave(c.PlayerName())
	c.sendEvent(MessageTypeAck, nil)
}

func (c *Connection) handleSyncRequest() {
	room := c.currentRoom()
	if room == nil {
		c.sendError("not_in_room", "no room to sync")
		return
	}
	snapshot, ok := room.SyncSnapshot(c.PlayerName())
	if !ok {
		c.sendError("not_started", "no game state to sync")
		return
	}
	c.sendEvent(MessageType(game.EventPhaseChange), snapshot)
}

func (c *Connection) withRoom(fn func(*Room) error) {
	room := c.currentRoom()
	if room == nil {
		c.sendError("not_in_room", "join a room first")
		return
	}
	if err := fn(room); err != nil {
		c.sendError("request_failed", err.Error())
	}
}

func (c *Connection) enqueue(action game.Action) {
	room := c.currentRoom()
	if room == nil {
		c.sendError("not_in_room", "join a room first")
		return
	}
	action.PlayerID = c.PlayerName()
	if err := room.EnqueueAction(action, c); err != nil {
		c.sendError("enqueue_failed", err.Error())
	}
}
