package server

// Note: game events (phase_change, turn_resolved, etc.) are defined in
// internal/game/events.go and travel as WebSocket messages under the same
// names.

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeCreateRoom     MessageType = "create_room"
	MessageTypeJoinRoom       MessageType = "join_room"
	MessageTypeLeaveRoom      MessageType = "leave_room"
	MessageTypeLeaveGame      MessageType = "leave_game"
	MessageTypeAddBot         MessageType = "add_bot"
	MessageTypeRemovePlayer   MessageType = "remove_player"
	MessageTypeStartGame      MessageType = "start_game"
	MessageTypeDeclare        MessageType = "declare"
	MessageTypePlay           MessageType = "play"
	MessageTypeRequestRedeal  MessageType = "request_redeal"
	MessageTypeAcceptRedeal   MessageType = "accept_redeal"
	MessageTypeDeclineRedeal  MessageType = "decline_redeal"
	MessageTypeRedealDecision MessageType = "redeal_decision"
	MessageTypeClientReady    MessageType = "client_ready"
	MessageTypePing           MessageType = "ping"
	MessageTypeAck            MessageType = "ack"
	MessageTypeSyncRequest    MessageType = "sync_request"

	// Server to client messages
	MessageTypeRoomCreated        MessageType = "room_created"
	MessageTypeRoomJoined         MessageType = "room_joined"
	MessageTypeRoomListUpdate     MessageType = "room_list_update"
	MessageTypeRoomUpdate         MessageType = "room_update"
	MessageTypeRoomClosed         MessageType = "room_closed"
	MessageTypePlayerJoined       MessageType = "player_joined"
	MessageTypePlayerLeft         MessageType = "player_left"
	MessageTypePlayerDisconnected MessageType = "player_disconnected"
	MessageTypePlayerReconnected  MessageType = "player_reconnected"
	MessageTypeHostChanged        MessageType = "host_changed"
	MessageTypeQueuedMessages     MessageType = "queued_messages"
	MessageTypeError              MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
