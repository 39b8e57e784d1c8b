package server

import (
	"encoding/json"

	"github.com/liaptui/liaptui/internal/game"
)

// Message represents the base WebSocket message structure: a named event with
// a JSON payload.
type Message struct {
	Event MessageType     `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with a marshalled payload.
func NewMessage(event MessageType, data interface{}) (*Message, error) {
	if data == nil {
		return &Message{Event: event}, nil
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Event: event, Data: dataBytes}, nil
}

// eventMessage converts a machine or room event into its wire form.
func eventMessage(e game.Event) (*Message, error) {
	return NewMessage(MessageType(e.Type), e.Data)
}

// Client → Server Messages

type CreateRoomData struct {
	PlayerName string `json:"player_name"`
}

type JoinRoomData struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

type AddBotData struct {
	Slot *int `json:"slot,omitempty"`
}

type RemovePlayerData struct {
	PlayerID string `json:"player_id"`
}

type DeclareData struct {
	Value int `json:"value"`
}

type PlayData struct {
	PieceIndices []int `json:"piece_indices"`
}

type RedealDecisionData struct {
	Accept bool `json:"accept"`
}

type ClientReadyData struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomCreatedData struct {
	RoomID   string `json:"room_id"`
	HostName string `json:"host_name"`
}

type RoomJoinedData struct {
	RoomID  string              `json:"room_id"`
	Seat    int                 `json:"seat"`
	Players []game.PublicPlayer `json:"players"`
	Host    string              `json:"host"`
}

type RoomInfo struct {
	RoomID    string `json:"room_id"`
	Host      string `json:"host"`
	Occupants int    `json:"occupants"`
	Started   bool   `json:"started"`
}

type RoomListUpdateData struct {
	Rooms []RoomInfo `json:"rooms"`
}

type RoomUpdateData struct {
	RoomID  string              `json:"room_id"`
	Host    string              `json:"host"`
	Players []game.PublicPlayer `json:"players"`
	Started bool                `json:"started"`
}

type RoomClosedData struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type PlayerJoinedData struct {
	PlayerName string `json:"player_name"`
	Seat       int    `json:"seat"`
	IsBot      bool   `json:"is_bot"`
}

type PlayerLeftData struct {
	PlayerName string `json:"player_name"`
}

type PlayerDisconnectedData struct {
	PlayerName   string `json:"player_name"`
	CanReconnect bool   `json:"can_reconnect"`
	IsBot        bool   `json:"is_bot"`
}

type PlayerReconnectedData struct {
	PlayerName string `json:"player_name"`
}

type HostChangedData struct {
	OldHost string `json:"old_host"`
	NewHost string `json:"new_host"`
}

type QueuedMessagesData struct {
	Messages []*Message `json:"messages"`
}
