package game

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/liaptui/liaptui/internal/piece"
)

// EventType identifies an event emitted by the state machine.
type EventType string

const (
	EventPhaseChange   EventType = "phase_change"
	EventTurnResolved  EventType = "turn_resolved"
	EventRoundComplete EventType = "round_complete"
	EventScoreUpdate   EventType = "score_update"
	EventGameOver      EventType = "game_over"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is a broadcast produced by the state machine. Hands carries each
// seat's private view; the transport merges the recipient's own hand into the
// payload and never leaks another seat's.
type Event struct {
	Type  EventType
	Data  any
	Hands map[int][]piece.Piece
	// Critical events are queued for disconnected players and replayed on
	// reconnect; non-critical ones are dropped.
	Critical bool
}

// CriticalEventTypes lists the machine events queued across disconnects.
// Room-level events (host_changed and friends) extend this set at the
// transport layer.
var CriticalEventTypes = map[EventType]bool{
	EventPhaseChange:   true,
	EventTurnResolved:  true,
	EventRoundComplete: true,
	EventScoreUpdate:   true,
	EventGameOver:      true,
}

// PlayView describes one play within the current turn for broadcast.
type PlayView struct {
	Player string        `json:"player"`
	Pieces []piece.Piece `json:"pieces"`
	Type   string        `json:"type"`
	Points int           `json:"points"`
	// Valid is false when a follower failed to match the starter's play type;
	// such plays score nothing and cannot win the turn.
	Valid bool `json:"valid"`
}

// PhaseData is the per-phase auxiliary state embedded in phase_change
// broadcasts. Fields are populated per phase and drive both clients and the
// bot scheduler.
type PhaseData struct {
	// PREPARATION
	WeakPlayers      []string `json:"weak_players,omitempty"`
	AwaitingDecision []string `json:"awaiting_decision,omitempty"`
	RedealMultiplier int      `json:"redeal_multiplier,omitempty"`

	// DECLARATION
	DeclarationOrder []string       `json:"declaration_order,omitempty"`
	CurrentDeclarer  string         `json:"current_declarer,omitempty"`
	Declarations     map[string]int `json:"declarations,omitempty"`

	// TURN
	TurnStarter   string     `json:"turn_starter,omitempty"`
	CurrentPlayer string     `json:"current_player,omitempty"`
	RequiredCount int        `json:"required_count,omitempty"`
	Plays         []PlayView `json:"plays,omitempty"`
}

// PhaseChangeData is the payload of a phase_change broadcast.
type PhaseChangeData struct {
	Phase       Phase          `json:"phase"`
	RoundNumber int            `json:"round_number"`
	TurnNumber  int            `json:"turn_number"`
	PhaseData   PhaseData      `json:"phase_data"`
	Players     []PublicPlayer `json:"players_public"`
	// MyHand is filled in per recipient by the transport.
	MyHand   []piece.Piece `json:"my_hand,omitempty"`
	Version  uint64        `json:"version"`
	Checksum string        `json:"checksum"`
}

// TurnResolvedData is the payload of a turn_resolved broadcast.
type TurnResolvedData struct {
	TurnNumber int        `json:"turn_number"`
	Winner     string     `json:"winner"`
	PileSize   int        `json:"pile_size"`
	Plays      []PlayView `json:"plays"`
}

// PlayerScore is one row of a score_update or round_complete broadcast.
type PlayerScore struct {
	Player     string `json:"player"`
	Declared   int    `json:"declared"`
	Captured   int    `json:"captured"`
	RoundScore int    `json:"round_score"`
	Total      int    `json:"total"`
}

// ScoreUpdateData is the payload of a score_update broadcast.
type ScoreUpdateData struct {
	RoundNumber int           `json:"round_number"`
	Multiplier  int           `json:"multiplier"`
	Scores      []PlayerScore `json:"scores"`
}

// RoundCompleteData is the payload of a round_complete broadcast.
type RoundCompleteData struct {
	RoundNumber int           `json:"round_number"`
	Multiplier  int           `json:"multiplier"`
	Scores      []PlayerScore `json:"scores"`
	NextStarter string        `json:"next_starter"`
	GameOver    bool          `json:"game_over"`
}

// GameOverData is the payload of a game_over broadcast.
type GameOverData struct {
	Winner      string         `json:"winner"`
	RoundNumber int            `json:"round_number"`
	Players     []PublicPlayer `json:"players"`
}

// checksumPhaseData hashes the phase data so clients can detect desync
// without diffing the whole payload.
func checksumPhaseData(data PhaseData) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write(encoded)
	return fmt.Sprintf("%08x", h.Sum32())
}
