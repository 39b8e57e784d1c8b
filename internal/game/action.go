package game

import "time"

// ActionType identifies a queued input to the state machine.
type ActionType string

const (
	ActionStartGame      ActionType = "start_game"
	ActionDeclare        ActionType = "declare"
	ActionPlay           ActionType = "play"
	ActionRedealDecision ActionType = "redeal_decision"
	// ActionRedealTimeout is enqueued internally when the redeal decision
	// window expires; undecided weak players are treated as declining.
	ActionRedealTimeout ActionType = "redeal_timeout"
)

// Action is one serialized input. All actions for a room flow through its
// FIFO queue and are applied by the single consumer loop.
type Action struct {
	Type     ActionType
	PlayerID string

	// Value is the declaration target for ActionDeclare.
	Value int
	// PieceIndexes are hand indices for ActionPlay.
	PieceIndexes []int
	// Accept is the decision for ActionRedealDecision.
	Accept bool

	Timestamp time.Time
}

// ValidationError is a rejected action: reported to the originator as an
// error event, never mutating state.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}
