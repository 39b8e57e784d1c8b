package server

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/liaptui/liaptui/internal/ai"
	"github.com/liaptui/liaptui/internal/game"
	"github.com/liaptui/liaptui/internal/piece"
)

// botDedupTTL is how long a scheduled bot action suppresses rescheduling of
// the same pending action.
const botDedupTTL = 10 * time.Second

// actionSubmitter is the slice of Room the scheduler needs.
type actionSubmitter interface {
	EnqueueAction(action game.Action, conn *Connection) error
}

// prepGeneration identifies one deal within a round. It changes whenever an
// accepted redeal re-deals the hands.
type prepGeneration struct {
	round      int
	multiplier int
}

// BotScheduler watches a room's phase broadcasts and submits decider actions
// for bot-controlled seats after a short humanlike delay. Decisions are
// computed at observation time on the consumer loop; only the submission is
// deferred.
type BotScheduler struct {
	room   actionSubmitter
	logger *log.Logger
	clock  quartz.Clock
	rng    *rand.Rand
	cfg    *Config
	dedup  *dedupCache

	// lastPrep tracks the deal the pending redeal decisions were computed
	// from. Only touched from Observe on the consumer loop.
	lastPrep prepGeneration

	mu           sync.Mutex
	timers       []*quartz.Timer
	redealTimers []*quartz.Timer
	closed       bool
}

// NewBotScheduler wires a scheduler to its room.
func NewBotScheduler(room actionSubmitter, logger *log.Logger, clock quartz.Clock, rng *rand.Rand, cfg *Config) *BotScheduler {
	return &BotScheduler{
		room:   room,
		logger: logger.WithPrefix("bots"),
		clock:  clock,
		rng:    rng,
		cfg:    cfg,
		dedup:  newDedupCache(clock, botDedupTTL),
	}
}

// Observe inspects one event and schedules any bot actions it implies. It
// must only be called from the room's consumer loop.
func (s *BotScheduler) Observe(e game.Event) {
	if e.Type != game.EventPhaseChange {
		return
	}
	data, ok := e.Data.(game.PhaseChangeData)
	if !ok {
		return
	}

	players := make(map[string]game.PublicPlayer, len(data.Players))
	for _, p := range data.Players {
		players[p.Name] = p
	}

	switch data.Phase {
	case game.PhasePreparation:
		gen := prepGeneration{round: data.RoundNumber, multiplier: data.PhaseData.RedealMultiplier}
		if gen != s.lastPrep {
			// Fresh deal: decisions pending from the previous hands are
			// stale and must not be submitted.
			s.lastPrep = gen
			s.cancelRedealTimers()
		}
		for _, name := range data.PhaseData.AwaitingDecision {
			s.scheduleRedeal(name, players, data, e.Hands)
		}
	case game.PhaseDeclaration:
		s.scheduleDeclaration(data.PhaseData.CurrentDeclarer, players, data, e.Hands)
	case game.PhaseTurn:
		s.scheduleTurn(data.PhaseData.CurrentPlayer, players, data, e.Hands)
	}
}

func (s *BotScheduler) scheduleRedeal(name string, players map[string]game.PublicPlayer, data game.PhaseChangeData, hands map[int][]piece.Piece) {
	p, ok := players[name]
	if !ok || !p.IsBot {
		return
	}
	if s.seen(name, "redeal_decision", data) {
		return
	}

	var opponents []int
	for _, other := range data.Players {
		if other.Name != name {
			opponents = append(opponents, other.Score)
		}
	}
	accept := ai.AcceptRedeal(hands[p.Seat], ai.RedealContext{
		OwnScore:       p.Score,
		OpponentScores: opponents,
	}, s.rng)

	s.submitLater(game.Action{
		Type:     game.ActionRedealDecision,
		PlayerID: name,
		Accept:   accept,
	}, true)
}

func (s *BotScheduler) scheduleDeclaration(name string, players map[string]game.PublicPlayer, data game.PhaseChangeData, hands map[int][]piece.Piece) {
	p, ok := players[name]
	if !ok || !p.IsBot {
		return
	}
	if s.seen(name, "declare", data) {
		return
	}

	position := 0
	var previous []int
	for i, declarer := range data.PhaseData.DeclarationOrder {
		if declarer == name {
			position = i
			break
		}
		previous = append(previous, data.PhaseData.Declarations[declarer])
	}

	value := ai.ChooseDeclaration(hands[p.Seat], ai.DeclareContext{
		Position:             position,
		PreviousDeclarations: previous,
		MustDeclareNonzero:   p.ZeroStreak >= 2,
		RedealMultiplier:     data.PhaseData.RedealMultiplier,
	})
	s.submitLater(game.Action{
		Type:     game.ActionDeclare,
		PlayerID: name,
		Value:    value,
	}, false)
}

func (s *BotScheduler) scheduleTurn(name string, players map[string]game.PublicPlayer, data game.PhaseChangeData, hands map[int][]piece.Piece) {
	p, ok := players[name]
	if !ok || !p.IsBot {
		return
	}
	if s.seen(name, "play", data) {
		return
	}

	required := 0
	if len(data.PhaseData.Plays) > 0 {
		required = data.PhaseData.RequiredCount
	}
	indices := ai.ChoosePlay(hands[p.Seat], required)
	if len(indices) == 0 {
		s.logger.Error("decider produced no play", "bot", name, "turn", data.TurnNumber)
		return
	}
	s.submitLater(game.Action{
		Type:         game.ActionPlay,
		PlayerID:     name,
		PieceIndexes: indices,
	}, false)
}

// seen applies the (bot, action, round, turn, multiplier, phase) dedup key.
// The redeal multiplier keeps prompts from successive deals of the same round
// distinct; without it a bot weak in both deals would never answer the second.
func (s *BotScheduler) seen(name, actionType string, data game.PhaseChangeData) bool {
	key := fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		name, actionType, data.RoundNumber, data.TurnNumber, data.PhaseData.RedealMultiplier, data.Phase)
	return s.dedup.Seen(key)
}

// submitLater enqueues the action after a randomized think delay. Redeal
// decisions are tracked separately so a re-deal can cancel them.
func (s *BotScheduler) submitLater(action game.Action, redeal bool) {
	minDelay := time.Duration(s.cfg.Game.BotDelayMinMS) * time.Millisecond
	maxDelay := time.Duration(s.cfg.Game.BotDelayMaxMS) * time.Millisecond
	delay := minDelay
	if maxDelay > minDelay {
		delay += time.Duration(s.rng.Int64N(int64(maxDelay - minDelay)))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.logger.Debug("scheduling bot action", "bot", action.PlayerID, "type", action.Type, "delay", delay)
	timer := s.clock.AfterFunc(delay, func() {
		if err := s.room.EnqueueAction(action, nil); err != nil {
			s.logger.Debug("bot action not accepted", "bot", action.PlayerID, "error", err)
		}
	})
	if redeal {
		s.redealTimers = append(s.redealTimers, timer)
	} else {
		s.timers = append(s.timers, timer)
	}
	s.mu.Unlock()
}

// cancelRedealTimers stops redeal decisions that have not been submitted yet.
func (s *BotScheduler) cancelRedealTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timer := range s.redealTimers {
		timer.Stop()
	}
	s.redealTimers = nil
}

// Close stops all outstanding timers.
func (s *BotScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
	for _, timer := range s.redealTimers {
		timer.Stop()
	}
	s.redealTimers = nil
}
