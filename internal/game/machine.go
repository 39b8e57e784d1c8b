package game

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/liaptui/liaptui/internal/piece"
	"github.com/liaptui/liaptui/internal/rules"
)

// maxTransitionDepth bounds reentrant transitions so a buggy handler chain
// cannot recurse forever.
const maxTransitionDepth = 8

// Machine drives one game through its phases. It is not safe for concurrent
// use; the owning room calls it only from its consumer loop.
type Machine struct {
	logger *log.Logger
	rng    *rand.Rand
	game   *Game

	// emit publishes an event to the room's broadcaster. nextVersion stamps
	// every phase_change with the room's monotonic version counter.
	emit        func(Event)
	nextVersion func() uint64

	depth      int
	lastChange PhaseChangeData
}

// NewMachine wires a machine around a fresh game. emit and nextVersion must be
// non-nil; both are invoked from within HandleAction.
func NewMachine(logger *log.Logger, rng *rand.Rand, g *Game, emit func(Event), nextVersion func() uint64) *Machine {
	return &Machine{
		logger:      logger,
		rng:         rng,
		game:        g,
		emit:        emit,
		nextVersion: nextVersion,
	}
}

// Game exposes the aggregate for same-goroutine reads by the room.
func (m *Machine) Game() *Game {
	return m.game
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.game.Phase
}

// Snapshot returns the last broadcast phase_change payload plus a fresh copy
// of every hand, for serving sync requests without replaying the machine.
func (m *Machine) Snapshot() (PhaseChangeData, map[int][]piece.Piece) {
	return m.lastChange, m.game.Hands()
}

// HandleAction applies one queued action. A nil return means the action was
// accepted and any resulting broadcasts were emitted; a *ValidationError means
// the action was rejected and state is unchanged.
func (m *Machine) HandleAction(action Action) error {
	changed, err := m.handle(action)
	if err != nil {
		return err
	}
	if next, ok := m.checkTransition(); ok {
		m.transitionTo(next)
		return nil
	}
	if changed {
		m.broadcastPhase()
	}
	return nil
}

func (m *Machine) handle(action Action) (bool, error) {
	switch action.Type {
	case ActionStartGame:
		return m.handleStart(action)
	case ActionRedealDecision:
		return m.handleRedealDecision(action)
	case ActionRedealTimeout:
		return m.handleRedealTimeout()
	case ActionDeclare:
		return m.handleDeclare(action)
	case ActionPlay:
		return m.handlePlay(action)
	default:
		return false, validationErrorf("unknown_action", "unknown action type "+string(action.Type))
	}
}

func (m *Machine) handleStart(action Action) (bool, error) {
	if m.game.Phase != PhaseWaiting {
		return false, validationErrorf("phase_mismatch", "game already started")
	}
	m.transitionTo(PhasePreparation)
	return false, nil
}

func (m *Machine) handleRedealDecision(action Action) (bool, error) {
	if m.game.Phase != PhasePreparation {
		return false, validationErrorf("phase_mismatch", "no redeal decision pending")
	}
	p := m.game.PlayerByID(action.PlayerID)
	if p == nil {
		return false, validationErrorf("unknown_player", "player not in game")
	}
	if !m.game.awaitingRedeal[p.Seat] {
		return false, validationErrorf("not_awaiting", "no redeal decision pending for "+p.Name)
	}

	delete(m.game.awaitingRedeal, p.Seat)
	if !action.Accept {
		m.logger.Debug("redeal declined", "player", p.Name)
		return true, nil
	}

	// First accept wins: redeal immediately, bump the multiplier and make
	// the accepter the round starter. Remaining decisions become moot.
	m.logger.Info("redeal accepted", "player", p.Name, "multiplier", m.game.RedealMultiplier+1)
	m.game.RedealMultiplier++
	seat := p.Seat
	m.game.starterOverride = &seat
	m.transitionTo(PhasePreparation)
	return false, nil
}

// handleRedealTimeout treats every undecided weak player as declining. A
// timeout that raced with resolution is a silent no-op.
func (m *Machine) handleRedealTimeout() (bool, error) {
	if m.game.Phase != PhasePreparation || len(m.game.awaitingRedeal) == 0 {
		return false, nil
	}
	m.logger.Info("redeal decision window expired", "undecided", len(m.game.awaitingRedeal))
	m.game.awaitingRedeal = map[int]bool{}
	return true, nil
}

func (m *Machine) handleDeclare(action Action) (bool, error) {
	if m.game.Phase != PhaseDeclaration {
		return false, validationErrorf("phase_mismatch", "not in declaration phase")
	}
	p := m.game.PlayerByID(action.PlayerID)
	if p == nil {
		return false, validationErrorf("unknown_player", "player not in game")
	}
	if m.game.declarationOrder[m.game.declarationPos] != p.Seat {
		return false, validationErrorf("out_of_turn", "not "+p.Name+"'s turn to declare")
	}
	if action.Value < 0 || action.Value > piece.HandSize {
		return false, validationErrorf("invalid_declaration", "declaration must be between 0 and 8")
	}
	if action.Value == 0 && p.MustDeclareNonzero() {
		return false, validationErrorf("invalid_declaration", "must declare at least 1 after two zero rounds")
	}
	if m.game.declarationPos == len(m.game.declarationOrder)-1 &&
		m.game.declaredSum()+action.Value == piece.HandSize {
		return false, validationErrorf("invalid_declaration", "declarations may not total 8")
	}

	p.Declared = action.Value
	p.HasDeclared = true
	m.game.declarationPos++
	m.logger.Debug("declaration accepted", "player", p.Name, "value", action.Value)
	return true, nil
}

func (m *Machine) handlePlay(action Action) (bool, error) {
	if m.game.Phase != PhaseTurn {
		return false, validationErrorf("phase_mismatch", "not in turn phase")
	}
	p := m.game.PlayerByID(action.PlayerID)
	if p == nil {
		return false, validationErrorf("unknown_player", "player not in game")
	}
	if p.Seat != m.game.currentSeat || m.game.turnResolved {
		return false, validationErrorf("out_of_turn", "not "+p.Name+"'s turn to play")
	}
	if err := validateIndices(action.PieceIndexes, len(p.Hand)); err != nil {
		return false, err
	}

	starter := len(m.game.currentPlays) == 0
	selected := make([]piece.Piece, len(action.PieceIndexes))
	for i, idx := range action.PieceIndexes {
		selected[i] = p.Hand[idx]
	}
	playType := rules.Classify(selected)

	if starter {
		if len(selected) > 6 || playType == rules.Invalid {
			return false, validationErrorf("invalid_play", "starter must play a valid combination")
		}
		m.game.requiredCount = len(selected)
	} else if len(selected) != m.game.requiredCount {
		return false, validationErrorf("invalid_play", "play must match the starter's piece count")
	}

	played := p.removeHandPieces(action.PieceIndexes)
	record := playRecord{Seat: p.Seat, Pieces: played, Type: playType}
	// A follower only competes when its play classifies to the starter's
	// type; anything else is discarded face up and scores nothing.
	if starter || playType == m.game.currentPlays[0].Type {
		record.Valid = true
		record.Points = rules.PlayPoints(played, playType)
	}
	m.game.currentPlays = append(m.game.currentPlays, record)
	m.game.currentSeat = (m.game.currentSeat + 1) % len(m.game.Players)
	m.logger.Debug("play accepted",
		"player", p.Name, "type", record.Type, "points", record.Points, "valid", record.Valid)

	if len(m.game.currentPlays) == len(m.game.Players) {
		m.resolveTurn()
	}
	return true, nil
}

func validateIndices(indices []int, handSize int) error {
	if len(indices) == 0 {
		return validationErrorf("invalid_play", "no pieces selected")
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= handSize {
			return validationErrorf("invalid_piece_index", "piece index out of range")
		}
		if seen[idx] {
			return validationErrorf("invalid_piece_index", "duplicate piece index")
		}
		seen[idx] = true
	}
	return nil
}

// resolveTurn picks the turn winner among the starter and the matching
// followers, awards the pile and records the winner as next starter.
func (m *Machine) resolveTurn() {
	best := m.game.currentPlays[0]
	for _, candidate := range m.game.currentPlays[1:] {
		if !candidate.Valid {
			continue
		}
		if rules.Compare(best.Pieces, candidate.Pieces) == rules.BWins {
			best = candidate
		}
	}

	winner := m.game.Players[best.Seat]
	winner.CapturedPiles += m.game.requiredCount
	m.game.lastTurnWinner = best.Seat
	m.game.turnResolved = true
	m.logger.Info("turn resolved",
		"turn", m.game.TurnNumber, "winner", winner.Name, "pile", m.game.requiredCount)

	m.emit(Event{
		Type: EventTurnResolved,
		Data: TurnResolvedData{
			TurnNumber: m.game.TurnNumber,
			Winner:     winner.Name,
			PileSize:   m.game.requiredCount,
			Plays:      m.playViews(),
		},
		Critical: true,
	})
}

// checkTransition reports the phase to move to next, if any. It only reads
// state; mutation belongs to the enter and exit hooks.
func (m *Machine) checkTransition() (Phase, bool) {
	switch m.game.Phase {
	case PhasePreparation:
		if len(m.game.awaitingRedeal) == 0 {
			return PhaseDeclaration, true
		}
	case PhaseDeclaration:
		if m.game.declarationPos >= len(m.game.declarationOrder) {
			return PhaseTurn, true
		}
	case PhaseTurn:
		if m.game.turnResolved {
			if m.game.handsEmpty() {
				return PhaseScoring, true
			}
			return PhaseTurn, true
		}
	case PhaseScoring:
		for _, p := range m.game.Players {
			if p != nil && p.Score >= rules.WinThreshold {
				return PhaseGameOver, true
			}
		}
		return PhasePreparation, true
	}
	return 0, false
}

func (m *Machine) transitionTo(to Phase) {
	from := m.game.Phase
	if !CanTransition(from, to) {
		m.logger.Error("illegal phase transition", "from", from, "to", to)
		return
	}
	if m.depth >= maxTransitionDepth {
		m.logger.Error("transition depth exceeded", "from", from, "to", to)
		return
	}
	m.depth++
	defer func() { m.depth-- }()

	m.onExit(from, to)
	m.game.Phase = to
	m.logger.Info("phase change", "from", from, "to", to, "round", m.game.RoundNumber)
	m.onEnter(to)
	m.broadcastPhase()

	if next, ok := m.checkTransition(); ok {
		m.transitionTo(next)
	}
}

func (m *Machine) onExit(from, to Phase) {
	if from == PhaseScoring && to == PhasePreparation {
		m.game.RoundNumber++
		m.game.RedealMultiplier = 1
		m.game.RoundStarter = m.game.lastTurnWinner
	}
}

func (m *Machine) onEnter(phase Phase) {
	switch phase {
	case PhasePreparation:
		m.enterPreparation()
	case PhaseDeclaration:
		m.enterDeclaration()
	case PhaseTurn:
		m.enterTurn()
	case PhaseScoring:
		m.enterScoring()
	case PhaseGameOver:
		m.enterGameOver()
	}
}

func (m *Machine) enterPreparation() {
	g := m.game
	deck := piece.Shuffled(m.rng)
	hands := piece.Deal(deck)
	for seat, p := range g.Players {
		p.Hand = hands[seat]
		p.Declared = 0
		p.HasDeclared = false
		p.CapturedPiles = 0
	}
	g.TurnNumber = 0
	g.currentPlays = nil
	g.turnResolved = false
	g.declarationPos = 0
	g.declarationOrder = nil
	g.lastTurnWinner = -1

	switch {
	case g.starterOverride != nil:
		g.RoundStarter = *g.starterOverride
		g.starterOverride = nil
	case g.RoundNumber == 1:
		g.RoundStarter = g.generalRedSeat()
	}

	g.weakSeats = nil
	g.awaitingRedeal = map[int]bool{}
	for _, p := range g.Players {
		if rules.IsWeak(p.Hand) {
			g.weakSeats = append(g.weakSeats, p.Seat)
			g.awaitingRedeal[p.Seat] = true
		}
	}
	if len(g.weakSeats) > 0 {
		m.logger.Info("weak hands detected", "count", len(g.weakSeats), "round", g.RoundNumber)
	}
}

func (m *Machine) enterDeclaration() {
	g := m.game
	g.declarationOrder = make([]int, 0, len(g.Players))
	for i := range g.Players {
		g.declarationOrder = append(g.declarationOrder, (g.RoundStarter+i)%len(g.Players))
	}
	g.declarationPos = 0
}

func (m *Machine) enterTurn() {
	g := m.game
	g.TurnNumber++
	if g.TurnNumber == 1 {
		g.turnStarter = g.RoundStarter
	} else {
		g.turnStarter = g.lastTurnWinner
	}
	g.currentSeat = g.turnStarter
	g.requiredCount = 0
	g.currentPlays = nil
	g.turnResolved = false
}

func (m *Machine) enterScoring() {
	g := m.game
	scores := make([]PlayerScore, 0, len(g.Players))
	for _, p := range g.Players {
		roundScore := rules.RoundScore(p.Declared, p.CapturedPiles) * g.RedealMultiplier
		p.Score += roundScore
		if p.Declared == 0 {
			p.ZeroStreak++
		} else {
			p.ZeroStreak = 0
		}
		scores = append(scores, PlayerScore{
			Player:     p.Name,
			Declared:   p.Declared,
			Captured:   p.CapturedPiles,
			RoundScore: roundScore,
			Total:      p.Score,
		})
		m.logger.Info("round score",
			"player", p.Name, "declared", p.Declared, "captured", p.CapturedPiles,
			"score", roundScore, "total", p.Score)
	}

	gameOver := false
	for _, p := range g.Players {
		if p.Score >= rules.WinThreshold {
			gameOver = true
		}
	}

	m.emit(Event{
		Type: EventScoreUpdate,
		Data: ScoreUpdateData{
			RoundNumber: g.RoundNumber,
			Multiplier:  g.RedealMultiplier,
			Scores:      scores,
		},
		Critical: true,
	})
	m.emit(Event{
		Type: EventRoundComplete,
		Data: RoundCompleteData{
			RoundNumber: g.RoundNumber,
			Multiplier:  g.RedealMultiplier,
			Scores:      scores,
			NextStarter: g.seatName(g.lastTurnWinner),
			GameOver:    gameOver,
		},
		Critical: true,
	})
}

func (m *Machine) enterGameOver() {
	winner := m.game.Winner()
	m.logger.Info("game over", "winner", winner.Name, "score", winner.Score, "rounds", m.game.RoundNumber)
	m.emit(Event{
		Type: EventGameOver,
		Data: GameOverData{
			Winner:      winner.Name,
			RoundNumber: m.game.RoundNumber,
			Players:     m.game.PublicPlayers(),
		},
		Critical: true,
	})
}

func (m *Machine) playViews() []PlayView {
	views := make([]PlayView, 0, len(m.game.currentPlays))
	for _, record := range m.game.currentPlays {
		view := PlayView{
			Player: m.game.seatName(record.Seat),
			Pieces: record.Pieces,
			Points: record.Points,
			Valid:  record.Valid,
		}
		if record.Valid {
			view.Type = record.Type.String()
		} else {
			view.Type = rules.Invalid.String()
		}
		views = append(views, view)
	}
	return views
}

// phaseData builds the per-phase auxiliary payload for broadcasts.
func (m *Machine) phaseData() PhaseData {
	g := m.game
	data := PhaseData{RedealMultiplier: g.RedealMultiplier}

	switch g.Phase {
	case PhasePreparation:
		for _, seat := range g.weakSeats {
			data.WeakPlayers = append(data.WeakPlayers, g.seatName(seat))
		}
		for _, p := range g.Players {
			if g.awaitingRedeal[p.Seat] {
				data.AwaitingDecision = append(data.AwaitingDecision, p.Name)
			}
		}
	case PhaseDeclaration:
		for _, seat := range g.declarationOrder {
			data.DeclarationOrder = append(data.DeclarationOrder, g.seatName(seat))
		}
		if g.declarationPos < len(g.declarationOrder) {
			data.CurrentDeclarer = g.seatName(g.declarationOrder[g.declarationPos])
		}
		data.Declarations = map[string]int{}
		for _, p := range g.Players {
			if p.HasDeclared {
				data.Declarations[p.Name] = p.Declared
			}
		}
	case PhaseTurn:
		data.TurnStarter = g.seatName(g.turnStarter)
		if !g.turnResolved && len(g.currentPlays) < len(g.Players) {
			data.CurrentPlayer = g.seatName(g.currentSeat)
		}
		data.RequiredCount = g.requiredCount
		data.Plays = m.playViews()
	}
	return data
}

// broadcastPhase emits a phase_change snapshot of the whole game. Every
// accepted action and every transition produces one, so observers (clients
// and the bot scheduler alike) always act on the latest state.
func (m *Machine) broadcastPhase() {
	data := m.phaseData()
	change := PhaseChangeData{
		Phase:       m.game.Phase,
		RoundNumber: m.game.RoundNumber,
		TurnNumber:  m.game.TurnNumber,
		PhaseData:   data,
		Players:     m.game.PublicPlayers(),
		Version:     m.nextVersion(),
		Checksum:    checksumPhaseData(data),
	}
	m.lastChange = change
	m.emit(Event{
		Type:     EventPhaseChange,
		Data:     change,
		Hands:    m.game.Hands(),
		Critical: true,
	})
}
