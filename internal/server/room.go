package server

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/liaptui/liaptui/internal/game"
	"github.com/liaptui/liaptui/internal/piece"
	"github.com/liaptui/liaptui/internal/server/audit"
)

// Room-level event types. They share the machine's event plumbing so the
// broadcaster gives one total order across both.
const (
	EventPlayerJoined       game.EventType = "player_joined"
	EventPlayerLeft         game.EventType = "player_left"
	EventPlayerDisconnected game.EventType = "player_disconnected"
	EventPlayerReconnected  game.EventType = "player_reconnected"
	EventHostChanged        game.EventType = "host_changed"
	EventRoomUpdate         game.EventType = "room_update"
	EventRoomClosed         game.EventType = "room_closed"
)

const roomTaskBuffer = 256

type taskKind int

const (
	taskGameAction taskKind = iota
	taskDisconnect
	taskReconnect
	taskLeaveGame
)

// roomTask is one unit of work for the room's consumer loop. Game actions
// and connection-state changes flow through the same queue so the loop stays
// the single writer of game state.
type roomTask struct {
	kind       taskKind
	action     game.Action
	playerName string
	conn       *Connection
}

// Room holds four seats, their connections and, once started, the running
// game. Lobby state is guarded by mu; game state is owned by the consumer
// loop.
type Room struct {
	ID string

	logger   *log.Logger
	cfg      *Config
	clock    quartz.Clock
	registry *Registry
	trail    *audit.Trail
	metrics  *Metrics

	mu      sync.RWMutex
	host    string
	players [4]*game.Player
	conns   map[string]*Connection
	queues  map[string]*playerQueue
	started bool
	closed  bool
	// Last phase broadcast, cached by the consumer loop so sync requests
	// never read live game state from another goroutine.
	snapshot      game.PhaseChangeData
	snapshotHands map[int][]piece.Piece

	tasks     chan roomTask
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	machine      *game.Machine
	rng          *rand.Rand
	version      atomic.Uint64
	broadcaster  *Broadcaster
	bots         *BotScheduler
	enqueueDedup *dedupCache
	redealTimer  *quartz.Timer
	graceTimer   *quartz.Timer
}

// NewRoom creates a room and starts its consumer loop. The trail may be nil
// when auditing is disabled.
func NewRoom(id string, logger *log.Logger, cfg *Config, clock quartz.Clock, rng *rand.Rand, registry *Registry, trail *audit.Trail, metrics *Metrics) *Room {
	r := &Room{
		ID:           id,
		logger:       logger.WithPrefix("room").With("room", id),
		cfg:          cfg,
		clock:        clock,
		registry:     registry,
		trail:        trail,
		metrics:      metrics,
		conns:        make(map[string]*Connection),
		queues:       make(map[string]*playerQueue),
		tasks:        make(chan roomTask, roomTaskBuffer),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		rng:          rng,
		enqueueDedup: newDedupCache(clock, cfg.DedupWindow()),
	}
	r.broadcaster = NewBroadcaster(r.logger, clock, r.deliverEvent)
	r.bots = NewBotScheduler(r, r.logger, clock, rng, cfg)
	go r.run()
	return r
}

// Host returns the current host name.
func (r *Room) Host() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}

// Started reports whether the game has begun.
func (r *Room) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

// Occupants returns the number of filled seats.
func (r *Room) Occupants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, p := range r.players {
		if p != nil {
			count++
		}
	}
	return count
}

// publicPlayers snapshots all seated players. Callers must hold mu.
func (r *Room) publicPlayersLocked() []game.PublicPlayer {
	views := make([]game.PublicPlayer, 0, len(r.players))
	for _, p := range r.players {
		if p != nil {
			views = append(views, p.Public())
		}
	}
	return views
}

// Join seats a player in the lobby. The first player to join becomes host.
func (r *Room) Join(name string, conn *Connection) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, fmt.Errorf("room %s is closed", r.ID)
	}
	if r.started {
		r.mu.Unlock()
		return 0, fmt.Errorf("game already in progress")
	}
	seat := -1
	for i, p := range r.players {
		if p == nil {
			if seat < 0 {
				seat = i
			}
			continue
		}
		if p.Name == name {
			r.mu.Unlock()
			return 0, fmt.Errorf("name %q already taken", name)
		}
	}
	if seat < 0 {
		r.mu.Unlock()
		return 0, fmt.Errorf("room is full")
	}

	r.players[seat] = &game.Player{ID: name, Name: name, Seat: seat, Connected: true}
	r.conns[name] = conn
	if r.host == "" {
		r.host = name
	}
	r.cancelGraceLocked()
	r.mu.Unlock()

	r.logger.Info("player joined", "player", name, "seat", seat)
	r.broadcaster.Publish(game.Event{
		Type: EventPlayerJoined,
		Data: PlayerJoinedData{PlayerName: name, Seat: seat},
	})
	r.publishRoomUpdate()
	r.registry.notifyRoomList()
	return seat, nil
}

// AddBot seats a bot, host only. A nil slot means the first free seat.
func (r *Room) AddBot(requester string, slot *int) error {
	r.mu.Lock()
	if r.closed || r.started {
		r.mu.Unlock()
		return fmt.Errorf("room not accepting players")
	}
	if r.host != requester {
		r.mu.Unlock()
		return fmt.Errorf("only the host may add bots")
	}
	seat := -1
	if slot != nil {
		if *slot < 0 || *slot >= len(r.players) {
			r.mu.Unlock()
			return fmt.Errorf("slot %d out of range", *slot)
		}
		if r.players[*slot] != nil {
			r.mu.Unlock()
			return fmt.Errorf("slot %d is occupied", *slot)
		}
		seat = *slot
	} else {
		for i, p := range r.players {
			if p == nil {
				seat = i
				break
			}
		}
	}
	if seat < 0 {
		r.mu.Unlock()
		return fmt.Errorf("room is full")
	}

	name := fmt.Sprintf("Bot %d", seat+1)
	r.players[seat] = &game.Player{
		ID:            name,
		Name:          name,
		Seat:          seat,
		IsBot:         true,
		OriginalIsBot: true,
		Connected:     true,
	}
	r.mu.Unlock()

	r.logger.Info("bot added", "bot", name, "seat", seat)
	r.broadcaster.Publish(game.Event{
		Type: EventPlayerJoined,
		Data: PlayerJoinedData{PlayerName: name, Seat: seat, IsBot: true},
	})
	r.publishRoomUpdate()
	r.registry.notifyRoomList()
	return nil
}

// RemovePlayer unseats a lobby occupant, host only.
func (r *Room) RemovePlayer(requester, playerID string) error {
	r.mu.Lock()
	if r.closed || r.started {
		r.mu.Unlock()
		return fmt.Errorf("players can only be removed in the lobby")
	}
	if r.host != requester {
		r.mu.Unlock()
		return fmt.Errorf("only the host may remove players")
	}
	if playerID == r.host {
		r.mu.Unlock()
		return fmt.Errorf("the host cannot remove themselves")
	}
	removed := false
	for i, p := range r.players {
		if p != nil && p.Name == playerID {
			r.players[i] = nil
			removed = true
			break
		}
	}
	conn := r.conns[playerID]
	delete(r.conns, playerID)
	r.mu.Unlock()

	if !removed {
		return fmt.Errorf("player %q not found", playerID)
	}
	if conn != nil {
		conn.detachRoom()
		conn.sendEvent(MessageTypeRoomClosed, RoomClosedData{RoomID: r.ID, Reason: "removed by host"})
	}
	r.broadcaster.Publish(game.Event{
		Type: EventPlayerLeft,
		Data: PlayerLeftData{PlayerName: playerID},
	})
	r.publishRoomUpdate()
	r.registry.notifyRoomList()
	return nil
}

// Leave handles an explicit leave. In the lobby a regular player is unseated
// and a leaving host closes the room; in a running game the player's seat is
// handed to a bot permanently.
func (r *Room) Leave(name string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.started {
		conn := r.conns[name]
		delete(r.conns, name)
		r.scheduleGraceLocked()
		r.mu.Unlock()
		if conn != nil {
			conn.detachRoom()
		}
		_ = r.submit(roomTask{kind: taskLeaveGame, playerName: name})
		return
	}

	if name == r.host {
		r.mu.Unlock()
		r.Close("host left")
		return
	}
	for i, p := range r.players {
		if p != nil && p.Name == name {
			r.players[i] = nil
			break
		}
	}
	conn := r.conns[name]
	delete(r.conns, name)
	r.scheduleGraceLocked()
	r.mu.Unlock()
	if conn != nil {
		conn.detachRoom()
	}

	r.logger.Info("player left", "player", name)
	r.broadcaster.Publish(game.Event{
		Type: EventPlayerLeft,
		Data: PlayerLeftData{PlayerName: name},
	})
	r.publishRoomUpdate()
	r.registry.notifyRoomList()
}

// HandleDisconnect is invoked when a player's channel drops. In the lobby it
// behaves like a leave; in a running game the seat is covered by a bot until
// the player reclaims it.
func (r *Room) HandleDisconnect(conn *Connection) {
	name := conn.PlayerName()
	r.mu.Lock()
	if r.closed || r.conns[name] != conn {
		r.mu.Unlock()
		return
	}
	delete(r.conns, name)

	if !r.started {
		r.mu.Unlock()
		r.Leave(name)
		return
	}

	if _, ok := r.queues[name]; !ok {
		r.queues[name] = newPlayerQueue()
	}
	r.scheduleGraceLocked()
	r.mu.Unlock()

	r.submit(roomTask{kind: taskDisconnect, playerName: name})
}

// Reclaim restores a disconnected player's session: the channel is attached,
// queued critical events are replayed first, then the seat's bot cover is
// lifted by the consumer loop.
func (r *Room) Reclaim(name string, conn *Connection) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("room %s is closed", r.ID)
	}
	var player *game.Player
	for _, p := range r.players {
		if p != nil && p.Name == name {
			player = p
			break
		}
	}
	if player == nil || player.OriginalIsBot {
		r.mu.Unlock()
		return fmt.Errorf("no session for %q in room %s", name, r.ID)
	}
	if _, ok := r.conns[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("name %q already connected", name)
	}

	// Attach and drain atomically so live broadcasts cannot interleave with
	// the replay.
	r.conns[name] = conn
	var queued []*Message
	if q, ok := r.queues[name]; ok {
		queued = q.Drain()
	}
	conn.sendEvent(MessageTypeQueuedMessages, QueuedMessagesData{Messages: queued})
	r.cancelGraceLocked()
	started := r.started
	r.mu.Unlock()

	r.logger.Info("session reclaimed", "player", name, "replayed", len(queued))
	if started {
		r.submit(roomTask{kind: taskReconnect, playerName: name, conn: conn})
	}
	return nil
}

// Start launches the game. Host only, and only with four filled seats.
func (r *Room) Start(requester string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("room %s is closed", r.ID)
	}
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("game already started")
	}
	if r.host != requester {
		r.mu.Unlock()
		return fmt.Errorf("only the host may start the game")
	}
	for _, p := range r.players {
		if p == nil {
			r.mu.Unlock()
			return fmt.Errorf("four occupants required to start")
		}
	}

	r.machine = game.NewMachine(r.logger, r.rng, game.NewGame(r.players), r.emitEvent, func() uint64 {
		return r.version.Add(1)
	})
	r.started = true
	r.mu.Unlock()

	r.logger.Info("game starting", "host", requester)
	r.registry.notifyRoomList()
	return r.EnqueueAction(game.Action{Type: game.ActionStartGame, PlayerID: requester}, nil)
}

// EnqueueAction submits a game action to the consumer loop. Duplicate
// submissions inside the dedup window are silently dropped.
func (r *Room) EnqueueAction(action game.Action, conn *Connection) error {
	r.mu.RLock()
	started, closed := r.started, r.closed
	r.mu.RUnlock()
	if closed {
		return fmt.Errorf("room %s is closed", r.ID)
	}
	if !started {
		return fmt.Errorf("game not started")
	}

	key := fmt.Sprintf("%s|%s|%d|%v|%t",
		action.PlayerID, action.Type, action.Value, action.PieceIndexes, action.Accept)
	if r.enqueueDedup.Seen(key) {
		r.logger.Debug("duplicate action dropped", "player", action.PlayerID, "type", action.Type)
		if r.metrics != nil {
			r.metrics.ActionsDeduped.Inc()
		}
		return nil
	}
	action.Timestamp = r.clock.Now()
	return r.submit(roomTask{kind: taskGameAction, action: action, conn: conn})
}

func (r *Room) submit(task roomTask) error {
	select {
	case r.tasks <- task:
		return nil
	case <-r.done:
		return fmt.Errorf("room %s is closed", r.ID)
	default:
		r.logger.Error("action queue full, dropping task", "kind", task.kind)
		return fmt.Errorf("room %s action queue is full", r.ID)
	}
}

// run is the consumer loop: the sole writer of game state.
func (r *Room) run() {
	defer close(r.loopDone)
	for {
		select {
		case <-r.done:
			r.drainTasks()
			return
		case task := <-r.tasks:
			r.handleTask(task)
		}
	}
}

// drainTasks notifies contributors whose actions were still queued when the
// room was destroyed.
func (r *Room) drainTasks() {
	for {
		select {
		case task := <-r.tasks:
			if task.conn != nil {
				task.conn.sendError("room_closed", "room was closed before the action was processed")
			}
		default:
			return
		}
	}
}

func (r *Room) handleTask(task roomTask) {
	switch task.kind {
	case taskGameAction:
		r.applyAction(task)
	case taskDisconnect:
		r.applyDisconnect(task.playerName)
	case taskReconnect:
		r.applyReconnect(task.playerName, task.conn)
	case taskLeaveGame:
		r.applyLeaveGame(task.playerName)
	}
}

func (r *Room) applyAction(task roomTask) {
	before := r.machine.Phase()
	err := r.machine.HandleAction(task.action)
	if err != nil {
		var verr *game.ValidationError
		code, message := "internal_error", "action failed"
		if e, ok := err.(*game.ValidationError); ok {
			verr = e
			code, message = verr.Code, verr.Message
		} else {
			r.logger.Error("action handler failed", "type", task.action.Type, "error", err)
		}
		if task.conn != nil {
			task.conn.sendError(code, message)
		}
		if r.metrics != nil {
			r.metrics.ActionsRejected.WithLabelValues(string(task.action.Type)).Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.ActionsProcessed.WithLabelValues(string(task.action.Type)).Inc()
	}

	// A transition gets a short cooldown before the next action applies.
	if r.machine.Phase() != before {
		r.cooldown()
	}
}

func (r *Room) cooldown() {
	d := r.cfg.Cooldown()
	if d <= 0 {
		return
	}
	timer := r.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.done:
	}
}

func (r *Room) applyDisconnect(name string) {
	p := r.playerByName(name)
	if p == nil || !p.Connected {
		return
	}
	// The broadcaster reads these flags under RLock while fanning out.
	r.mu.Lock()
	p.Connected = false
	p.OriginalIsBot = p.IsBot
	p.IsBot = true
	r.mu.Unlock()
	r.logger.Info("player disconnected, bot takeover", "player", name)

	r.broadcaster.Publish(game.Event{
		Type: EventPlayerDisconnected,
		Data: PlayerDisconnectedData{PlayerName: name, CanReconnect: true, IsBot: true},
	})
	r.migrateHostIfNeeded(name)
	r.nudgeBots()
}

func (r *Room) applyReconnect(name string, conn *Connection) {
	p := r.playerByName(name)
	if p == nil {
		return
	}
	r.mu.Lock()
	p.Connected = true
	p.IsBot = p.OriginalIsBot
	r.mu.Unlock()
	r.logger.Info("player reconnected", "player", name)

	r.broadcaster.Publish(game.Event{
		Type:     EventPlayerReconnected,
		Data:     PlayerReconnectedData{PlayerName: name},
		Critical: false,
	})

	// A fresh snapshot follows the replayed queue so the client can verify
	// its state against the current version and checksum.
	snapshot, hands := r.machine.Snapshot()
	snapshot.MyHand = hands[p.Seat]
	conn.sendEvent(MessageType(game.EventPhaseChange), snapshot)
}

func (r *Room) applyLeaveGame(name string) {
	p := r.playerByName(name)
	if p == nil {
		return
	}
	r.mu.Lock()
	p.Connected = false
	p.IsBot = true
	p.OriginalIsBot = true
	r.mu.Unlock()
	r.logger.Info("player left mid-game, seat handed to bot", "player", name)

	r.broadcaster.Publish(game.Event{
		Type: EventPlayerLeft,
		Data: PlayerLeftData{PlayerName: name},
	})
	r.migrateHostIfNeeded(name)
	r.nudgeBots()
}

// migrateHostIfNeeded picks a new host when the current one is gone: the
// first connected human, else any human, else any bot.
func (r *Room) migrateHostIfNeeded(departed string) {
	r.mu.Lock()
	if r.host != departed {
		r.mu.Unlock()
		return
	}
	var candidate *game.Player
	for _, p := range r.players {
		if p != nil && !p.OriginalIsBot && p.Connected {
			candidate = p
			break
		}
	}
	if candidate == nil {
		for _, p := range r.players {
			if p != nil && !p.OriginalIsBot {
				candidate = p
				break
			}
		}
	}
	if candidate == nil {
		for _, p := range r.players {
			if p != nil {
				candidate = p
				break
			}
		}
	}
	if candidate == nil || candidate.Name == r.host {
		r.mu.Unlock()
		return
	}
	oldHost := r.host
	r.host = candidate.Name
	r.mu.Unlock()

	r.logger.Info("host migrated", "from", oldHost, "to", candidate.Name)
	r.broadcaster.Publish(game.Event{
		Type:     EventHostChanged,
		Data:     HostChangedData{OldHost: oldHost, NewHost: candidate.Name},
		Critical: true,
	})
}

// nudgeBots replays the current phase snapshot to the bot scheduler so a
// freshly converted seat picks up any action it now owes.
func (r *Room) nudgeBots() {
	snapshot, hands := r.machine.Snapshot()
	if snapshot.Version == 0 {
		return
	}
	snapshot.Players = r.machine.Game().PublicPlayers()
	r.bots.Observe(game.Event{
		Type:     game.EventPhaseChange,
		Data:     snapshot,
		Hands:    hands,
		Critical: true,
	})
}

// playerByName is only called from the consumer loop.
func (r *Room) playerByName(name string) *game.Player {
	for _, p := range r.players {
		if p != nil && p.Name == name {
			return p
		}
	}
	return nil
}

// emitEvent is the machine's event sink. It runs on the consumer loop.
func (r *Room) emitEvent(e game.Event) {
	if r.trail != nil {
		r.trail.Append(string(e.Type), e.Data)
	}
	if r.metrics != nil {
		r.metrics.EventsEmitted.WithLabelValues(string(e.Type)).Inc()
	}
	if e.Type == game.EventPhaseChange {
		if data, ok := e.Data.(game.PhaseChangeData); ok {
			r.mu.Lock()
			r.snapshot = data
			r.snapshotHands = e.Hands
			r.mu.Unlock()
			r.updateRedealTimer(data)
		}
	}
	r.bots.Observe(e)
	r.broadcaster.Publish(e)
}

// updateRedealTimer arms the decision timeout while weak players are
// undecided and disarms it once the phase moves on. The timer field is
// guarded by mu because Close stops it from outside the consumer loop.
func (r *Room) updateRedealTimer(data game.PhaseChangeData) {
	pending := data.Phase == game.PhasePreparation && len(data.PhaseData.AwaitingDecision) > 0
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if pending {
		if r.redealTimer == nil {
			r.redealTimer = r.clock.AfterFunc(r.cfg.RedealTimeout(), func() {
				_ = r.EnqueueAction(game.Action{Type: game.ActionRedealTimeout}, nil)
			})
		}
		return
	}
	if r.redealTimer != nil {
		r.redealTimer.Stop()
		r.redealTimer = nil
	}
}

// deliverEvent fans one event out to every seat. It runs on the broadcaster
// worker, one event at a time, preserving the room's total order.
func (r *Room) deliverEvent(e game.Event) {
	base, err := eventMessage(e)
	if err != nil {
		r.logger.Error("failed to encode event", "type", e.Type, "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p == nil || p.OriginalIsBot && r.conns[p.Name] == nil {
			continue
		}
		msg := base
		if e.Type == game.EventPhaseChange && e.Hands != nil {
			if data, ok := e.Data.(game.PhaseChangeData); ok {
				personal := data
				personal.MyHand = e.Hands[p.Seat]
				if m, err := NewMessage(MessageType(e.Type), personal); err == nil {
					msg = m
				}
			}
		}
		if conn, ok := r.conns[p.Name]; ok {
			if err := conn.Send(msg); err != nil {
				r.logger.Debug("failed to deliver event", "player", p.Name, "error", err)
			}
			continue
		}
		if e.Critical {
			if q, ok := r.queues[p.Name]; ok {
				q.Push(msg)
			}
		}
	}
	if r.metrics != nil {
		r.metrics.BroadcastsDelivered.Inc()
	}
}

// publishRoomUpdate broadcasts the lobby view of the room.
func (r *Room) publishRoomUpdate() {
	r.mu.RLock()
	data := RoomUpdateData{
		RoomID:  r.ID,
		Host:    r.host,
		Players: r.publicPlayersLocked(),
		Started: r.started,
	}
	r.mu.RUnlock()
	r.broadcaster.Publish(game.Event{Type: EventRoomUpdate, Data: data})
}

// RoomJoinedPayload builds the synchronous join response.
func (r *Room) RoomJoinedPayload(seat int) RoomJoinedData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomJoinedData{
		RoomID:  r.ID,
		Seat:    seat,
		Players: r.publicPlayersLocked(),
		Host:    r.host,
	}
}

// SyncSnapshot serves a sync_request with the last phase_change, personalized
// for the requesting player. It reads only the cached broadcast; live game
// state belongs to the consumer loop.
func (r *Room) SyncSnapshot(name string) (game.PhaseChangeData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.started || r.snapshot.Version == 0 {
		return game.PhaseChangeData{}, false
	}
	seat := -1
	for _, p := range r.players {
		if p != nil && p.Name == name {
			seat = p.Seat
		}
	}
	if seat < 0 {
		return game.PhaseChangeData{}, false
	}
	snapshot := r.snapshot
	snapshot.MyHand = r.snapshotHands[seat]
	return snapshot, true
}

// scheduleGraceLocked arms the idle-room timer when no humans are connected.
// Callers must hold mu.
func (r *Room) scheduleGraceLocked() {
	if len(r.conns) > 0 || r.closed {
		return
	}
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	grace := r.cfg.GracePeriod()
	r.logger.Info("no humans connected, room marked for cleanup", "grace", grace)
	r.graceTimer = r.clock.AfterFunc(grace, func() {
		r.Close("idle grace period expired")
	})
}

func (r *Room) cancelGraceLocked() {
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
}

// Close tears the room down: the consumer loop stops, queued actions are
// answered with a terminal error, and remaining channels get room_closed.
func (r *Room) Close(reason string) {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.cancelGraceLocked()
		if r.redealTimer != nil {
			r.redealTimer.Stop()
			r.redealTimer = nil
		}
		conns := make([]*Connection, 0, len(r.conns))
		for _, conn := range r.conns {
			conns = append(conns, conn)
		}
		r.mu.Unlock()

		r.logger.Info("closing room", "reason", reason)
		close(r.done)
		<-r.loopDone
		r.bots.Close()
		r.broadcaster.Publish(game.Event{
			Type: EventRoomClosed,
			Data: RoomClosedData{RoomID: r.ID, Reason: reason},
		})
		r.broadcaster.Close()
		for _, conn := range conns {
			conn.detachRoom()
		}
		if r.trail != nil {
			if err := r.trail.Close(reason); err != nil {
				r.logger.Error("failed to close audit trail", "error", err)
			}
		}
		r.registry.removeRoom(r.ID)
	})
}
