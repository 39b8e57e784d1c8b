package server

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/liaptui/liaptui/internal/randutil"
	"github.com/liaptui/liaptui/internal/roomcode"
	"github.com/liaptui/liaptui/internal/server/audit"
)

// maxRooms caps concurrent rooms as a basic resource bound.
const maxRooms = 1024

// Registry owns the live rooms, keyed by join code, and pushes lobby
// listings to connections that are not yet seated.
type Registry struct {
	logger  *log.Logger
	cfg     *Config
	clock   quartz.Clock
	metrics *Metrics
	codes   *roomcode.Generator

	roomsMu sync.RWMutex
	rooms   map[string]*Room

	// rng seeds per-room generators. Forking keeps rooms deterministic
	// under a fixed seed while never sharing a generator across goroutines.
	rngMu sync.Mutex
	rng   *rand.Rand

	lobbyMu sync.Mutex
	lobby   map[*Connection]struct{}
}

// NewRegistry creates the room registry. The seed drives every room's deal
// order, which makes whole-server runs reproducible.
func NewRegistry(logger *log.Logger, cfg *Config, clock quartz.Clock, seed int64, metrics *Metrics) *Registry {
	return &Registry{
		logger:  logger.WithPrefix("registry"),
		cfg:     cfg,
		clock:   clock,
		metrics: metrics,
		codes:   roomcode.NewGenerator(nil),
		rooms:   make(map[string]*Room),
		rng:     randutil.New(seed),
		lobby:   make(map[*Connection]struct{}),
	}
}

// CreateRoom allocates a fresh room under a unique code.
func (reg *Registry) CreateRoom() (*Room, error) {
	reg.roomsMu.Lock()
	if len(reg.rooms) >= maxRooms {
		reg.roomsMu.Unlock()
		return nil, fmt.Errorf("room limit reached")
	}
	var code string
	for {
		code = reg.codes.Generate()
		if _, taken := reg.rooms[code]; !taken {
			break
		}
	}

	var trail *audit.Trail
	if reg.cfg.Audit.Enabled {
		var err error
		trail, err = audit.NewTrail(reg.logger, reg.cfg.Audit.Dir, code)
		if err != nil {
			reg.logger.Error("audit trail unavailable for room", "room", code, "error", err)
			trail = nil
		}
	}

	reg.rngMu.Lock()
	roomRNG := randutil.Fork(reg.rng)
	reg.rngMu.Unlock()

	room := NewRoom(code, reg.logger, reg.cfg, reg.clock, roomRNG, reg, trail, reg.metrics)
	reg.rooms[code] = room
	reg.roomsMu.Unlock()

	reg.logger.Info("room created", "room", code)
	if reg.metrics != nil {
		reg.metrics.RoomsCreated.Inc()
		reg.metrics.ActiveRooms.Inc()
	}
	reg.notifyRoomList()
	return room, nil
}

// GetRoom looks up a room by code, tolerating sloppy user input.
func (reg *Registry) GetRoom(code string) *Room {
	normalized := roomcode.Normalize(code)
	if !roomcode.Valid(normalized) {
		return nil
	}
	reg.roomsMu.RLock()
	defer reg.roomsMu.RUnlock()
	return reg.rooms[normalized]
}

// removeRoom drops a closed room from the registry.
func (reg *Registry) removeRoom(code string) {
	reg.roomsMu.Lock()
	_, existed := reg.rooms[code]
	delete(reg.rooms, code)
	reg.roomsMu.Unlock()
	if !existed {
		return
	}
	if reg.metrics != nil {
		reg.metrics.ActiveRooms.Dec()
	}
	reg.notifyRoomList()
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.roomsMu.RLock()
	defer reg.roomsMu.RUnlock()
	return len(reg.rooms)
}

// RoomInfos snapshots the lobby listing, sorted by code for stable output.
func (reg *Registry) RoomInfos() []RoomInfo {
	reg.roomsMu.RLock()
	infos := make([]RoomInfo, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		infos = append(infos, RoomInfo{
			RoomID:    room.ID,
			Host:      room.Host(),
			Occupants: room.Occupants(),
			Started:   room.Started(),
		})
	}
	reg.roomsMu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].RoomID < infos[j].RoomID })
	return infos
}

// watchLobby subscribes a connection to room list updates.
func (reg *Registry) watchLobby(c *Connection) {
	reg.lobbyMu.Lock()
	reg.lobby[c] = struct{}{}
	reg.lobbyMu.Unlock()
	c.sendEvent(MessageTypeRoomListUpdate, RoomListUpdateData{Rooms: reg.RoomInfos()})
}

func (reg *Registry) unwatchLobby(c *Connection) {
	reg.lobbyMu.Lock()
	delete(reg.lobby, c)
	reg.lobbyMu.Unlock()
}

// notifyRoomList pushes the current listing to every lobby watcher.
func (reg *Registry) notifyRoomList() {
	data := RoomListUpdateData{Rooms: reg.RoomInfos()}
	reg.lobbyMu.Lock()
	watchers := make([]*Connection, 0, len(reg.lobby))
	for c := range reg.lobby {
		watchers = append(watchers, c)
	}
	reg.lobbyMu.Unlock()
	for _, c := range watchers {
		c.sendEvent(MessageTypeRoomListUpdate, data)
	}
}

// CloseAll tears down every room, used at shutdown. Rooms close in parallel
// since each Close waits for its consumer loop and broadcaster to drain.
func (reg *Registry) CloseAll(reason string) {
	reg.roomsMu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.roomsMu.RUnlock()

	var g errgroup.Group
	for _, room := range rooms {
		g.Go(func() error {
			room.Close(reason)
			return nil
		})
	}
	_ = g.Wait()
}
