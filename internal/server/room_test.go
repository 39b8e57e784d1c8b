package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaptui/liaptui/internal/game"
)

// newTestRegistry builds a registry on a mock clock with the cooldown
// disabled so tests never wait on the transition pause.
func newTestRegistry(t *testing.T, mutate func(*Config)) (*Registry, *quartz.Mock, *Metrics) {
	t.Helper()
	mock := quartz.NewMock(t)
	cfg := DefaultConfig()
	cfg.Game.CooldownMS = 0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	metrics := NewMetrics(prometheus.NewRegistry())
	reg := NewRegistry(log.New(io.Discard), cfg, mock, 7, metrics)
	t.Cleanup(func() { reg.CloseAll("test done") })
	return reg, mock, metrics
}

// newTestConn builds a connection whose pumps never start, so outbound
// messages stay readable on its send channel.
func newTestConn(reg *Registry) *Connection {
	return NewConnection(nil, log.New(io.Discard), reg)
}

// recvEvent waits for the next message of the wanted type, discarding others.
func recvEvent(t *testing.T, c *Connection, want MessageType) *Message {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Event == want {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

// recvNext returns the very next message, whatever it is.
func recvNext(t *testing.T, c *Connection) *Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func decodePhaseChange(t *testing.T, msg *Message) game.PhaseChangeData {
	t.Helper()
	var data game.PhaseChangeData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	return data
}

// declineAll answers every pending weak-hand decision with a decline.
func declineAll(t *testing.T, room *Room, names []string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, room.EnqueueAction(game.Action{
			Type:     game.ActionRedealDecision,
			PlayerID: name,
			Accept:   false,
		}, nil))
	}
}

// driveToPhase watches one connection's phase broadcasts, declining redeals
// along the way, until the wanted phase is reached.
func driveToPhase(t *testing.T, room *Room, c *Connection, want game.Phase) game.PhaseChangeData {
	t.Helper()
	for {
		data := decodePhaseChange(t, recvEvent(t, c, MessageType(game.EventPhaseChange)))
		if data.Phase == want {
			return data
		}
		if data.Phase == game.PhasePreparation && len(data.PhaseData.AwaitingDecision) > 0 {
			declineAll(t, room, data.PhaseData.AwaitingDecision)
		}
	}
}

func TestLobbyJoinAddBotAndRemove(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	room, err := reg.CreateRoom()
	require.NoError(t, err)
	assert.Equal(t, 1, reg.RoomCount())

	alice := newTestConn(reg)
	seat, err := room.Join("alice", alice)
	require.NoError(t, err)
	assert.Equal(t, 0, seat)
	assert.Equal(t, "alice", room.Host())

	bob := newTestConn(reg)
	seat, err = room.Join("bob", bob)
	require.NoError(t, err)
	assert.Equal(t, 1, seat)

	joined := recvEvent(t, alice, MessageTypePlayerJoined)
	var joinData PlayerJoinedData
	require.NoError(t, json.Unmarshal(joined.Data, &joinData))
	assert.Equal(t, "alice", joinData.PlayerName)

	_, err = room.Join("alice", newTestConn(reg))
	assert.Error(t, err, "duplicate names are rejected")

	assert.Error(t, room.AddBot("bob", nil), "only the host may add bots")
	require.NoError(t, room.AddBot("alice", nil))
	slot := 3
	require.NoError(t, room.AddBot("alice", &slot))
	assert.Equal(t, 4, room.Occupants())

	badSlot := 1
	assert.Error(t, room.AddBot("alice", &badSlot), "occupied slot is rejected")
	_, err = room.Join("eve", newTestConn(reg))
	assert.Error(t, err, "full room rejects joins")

	assert.Error(t, room.Start("bob"), "only the host may start")

	assert.Error(t, room.RemovePlayer("bob", "alice"), "only the host may remove")
	assert.Error(t, room.RemovePlayer("alice", "alice"), "host cannot remove themselves")
	require.NoError(t, room.RemovePlayer("alice", "bob"))
	assert.Equal(t, 3, room.Occupants())

	closed := recvEvent(t, bob, MessageTypeRoomClosed)
	var closedData RoomClosedData
	require.NoError(t, json.Unmarshal(closed.Data, &closedData))
	assert.Equal(t, "removed by host", closedData.Reason)

	assert.Error(t, room.Start("alice"), "start requires four occupants")
}

func TestHostLeaveClosesLobbyRoom(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	alice := newTestConn(reg)
	_, err = room.Join("alice", alice)
	require.NoError(t, err)
	bob := newTestConn(reg)
	_, err = room.Join("bob", bob)
	require.NoError(t, err)

	room.Leave("alice")

	closed := recvEvent(t, bob, MessageTypeRoomClosed)
	var data RoomClosedData
	require.NoError(t, json.Unmarshal(closed.Data, &data))
	assert.Equal(t, "host left", data.Reason)
	assert.Zero(t, reg.RoomCount())
}

func TestNonHostLobbyLeaveKeepsRoom(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	alice := newTestConn(reg)
	_, err = room.Join("alice", alice)
	require.NoError(t, err)
	bob := newTestConn(reg)
	_, err = room.Join("bob", bob)
	require.NoError(t, err)

	room.Leave("bob")

	left := recvEvent(t, alice, MessageTypePlayerLeft)
	var data PlayerLeftData
	require.NoError(t, json.Unmarshal(left.Data, &data))
	assert.Equal(t, "bob", data.PlayerName)
	assert.Equal(t, 1, room.Occupants())
	assert.Equal(t, 1, reg.RoomCount())

	_, err = room.Join("bob", newTestConn(reg))
	assert.NoError(t, err, "seat is free again after leaving")
}

func TestGameReachesTurnPhase(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	names := []string{"alice", "bob", "carol", "dave"}
	conns := make(map[string]*Connection, len(names))
	for _, name := range names {
		conn := newTestConn(reg)
		_, err := room.Join(name, conn)
		require.NoError(t, err)
		conns[name] = conn
	}

	require.NoError(t, room.Start("alice"))
	assert.True(t, room.Started())
	assert.Error(t, room.Start("alice"), "double start is rejected")
	_, err = room.Join("eve", newTestConn(reg))
	assert.Error(t, err, "no joining a running game")

	prep := driveToPhase(t, room, conns["alice"], game.PhasePreparation)
	assert.Equal(t, 1, prep.RoundNumber)
	assert.Len(t, prep.MyHand, 8, "every player is dealt eight pieces")
	assert.NotEmpty(t, prep.Checksum)

	decl := driveToPhase(t, room, conns["alice"], game.PhaseDeclaration)
	require.Len(t, decl.PhaseData.DeclarationOrder, 4)
	assert.Equal(t, decl.PhaseData.DeclarationOrder[0], decl.PhaseData.CurrentDeclarer)

	// Declare 2,2,2 then 1 so the final total cannot be eight.
	lastVersion := decl.Version
	for {
		if decl.Phase == game.PhaseTurn {
			break
		}
		assert.Greater(t, decl.Version, uint64(0))
		current := decl.PhaseData.CurrentDeclarer
		value := 2
		if len(decl.PhaseData.Declarations) == 3 {
			value = 1
		}
		require.NoError(t, room.EnqueueAction(game.Action{
			Type:     game.ActionDeclare,
			PlayerID: current,
			Value:    value,
		}, nil))
		next := decodePhaseChange(t, recvEvent(t, conns["alice"], MessageType(game.EventPhaseChange)))
		assert.Greater(t, next.Version, lastVersion, "versions are strictly monotonic")
		lastVersion = next.Version
		decl = next
	}

	assert.NotEmpty(t, decl.PhaseData.TurnStarter)
	assert.Equal(t, decl.PhaseData.TurnStarter, decl.PhaseData.CurrentPlayer)
	assert.Empty(t, decl.PhaseData.Plays)
	for _, p := range decl.Players {
		require.NotNil(t, p.Declared, "all declarations are public once the turn starts")
	}
}

func TestDisconnectReclaimReplaysQueuedEvents(t *testing.T) {
	reg, _, _ := newTestRegistry(t, func(cfg *Config) {
		// Park the bots and the redeal timeout far in the future so the
		// scenario stays quiescent on the mock clock.
		cfg.Game.BotDelayMinMS = 60_000
		cfg.Game.BotDelayMaxMS = 60_000
		cfg.Game.RedealTimeoutSeconds = 3600
	})
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	alice := newTestConn(reg)
	_, err = room.Join("alice", alice)
	require.NoError(t, err)
	alice.setSession("alice", room)
	bob := newTestConn(reg)
	_, err = room.Join("bob", bob)
	require.NoError(t, err)
	require.NoError(t, room.AddBot("alice", nil))
	require.NoError(t, room.AddBot("alice", nil))

	require.NoError(t, room.Start("alice"))
	driveToPhase(t, room, bob, game.PhaseDeclaration)

	room.HandleDisconnect(alice)

	gone := recvEvent(t, bob, MessageTypePlayerDisconnected)
	var goneData PlayerDisconnectedData
	require.NoError(t, json.Unmarshal(gone.Data, &goneData))
	assert.Equal(t, "alice", goneData.PlayerName)
	assert.True(t, goneData.IsBot, "a bot covers the seat")
	assert.True(t, goneData.CanReconnect)

	hostChange := recvEvent(t, bob, MessageTypeHostChanged)
	var hostData HostChangedData
	require.NoError(t, json.Unmarshal(hostChange.Data, &hostData))
	assert.Equal(t, "alice", hostData.OldHost)
	assert.Equal(t, "bob", hostData.NewHost, "host migrates to the connected human")
	assert.Equal(t, "bob", room.Host())

	// A critical event while alice is away must survive until she returns.
	room.broadcaster.Publish(game.Event{
		Type:     game.EventScoreUpdate,
		Data:     game.ScoreUpdateData{RoundNumber: 1, Multiplier: 1},
		Critical: true,
	})
	recvEvent(t, bob, MessageType(game.EventScoreUpdate))

	assert.Error(t, room.Reclaim("Bot 3", newTestConn(reg)), "bot seats cannot be reclaimed")
	assert.Error(t, room.Reclaim("bob", newTestConn(reg)), "connected players cannot be reclaimed")
	assert.Error(t, room.Reclaim("mallory", newTestConn(reg)), "unknown names cannot be reclaimed")

	alice2 := newTestConn(reg)
	require.NoError(t, room.Reclaim("alice", alice2))

	// The replay is the very first thing the reclaimed channel sees.
	first := recvNext(t, alice2)
	require.Equal(t, MessageTypeQueuedMessages, first.Event)
	var queued QueuedMessagesData
	require.NoError(t, json.Unmarshal(first.Data, &queued))
	require.Len(t, queued.Messages, 2)
	assert.Equal(t, MessageTypeHostChanged, queued.Messages[0].Event)
	assert.Equal(t, MessageType(game.EventScoreUpdate), queued.Messages[1].Event)

	snapshot := decodePhaseChange(t, recvEvent(t, alice2, MessageType(game.EventPhaseChange)))
	assert.Equal(t, game.PhaseDeclaration, snapshot.Phase)
	assert.Len(t, snapshot.MyHand, 8, "the snapshot carries the owner's hand")
	assert.Greater(t, snapshot.Version, uint64(0))

	back := recvEvent(t, bob, MessageTypePlayerReconnected)
	var backData PlayerReconnectedData
	require.NoError(t, json.Unmarshal(back.Data, &backData))
	assert.Equal(t, "alice", backData.PlayerName)
}

func TestSyncSnapshotServesCachedBroadcast(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	names := []string{"alice", "bob", "carol", "dave"}
	conns := make(map[string]*Connection, len(names))
	for _, name := range names {
		conn := newTestConn(reg)
		_, err := room.Join(name, conn)
		require.NoError(t, err)
		conns[name] = conn
	}

	_, ok := room.SyncSnapshot("alice")
	assert.False(t, ok, "no snapshot before the first broadcast")

	require.NoError(t, room.Start("alice"))

	// Hammer sync requests from another goroutine while the consumer loop
	// deals hands and broadcasts phases, the way a reconnecting client would.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if snap, ok := room.SyncSnapshot("bob"); ok && len(snap.MyHand) != 8 {
				t.Errorf("sync snapshot carried %d pieces", len(snap.MyHand))
				return
			}
		}
	}()

	decl := driveToPhase(t, room, conns["alice"], game.PhaseDeclaration)
	close(stop)
	wg.Wait()

	snap, ok := room.SyncSnapshot("bob")
	require.True(t, ok)
	assert.Equal(t, game.PhaseDeclaration, snap.Phase)
	assert.Equal(t, decl.Version, snap.Version, "the snapshot tracks the latest broadcast")
	assert.Equal(t, decl.Checksum, snap.Checksum)
	assert.Len(t, snap.MyHand, 8)

	_, ok = room.SyncSnapshot("mallory")
	assert.False(t, ok, "unknown names get no snapshot")
}

func TestDisconnectReclaimChurnThenClose(t *testing.T) {
	reg, _, _ := newTestRegistry(t, func(cfg *Config) {
		cfg.Game.BotDelayMinMS = 600_000
		cfg.Game.BotDelayMaxMS = 600_000
		cfg.Game.RedealTimeoutSeconds = 3600
	})
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	alice := newTestConn(reg)
	_, err = room.Join("alice", alice)
	require.NoError(t, err)
	alice.setSession("alice", room)
	for i := 0; i < 3; i++ {
		require.NoError(t, room.AddBot("alice", nil))
	}
	require.NoError(t, room.Start("alice"))
	prep := driveToPhase(t, room, alice, game.PhasePreparation)

	// Churn the connection while the consumer loop keeps handling decisions,
	// so seat-flag writes and timer updates overlap broadcast deliveries.
	conn := alice
	for i := 0; i < 10; i++ {
		if len(prep.PhaseData.AwaitingDecision) > 0 {
			_ = room.EnqueueAction(game.Action{
				Type:     game.ActionRedealDecision,
				PlayerID: prep.PhaseData.AwaitingDecision[0],
				Accept:   false,
				Value:    i,
			}, nil)
		}
		room.HandleDisconnect(conn)
		conn = newTestConn(reg)
		require.NoError(t, room.Reclaim("alice", conn))
		conn.setSession("alice", room)
	}

	room.Close("test over")
	assert.Zero(t, reg.RoomCount())
	assert.Error(t, room.Reclaim("alice", newTestConn(reg)), "closed rooms refuse reclaims")
}

func TestGracePeriodDestroysAbandonedRoom(t *testing.T) {
	reg, mock, metrics := newTestRegistry(t, func(cfg *Config) {
		cfg.Game.BotDelayMinMS = 600_000
		cfg.Game.BotDelayMaxMS = 600_000
		cfg.Game.RedealTimeoutSeconds = 3600
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	advance := func(d time.Duration) {
		for elapsed := time.Duration(0); elapsed < d; elapsed += time.Second {
			mock.Advance(time.Second).MustWait(ctx)
		}
	}

	room, err := reg.CreateRoom()
	require.NoError(t, err)

	alice := newTestConn(reg)
	_, err = room.Join("alice", alice)
	require.NoError(t, err)
	alice.setSession("alice", room)
	for i := 0; i < 3; i++ {
		require.NoError(t, room.AddBot("alice", nil))
	}
	require.NoError(t, room.Start("alice"))
	driveToPhase(t, room, alice, game.PhasePreparation)

	room.HandleDisconnect(alice)

	// Reclaiming inside the grace window revives the room.
	advance(10 * time.Second)
	alice2 := newTestConn(reg)
	require.NoError(t, room.Reclaim("alice", alice2))
	alice2.setSession("alice", room)
	advance(40 * time.Second)
	assert.Equal(t, 1, reg.RoomCount(), "reclaim cancelled the grace timer")

	// An explicit leave hands the seat to a bot for good and rearms the timer.
	delivered := testutil.ToFloat64(metrics.BroadcastsDelivered)
	room.Leave("alice")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.BroadcastsDelivered) > delivered
	}, 3*time.Second, 10*time.Millisecond, "the seat handover was broadcast")
	assert.Error(t, room.Reclaim("alice", newTestConn(reg)), "a left seat is gone for good")

	advance(31 * time.Second)
	require.Eventually(t, func() bool { return reg.RoomCount() == 0 },
		3*time.Second, 10*time.Millisecond, "idle room is destroyed after the grace period")

	assert.Error(t, room.EnqueueAction(game.Action{
		Type:     game.ActionDeclare,
		PlayerID: "alice",
	}, nil), "closed rooms accept no actions")
}

func TestEnqueueDedupWindow(t *testing.T) {
	reg, mock, metrics := newTestRegistry(t, func(cfg *Config) {
		cfg.Game.BotDelayMinMS = 600_000
		cfg.Game.BotDelayMaxMS = 600_000
		cfg.Game.RedealTimeoutSeconds = 3600
	})
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	alice := newTestConn(reg)
	_, err = room.Join("alice", alice)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, room.AddBot("alice", nil))
	}

	action := game.Action{Type: game.ActionDeclare, PlayerID: "alice", Value: 3}
	assert.Error(t, room.EnqueueAction(action, nil), "actions before start are rejected")

	require.NoError(t, room.Start("alice"))

	require.NoError(t, room.EnqueueAction(action, nil))
	require.NoError(t, room.EnqueueAction(action, nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActionsDeduped),
		"identical resubmission inside the window is dropped")

	mock.Advance(150 * time.Millisecond).MustWait(context.Background())
	require.NoError(t, room.EnqueueAction(action, nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActionsDeduped),
		"the window has elapsed, the action goes through again")
}

func TestRegistryGetRoomNormalizesCodes(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)
	room, err := reg.CreateRoom()
	require.NoError(t, err)

	assert.Same(t, room, reg.GetRoom(room.ID))
	sloppy := " " + room.ID[:3] + "-" + room.ID[3:] + " "
	assert.Same(t, room, reg.GetRoom(sloppy))
	assert.Nil(t, reg.GetRoom("NOPE"))
	assert.Nil(t, reg.GetRoom(""))
}
