package server

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaptui/liaptui/internal/game"
)

func TestBroadcasterDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var delivered []int
	b := NewBroadcaster(log.New(io.Discard), quartz.NewReal(), func(e game.Event) {
		mu.Lock()
		delivered = append(delivered, e.Data.(int))
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		b.Publish(game.Event{Type: game.EventPhaseChange, Data: i})
	}
	b.Close()

	require.Len(t, delivered, 50)
	for i, got := range delivered {
		assert.Equal(t, i, got)
	}
}

func TestBroadcasterPurgesStaleNonCritical(t *testing.T) {
	mock := quartz.NewMock(t)
	gate := make(chan struct{})
	blockFirst := true

	var mu sync.Mutex
	var delivered []game.Event
	b := NewBroadcaster(log.New(io.Discard), mock, func(e game.Event) {
		if blockFirst {
			blockFirst = false
			<-gate
		}
		mu.Lock()
		delivered = append(delivered, e)
		mu.Unlock()
	})

	// The worker dequeues this and stalls inside deliver.
	b.Publish(game.Event{Type: game.EventPhaseChange, Data: "head"})
	require.Eventually(t, func() bool { return b.Depth() == 0 }, time.Second, time.Millisecond)

	for i := 0; i < broadcastPurgeDepth+1; i++ {
		b.Publish(game.Event{Type: game.EventPhaseChange, Data: i})
	}
	assert.Equal(t, broadcastPurgeDepth+1, b.Depth(), "fresh events are never purged")

	mock.Advance(broadcastPurgeAge + time.Second)
	b.Publish(game.Event{Type: game.EventGameOver, Data: "final", Critical: true})
	assert.Equal(t, 1, b.Depth(), "stale non-critical events purged, critical survives")

	close(gate)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 2)
	assert.Equal(t, "head", delivered[0].Data)
	assert.Equal(t, "final", delivered[1].Data)
}

func TestBroadcasterPublishAfterClose(t *testing.T) {
	b := NewBroadcaster(log.New(io.Discard), quartz.NewReal(), func(game.Event) {})
	b.Close()
	b.Publish(game.Event{Type: game.EventPhaseChange})
	assert.Zero(t, b.Depth())
}
