package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/liaptui/liaptui/internal/game"
)

const (
	// Queue depth above which stale non-critical events become eligible for
	// purging, and the age that makes them stale.
	broadcastPurgeDepth = 30
	broadcastPurgeAge   = 5 * time.Second
)

type pendingEvent struct {
	event game.Event
	at    time.Time
}

// Broadcaster serializes a room's outbound events. A single worker drains the
// queue and hands each event to the delivery function in publish order, so
// every observer of the room sees the same sequence.
type Broadcaster struct {
	logger  *log.Logger
	clock   quartz.Clock
	deliver func(game.Event)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pendingEvent
	closed bool
	done   chan struct{}
}

// NewBroadcaster starts the delivery worker. deliver runs on the worker
// goroutine, one event at a time.
func NewBroadcaster(logger *log.Logger, clock quartz.Clock, deliver func(game.Event)) *Broadcaster {
	b := &Broadcaster{
		logger:  logger.WithPrefix("broadcast"),
		clock:   clock,
		deliver: deliver,
		done:    make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.run()
	return b
}

// Publish enqueues an event for ordered delivery. Publishing to a closed
// broadcaster is a no-op.
func (b *Broadcaster) Publish(e game.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, pendingEvent{event: e, at: b.clock.Now()})
	b.purgeLocked()
	b.cond.Signal()
}

// purgeLocked drops stale non-critical events when the queue is deep, keeping
// slow consumers from stalling the room indefinitely.
func (b *Broadcaster) purgeLocked() {
	if len(b.queue) <= broadcastPurgeDepth {
		return
	}
	cutoff := b.clock.Now().Add(-broadcastPurgeAge)
	kept := b.queue[:0]
	purged := 0
	for _, p := range b.queue {
		if !p.event.Critical && p.at.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, p)
	}
	b.queue = kept
	if purged > 0 {
		b.logger.Warn("purged stale broadcast events", "purged", purged, "depth", len(b.queue))
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.deliver(next.event)
	}
}

// Close stops accepting events, delivers what is already queued and waits for
// the worker to finish.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
	<-b.done
}

// Depth returns the current queue depth.
func (b *Broadcaster) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
