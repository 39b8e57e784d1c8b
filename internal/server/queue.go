package server

import "sync"

// playerQueueCap bounds the number of critical events held for a
// disconnected player.
const playerQueueCap = 100

// playerQueue buffers critical events for a disconnected player so they can
// be replayed in order on reconnect. When full, the oldest entry is evicted
// to make room; non-critical events are never queued.
type playerQueue struct {
	mu       sync.Mutex
	messages []*Message
	dropped  int
}

func newPlayerQueue() *playerQueue {
	return &playerQueue{}
}

// Push appends a message, evicting the oldest on overflow.
func (q *playerQueue) Push(msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) >= playerQueueCap {
		q.messages = q.messages[1:]
		q.dropped++
	}
	q.messages = append(q.messages, msg)
}

// Drain returns all queued messages in arrival order and empties the queue.
func (q *playerQueue) Drain() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.messages
	q.messages = nil
	return out
}

// Len returns the number of queued messages.
func (q *playerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Dropped returns how many messages were evicted due to overflow.
func (q *playerQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
