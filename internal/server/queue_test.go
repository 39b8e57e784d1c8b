package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerQueueOrderAndDrain(t *testing.T) {
	q := newPlayerQueue()
	for i := 0; i < 5; i++ {
		msg, err := NewMessage(MessageTypeRoomUpdate, map[string]int{"seq": i})
		require.NoError(t, err)
		q.Push(msg)
	}
	assert.Equal(t, 5, q.Len())

	drained := q.Drain()
	require.Len(t, drained, 5)
	for i, msg := range drained {
		assert.Contains(t, string(msg.Data), fmt.Sprintf(`"seq":%d`, i))
	}
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}

func TestPlayerQueueEvictsOldestAtCap(t *testing.T) {
	q := newPlayerQueue()
	for i := 0; i < playerQueueCap+10; i++ {
		msg, err := NewMessage(MessageTypeRoomUpdate, map[string]int{"seq": i})
		require.NoError(t, err)
		q.Push(msg)
	}
	assert.Equal(t, playerQueueCap, q.Len())
	assert.Equal(t, 10, q.Dropped())

	drained := q.Drain()
	assert.Contains(t, string(drained[0].Data), `"seq":10`, "oldest entries were evicted")
	assert.Contains(t, string(drained[len(drained)-1].Data), fmt.Sprintf(`"seq":%d`, playerQueueCap+9))
}
