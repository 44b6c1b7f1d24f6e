package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbeoliero/chatsync/internal/entity"
)

func TestCounters_ReceiveMessage(t *testing.T) {
	c := NewCounters()
	conv := &entity.Conversation{ConversationId: "c1"}

	assert.True(t, c.ReceiveMessage(conv, false))
	assert.True(t, c.ReceiveMessage(conv, false))
	assert.Equal(t, int64(2), conv.UnreadCount)

	assert.False(t, c.ReceiveMessage(conv, true), "own message never counts")
	assert.Equal(t, int64(2), conv.UnreadCount)

	c.Open(conv)
	assert.Equal(t, int64(0), conv.UnreadCount)
	assert.False(t, c.ReceiveMessage(conv, false), "open conversation never counts")
	assert.Equal(t, int64(0), conv.UnreadCount)

	c.Close(conv)
	assert.True(t, c.ReceiveMessage(conv, false))
	assert.Equal(t, int64(1), conv.UnreadCount)
}

func TestCounters_OpenClearsPendingFlags(t *testing.T) {
	c := NewCounters()
	conv := &entity.Conversation{
		ConversationId:        "c1",
		UnreadCount:           3,
		PendingMention:        true,
		PendingThreadActivity: true,
	}

	c.Open(conv)
	assert.True(t, conv.IsOpen)
	assert.Zero(t, conv.UnreadCount)
	assert.False(t, conv.PendingMention)
	assert.False(t, conv.PendingThreadActivity)
}

func TestCounters_ThreadMonotonic(t *testing.T) {
	c := NewCounters()

	assert.True(t, c.AcceptThreadReply("m1", 1))
	assert.True(t, c.AcceptThreadReply("m1", 3))
	assert.False(t, c.AcceptThreadReply("m1", 3), "equal count is stale")
	assert.False(t, c.AcceptThreadReply("m1", 2), "smaller count is stale")
	assert.Equal(t, int64(3), c.ThreadCount("m1"))
}

func TestCounters_Rekey(t *testing.T) {
	c := NewCounters()
	c.AcceptThreadReply("tmp_1", 4)

	c.Rekey("tmp_1", "srv_1")
	assert.Equal(t, int64(0), c.ThreadCount("tmp_1"))
	assert.Equal(t, int64(4), c.ThreadCount("srv_1"))

	// Rekey never regresses an already-larger count.
	c.AcceptThreadReply("tmp_2", 1)
	c.AcceptThreadReply("srv_2", 5)
	c.Rekey("tmp_2", "srv_2")
	assert.Equal(t, int64(5), c.ThreadCount("srv_2"))
}
