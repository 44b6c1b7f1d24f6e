package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatsync/internal/entity"
	"github.com/mbeoliero/chatsync/internal/event"
)

const (
	testConv = "si_alice_bob"
	me       = "alice"
	peer     = "bob"
)

func currentUser() entity.UserRef {
	return entity.UserRef{Id: me, Nickname: "Alice"}
}

func unread(t *testing.T, d *Dispatcher, convId string) int64 {
	t.Helper()
	conv := d.Conversation(convId)
	require.NotNil(t, conv, "conversation %s should exist", convId)
	return conv.UnreadCount
}

func TestDispatcher_DedupPaths(t *testing.T) {
	t.Run("direct then summary counts once", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))

		rig.clock.Advance(200 * time.Millisecond)
		rig.d.Handle(summaryFor(testConv, peer, "hi", 1000))
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))

		rig.clock.Advance(100 * time.Millisecond)
		rig.sched.Fire() // trailing fallback must be a no-op
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))
	})

	t.Run("summary then direct counts once", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "hi", 1000))
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))

		rig.clock.Advance(150 * time.Millisecond)
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		// The direct path saw the ledger mark and scheduled nothing.
		assert.Equal(t, 0, rig.sched.Pending())
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))
	})

	t.Run("direct only counts once via fallback", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		assert.Equal(t, int64(0), unread(t, rig.d, testConv))

		rig.sched.Fire()
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))
	})

	t.Run("summary only counts once", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "hi", 1000))
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))
	})

	t.Run("transport duplicate of direct counts once", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		rig.sched.Fire()
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))
	})

	t.Run("distinct messages both count", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "one", 1000))
		rig.d.Handle(summaryFor(testConv, peer, "two", 2000))
		assert.Equal(t, int64(2), unread(t, rig.d, testConv))
	})

	t.Run("same id redelivered after the window counts once", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		rig.sched.Fire()
		require.Equal(t, int64(1), unread(t, rig.d, testConv))

		// At-least-once transport redelivers the identical event long
		// after the dedup window has lapsed.
		rig.clock.Advance(2 * time.Second)
		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		rig.sched.Fire()
		assert.Equal(t, int64(1), unread(t, rig.d, testConv))
	})

	t.Run("live event for a seeded message does not count", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.SeedMessages(testConv, []*entity.Message{{
			Id: "srv_1", ConversationId: testConv, SenderId: peer, Text: "hi", SentAt: 1000,
		}})

		rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
		rig.sched.Fire()
		assert.Equal(t, int64(0), unread(t, rig.d, testConv))
	})

	t.Run("summary after ledger expiry still counts once per message", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "hi", 1000))
		rig.clock.Advance(2 * time.Second)
		// Same content repeated after the window is a new logical message.
		rig.d.Handle(summaryFor(testConv, peer, "hi", 3000))
		assert.Equal(t, int64(2), unread(t, rig.d, testConv))
	})
}

func TestDispatcher_OwnEchoNeverCounts(t *testing.T) {
	rig := newTestRig(currentUser())
	echo := directMessage("srv_1", testConv, me, "my own message", 1000)
	echo.IsOwnEcho = true
	rig.d.Handle(echo)
	rig.sched.Fire()
	assert.Equal(t, int64(0), unread(t, rig.d, testConv))

	rig.d.Handle(summaryFor(testConv, me, "my own message", 1000))
	assert.Equal(t, int64(0), unread(t, rig.d, testConv))
}

func TestDispatcher_OpenConversationInvariant(t *testing.T) {
	rig := newTestRig(currentUser())
	rig.d.Handle(summaryFor(testConv, peer, "before open", 1000))
	require.Equal(t, int64(1), unread(t, rig.d, testConv))

	rig.d.OpenConversation(testConv)
	assert.Equal(t, int64(0), unread(t, rig.d, testConv))

	// New messages while open never increment, but they append.
	rig.d.Handle(directMessage("srv_2", testConv, peer, "while open", 2000))
	rig.sched.Fire()
	assert.Equal(t, int64(0), unread(t, rig.d, testConv))
	msgs := rig.d.Messages(testConv)
	require.Len(t, msgs, 1)
	assert.Equal(t, "while open", msgs[0].Text)

	// Closing leaves the counter where it is; the next message counts.
	rig.d.CloseConversation(testConv)
	rig.d.Handle(summaryFor(testConv, peer, "after close", 3000))
	assert.Equal(t, int64(1), unread(t, rig.d, testConv))
}

func TestDispatcher_MentionFlagsAndNotification(t *testing.T) {
	rig := newTestRig(currentUser())
	var intents []NotificationIntent
	sub := rig.d.Subscribe(Callbacks{
		OnNotification: func(intent NotificationIntent) {
			intents = append(intents, intent)
		},
	})
	defer sub.Cancel()

	rig.d.Handle(summaryFor(testConv, peer, "hey @alice look at this", 1000))

	conv := rig.d.Conversation(testConv)
	require.NotNil(t, conv)
	assert.True(t, conv.PendingMention)

	require.Len(t, intents, 1)
	assert.True(t, intents[0].IsMention)
	assert.True(t, intents[0].ShouldPlaySound)
	assert.True(t, intents[0].ShouldShowSystemNotification)
	assert.Equal(t, "bob", intents[0].Title)
}

func TestDispatcher_NoNotificationForOwnEcho(t *testing.T) {
	rig := newTestRig(currentUser())
	var intents []NotificationIntent
	sub := rig.d.Subscribe(Callbacks{
		OnNotification: func(intent NotificationIntent) {
			intents = append(intents, intent)
		},
	})
	defer sub.Cancel()

	rig.d.Handle(summaryFor(testConv, me, "note to self", 1000))
	assert.Empty(t, intents)
}

func TestDispatcher_ThreadReplies(t *testing.T) {
	count := func(n int64) *int64 { return &n }

	t.Run("monotonic guard", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "root", 1000))

		rig.d.Handle(event.ThreadReplyCountChanged{
			MessageId:      "srv_7",
			ConversationId: testConv,
			NewCount:       count(3),
			LastReplyFrom:  entity.UserRef{Id: peer},
		})
		rig.d.Handle(event.ThreadReplyCountChanged{
			MessageId:      "srv_7",
			ConversationId: testConv,
			NewCount:       count(2),
			LastReplyFrom:  entity.UserRef{Id: peer},
		})
		assert.Equal(t, int64(3), rig.d.counters.ThreadCount("srv_7"))
	})

	t.Run("partial payload ignored", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "root", 1000))

		rig.d.Handle(event.ThreadReplyCountChanged{
			MessageId:      "srv_7",
			ConversationId: testConv,
			NewCount:       nil,
			LastReplyFrom:  entity.UserRef{Id: "x"},
		})
		assert.Equal(t, int64(0), rig.d.counters.ThreadCount("srv_7"))

		rig.d.Handle(event.ThreadReplyCountChanged{
			MessageId:      "srv_7",
			ConversationId: testConv,
			NewCount:       count(3),
			LastReplyFrom:  entity.UserRef{Id: "x"},
		})
		assert.Equal(t, int64(3), rig.d.counters.ThreadCount("srv_7"))
	})

	t.Run("sets pending flags on closed conversation", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "root", 1000))

		rig.d.Handle(event.ThreadReplyCountChanged{
			MessageId:      "srv_7",
			ConversationId: testConv,
			NewCount:       count(1),
			LastReplyFrom:  entity.UserRef{Id: peer},
			ReplyText:      "what do you think @alice?",
		})
		conv := rig.d.Conversation(testConv)
		require.NotNil(t, conv)
		assert.True(t, conv.PendingThreadActivity)
		assert.True(t, conv.PendingMention)
	})

	t.Run("own reply sets no flags", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(summaryFor(testConv, peer, "root", 1000))

		rig.d.Handle(event.ThreadReplyCountChanged{
			MessageId:      "srv_7",
			ConversationId: testConv,
			NewCount:       count(1),
			LastReplyFrom:  entity.UserRef{Id: me},
		})
		conv := rig.d.Conversation(testConv)
		require.NotNil(t, conv)
		assert.False(t, conv.PendingThreadActivity)
	})
}

func TestDispatcher_IdentityResolution(t *testing.T) {
	rig := newTestRig(currentUser())
	rig.d.OpenConversation(testConv)

	// Local echo known only by its provisional id.
	rig.d.SeedMessages(testConv, []*entity.Message{{
		Id:             "tmp_1",
		ConversationId: testConv,
		SenderId:       me,
		Text:           "outgoing",
		SentAt:         1000,
	}})

	rig.d.Handle(event.IdentityConfirmed{
		ProvisionalId:  "tmp_1",
		ConfirmedId:    "srv_42",
		ConversationId: testConv,
	})

	// Lookups by either id land on the same logical message.
	byProvisional := rig.d.Message("tmp_1")
	byConfirmed := rig.d.Message("srv_42")
	require.NotNil(t, byProvisional)
	require.NotNil(t, byConfirmed)
	assert.Equal(t, "srv_42", byProvisional.Id)
	assert.Equal(t, "srv_42", byConfirmed.Id)

	// A later receipt that still carries the provisional id resolves.
	rig.d.Handle(event.ReadReceipt{
		MessageIds: []string{"tmp_1"},
		Reader:     entity.UserRef{Id: peer},
		ReadAt:     2000,
	})
	assert.Equal(t, 1, rig.d.Message("srv_42").ReadCount)
}

func TestDispatcher_ReadReceipts(t *testing.T) {
	t.Run("single and batch paths count a reader once", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.OpenConversation(testConv)
		rig.d.SeedMessages(testConv, []*entity.Message{{
			Id: "srv_1", ConversationId: testConv, SenderId: me, Text: "m", SentAt: 1000,
		}})

		rig.d.Handle(event.ReadReceipt{MessageIds: []string{"srv_1"}, Reader: entity.UserRef{Id: peer}})
		rig.d.Handle(event.ReadReceipt{MessageIds: []string{"srv_1"}, Reader: entity.UserRef{Id: peer}})
		assert.Equal(t, 1, rig.d.Message("srv_1").ReadCount)
	})

	t.Run("snapshots own their reader sets", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.OpenConversation(testConv)
		rig.d.SeedMessages(testConv, []*entity.Message{{
			Id: "srv_1", ConversationId: testConv, SenderId: me, Text: "m", SentAt: 1000,
			ReadBy: map[string]struct{}{"carol": {}},
		}})

		snap := rig.d.Message("srv_1")
		listSnap := rig.d.Messages(testConv)

		rig.d.Handle(event.ReadReceipt{MessageIds: []string{"srv_1"}, Reader: entity.UserRef{Id: peer}})

		// The earlier snapshots must not see the later mutation.
		assert.NotContains(t, snap.ReadBy, peer)
		assert.Equal(t, 1, snap.ReadCount)
		require.Len(t, listSnap, 1)
		assert.NotContains(t, listSnap[0].ReadBy, peer)

		assert.Contains(t, rig.d.Message("srv_1").ReadBy, peer)
		assert.Equal(t, 2, rig.d.Message("srv_1").ReadCount)
	})

	t.Run("receipt for unconfirmed provisional id is deferred", func(t *testing.T) {
		rig := newTestRig(currentUser())
		rig.d.Handle(event.ReadReceipt{MessageIds: []string{"tmp_9"}, Reader: entity.UserRef{Id: peer}})

		rig.d.OpenConversation(testConv)
		rig.d.SeedMessages(testConv, []*entity.Message{{
			Id: "srv_9", ConversationId: testConv, SenderId: me, Text: "m", SentAt: 1000,
		}})
		rig.d.Handle(event.IdentityConfirmed{ProvisionalId: "tmp_9", ConfirmedId: "srv_9", ConversationId: testConv})

		assert.Equal(t, 1, rig.d.Message("srv_9").ReadCount)
	})
}

func TestDispatcher_MembershipAndPresence(t *testing.T) {
	rig := newTestRig(currentUser())

	rig.d.Handle(event.MembershipChanged{
		ConversationId: "sg_room1",
		User:           entity.UserRef{Id: "carol", Nickname: "Carol"},
		Kind:           1,
	})
	conv := rig.d.Conversation("sg_room1")
	require.NotNil(t, conv)
	assert.Contains(t, conv.Participants, "carol")
	assert.Equal(t, int32(2), conv.Kind) // room kind derived from the id prefix

	rig.d.Handle(event.MembershipChanged{
		ConversationId: "sg_room1",
		User:           entity.UserRef{Id: "carol"},
		Kind:           2,
	})
	assert.NotContains(t, rig.d.Conversation("sg_room1").Participants, "carol")

	var seen []string
	sub := rig.d.Subscribe(Callbacks{
		OnPresence: func(userId string, online bool) {
			seen = append(seen, userId)
		},
	})
	defer sub.Cancel()

	rig.d.Handle(event.PresenceChanged{UserId: "carol", IsOnline: true})
	rig.d.Handle(event.PresenceChanged{UserId: "carol", IsOnline: true}) // duplicate, no delta
	assert.True(t, rig.d.IsOnline("carol"))
	assert.Equal(t, []string{"carol"}, seen)
}

func TestDispatcher_TeardownInvalidatesTimers(t *testing.T) {
	rig := newTestRig(currentUser())
	rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))
	require.Equal(t, 1, rig.sched.Pending())

	before := unread(t, rig.d, testConv)
	require.Equal(t, int64(0), before)

	rig.d.Close()
	rig.sched.Fire()

	// Leaked timer fired after teardown: guaranteed no-op.
	assert.Equal(t, int64(0), unread(t, rig.d, testConv))
}

func TestDispatcher_ResyncInvalidatesTimers(t *testing.T) {
	rig := newTestRig(currentUser())
	rig.d.Handle(directMessage("srv_1", testConv, peer, "hi", 1000))

	rig.d.Resync([]*entity.Conversation{{
		ConversationId: testConv,
		UnreadCount:    5,
		LastActivity:   9000,
	}})
	rig.sched.Fire() // pre-resync fallback must not double-apply

	assert.Equal(t, int64(5), unread(t, rig.d, testConv))
}

func TestDispatcher_ResyncKeepsOpenConversation(t *testing.T) {
	rig := newTestRig(currentUser())
	rig.d.OpenConversation(testConv)

	rig.d.Resync([]*entity.Conversation{{
		ConversationId: testConv,
		UnreadCount:    7,
	}})

	conv := rig.d.Conversation(testConv)
	require.NotNil(t, conv)
	assert.True(t, conv.IsOpen)
	assert.Equal(t, int64(0), conv.UnreadCount)
}

func TestDispatcher_SubscriptionLifecycle(t *testing.T) {
	rig := newTestRig(currentUser())
	calls := 0
	sub := rig.d.Subscribe(Callbacks{
		OnConversations: func([]*entity.Conversation) { calls++ },
	})

	rig.d.Handle(summaryFor(testConv, peer, "one", 1000))
	require.Equal(t, 1, calls)

	sub.Cancel()
	rig.d.Handle(summaryFor(testConv, peer, "two", 2000))
	assert.Equal(t, 1, calls, "cancelled subscription must not fire")
}
