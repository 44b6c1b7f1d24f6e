package syncer

import "github.com/mbeoliero/chatsync/internal/entity"

// Counters owns the rules for when per-conversation unread counters and
// per-message thread-reply counters may increment, reset, or be ignored.
// Thread counts are tracked here (not only on the message) so the monotonic
// guard holds even for messages whose bodies are not loaded locally.
//
// Not safe for concurrent use; the dispatcher serializes access.
type Counters struct {
	threadCounts map[string]int64 // message id -> last accepted reply count
}

// NewCounters creates an empty counter state
func NewCounters() *Counters {
	return &Counters{threadCounts: make(map[string]int64)}
}

// ReceiveMessage applies the unread rule for a newly counted message and
// reports whether the unread counter was incremented. Own messages and
// messages into the open conversation never increment.
func (c *Counters) ReceiveMessage(conv *entity.Conversation, own bool) bool {
	if own || conv.IsOpen {
		return false
	}
	conv.UnreadCount++
	return true
}

// Open marks the conversation open and resets its unread counter. While
// open, the counter never increments.
func (c *Counters) Open(conv *entity.Conversation) {
	conv.IsOpen = true
	conv.UnreadCount = 0
	conv.PendingMention = false
	conv.PendingThreadActivity = false
}

// Close marks the conversation closed. The unread counter is unaffected.
func (c *Counters) Close(conv *entity.Conversation) {
	conv.IsOpen = false
}

// AcceptThreadReply applies the monotonic guard for a thread reply count.
// A count less than or equal to the recorded value is a stale or duplicate
// network delivery and is silently ignored.
func (c *Counters) AcceptThreadReply(messageId string, newCount int64) bool {
	if newCount <= c.threadCounts[messageId] {
		return false
	}
	c.threadCounts[messageId] = newCount
	return true
}

// ThreadCount returns the last accepted reply count for a message
func (c *Counters) ThreadCount(messageId string) int64 {
	return c.threadCounts[messageId]
}

// Rekey moves thread-count state from a provisional message id to its
// confirmed id, keeping whichever count is larger.
func (c *Counters) Rekey(oldId, newId string) {
	count, ok := c.threadCounts[oldId]
	if !ok {
		return
	}
	delete(c.threadCounts, oldId)
	if count > c.threadCounts[newId] {
		c.threadCounts[newId] = count
	}
}
