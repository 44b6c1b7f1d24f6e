package event

import "github.com/mbeoliero/chatsync/internal/entity"

// Event is the closed union of gateway push events the dispatcher consumes.
// Each concrete type corresponds to one push identifier on the wire.
type Event interface {
	// EventName returns a stable name for routing and logging
	EventName() string
}

// MessageDelivered is the direct per-message notification path
type MessageDelivered struct {
	Id             string
	ConversationId string
	Sender         entity.UserRef
	Text           string
	MediaKind      int32
	SentAt         int64
	// IsOwnEcho is set when the message originated from the current user
	// on this or another device.
	IsOwnEcho bool
}

func (MessageDelivered) EventName() string { return "message_delivered" }

// ConversationSummaryUpdated is the redundant per-conversation notification
// path. The server emits it independently of MessageDelivered for the same
// logical message; no ordering between the two is guaranteed.
type ConversationSummaryUpdated struct {
	ConversationId string
	LastMessage    entity.LastMessage
	LastActivity   int64
	Sender         entity.UserRef
}

func (ConversationSummaryUpdated) EventName() string { return "conversation_summary_updated" }

// ReadReceipt reports that a reader has read one or more messages. The
// single-message and batched server paths both decode into this type.
type ReadReceipt struct {
	MessageIds []string
	Reader     entity.UserRef
	ReadAt     int64
}

func (ReadReceipt) EventName() string { return "read_receipt" }

// ThreadReplyCountChanged reports thread activity under a message. The
// server emits partial instances with no count; those must be ignored in
// favor of the instance carrying the full payload.
type ThreadReplyCountChanged struct {
	MessageId      string
	ConversationId string
	NewCount       *int64 // nil means partial payload
	LastReplyFrom  entity.UserRef
	ReplyText      string
}

func (ThreadReplyCountChanged) EventName() string { return "thread_reply_count_changed" }

// IdentityConfirmed maps a provisional message id to its server-confirmed id
type IdentityConfirmed struct {
	ProvisionalId  string
	ConfirmedId    string
	ConversationId string
}

func (IdentityConfirmed) EventName() string { return "identity_confirmed" }

// MembershipChanged reports a participant joining or leaving a conversation
type MembershipChanged struct {
	ConversationId string
	User           entity.UserRef
	Kind           int32 // constant.MemberAdded or constant.MemberRemoved
}

func (MembershipChanged) EventName() string { return "membership_changed" }

// PresenceChanged reports a user's online status
type PresenceChanged struct {
	UserId   string
	IsOnline bool
}

func (PresenceChanged) EventName() string { return "presence_changed" }
