package entity

// LastMessage is the overwritten-in-place snapshot of a conversation's most
// recent message, used for list rendering. Never appended.
type LastMessage struct {
	Text      string `json:"text"`
	SenderId  string `json:"sender_id"`
	MediaKind int32  `json:"media_kind,omitempty"`
	SentAt    int64  `json:"sent_at"`
}

// Conversation is the client-side view of one conversation
type Conversation struct {
	ConversationId string `json:"conversation_id"`
	Kind           int32  `json:"kind"`

	// Participants is keyed by user id. For rooms it holds the known room
	// membership; for direct and assigned conversations, both parties.
	Participants map[string]UserRef `json:"participants,omitempty"`

	LastMessage  LastMessage `json:"last_message"`
	UnreadCount  int64       `json:"unread_count"`
	LastActivity int64       `json:"last_activity"`

	// IsFavorite is externally supplied; the sync core only consumes it
	// for ranking.
	IsFavorite bool `json:"is_favorite"`

	// PeerUserId is the alternate id favorites may be keyed by for direct
	// conversations.
	PeerUserId string `json:"peer_user_id,omitempty"`

	IsOpen                bool `json:"-"`
	PendingMention        bool `json:"pending_mention"`
	PendingThreadActivity bool `json:"pending_thread_activity"`
}

// Touch advances LastActivity. The timestamp is monotonic per conversation:
// stale values never move it backwards.
func (c *Conversation) Touch(ts int64) {
	if ts > c.LastActivity {
		c.LastActivity = ts
	}
}

// Clone returns a shallow copy with its own participants map, so snapshots
// handed to the presentation layer are not aliased to live state.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.Participants != nil {
		cp.Participants = make(map[string]UserRef, len(c.Participants))
		for k, v := range c.Participants {
			cp.Participants[k] = v
		}
	}
	return &cp
}
