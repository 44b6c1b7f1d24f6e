package entity

import "github.com/mbeoliero/chatsync/pkg/idgen"

// Message is the client-side view of a single logical message. Exactly one
// Message exists per logical message even though it may be observed through
// several event types; once the provisional id is confirmed, lookups by
// either id land on the same value.
type Message struct {
	Id             string `json:"id"` // provisional (tmp_ prefixed) or confirmed
	ConversationId string `json:"conversation_id"`
	SenderId       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Text           string `json:"text"`
	MediaKind      int32  `json:"media_kind,omitempty"`
	SentAt         int64  `json:"sent_at"`

	// ReadBy is nil until materialized by a history pull; while nil,
	// ReadCount is tracked independently and is the authoritative value.
	ReadBy    map[string]struct{} `json:"-"`
	ReadCount int                 `json:"read_count"`

	ThreadReplyCount    int64  `json:"thread_reply_count"`
	LastThreadReplyFrom string `json:"last_thread_reply_from,omitempty"`
}

// Clone returns a copy with its own ReadBy set, so snapshots handed to the
// presentation layer are not aliased to live state.
func (m *Message) Clone() *Message {
	cp := *m
	if m.ReadBy != nil {
		cp.ReadBy = make(map[string]struct{}, len(m.ReadBy))
		for r := range m.ReadBy {
			cp.ReadBy[r] = struct{}{}
		}
	}
	return &cp
}

// Confirmed reports whether the message carries a server-confirmed id
func (m *Message) Confirmed() bool {
	return !idgen.IsProvisional(m.Id)
}

// MarkReadBy records that a user has read the message. Returns false if the
// read was already known. ReadBy only grows; ReadCount stays equal to
// len(ReadBy) once the set is materialized.
func (m *Message) MarkReadBy(userId string) bool {
	if m.ReadBy == nil {
		// Set not materialized; count independently.
		m.ReadCount++
		return true
	}
	if _, ok := m.ReadBy[userId]; ok {
		return false
	}
	m.ReadBy[userId] = struct{}{}
	m.ReadCount = len(m.ReadBy)
	return true
}

// MaterializeReadBy installs a fully-loaded reader set, reconciling the
// independently-tracked count. The set union is monotonic.
func (m *Message) MaterializeReadBy(readers []string) {
	if m.ReadBy == nil {
		m.ReadBy = make(map[string]struct{}, len(readers))
	}
	for _, r := range readers {
		m.ReadBy[r] = struct{}{}
	}
	if len(m.ReadBy) > m.ReadCount {
		m.ReadCount = len(m.ReadBy)
	}
}
