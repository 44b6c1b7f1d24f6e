package syncer

import (
	"time"

	"github.com/mbeoliero/chatsync/pkg/idgen"
)

// identityEntry maps one provisional message id to its confirmed id
type identityEntry struct {
	confirmedId    string
	conversationId string
	createdAt      time.Time
}

// IdentityMap translates provisional (client-generated) message ids into
// server-confirmed ids. Entries expire after a fixed retention window,
// collected lazily on access rather than by a background timer.
//
// Not safe for concurrent use; the dispatcher serializes access.
type IdentityMap struct {
	retention time.Duration
	now       func() time.Time
	entries   map[string]identityEntry
}

// NewIdentityMap creates an IdentityMap with the given retention window
func NewIdentityMap(retention time.Duration, now func() time.Time) *IdentityMap {
	if now == nil {
		now = time.Now
	}
	return &IdentityMap{
		retention: retention,
		now:       now,
		entries:   make(map[string]identityEntry),
	}
}

// RecordConfirmation inserts or overwrites the mapping for a provisional id.
// Safe to call multiple times with the same pair.
func (m *IdentityMap) RecordConfirmation(provisionalId, confirmedId, conversationId string) {
	m.gc()
	m.entries[provisionalId] = identityEntry{
		confirmedId:    confirmedId,
		conversationId: conversationId,
		createdAt:      m.now(),
	}
}

// Resolve returns the confirmed id for a provisional id, the id unchanged if
// it is already confirmed, or "" if the id is provisional and not yet
// mapped. An empty result means "not yet resolvable", never an error.
func (m *IdentityMap) Resolve(id string) string {
	if !idgen.IsProvisional(id) {
		return id
	}
	m.gc()
	entry, ok := m.entries[id]
	if !ok {
		return ""
	}
	return entry.confirmedId
}

// ConversationOf returns the conversation a provisional id was confirmed in,
// or "" if unknown.
func (m *IdentityMap) ConversationOf(provisionalId string) string {
	m.gc()
	return m.entries[provisionalId].conversationId
}

// Len returns the number of live entries
func (m *IdentityMap) Len() int {
	m.gc()
	return len(m.entries)
}

// gc purges entries older than the retention window
func (m *IdentityMap) gc() {
	if len(m.entries) == 0 {
		return
	}
	cutoff := m.now().Add(-m.retention)
	for id, entry := range m.entries {
		if entry.createdAt.Before(cutoff) {
			delete(m.entries, id)
		}
	}
}
