package syncer

import "time"

// Ledger is the short-lived record of logical events that were already
// applied. The server announces the same logical occurrence over two
// independent notification paths; whichever path applies the mutation marks
// the ledger so the other path is a no-op. Entries expire after a window
// long enough to cover inter-path network jitter and short enough not to
// suppress legitimately repeated content.
//
// Not safe for concurrent use; the dispatcher serializes access.
type Ledger struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time // key -> expiresAt
}

// NewLedger creates a Ledger with the given entry TTL
func NewLedger(ttl time.Duration, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]time.Time),
	}
}

// Mark records that the logical event identified by key has been applied
func (l *Ledger) Mark(key string) {
	l.purge()
	l.entries[key] = l.now().Add(l.ttl)
}

// Seen reports whether the logical event identified by key was already
// applied within the TTL window.
func (l *Ledger) Seen(key string) bool {
	l.purge()
	expiresAt, ok := l.entries[key]
	if !ok {
		return false
	}
	return l.now().Before(expiresAt)
}

// Len returns the number of live entries
func (l *Ledger) Len() int {
	l.purge()
	return len(l.entries)
}

// purge drops expired entries
func (l *Ledger) purge() {
	if len(l.entries) == 0 {
		return
	}
	now := l.now()
	for key, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, key)
		}
	}
}
