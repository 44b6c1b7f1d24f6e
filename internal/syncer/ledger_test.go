package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLedger_MarkAndSeen(t *testing.T) {
	clock := newFakeClock()
	l := NewLedger(time.Second, clock.Now)

	assert.False(t, l.Seen("done:c1"))
	l.Mark("done:c1")
	assert.True(t, l.Seen("done:c1"))
	assert.False(t, l.Seen("done:c2"))
}

func TestLedger_Expiry(t *testing.T) {
	clock := newFakeClock()
	l := NewLedger(time.Second, clock.Now)

	l.Mark("done:c1")
	clock.Advance(999 * time.Millisecond)
	assert.True(t, l.Seen("done:c1"))

	clock.Advance(time.Millisecond)
	assert.False(t, l.Seen("done:c1"), "entry at exactly TTL is expired")
	assert.Equal(t, 0, l.Len(), "expired entries are purged lazily")
}

func TestLedger_RemarkExtendsWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewLedger(time.Second, clock.Now)

	l.Mark("k")
	clock.Advance(800 * time.Millisecond)
	l.Mark("k")
	clock.Advance(800 * time.Millisecond)
	assert.True(t, l.Seen("k"))
}
