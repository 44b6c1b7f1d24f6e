package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityMap_Resolve(t *testing.T) {
	clock := newFakeClock()
	m := NewIdentityMap(5*time.Minute, clock.Now)

	t.Run("confirmed ids pass through", func(t *testing.T) {
		assert.Equal(t, "srv_42", m.Resolve("srv_42"))
	})

	t.Run("unmapped provisional id is not resolvable", func(t *testing.T) {
		assert.Equal(t, "", m.Resolve("tmp_1"))
	})

	t.Run("resolution is stable once recorded", func(t *testing.T) {
		m.RecordConfirmation("tmp_1", "srv_42", "si_a_b")
		assert.Equal(t, "srv_42", m.Resolve("tmp_1"))
		assert.Equal(t, "srv_42", m.Resolve("srv_42"))
		assert.Equal(t, "si_a_b", m.ConversationOf("tmp_1"))

		// Recording the same pair again is idempotent.
		m.RecordConfirmation("tmp_1", "srv_42", "si_a_b")
		assert.Equal(t, "srv_42", m.Resolve("tmp_1"))
		assert.Equal(t, 1, m.Len())
	})
}

func TestIdentityMap_RetentionGC(t *testing.T) {
	clock := newFakeClock()
	m := NewIdentityMap(5*time.Minute, clock.Now)

	m.RecordConfirmation("tmp_1", "srv_1", "c1")
	clock.Advance(3 * time.Minute)
	m.RecordConfirmation("tmp_2", "srv_2", "c1")

	clock.Advance(2*time.Minute + time.Second)
	// tmp_1 is past retention, tmp_2 is not.
	assert.Equal(t, "", m.Resolve("tmp_1"))
	assert.Equal(t, "srv_2", m.Resolve("tmp_2"))
	assert.Equal(t, 1, m.Len())
}
