package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatsync/internal/config"
	"github.com/mbeoliero/chatsync/pkg/constant"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "chatsync.db")
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := jwtlib.RegisteredClaims{
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestApp_ScheduleReloginArmsTimer(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	a.scheduleRelogin(ctx, signedToken(t, time.Hour), "pw")
	a.mu.Lock()
	first := a.relogin
	a.mu.Unlock()
	require.NotNil(t, first)

	// Rescheduling replaces the armed timer instead of leaking it
	a.scheduleRelogin(ctx, signedToken(t, 2*time.Hour), "pw")
	a.mu.Lock()
	second := a.relogin
	a.mu.Unlock()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	require.NoError(t, a.Close())
	a.mu.Lock()
	assert.Nil(t, a.relogin)
	a.mu.Unlock()
}

func TestApp_ScheduleReloginAfterClose(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Close())

	// A refresh callback racing Close must not arm a timer on a closed app
	a.scheduleRelogin(ctx, signedToken(t, time.Hour), "pw")
	a.mu.Lock()
	assert.Nil(t, a.relogin)
	a.mu.Unlock()
}

func TestApp_ScheduleReloginSkipsExpiredToken(t *testing.T) {
	a := newTestApp(t)
	defer a.Close()
	ctx := context.Background()

	a.scheduleRelogin(ctx, signedToken(t, -time.Minute), "pw")
	a.mu.Lock()
	assert.Nil(t, a.relogin)
	a.mu.Unlock()
}

func TestKindFromId(t *testing.T) {
	assert.Equal(t, int32(constant.ConvKindDirect), kindFromId("si_alice_bob"))
	assert.Equal(t, int32(constant.ConvKindRoom), kindFromId("sg_room_1"))
	assert.Equal(t, int32(constant.ConvKindAssigned), kindFromId("sa_ticket_9"))
	assert.Equal(t, int32(constant.ConvKindDirect), kindFromId("unknown"))
}
