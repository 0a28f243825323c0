package rategate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGate(t *testing.T) (*Gate, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, zap.NewNop()), mr
}

func TestCheckMoreTime_ClearWhenUnset(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	at := gate.CheckMoreTime(ctx, "chat-1")
	assert.True(t, at.IsZero())
}

func TestNeedsMoreTime_ThenCheck(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	future := time.Now().Add(30 * time.Second)
	gate.NeedsMoreTime(ctx, "chat-1", future)

	at := gate.CheckMoreTime(ctx, "chat-1")
	assert.False(t, at.IsZero())
	assert.WithinDuration(t, future, at, time.Second)
}

func TestCheckMoreTime_IgnoresPastMarker(t *testing.T) {
	gate, mr := newTestGate(t)
	ctx := context.Background()

	// Write a retry-at in the past directly, bypassing NeedsMoreTime's own
	// clamp, to exercise the fail-open read path.
	require.NoError(t, mr.Set(key("chat-1"), "1"))

	at := gate.CheckMoreTime(ctx, "chat-1")
	assert.True(t, at.IsZero())
}

func TestGate_IsPerChat(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	gate.NeedsMoreTime(ctx, "chat-1", time.Now().Add(time.Minute))

	at := gate.CheckMoreTime(ctx, "chat-2")
	assert.True(t, at.IsZero())
}
