package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/queue"
	"github.com/foxden/sourcewatch/internal/rategate"
)

func TestBuildKeyboard_EvenCountTwoPerRow(t *testing.T) {
	links := []platform.SiteLink{{Label: "a"}, {Label: "b"}, {Label: "c"}, {Label: "d"}}
	kb := buildKeyboard(links)
	require.Len(t, kb.Rows, 2)
	assert.Len(t, kb.Rows[0], 2)
	assert.Len(t, kb.Rows[1], 2)
}

func TestBuildKeyboard_OddCountOnePerRow(t *testing.T) {
	links := []platform.SiteLink{{Label: "a"}, {Label: "b"}, {Label: "c"}}
	kb := buildKeyboard(links)
	require.Len(t, kb.Rows, 3)
	for _, row := range kb.Rows {
		assert.Len(t, row, 1)
	}
}

func TestBuildCaption_JoinsURLsWithNewlines(t *testing.T) {
	links := []platform.SiteLink{{URL: "https://a"}, {URL: "https://b"}}
	assert.Equal(t, "https://a\nhttps://b", buildCaption(links))
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Handlers{
		Gate: rategate.New(rdb, zap.NewNop()),
		Log:  zap.NewNop(),
	}
}

func TestRateLimitRetryAfter_ArmsGate(t *testing.T) {
	h := newTestHandlers(t)
	h.Enqueuer = nil // handleApplyResult is not called here, so no enqueue happens

	ctx := context.Background()
	rlErr := &platform.RateLimitError{RetryAfter: 5}

	// This arms the gate with the RetryAfter window directly, as the rate-limit
	// branch of handleApplyResult does, and checks that it reads back as
	// pending. handleApplyResult itself and its re-enqueue are not exercised.
	before := h.Gate.CheckMoreTime(ctx, "chat-1")
	assert.True(t, before.IsZero())

	h.Gate.NeedsMoreTime(ctx, "chat-1", time.Now().Add(time.Duration(rlErr.RetryAfter)*time.Second))

	after := h.Gate.CheckMoreTime(ctx, "chat-1")
	assert.False(t, after.IsZero())
}

func TestHandleApplyResult_400IsDropped(t *testing.T) {
	h := newTestHandlers(t)
	err := h.handleApplyResult(context.Background(), "chat-1", queue.TypeChannelEdit, queue.ChannelEditPayload{}, &platform.StatusError{Code: 400}, true)
	assert.NoError(t, err)
}

func TestHandleApplyResult_403DroppedOnlyWhenAllowed(t *testing.T) {
	h := newTestHandlers(t)

	err := h.handleApplyResult(context.Background(), "chat-1", queue.TypeChannelEdit, queue.ChannelEditPayload{}, &platform.StatusError{Code: 403}, true)
	assert.NoError(t, err)

	err = h.handleApplyResult(context.Background(), "chat-1", queue.TypeGroupSource, queue.GroupSourcePayload{}, &platform.StatusError{Code: 403}, false)
	assert.Error(t, err)
}

func TestHandleApplyResult_OtherErrorsPropagate(t *testing.T) {
	h := newTestHandlers(t)
	boom := assert.AnError
	err := h.handleApplyResult(context.Background(), "chat-1", queue.TypeChannelEdit, queue.ChannelEditPayload{}, boom, true)
	assert.Error(t, err)
}
