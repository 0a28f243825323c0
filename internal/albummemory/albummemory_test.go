package albummemory

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

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, zap.NewNop(), 300*time.Second)
}

func TestAlreadyHadSource_NoMediaGroup(t *testing.T) {
	mem := newTestMemory(t)
	had, err := mem.AlreadyHadSource(context.Background(), "", []string{"https://e621.net/posts/1"})
	require.NoError(t, err)
	assert.False(t, had)
}

func TestAlreadyHadSource_SameGroupSameSource(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()
	urls := []string{"https://e621.net/posts/1"}

	had, err := mem.AlreadyHadSource(ctx, "group-1", urls)
	require.NoError(t, err)
	assert.False(t, had)

	had, err = mem.AlreadyHadSource(ctx, "group-1", urls)
	require.NoError(t, err)
	assert.True(t, had)
}

func TestAlreadyHadSource_SameGroupNewSource(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	had, err := mem.AlreadyHadSource(ctx, "group-1", []string{"https://e621.net/posts/1"})
	require.NoError(t, err)
	assert.False(t, had)

	had, err = mem.AlreadyHadSource(ctx, "group-1", []string{"https://e621.net/posts/2"})
	require.NoError(t, err)
	assert.False(t, had)
}

func TestAlreadyHadSource_DifferentGroup(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()
	urls := []string{"https://e621.net/posts/1"}

	_, err := mem.AlreadyHadSource(ctx, "group-1", urls)
	require.NoError(t, err)

	had, err := mem.AlreadyHadSource(ctx, "group-2", urls)
	require.NoError(t, err)
	assert.False(t, had)
}

func TestAlreadyHadSource_MixedOldAndNew(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	_, err := mem.AlreadyHadSource(ctx, "group-1", []string{"https://e621.net/posts/1"})
	require.NoError(t, err)

	had, err := mem.AlreadyHadSource(ctx, "group-1", []string{
		"https://e621.net/posts/1",
		"https://e621.net/posts/2",
	})
	require.NoError(t, err)
	assert.True(t, had)
}

func TestAlreadyHadSource_DuplicatesWithinCall(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	had, err := mem.AlreadyHadSource(ctx, "group-1", []string{
		"https://e621.net/posts/1",
		"https://e621.net/posts/1",
	})
	require.NoError(t, err)
	assert.False(t, had)
}
