// Package rategate implements the cooperative per-chat backoff the apply
// stage consults before calling the chat platform again. A chat that has
// been rate-limited records the time it may next be tried; any other job
// targeting the same chat defers to that time instead of calling the
// platform and getting rate-limited again itself.
package rategate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func key(chatID string) string {
	return fmt.Sprintf("retry-at:%s", chatID)
}

// Gate guards chat-platform calls behind a shared per-chat retry-at marker.
type Gate struct {
	rdb *redis.Client
	log *zap.Logger
}

// New builds a Gate over an already-connected client.
func New(rdb *redis.Client, log *zap.Logger) *Gate {
	return &Gate{rdb: rdb, log: log.Named("rategate")}
}

// NeedsMoreTime records that chatID must not be contacted again before at.
// Failures are logged and swallowed: a missed write only costs one avoidable
// rate-limit response later, never a correctness problem, so the gate fails
// open rather than blocking the caller.
func (g *Gate) NeedsMoreTime(ctx context.Context, chatID string, at time.Time) {
	seconds := int(time.Until(at).Seconds())
	if seconds <= 0 {
		g.log.Warn("retry-at requested in the past", zap.String("chat_id", chatID), zap.Time("at", at))
		seconds = 1
	}

	if err := g.rdb.Set(ctx, key(chatID), at.Unix(), time.Duration(seconds)*time.Second).Err(); err != nil {
		g.log.Warn("failed to record retry-at", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// CheckMoreTime returns the recorded retry-at time for chatID, if one is
// still pending. A zero time means the chat is clear to contact. Errors and
// stale (past) markers are treated as clear, matching the gate's fail-open
// posture.
func (g *Gate) CheckMoreTime(ctx context.Context, chatID string) time.Time {
	raw, err := g.rdb.Get(ctx, key(chatID)).Int64()
	if err != nil {
		if err != redis.Nil {
			g.log.Warn("failed to read retry-at", zap.String("chat_id", chatID), zap.Error(err))
		}
		return time.Time{}
	}

	at := time.Unix(raw, 0)
	if !at.After(time.Now()) {
		g.log.Debug("retry-at was in the past, ignoring", zap.String("chat_id", chatID), zap.Time("at", at))
		return time.Time{}
	}
	return at
}
