// Package albummemory tracks which source URLs have already been attached
// to a media group (album), so that later messages in the same group don't
// each re-announce sources already posted for an earlier message in the
// group. Membership is process-external (Redis) because albums span several
// independent channel_update jobs.
package albummemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func key(mediaGroupID string) string {
	return fmt.Sprintf("group-sources:%s", mediaGroupID)
}

// Memory records source URLs seen per media group, expiring each group's
// record a fixed window after its last write.
type Memory struct {
	rdb *redis.Client
	log *zap.Logger
	ttl time.Duration
}

// New builds a Memory with the given per-group TTL.
func New(rdb *redis.Client, log *zap.Logger, ttl time.Duration) *Memory {
	return &Memory{rdb: rdb, log: log.Named("albummemory"), ttl: ttl}
}

// AlreadyHadSource records urls against mediaGroupID and reports whether any
// of them had already been recorded by a prior call for the same group. A
// message outside any media group always reports false: without an album
// there is nothing to deduplicate against.
//
// urls is deduplicated and sorted before the Redis round trip so that two
// calls carrying the same logical set, reordered or repeated, behave
// identically.
func (m *Memory) AlreadyHadSource(ctx context.Context, mediaGroupID string, urls []string) (bool, error) {
	if mediaGroupID == "" {
		return false, nil
	}

	unique := dedupe(urls)
	if len(unique) == 0 {
		return false, nil
	}

	members := make([]interface{}, len(unique))
	for i, u := range unique {
		members[i] = u
	}

	k := key(mediaGroupID)
	added, err := m.rdb.SAdd(ctx, k, members...).Result()
	if err != nil {
		return false, err
	}
	if err := m.rdb.Expire(ctx, k, m.ttl).Err(); err != nil {
		m.log.Warn("failed to refresh album memory TTL", zap.String("media_group_id", mediaGroupID), zap.Error(err))
	}

	return int(added) < len(unique), nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
