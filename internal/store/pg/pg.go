// Package pg wraps the Postgres pool backing the perceptual-hash cache and
// per-group configuration, using pgx's pool directly rather than an ORM —
// both tables are narrow enough that hand-written SQL stays readable.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store holds the shared connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against a postgres:// URL.
func Connect(ctx context.Context, rawURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Ping verifies connectivity, used by the health server.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// HashCacheEntry is one row of the hash_cache table: a file's perceptual
// hash, keyed by the chat platform's stable file identifier.
type HashCacheEntry struct {
	FileUniqueID   string
	PerceptualHash uint64
	UpdatedAt      time.Time
}

// GetHash looks up a cached perceptual hash for fileUniqueID. The bool is
// false when no row exists.
func (s *Store) GetHash(ctx context.Context, fileUniqueID string) (uint64, bool, error) {
	var hash int64
	err := s.pool.QueryRow(ctx,
		`SELECT perceptual_hash FROM hash_cache WHERE file_unique_id = $1`,
		fileUniqueID,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(hash), true, nil
}

// PutHash upserts the perceptual hash computed for fileUniqueID.
func (s *Store) PutHash(ctx context.Context, fileUniqueID string, hash uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hash_cache (file_unique_id, perceptual_hash, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (file_unique_id)
		DO UPDATE SET perceptual_hash = EXCLUDED.perceptual_hash, updated_at = now()
	`, fileUniqueID, int64(hash))
	return err
}

// GroupConfigKey names a single per-chat configuration toggle.
type GroupConfigKey string

const (
	// GroupConfigGroupAdd gates whether group_photo jobs act on a chat at all.
	GroupConfigGroupAdd GroupConfigKey = "group_add"
	// GroupConfigNoPreviews suppresses link previews on rendered messages.
	GroupConfigNoPreviews GroupConfigKey = "group_no_previews"
)

// GetGroupConfigBool reads a boolean group-config flag, defaulting to false
// when the chat has never set it.
func (s *Store) GetGroupConfigBool(ctx context.Context, chatID string, key GroupConfigKey) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM group_config WHERE chat_id = $1 AND key = $2`,
		chatID, string(key),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, err
	}
	return value, nil
}

// SetGroupConfigBool sets a boolean group-config flag.
func (s *Store) SetGroupConfigBool(ctx context.Context, chatID string, key GroupConfigKey, value bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO group_config (chat_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, key) DO UPDATE SET value = EXCLUDED.value
	`, chatID, string(key), raw)
	return err
}
