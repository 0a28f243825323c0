// Package worker implements the four background job handlers: the discover
// stage (channel_update, group_photo) that decides what to announce, and the
// apply stage (channel_edit, group_source) that actually edits or replies to
// the chat, including this stage's own rate-limit backoff loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/foxden/sourcewatch/internal/hashsearch"
	"github.com/foxden/sourcewatch/internal/i18n"
	"github.com/foxden/sourcewatch/internal/imagehash"
	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/queue"
	"github.com/foxden/sourcewatch/internal/rategate"
	"github.com/foxden/sourcewatch/internal/resolver"
	"github.com/foxden/sourcewatch/internal/store/pg"
)

// Handlers holds every collaborator the job handlers need.
type Handlers struct {
	Platform    platform.Client
	HashClient  *hashsearch.Client
	Resolver    *resolver.Resolver
	Gate        *rategate.Gate
	Enqueuer    *queue.Enqueuer
	PG          *pg.Store
	Locales     *i18n.Cache
	Log         *zap.Logger
	MaxDistance uint64
}

var errSkipped = errors.New("worker: job deliberately skipped")

func largestPhoto(photos []platform.PhotoSize) (platform.PhotoSize, bool) {
	var best platform.PhotoSize
	found := false
	for _, p := range photos {
		if !found || p.Resolution() > best.Resolution() {
			best = p
			found = true
		}
	}
	return best, found
}

// searchPhoto downloads msg's largest photo, hashes it, and searches the
// hash index, returning the searched hash and the raw candidates.
func (h *Handlers) searchPhoto(ctx context.Context, msg platform.Message) (uint64, []hashsearch.Match, error) {
	photo, ok := largestPhoto(msg.Photos)
	if !ok {
		return 0, nil, errSkipped
	}

	hash, cached, err := h.PG.GetHash(ctx, photo.FileUniqueID)
	if err != nil {
		h.Log.Warn("failed to read perceptual hash cache", zap.String("file_unique_id", photo.FileUniqueID), zap.Error(err))
	}

	if !cached {
		data, err := h.Platform.DownloadFile(ctx, photo.FileID, 50*1024*1024)
		if err != nil {
			return 0, nil, fmt.Errorf("download photo: %w", err)
		}

		hash, err = imagehash.Hash(data)
		if err != nil {
			return 0, nil, errSkipped
		}

		if err := h.PG.PutHash(ctx, photo.FileUniqueID, hash); err != nil {
			h.Log.Warn("failed to cache perceptual hash", zap.String("file_unique_id", photo.FileUniqueID), zap.Error(err))
		}
	}

	matches, err := h.HashClient.SearchByHash(ctx, hash, h.MaxDistance)
	if err != nil {
		return 0, nil, fmt.Errorf("search hash: %w", err)
	}

	return hash, matches, nil
}

// buildKeyboard lays out one URL button per link, two per row unless the
// link count is odd, in which case every row holds one button.
func buildKeyboard(links []platform.SiteLink) platform.Keyboard {
	rowSize := 1
	if len(links)%2 == 0 {
		rowSize = 2
	}

	var rows [][]platform.SiteLink
	for i := 0; i < len(links); i += rowSize {
		end := i + rowSize
		if end > len(links) {
			end = len(links)
		}
		rows = append(rows, links[i:end])
	}
	return platform.Keyboard{Rows: rows}
}

// buildCaption renders one link per line, used for media-group members
// whose caption can't carry an inline keyboard.
func buildCaption(links []platform.SiteLink) string {
	text := ""
	for i, l := range links {
		if i > 0 {
			text += "\n"
		}
		text += l.URL
	}
	return text
}
