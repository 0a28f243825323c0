package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/foxden/sourcewatch/internal/i18n"
	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/queue"
	"github.com/foxden/sourcewatch/internal/store/pg"
)

// HandleChannelUpdate decides whether a channel photo should have its
// sources announced, and if so enqueues a channel_edit job carrying the
// edit to apply.
func (h *Handlers) HandleChannelUpdate(ctx context.Context, t *asynq.Task) error {
	var payload queue.ChannelUpdatePayload
	ctx, err := queue.Decode(ctx, t, &payload)
	if err != nil {
		return err
	}

	hash, candidates, err := h.searchPhoto(ctx, payload.Message)
	if err != nil {
		if errors.Is(err, errSkipped) {
			return nil
		}
		return err
	}

	matches, err := h.Resolver.ResolveChannelUpdate(ctx, payload.Message, hash, candidates)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	links := make([]platform.SiteLink, len(matches))
	for i, m := range matches {
		links[i] = platform.SiteLink{Label: string(m.Site), URL: m.URL}
	}

	edit := queue.ChannelEditPayload{
		ChatID:       payload.Message.Ref.ChatID,
		MessageID:    payload.Message.Ref.MessageID,
		MediaGroupID: payload.Message.Ref.MediaGroupID,
		Links:        links,
	}
	return h.Enqueuer.Enqueue(ctx, queue.TypeChannelEdit, edit, time.Time{})
}

// HandleGroupPhoto decides whether a group chat photo should get a reply
// naming its sources, gated by the chat's group_add configuration, and if so
// enqueues a group_source job carrying the rendered text.
func (h *Handlers) HandleGroupPhoto(ctx context.Context, t *asynq.Task) error {
	var payload queue.GroupPhotoPayload
	ctx, err := queue.Decode(ctx, t, &payload)
	if err != nil {
		return err
	}

	enabled, err := h.PG.GetGroupConfigBool(ctx, payload.Message.Ref.ChatID, pg.GroupConfigGroupAdd)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	_, candidates, err := h.searchPhoto(ctx, payload.Message)
	if err != nil {
		if errors.Is(err, errSkipped) {
			return nil
		}
		return err
	}

	matches, err := h.Resolver.ResolveGroupPhoto(ctx, payload.Message, candidates)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	locale := i18n.DefaultLocale
	if payload.Message.From != nil && payload.Message.From.LanguageCode != "" {
		locale = payload.Message.From.LanguageCode
	}
	bundle, err := h.Locales.Get(locale)
	if err != nil {
		return err
	}

	rendered := make([]i18n.SourceMatch, len(matches))
	for i, m := range matches {
		rendered[i] = i18n.SourceMatch{Label: string(m.Site), URL: m.URL, Rating: m.Rating}
	}
	text := bundle.RenderGroupMessage(rendered)

	group := queue.GroupSourcePayload{
		ChatID:           payload.Message.Ref.ChatID,
		ReplyToMessageID: payload.Message.Ref.MessageID,
		Text:             text,
	}
	return h.Enqueuer.Enqueue(ctx, queue.TypeGroupSource, group, time.Time{})
}
