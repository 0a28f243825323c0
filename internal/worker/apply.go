package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/queue"
)

// HandleChannelEdit applies a previously-decided edit to a channel message,
// deferring to the rate gate first and re-scheduling itself if the chat
// platform asks for backoff.
func (h *Handlers) HandleChannelEdit(ctx context.Context, t *asynq.Task) error {
	var payload queue.ChannelEditPayload
	ctx, err := queue.Decode(ctx, t, &payload)
	if err != nil {
		return err
	}

	if at := h.Gate.CheckMoreTime(ctx, payload.ChatID); !at.IsZero() {
		return h.Enqueuer.Enqueue(ctx, queue.TypeChannelEdit, payload, at)
	}

	var applyErr error
	if payload.MediaGroupID != "" {
		applyErr = h.Platform.EditMessageCaption(ctx, payload.ChatID, payload.MessageID, buildCaption(payload.Links))
	} else {
		applyErr = h.Platform.EditMessageReplyMarkup(ctx, payload.ChatID, payload.MessageID, buildKeyboard(payload.Links))
	}

	return h.handleApplyResult(ctx, payload.ChatID, queue.TypeChannelEdit, payload, applyErr, true)
}

// HandleGroupSource sends a previously-rendered reply to a group chat,
// applying the same rate-gate and backoff handling as HandleChannelEdit.
func (h *Handlers) HandleGroupSource(ctx context.Context, t *asynq.Task) error {
	var payload queue.GroupSourcePayload
	ctx, err := queue.Decode(ctx, t, &payload)
	if err != nil {
		return err
	}

	if at := h.Gate.CheckMoreTime(ctx, payload.ChatID); !at.IsZero() {
		return h.Enqueuer.Enqueue(ctx, queue.TypeGroupSource, payload, at)
	}

	err = h.Platform.SendMessage(ctx, payload.ChatID, payload.ReplyToMessageID, payload.Text)
	return h.handleApplyResult(ctx, payload.ChatID, queue.TypeGroupSource, payload, err, false)
}

// handleApplyResult classifies the chat platform's response into the three
// outcomes the apply stage cares about: a rate limit (re-enqueue at the
// requested time), a permanent 400 (log and drop), a 403 (log and drop, only
// meaningful on the channel_edit path where the bot may have lost access to
// an old channel), or any other error (propagate so asynq retries the job).
func (h *Handlers) handleApplyResult(ctx context.Context, chatID, taskType string, payload interface{}, err error, allow403 bool) error {
	if err == nil {
		return nil
	}

	var rateLimit *platform.RateLimitError
	if errors.As(err, &rateLimit) {
		at := time.Now().Add(time.Duration(rateLimit.RetryAfter) * time.Second)
		h.Gate.NeedsMoreTime(ctx, chatID, at)
		return h.Enqueuer.Enqueue(ctx, taskType, payload, at)
	}

	var status *platform.StatusError
	if errors.As(err, &status) {
		switch status.Code {
		case 400:
			h.Log.Warn("chat platform rejected edit as malformed, dropping", zap.String("chat_id", chatID), zap.Error(err))
			return nil
		case 403:
			if allow403 {
				h.Log.Warn("chat platform denied access, dropping", zap.String("chat_id", chatID), zap.Error(err))
				return nil
			}
		}
	}

	return err
}
