// Package queue defines the background job contract: task type names,
// payload shapes, and the envelope that carries a tracing context alongside
// each job's body, plus a thin enqueuing wrapper around asynq.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/tracing"
)

// Task type names, matching the four jobs the original pipeline registers.
const (
	TypeChannelUpdate = "image_source:channel_update"
	TypeChannelEdit   = "image_source:channel_edit"
	TypeGroupPhoto    = "image_source:group_photo"
	TypeGroupSource   = "image_source:group_source"
)

// Envelope wraps a job's JSON body with the tracing context of the span that
// enqueued it, so the consumer can parent its own span under the producer's.
type Envelope struct {
	Trace map[string]string `json:"trace"`
	Body  json.RawMessage   `json:"body"`
}

// ChannelUpdatePayload is the sole argument to a channel_update job: the
// full message that triggered it.
type ChannelUpdatePayload struct {
	Message platform.Message `json:"message"`
}

// GroupPhotoPayload is the sole argument to a group_photo job.
type GroupPhotoPayload struct {
	Message platform.Message `json:"message"`
}

// ChannelEditPayload carries the edit to apply to an already-posted channel
// message: either a caption (album members) or a keyboard (standalone
// photos), built by the discover stage and consumed by the apply stage.
type ChannelEditPayload struct {
	ChatID       string              `json:"chat_id"`
	MessageID    int                 `json:"message_id"`
	MediaGroupID string              `json:"media_group_id,omitempty"`
	Links        []platform.SiteLink `json:"links"`
}

// GroupSourcePayload carries the reply text to send back to a group chat.
type GroupSourcePayload struct {
	ChatID           string `json:"chat_id"`
	ReplyToMessageID int    `json:"reply_to_message_id"`
	Text             string `json:"text"`
}

// Enqueuer wraps an asynq.Client, injecting the current span context into
// every job it enqueues.
type Enqueuer struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewEnqueuer builds an Enqueuer that targets the named asynq queue, allowing
// each job at most maxRetry retries after its first attempt.
func NewEnqueuer(client *asynq.Client, queueName string, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, queue: queueName, maxRetry: maxRetry}
}

// Enqueue submits a new job of taskType carrying body, running no earlier
// than processAt (the zero value means "as soon as possible").
func (e *Enqueuer) Enqueue(ctx context.Context, taskType string, body interface{}, processAt time.Time) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	envelope := Envelope{Trace: tracing.Inject(ctx), Body: raw}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(e.queue), asynq.MaxRetry(e.maxRetry)}
	if !processAt.IsZero() {
		opts = append(opts, asynq.ProcessAt(processAt))
	}

	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
	return err
}

// Decode unmarshals an envelope's body into dst and returns a context
// carrying the parent span described by the envelope's trace map.
func Decode(ctx context.Context, task *asynq.Task, dst interface{}) (context.Context, error) {
	var envelope Envelope
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		return ctx, err
	}

	if err := json.Unmarshal(envelope.Body, dst); err != nil {
		return ctx, err
	}

	return tracing.Extract(ctx, envelope.Trace), nil
}
