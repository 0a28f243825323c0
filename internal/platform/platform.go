// Package platform defines the narrow chat-platform contract the core
// consumes. Per spec, the chat-platform client itself (connection handling,
// update delivery, session storage) is an external collaborator — only the
// operations the pipeline calls are modeled here.
package platform

import "context"

// MessageRef identifies a single chat message, optionally part of a media
// group (album).
type MessageRef struct {
	ChatID        string
	MessageID     int
	MediaGroupID  string // empty when the message is not part of an album
	HasMediaGroup bool
}

// PhotoSize is one available resolution of an attached photo.
type PhotoSize struct {
	FileID       string
	FileUniqueID string
	Width        int
	Height       int
}

// Resolution reports the pixel area of this size, used to pick the largest.
func (p PhotoSize) Resolution() int {
	return p.Width * p.Height
}

// User is the sender of a message, to the extent the pipeline cares.
type User struct {
	ID           int64
	LanguageCode string
}

// Entity is a parsed message entity (URL, text link, mention, ...).
type Entity struct {
	Type   string // "url", "text_link", etc.
	Offset int
	Length int
	URL    string // populated for "text_link"; for "url" the link is in Text
}

// Message is the subset of a chat-platform message the pipeline needs.
// channel_update and group_photo jobs carry it as the "message" field of
// their payload object, not as the payload itself.
type Message struct {
	Ref      MessageRef
	From     *User
	Text     string
	Entities []Entity
	Photos   []PhotoSize // empty when the message has no photo
}

// SiteLink pairs a display label with a URL for a single inline button /
// rendered link.
type SiteLink struct {
	Label string
	URL   string
}

// Keyboard is a grid of URL buttons.
type Keyboard struct {
	Rows [][]SiteLink
}

// RateLimitError is returned by Client methods when the chat platform has
// asked the caller to back off. RetryAfter is in seconds.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string { return "rate limited by chat platform" }

// StatusError wraps a chat-platform HTTP-ish response code the caller should
// branch on (400, 403, ...) without it being a RateLimitError.
type StatusError struct {
	Code        int
	Description string
}

func (e *StatusError) Error() string { return e.Description }

// Client is the chat-platform contract consumed by the apply stage and by
// the discover stage's photo download.
type Client interface {
	// EditMessageCaption sets the caption of an existing message (used for
	// media-group members, which can't carry an inline keyboard).
	EditMessageCaption(ctx context.Context, chatID string, messageID int, caption string) error

	// EditMessageReplyMarkup installs an inline keyboard on an existing
	// message.
	EditMessageReplyMarkup(ctx context.Context, chatID string, messageID int, keyboard Keyboard) error

	// SendMessage sends a silent, preview-disabled reply to replyToMessageID.
	SendMessage(ctx context.Context, chatID string, replyToMessageID int, text string) error

	// DownloadFile fetches the bytes behind a photo size, bounded by maxBytes.
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
}
