// Package conversation turns one inbound channel message into one reply. It
// resolves the sender, serialises work per address and routes the text to a
// wizard, a command or the reasoning loop.
package conversation

import (
	"context"
	"time"

	"fleetdesk_backend/internal/flow"
)

// Message types delivered by the channel.
const (
	TypeText        = "text"
	TypeAudio       = "audio"
	TypeImage       = "image"
	TypeDocument    = "document"
	TypeLocation    = "location"
	TypeButton      = "button"
	TypeInteractive = "interactive"
)

// Message is an inbound channel message reduced to what processing needs.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	MediaID   string    `json:"mediaId,omitempty"`
	ReplyID   string    `json:"replyId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender delivers replies on the messaging channel.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, options []flow.Option) error
	MarkRead(ctx context.Context, messageID string) error
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaID string) (string, error)
}
