package webhook

import (
	"strconv"
	"strings"
	"time"

	"fleetdesk_backend/internal/conversation"
)

// ObjectWhatsApp is the only event source accepted on the webhook.
const ObjectWhatsApp = "whatsapp_business_account"

// Event is the envelope the messaging channel posts.
type Event struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
	Statuses         []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"statuses"`
}

// InboundMessage is one message object. Only the payload matching Type is set.
type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Audio    *media `json:"audio,omitempty"`
	Image    *media `json:"image,omitempty"`
	Document *media `json:"document,omitempty"`
	Button   *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *reply `json:"button_reply,omitempty"`
		ListReply   *reply `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location,omitempty"`
}

type media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Messages flattens every message in the event.
func (e Event) Messages() []conversation.Message {
	var out []conversation.Message
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if msg, ok := m.toMessage(); ok {
					out = append(out, msg)
				}
			}
		}
	}
	return out
}

func (m InboundMessage) toMessage() (conversation.Message, bool) {
	if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.ID) == "" {
		return conversation.Message{}, false
	}
	msg := conversation.Message{
		ID:        m.ID,
		From:      m.From,
		Type:      m.Type,
		Timestamp: parseUnix(m.Timestamp),
	}
	switch m.Type {
	case conversation.TypeText:
		if m.Text != nil {
			msg.Text = m.Text.Body
		}
	case conversation.TypeAudio:
		if m.Audio != nil {
			msg.MediaID = m.Audio.ID
		}
	case conversation.TypeImage:
		if m.Image != nil {
			msg.MediaID = m.Image.ID
			msg.Text = m.Image.Caption
		}
	case conversation.TypeDocument:
		if m.Document != nil {
			msg.MediaID = m.Document.ID
			msg.Text = m.Document.Caption
		}
	case conversation.TypeButton:
		if m.Button != nil {
			msg.ReplyID = m.Button.Payload
			msg.Text = m.Button.Text
		}
	case conversation.TypeInteractive:
		if m.Interactive != nil {
			r := m.Interactive.ButtonReply
			if r == nil {
				r = m.Interactive.ListReply
			}
			if r != nil {
				msg.ReplyID = r.ID
				msg.Text = r.Title
			}
		}
	case conversation.TypeLocation:
		if m.Location != nil {
			msg.Text = strings.TrimSpace(m.Location.Name + " " + m.Location.Address)
		}
	}
	return msg, true
}

func parseUnix(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
