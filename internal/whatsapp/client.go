// Package whatsapp sends messages through the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/phone"
)

const (
	defaultBaseURL  = "https://graph.facebook.com/v21.0"
	maxButtons      = 3
	maxButtonTitle  = 20
	maxBodyRunes    = 4096
	maxMediaBytes   = 16 << 20
	requestTimeout  = 10 * time.Second
	downloadTimeout = 30 * time.Second
)

type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	http          *http.Client
	log           *logger.Logger
}

// NewClient returns nil when the channel is not configured; a nil client
// drops outbound messages.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppToken() == "" || cfg.GetWhatsAppPhoneNumberID() == "" {
		return nil
	}
	baseURL := cfg.GetWhatsAppURL()
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         cfg.GetWhatsAppToken(),
		phoneNumberID: cfg.GetWhatsAppPhoneNumberID(),
		http:          &http.Client{Timeout: downloadTimeout},
		log:           log,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type button struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type interactive struct {
	Type   string   `json:"type"`
	Body   textBody `json:"body"`
	Action struct {
		Buttons []button `json:"buttons"`
	} `json:"action"`
}

type messageRequest struct {
	Product     string       `json:"messaging_product"`
	To          string       `json:"to,omitempty"`
	Type        string       `json:"type,omitempty"`
	Text        *textBody    `json:"text,omitempty"`
	Interactive *interactive `json:"interactive,omitempty"`
	Status      string       `json:"status,omitempty"`
	MessageID   string       `json:"message_id,omitempty"`
}

// SendText sends a plain text message to a canonical address.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, messageRequest{
		Product: "whatsapp",
		To:      phone.ChannelForm(to),
		Type:    "text",
		Text:    &textBody{Body: truncate(body, maxBodyRunes)},
	})
}

// SendButtons sends a message with quick-reply buttons. The channel accepts
// at most three; extra options are dropped from the buttons but stay in the
// body text.
func (c *Client) SendButtons(ctx context.Context, to, body string, options []flow.Option) error {
	if c == nil {
		return nil
	}
	if len(options) == 0 {
		return c.SendText(ctx, to, body)
	}
	msg := &interactive{Type: "button", Body: textBody{Body: truncate(body, 1024)}}
	for i, opt := range options {
		if i == maxButtons {
			break
		}
		msg.Action.Buttons = append(msg.Action.Buttons, button{
			Type:  "reply",
			Reply: buttonReply{ID: opt.ID, Title: truncate(opt.Title, maxButtonTitle)},
		})
	}
	return c.post(ctx, messageRequest{
		Product:     "whatsapp",
		To:          phone.ChannelForm(to),
		Type:        "interactive",
		Interactive: msg,
	})
}

// MarkRead marks an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, messageRequest{Product: "whatsapp", Status: "read", MessageID: messageID})
}

func (c *Client) post(ctx context.Context, payload messageRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if payload.To != "" {
		c.log.Debug("whatsapp message sent", "type", payload.Type, "address", logger.MaskAddress(payload.To))
	}
	return nil
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia fetches an inbound media object. It returns the bytes and the
// MIME type reported by the channel.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if c == nil {
		return nil, "", fmt.Errorf("whatsapp channel is not configured")
	}
	var info mediaInfo
	data, err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, mediaID))
	if err != nil {
		return nil, "", fmt.Errorf("lookup media: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil || info.URL == "" {
		return nil, "", fmt.Errorf("decode media info for %s", mediaID)
	}

	audio, err := c.get(ctx, info.URL)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	return audio, info.MimeType, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("whatsapp service returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
