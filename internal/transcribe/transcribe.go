// Package transcribe converts voice notes to text through an
// OpenAI-compatible transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/retry"
)

const (
	maxRetries     = 2
	requestTimeout = 60 * time.Second
	defaultModel   = "whisper-1"
)

// MediaSource downloads inbound media by channel id.
type MediaSource interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// Client transcribes channel voice notes.
type Client struct {
	url    string
	key    string
	model  string
	media  MediaSource
	http   *http.Client
	policy retry.Config
}

// New returns nil when transcription is not configured.
func New(cfg config.TranscriptionConfig, media MediaSource) *Client {
	if !cfg.IsTranscriptionEnabled() {
		return nil
	}
	return &Client{
		url:    cfg.GetTranscribeURL(),
		key:    cfg.GetTranscribeKey(),
		model:  defaultModel,
		media:  media,
		http:   &http.Client{Timeout: requestTimeout},
		policy: retry.Config{MaxRetries: maxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second},
	}
}

type transcription struct {
	Text string `json:"text"`
}

// Transcribe downloads the voice note and returns its text. Network failures
// and 429/5xx responses are retried.
func (c *Client) Transcribe(ctx context.Context, mediaID string) (string, error) {
	audio, err := retry.Do(ctx, c.policy, func(ctx context.Context) (media, error) {
		data, mime, err := c.media.DownloadMedia(ctx, mediaID)
		return media{data: data, mime: mime}, err
	})
	if err != nil {
		return "", fmt.Errorf("download voice note: %w", err)
	}

	text, err := retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.upload(ctx, audio.data, audio.mime)
	})
	if err != nil {
		return "", fmt.Errorf("transcribe voice note: %w", err)
	}
	return strings.TrimSpace(text), nil
}

type media struct {
	data []byte
	mime string
}

func (c *Client) upload(ctx context.Context, audio []byte, mime string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("model", c.model); err != nil {
		return "", err
	}
	part, err := form.CreateFormFile("file", "voice"+extension(mime))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", retry.Transient(fmt.Errorf("transcription service returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out transcription
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return out.Text, nil
}

func extension(mime string) string {
	switch {
	case strings.Contains(mime, "ogg"):
		return ".ogg"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return ".mp3"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "aac"):
		return ".m4a"
	case strings.Contains(mime, "amr"):
		return ".amr"
	}
	return ".ogg"
}
