package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// DiscordDestination delivers alerts to a Discord channel via webhook.
type DiscordDestination struct {
	webhookURL string
	index      int
	client     *http.Client
}

// NewDiscordDestination creates a DiscordDestination for the given webhook
// URL. index distinguishes multiple configured webhooks in logs.
func NewDiscordDestination(webhookURL string, index int) *DiscordDestination {
	return &DiscordDestination{
		webhookURL: webhookURL,
		index:      index,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the destination identifier.
func (d *DiscordDestination) Name() string {
	return "discord:" + strconv.Itoa(d.index)
}

// SendText posts a message to the webhook. The title is rendered in bold
// using Discord markdown; the HTML markup used for Telegram is stripped.
func (d *DiscordDestination) SendText(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, stripHTML(message)),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return d.do(req)
}

// SendImage posts the message with the image attached as a file, using the
// webhook multipart upload format (payload_json + files[0]).
func (d *DiscordDestination) SendImage(ctx context.Context, title, message string, image []byte, filename string) error {
	payload := map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, stripHTML(message)),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("payload_json", string(payloadJSON))

	part, err := w.CreateFormFile("files[0]", filename)
	if err != nil {
		return fmt.Errorf("discord: create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("discord: write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("discord: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, &buf)
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return d.do(req)
}

func (d *DiscordDestination) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// stripHTML removes the small set of HTML tags the renderer emits (<b>, <a>)
// so Discord messages read cleanly.
func stripHTML(s string) string {
	replacer := strings.NewReplacer("<b>", "", "</b>", "", "</a>", "")
	s = replacer.Replace(s)
	// Unwrap <a href='...'> to just the link text.
	for {
		start := strings.Index(s, "<a href=")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], ">")
		if end < 0 {
			break
		}
		s = s[:start] + s[start+end+1:]
	}
	return s
}

// isAnimation reports whether the filename looks like an animated image.
func isAnimation(filename string) bool {
	ext := strings.ToLower(path.Ext(filename))
	return ext == ".gif" || ext == ".mp4"
}
