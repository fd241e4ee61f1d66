package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// TelegramDestination delivers alerts to one Telegram chat via the Bot API.
type TelegramDestination struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramDestination creates a TelegramDestination for the given bot
// token and chat ID. It uses a default HTTP client with a 10-second timeout;
// per-attempt deadlines come from the caller's context.
func NewTelegramDestination(token, chatID string) *TelegramDestination {
	return &TelegramDestination{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the destination identifier.
func (t *TelegramDestination) Name() string {
	return "telegram:" + t.chatID
}

// SendText posts a message to the chat using the sendMessage API. The title
// is rendered in bold using HTML parse mode, matching the alert body markup.
func (t *TelegramDestination) SendText(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id":                  t.chatID,
		"text":                     fmt.Sprintf("<b>%s</b>\n%s", title, message),
		"parse_mode":               "HTML",
		"disable_web_page_preview": "true",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

// SendImage posts the message as a photo caption using the sendPhoto API
// with a multipart upload. Animated GIFs go through sendAnimation so
// Telegram plays them instead of showing a still frame.
func (t *TelegramDestination) SendImage(ctx context.Context, title, message string, image []byte, filename string) error {
	method, field := "sendPhoto", "photo"
	if isAnimation(filename) {
		method, field = "sendAnimation", "animation"
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", t.token, method)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", t.chatID)
	_ = w.WriteField("caption", fmt.Sprintf("<b>%s</b>\n%s", title, message))
	_ = w.WriteField("parse_mode", "HTML")

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("telegram: create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("telegram: write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("telegram: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return t.do(req)
}

func (t *TelegramDestination) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
