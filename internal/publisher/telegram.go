package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Telegram posts messages via the Bot API, a direct generalization of the
// teacher's own telegram.Notifier — the api_base_url was hardcoded to
// https://api.telegram.org there; here it comes from config.
type Telegram struct {
	apiBaseURL string
	botToken   string
	chatID     int64
	maxChars   int

	client *http.Client
}

// NewTelegram builds a Telegram publisher.
func NewTelegram(apiBaseURL, botToken string, chatID int64, maxChars int, timeout time.Duration) *Telegram {
	return &Telegram{
		apiBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		botToken:   botToken,
		chatID:     chatID,
		maxChars:   maxChars,
		client:     &http.Client{Timeout: timeout},
	}
}

func (t *Telegram) Name() string      { return "telegram" }
func (t *Telegram) SoftCharLimit() int { return t.maxChars }

func (t *Telegram) Publish(ctx context.Context, channel string, post string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBaseURL, t.botToken)

	body, err := json.Marshal(map[string]string{
		"chat_id": strconv.FormatInt(t.chatID, 10),
		"text":    post,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}
