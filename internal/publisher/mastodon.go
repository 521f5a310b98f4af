package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Mastodon posts statuses via the Mastodon REST API, grounded on the
// teacher's telegram.Notifier.PublishDigest net/http idiom: form-encoded
// body, bearer header, status check.
type Mastodon struct {
	baseURL     string
	accessToken string
	visibility  string
	language    string
	spoilerText string
	sensitive   bool
	maxChars    int

	client *http.Client
}

// NewMastodon builds a Mastodon publisher.
func NewMastodon(baseURL, accessToken, visibility, language, spoilerText string, sensitive bool, maxChars int, timeout time.Duration) *Mastodon {
	return &Mastodon{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		visibility:  visibility,
		language:    language,
		spoilerText: spoilerText,
		sensitive:   sensitive,
		maxChars:    maxChars,
		client:      &http.Client{Timeout: timeout},
	}
}

func (m *Mastodon) Name() string      { return "mastodon" }
func (m *Mastodon) SoftCharLimit() int { return m.maxChars }

func (m *Mastodon) Publish(ctx context.Context, channel string, post string) error {
	form := url.Values{}
	form.Set("status", post)
	form.Set("visibility", m.visibility)
	if m.language != "" {
		form.Set("language", m.language)
	}
	if m.spoilerText != "" {
		form.Set("spoiler_text", m.spoilerText)
	}
	form.Set("sensitive", strconv.FormatBool(m.sensitive))

	endpoint := m.baseURL + "/api/v1/statuses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mastodon: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mastodon: post status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mastodon: status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}
