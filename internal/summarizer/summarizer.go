// Package summarizer implements the Summarizer port of spec §4.4: prompt
// an external LLM with a length hint, return its plain-text reply.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luminis/luminis/internal/render"
)

// Kind enumerates the SummarizerError variants of spec §7.
type Kind int

const (
	KindTimeout Kind = iota
	KindProvider
	KindEmpty
)

// Error is the SummarizerError of spec §7, carrying which failure mode
// occurred so callers can branch with errors.As without string matching.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("summarizer: timeout: %v", e.Err)
	case KindEmpty:
		return "summarizer: empty response"
	default:
		return fmt.Sprintf("summarizer: provider error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Config wires provider selection, credentials, and transport.
type Config struct {
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string
	RequestTimeout time.Duration
	SamplePercent float64
}

// Summarizer calls an OpenAI-compatible or Anthropic-compatible chat
// endpoint, mirroring the request-building idiom of the teacher's
// ChatGPTClient.SendDigest (JSON body, bearer header, status check).
type Summarizer struct {
	cfg    Config
	client *http.Client
}

// New builds a Summarizer from cfg.
func New(cfg Config) *Summarizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL(cfg.Provider)
	}
	return &Summarizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func defaultBaseURL(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return "https://api.anthropic.com/v1/messages"
	default:
		return "https://api.openai.com/v1/chat/completions"
	}
}

// Summarize prompts the configured LLM with {title, sampled markdown, url}
// and an optional length hint, returning the trimmed plain-text reply.
func (s *Summarizer) Summarize(ctx context.Context, title, markdown, url string, softLimit *int) (string, error) {
	sample := render.SamplePrefix(markdown, s.cfg.SamplePercent)
	prompt := buildPrompt(title, sample, url, softLimit)

	body, contentType, err := s.buildRequestBody(prompt)
	if err != nil {
		return "", &Error{Kind: KindProvider, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindProvider, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	s.setAuthHeader(req)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", &Error{Kind: KindProvider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &Error{Kind: KindProvider, Err: fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))}
	}

	text, err := s.parseResponse(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindProvider, Err: err}
	}

	text = render.Trim(text)
	if text == "" {
		return "", &Error{Kind: KindEmpty}
	}
	return text, nil
}

func buildPrompt(title, sample, url string, softLimit *int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nURL: %s\n\n%s", title, url, sample)
	if softLimit != nil {
		fmt.Fprintf(&b, "\n\nRespond in no more than approximately %d characters.", *softLimit)
	}
	return b.String()
}

func (s *Summarizer) setAuthHeader(req *http.Request) {
	if s.cfg.APIKey == "" {
		return
	}
	if strings.ToLower(s.cfg.Provider) == "anthropic" {
		req.Header.Set("x-api-key", s.cfg.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
}

func (s *Summarizer) buildRequestBody(prompt string) ([]byte, string, error) {
	if strings.ToLower(s.cfg.Provider) == "anthropic" {
		body, err := json.Marshal(map[string]any{
			"model":      s.cfg.Model,
			"max_tokens": 1024,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		})
		return body, "application/json", err
	}

	body, err := json.Marshal(map[string]any{
		"model": s.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You summarize regulatory documents concisely."},
			{"role": "user", "content": prompt},
		},
	})
	return body, "application/json", err
}

func (s *Summarizer) parseResponse(r io.Reader) (string, error) {
	if strings.ToLower(s.cfg.Provider) == "anthropic" {
		var decoded struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.NewDecoder(r).Decode(&decoded); err != nil {
			return "", fmt.Errorf("decode anthropic response: %w", err)
		}
		if len(decoded.Content) == 0 {
			return "", nil
		}
		return decoded.Content[0].Text, nil
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(r).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}
