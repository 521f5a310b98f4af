// Package fetcher implements the MarkdownFetcher port of spec §4.3:
// resolve a project id to a downloadable source document and extract a
// plain-text markdown rendering from it. Pure with respect to the cache —
// it never writes an artifact itself.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Kind enumerates the FetchError variants of spec §7.
type Kind int

const (
	KindNetwork Kind = iota
	KindNotFound
	KindParse
)

// Error is the FetchError of spec §7.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("fetch: not found: %v", e.Err)
	case KindParse:
		return fmt.Sprintf("fetch: parse: %v", e.Err)
	default:
		return fmt.Sprintf("fetch: network: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher resolves a project id to its source document bytes and extracts
// markdown from them.
type Fetcher struct {
	urlTemplate string
	client      *http.Client
}

// New builds a Fetcher. urlTemplate must contain a literal "{id}" that is
// replaced with the pid, e.g. "https://example.org/files/{id}".
func New(urlTemplate string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
	}
}

// FetchMarkdown resolves pid to its source document, downloads it, and
// extracts markdown from it.
func (f *Fetcher) FetchMarkdown(ctx context.Context, pid string) (docBytes []byte, markdown string, err error) {
	url := strings.ReplaceAll(f.urlTemplate, "{id}", pid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", &Error{Kind: KindNotFound, Err: fmt.Errorf("pid %s: %s", pid, resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", &Error{Kind: KindNetwork, Err: fmt.Errorf("pid %s: unexpected status %s", pid, resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Err: err}
	}

	md, err := ExtractMarkdown(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", &Error{Kind: KindParse, Err: err}
	}

	return body, md, nil
}

// ExtractMarkdown converts raw document bytes into a plain-text markdown
// rendering. DOCX payloads (detected by the zip magic bytes, since a DOCX
// is a zip archive of XML parts) are unpacked and their text runs
// converted into paragraph-separated markdown; anything else is treated as
// HTML and run through goquery to pull out visible text, the same idiom
// the teacher uses to scrape arxiv listing pages.
func ExtractMarkdown(raw []byte, contentType string) (string, error) {
	if looksLikeDOCX(raw) {
		return extractDOCX(raw)
	}
	return extractHTML(raw)
}

func looksLikeDOCX(raw []byte) bool {
	return len(raw) >= 4 && raw[0] == 'P' && raw[1] == 'K' && raw[2] == 0x03 && raw[3] == 0x04
}

func extractHTML(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		text = strings.TrimSpace(doc.Text())
	}
	return collapseWhitespace(text), nil
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n\n")
}
