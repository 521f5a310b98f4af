// Package feed implements the FallbackSource of spec §4.7: a stateless
// RSS feed parser (rss/channel/item only; Atom feeds are not parsed) that
// applies a configured regex to each entry's guid, then link, then
// description to extract a pid.
// Grounded on original_source/src/services/crawler.rs's RssCrawler, which
// applies its regex in that same guid → link → description order.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/luminis/luminis/internal/domain"
)

var defaultPIDRegex = regexp.MustCompile(`projects/(\d{5,})`)

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Status      string `xml:"status"`
	Stage       string `xml:"stage"`
	Department  string `xml:"department"`
}

// Source is FallbackSource.
type Source struct {
	url    string
	regex  *regexp.Regexp
	client *http.Client
}

// New builds a Source. regexPattern may be empty, in which case the
// built-in default regex is used.
func New(url string, regexPattern string, timeout time.Duration) (*Source, error) {
	re := defaultPIDRegex
	if regexPattern != "" {
		compiled, err := regexp.Compile(regexPattern)
		if err != nil {
			return nil, fmt.Errorf("feed: compile regex %q: %w", regexPattern, err)
		}
		re = compiled
	}
	return &Source{
		url:    url,
		regex:  re,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Fetch downloads and parses the feed, extracting one item per entry.
// Entries whose guid, link, and description all fail to match the regex
// are skipped rather than failing the whole fetch.
func (s *Source) Fetch(ctx context.Context) ([]domain.CrawlItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: unexpected status %s", resp.Status)
	}

	var parsed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("feed: parse: %w", err)
	}

	items := make([]domain.CrawlItem, 0, len(parsed.Channel.Items))
	for _, entry := range parsed.Channel.Items {
		pid := s.extractPID(entry)
		if pid == "" {
			continue
		}
		items = append(items, domain.CrawlItem{
			PID:          pid,
			Title:        entry.Title,
			URL:          entry.Link,
			DiscoveredAt: time.Now(),
			ExtraMetadata: metadataOf(entry),
		})
	}
	return items, nil
}

// extractPID applies the regex to guid, then link, then description, in
// that order, returning the first match.
func (s *Source) extractPID(entry rssItem) string {
	for _, candidate := range []string{entry.GUID, entry.Link, entry.Description} {
		if pid := matchNamedID(s.regex, candidate); pid != "" {
			return pid
		}
	}
	return ""
}

func matchNamedID(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if idx := re.SubexpIndex("id"); idx >= 0 && idx < len(m) {
		return m[idx]
	}
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func metadataOf(entry rssItem) map[string]string {
	meta := map[string]string{}
	if entry.Status != "" {
		meta["status"] = entry.Status
	}
	if entry.Stage != "" {
		meta["stage"] = entry.Stage
	}
	if entry.Department != "" {
		meta["department"] = entry.Department
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
