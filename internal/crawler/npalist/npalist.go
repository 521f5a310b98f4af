// Package npalist implements the PrimarySource of spec §4.6: a paged
// listing crawler that owns the Manifest and pages through history once
// its head request stops finding new items. Grounded on
// original_source/src/services/crawler.rs's NpaListCrawler.fetch, ported
// to a plain Go struct holding a *cache.ManifestStore the way the teacher's
// scanner held a repository.
package npalist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/luminis/luminis/internal/cache"
	"github.com/luminis/luminis/internal/domain"
)

// defaultPIDRegex is the built-in fallback applied when the configured
// regex exists but fails to match a given item's link, grounded on
// original_source's default_link_re.
var defaultPIDRegex = regexp.MustCompile(`projects/(\d{5,})`)

// maxLastSeenPIDs bounds the Manifest's last_seen_pids FIFO, per spec
// §4.6.3's "implementation-defined bound".
const maxLastSeenPIDs = 10000

// listingItem is the shape of one entry in the paged listing JSON.
type listingItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

type listingResponse struct {
	Items []listingItem `json:"items"`
}

// Source is PrimarySource.
type Source struct {
	url      string
	limit    int
	regex    *regexp.Regexp
	manifest *cache.ManifestStore
	client   *http.Client
}

// New builds a Source. regexPattern may be empty, in which case the
// listing item's native id is used as the pid.
func New(url string, limit int, regexPattern string, manifest *cache.ManifestStore, timeout time.Duration) (*Source, error) {
	var re *regexp.Regexp
	if regexPattern != "" {
		compiled, err := regexp.Compile(regexPattern)
		if err != nil {
			return nil, fmt.Errorf("npalist: compile regex %q: %w", regexPattern, err)
		}
		re = compiled
	}
	return &Source{
		url:      url,
		limit:    limit,
		regex:    re,
		manifest: manifest,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Fetch implements spec §4.6's algorithm: a head request, falling back to
// a history page when the head returns nothing new, with Manifest update.
func (s *Source) Fetch(ctx context.Context) ([]domain.CrawlItem, error) {
	man, err := s.manifest.Load()
	if err != nil {
		return nil, fmt.Errorf("npalist: load manifest: %w", err)
	}

	seen := make(map[string]bool, len(man.LastSeenPIDs))
	for _, pid := range man.LastSeenPIDs {
		seen[pid] = true
	}

	head, err := s.page(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("npalist: head request: %w", err)
	}

	headItems := s.toCrawlItems(head)
	newCount := 0
	for _, it := range headItems {
		if !seen[it.PID] {
			newCount++
		}
	}

	var resultItems []domain.CrawlItem
	if newCount > 0 {
		resultItems = headItems
	} else {
		history, err := s.page(ctx, man.LastOffset)
		if err != nil {
			return nil, fmt.Errorf("npalist: history request: %w", err)
		}
		resultItems = s.toCrawlItems(history)
		man.LastOffset += len(resultItems)
	}

	fresh := make([]domain.CrawlItem, 0, len(resultItems))
	for _, it := range resultItems {
		if seen[it.PID] {
			continue
		}
		seen[it.PID] = true
		man.LastSeenPIDs = append(man.LastSeenPIDs, it.PID)
		fresh = append(fresh, it)
	}

	if overflow := len(man.LastSeenPIDs) - maxLastSeenPIDs; overflow > 0 {
		man.LastSeenPIDs = man.LastSeenPIDs[overflow:]
	}

	if err := s.manifest.Store(man); err != nil {
		return nil, fmt.Errorf("npalist: store manifest: %w", err)
	}

	return fresh, nil
}

func (s *Source) page(ctx context.Context, offset int) (listingResponse, error) {
	endpoint := fmt.Sprintf("%s?offset=%d&limit=%d", s.url, offset, s.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return listingResponse{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return listingResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return listingResponse{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var out listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return listingResponse{}, fmt.Errorf("decode listing: %w", err)
	}
	return out, nil
}

func (s *Source) toCrawlItems(resp listingResponse) []domain.CrawlItem {
	items := make([]domain.CrawlItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		pid := s.extractPID(it)
		items = append(items, domain.CrawlItem{
			PID:          pid,
			Title:        it.Title,
			URL:          it.Link,
			DiscoveredAt: time.Now(),
		})
	}
	return items
}

func (s *Source) extractPID(it listingItem) string {
	if s.regex == nil {
		return it.ID
	}
	if pid := matchNamedID(s.regex, it.Link); pid != "" {
		return pid
	}
	if pid := matchNamedID(defaultPIDRegex, it.Link); pid != "" {
		return pid
	}
	return it.ID
}

func matchNamedID(re *regexp.Regexp, link string) string {
	m := re.FindStringSubmatch(link)
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
