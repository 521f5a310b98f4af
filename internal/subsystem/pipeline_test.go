package subsystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/luminis/luminis/internal/cache"
	"github.com/luminis/luminis/internal/domain"
	"github.com/luminis/luminis/internal/publisher"
)

type fakeFetcher struct {
	markdown string
	err      error
	calls    int
}

func (f *fakeFetcher) FetchMarkdown(ctx context.Context, pid string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("raw"), f.markdown, nil
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, title, markdown, url string, softLimit *int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if softLimit != nil {
		return fmt.Sprintf("%s (limit %d)", f.summary, *softLimit), nil
	}
	return f.summary, nil
}

type fakePublisher struct {
	name     string
	limit    int
	err      error
	received []string
}

func (f *fakePublisher) Name() string      { return f.name }
func (f *fakePublisher) SoftCharLimit() int { return f.limit }
func (f *fakePublisher) Publish(ctx context.Context, channel, post string) error {
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, post)
	return nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *cache.Cache, *fakeFetcher, *fakeSummarizer, *fakePublisher, *fakePublisher) {
	t.Helper()
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	fetch := &fakeFetcher{markdown: "# Doc\n\nbody text"}
	summ := &fakeSummarizer{summary: "a summary"}
	pubA := &fakePublisher{name: "console", limit: 1000}
	pubB := &fakePublisher{name: "mastodon", limit: 50}

	p := &Pipeline{
		Cache:      c,
		Fetcher:    fetch,
		Summarizer: summ,
		Publishers: []publisher.Publisher{pubA, pubB},
		Channels: []domain.ChannelSpec{
			{Name: "console", Enabled: true, SoftCharLimit: 1000},
			{Name: "mastodon", Enabled: true, SoftCharLimit: 50},
		},
		PostTemplate:    "{{title}}: {{summary}} ({{url}})",
		PostMaxChars:    200,
		GlobalSoftLimit: 1000,
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return p, c, fetch, summ, pubA, pubB
}

func TestProcessItemFullPipeline(t *testing.T) {
	t.Parallel()

	p, c, fetch, summ, pubA, pubB := newTestPipeline(t)
	item := domain.CrawlItem{PID: "1", Title: "Title", URL: "https://x/1"}

	published := p.ProcessItem(context.Background(), item)
	if published != 2 {
		t.Fatalf("expected 2 channels published, got %d", published)
	}
	if fetch.calls != 1 {
		t.Fatalf("expected 1 fetch call, got %d", fetch.calls)
	}
	// Console reuses the global summary (its limit is not stricter); mastodon
	// is stricter (50 < 1000) so it gets its own per-channel summarize call.
	if summ.calls != 2 {
		t.Fatalf("expected 2 summarize calls (global + channel), got %d", summ.calls)
	}
	if len(pubA.received) != 1 || len(pubB.received) != 1 {
		t.Fatalf("expected one post per publisher, got %v %v", pubA.received, pubB.received)
	}
	if !c.IsPublished(item.PID, "console") || !c.IsPublished(item.PID, "mastodon") {
		t.Fatalf("expected both channels marked published")
	}

	// Re-processing is fully memoized: no further fetch or summarize calls,
	// and no further publishes since both channels are already published.
	published2 := p.ProcessItem(context.Background(), item)
	if published2 != 0 {
		t.Fatalf("expected 0 newly-published channels on replay, got %d", published2)
	}
	if fetch.calls != 1 || summ.calls != 2 {
		t.Fatalf("expected memoization to skip fetch/summarize, got fetch=%d summ=%d", fetch.calls, summ.calls)
	}
}

func TestProcessItemFetchErrorSkipsItem(t *testing.T) {
	t.Parallel()

	p, _, fetch, _, pubA, pubB := newTestPipeline(t)
	fetch.err = errors.New("network down")

	item := domain.CrawlItem{PID: "2", Title: "T", URL: "u"}
	published := p.ProcessItem(context.Background(), item)
	if published != 0 {
		t.Fatalf("expected 0 published on fetch error, got %d", published)
	}
	if len(pubA.received) != 0 || len(pubB.received) != 0 {
		t.Fatalf("expected no publishes after fetch failure")
	}
}

func TestProcessItemOneChannelFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	p, c, _, _, pubA, pubB := newTestPipeline(t)
	pubA.err = errors.New("console down")

	item := domain.CrawlItem{PID: "3", Title: "T", URL: "u"}
	published := p.ProcessItem(context.Background(), item)
	if published != 1 {
		t.Fatalf("expected 1 published (mastodon only), got %d", published)
	}
	if c.IsPublished(item.PID, "console") {
		t.Fatalf("console should not be marked published after failure")
	}
	if !c.IsPublished(item.PID, "mastodon") {
		t.Fatalf("mastodon should be marked published")
	}
	if len(pubB.received) != 1 {
		t.Fatalf("expected mastodon to receive its post despite console failing")
	}
}

func TestProcessItemPollDelayAbortsOnCancelledContext(t *testing.T) {
	t.Parallel()

	p, _, _, summ, _, _ := newTestPipeline(t)
	p.PollDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := domain.CrawlItem{PID: "4", Title: "T", URL: "u"}
	published := p.ProcessItem(ctx, item)
	if published != 0 {
		t.Fatalf("expected 0 published when poll delay is cancelled, got %d", published)
	}
	if summ.calls != 0 {
		t.Fatalf("expected summarize to never be called once throttle aborts, got %d calls", summ.calls)
	}
}
