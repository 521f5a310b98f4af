package subsystem

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/luminis/luminis/internal/cache"
	"github.com/luminis/luminis/internal/domain"
	"github.com/luminis/luminis/internal/fetcher"
	"github.com/luminis/luminis/internal/publisher"
	"github.com/luminis/luminis/internal/render"
	"github.com/luminis/luminis/internal/summarizer"
)

// MarkdownFetcher is the subset of fetcher.Fetcher the pipeline needs,
// narrowed to an interface so tests can substitute a fake.
type MarkdownFetcher interface {
	FetchMarkdown(ctx context.Context, pid string) ([]byte, string, error)
}

// Summarize is the subset of summarizer.Summarizer the pipeline needs.
type Summarize interface {
	Summarize(ctx context.Context, title, markdown, url string, softLimit *int) (string, error)
}

// Pipeline drives spec §4.9's process_item: a four-stage memoized sequence
// (data, global summary, per-channel summary, render) followed by
// publisher fan-out in fixed order.
type Pipeline struct {
	Cache       *cache.Cache
	Fetcher     MarkdownFetcher
	Summarizer  Summarize
	Publishers  []publisher.Publisher
	Channels    []domain.ChannelSpec
	PostTemplate string
	PostMaxChars int
	GlobalSoftLimit int

	// PollDelay is slept before every LLM summarize call, global or
	// per-channel, to throttle request traffic to the provider.
	PollDelay time.Duration

	Log *slog.Logger
}

// throttle sleeps PollDelay before an LLM call, returning false if ctx is
// cancelled first so callers can bail out instead of summarizing anyway.
func (p *Pipeline) throttle(ctx context.Context) bool {
	if p.PollDelay <= 0 {
		return true
	}
	timer := time.NewTimer(p.PollDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ProcessItem runs all stages for one item, persisting artifacts as it
// goes so a crash or restart resumes from the last completed stage.
// Returns the number of channels successfully published to, for the
// caller's posts_emitted counter.
func (p *Pipeline) ProcessItem(ctx context.Context, item domain.CrawlItem) int {
	markdown, ok := p.stageData(ctx, item)
	if !ok {
		return 0
	}

	summary, ok := p.stageGlobalSummary(ctx, item, markdown)
	if !ok {
		return 0
	}

	return p.stageChannelFanOut(ctx, item, markdown, summary)
}

func (p *Pipeline) stageData(ctx context.Context, item domain.CrawlItem) (string, bool) {
	if p.Cache.HasData(item.PID) {
		md, err := p.Cache.LoadMarkdown(item.PID)
		if err != nil {
			p.Log.Error("load cached markdown failed", "pid", item.PID, "error", err)
			return "", false
		}
		return md, true
	}

	doc, markdown, err := p.Fetcher.FetchMarkdown(ctx, item.PID)
	if err != nil {
		var ferr *fetcher.Error
		if errors.As(err, &ferr) {
			p.Log.Error("fetch failed", "pid", item.PID, "kind", ferr.Kind, "error", err)
		} else {
			p.Log.Error("fetch failed", "pid", item.PID, "error", err)
		}
		return "", false
	}

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{
		HasDocBytes: true,
		DocBytes:    doc,
		HasMarkdown: true,
		Markdown:    markdown,
		Title:       item.Title,
		URL:         item.URL,
	}); err != nil {
		p.Log.Error("persist fetched artifacts failed", "pid", item.PID, "error", err)
		return "", false
	}

	return markdown, true
}

func (p *Pipeline) stageGlobalSummary(ctx context.Context, item domain.CrawlItem, markdown string) (string, bool) {
	if p.Cache.HasSummary(item.PID) {
		summary, err := p.Cache.LoadSummary(item.PID)
		if err != nil {
			p.Log.Error("load cached summary failed", "pid", item.PID, "error", err)
			return "", false
		}
		return summary, true
	}

	if !p.throttle(ctx) {
		p.Log.Error("summarize skipped", "pid", item.PID, "error", ctx.Err())
		return "", false
	}

	summary, err := p.Summarizer.Summarize(ctx, item.Title, markdown, item.URL, nil)
	if err != nil {
		var serr *summarizer.Error
		if errors.As(err, &serr) {
			p.Log.Error("summarize failed", "pid", item.PID, "kind", serr.Kind, "error", err)
		} else {
			p.Log.Error("summarize failed", "pid", item.PID, "error", err)
		}
		return "", false
	}

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{HasSummary: true, Summary: summary}); err != nil {
		p.Log.Error("persist summary failed", "pid", item.PID, "error", err)
		return "", false
	}

	return summary, true
}

// stageChannelFanOut runs stage 3 for every enabled channel in the fixed
// publisher order, per spec §4.9's process_item step 3. Per-channel
// failure is isolated: a publish error on one channel never stops the
// next channel from being attempted.
func (p *Pipeline) stageChannelFanOut(ctx context.Context, item domain.CrawlItem, markdown, globalSummary string) int {
	published := 0

	for i, spec := range p.Channels {
		if !spec.Enabled {
			continue
		}
		pub := p.Publishers[i]

		if p.Cache.IsPublished(item.PID, spec.Name) {
			continue
		}

		summary, ok := p.effectiveSummary(ctx, item, markdown, globalSummary, spec)
		if !ok {
			continue
		}

		post, ok := p.effectivePost(item, spec, summary)
		if !ok {
			continue
		}

		if err := pub.Publish(ctx, spec.Name, post); err != nil {
			p.Log.Error("publish failed", "pid", item.PID, "channel", spec.Name, "error", err)
			continue
		}

		if err := p.Cache.AddPublished(item.PID, spec.Name); err != nil {
			p.Log.Error("record published failed", "pid", item.PID, "channel", spec.Name, "error", err)
			continue
		}
		published++
	}

	return published
}

func (p *Pipeline) effectiveSummary(ctx context.Context, item domain.CrawlItem, markdown, globalSummary string, spec domain.ChannelSpec) (string, bool) {
	if spec.SoftCharLimit >= p.GlobalSoftLimit {
		return globalSummary, true
	}

	if p.Cache.HasChannelSummary(item.PID, spec.Name) {
		summary, err := p.Cache.LoadChannelSummary(item.PID, spec.Name)
		if err != nil {
			p.Log.Error("load channel summary failed", "pid", item.PID, "channel", spec.Name, "error", err)
			return "", false
		}
		return summary, true
	}

	if !p.throttle(ctx) {
		p.Log.Error("channel summarize skipped", "pid", item.PID, "channel", spec.Name, "error", ctx.Err())
		return "", false
	}

	limit := spec.SoftCharLimit
	summary, err := p.Summarizer.Summarize(ctx, item.Title, markdown, item.URL, &limit)
	if err != nil {
		p.Log.Error("channel summarize failed", "pid", item.PID, "channel", spec.Name, "error", err)
		return "", false
	}

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{
		Channel:       spec.Name,
		HasChannelSum: true,
		ChannelSummary: summary,
	}); err != nil {
		p.Log.Error("persist channel summary failed", "pid", item.PID, "channel", spec.Name, "error", err)
		return "", false
	}

	return summary, true
}

func (p *Pipeline) effectivePost(item domain.CrawlItem, spec domain.ChannelSpec, summary string) (string, bool) {
	if p.Cache.HasChannelPost(item.PID, spec.Name) {
		post, err := p.Cache.LoadChannelPost(item.PID, spec.Name)
		if err != nil {
			p.Log.Error("load channel post failed", "pid", item.PID, "channel", spec.Name, "error", err)
			return "", false
		}
		return post, true
	}

	vars := map[string]string{"title": item.Title, "summary": summary, "url": item.URL}
	for k, v := range item.ExtraMetadata {
		vars[k] = v
	}
	rendered := render.Post(p.PostTemplate, vars)
	post := render.TruncateCodepoints(rendered, p.PostMaxChars)

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{
		Channel: spec.Name,
		HasPost: true,
		Post:    post,
	}); err != nil {
		p.Log.Error("persist post failed", "pid", item.PID, "channel", spec.Name, "error", err)
		return "", false
	}

	return post, true
}
