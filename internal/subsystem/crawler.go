package subsystem

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/luminis/luminis/internal/domain"
)

// Source is satisfied by both PrimarySource (npalist.Source) and
// FallbackSource (feed.Source).
type Source interface {
	Fetch(ctx context.Context) ([]domain.CrawlItem, error)
}

// Items is the sole message type carried on the crawler-to-worker channel,
// spec §3's PipelineMessage.
type Items []domain.CrawlItem

// CrawlerSubsystem implements spec §4.8: periodic discovery with bounded
// retry on the primary source and one-shot fallback on exhaustion. The
// main loop shape is grounded on JakeFAU-realtime-cpi-crawler's
// worker.Run(ctx): a for{select} that exits the moment ctx is done.
type CrawlerSubsystem struct {
	Primary          Source
	Fallback         Source
	Interval         time.Duration
	MaxRetryAttempts int // 0 means retry indefinitely
	RetryBackoff     time.Duration

	Out      chan<- Items
	Shutdown *Shutdown
	Log      *slog.Logger
}

// Run executes the discovery loop until ctx is cancelled or shutdown is
// triggered. The initial tick fires immediately on startup per spec §4.8.1.
func (c *CrawlerSubsystem) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Shutdown.Done():
			return
		case <-timer.C:
			c.tick(ctx)
			timer.Reset(c.Interval)
		}
	}
}

func (c *CrawlerSubsystem) tick(ctx context.Context) {
	items, err := c.fetchWithRetry(ctx)
	if err != nil {
		c.Log.Error("primary source exhausted, trying fallback", "error", err)
		items, err = c.Fallback.Fetch(ctx)
		if err != nil {
			c.Log.Error("fallback source also failed, requesting shutdown", "error", err)
			c.Shutdown.Trigger(errors.New("crawler: both primary and fallback sources failed: " + err.Error()))
			return
		}
	}

	if len(items) == 0 {
		return
	}

	select {
	case c.Out <- items:
	case <-ctx.Done():
	case <-c.Shutdown.Done():
	}
}

// fetchWithRetry retries Primary.Fetch up to MaxRetryAttempts times (0 =
// unbounded) with a short backoff between attempts, per spec §4.8.3.
func (c *CrawlerSubsystem) fetchWithRetry(ctx context.Context) ([]domain.CrawlItem, error) {
	var lastErr error
	attempt := 0
	for {
		if c.MaxRetryAttempts > 0 && attempt >= c.MaxRetryAttempts {
			return nil, lastErr
		}
		attempt++

		items, err := c.Primary.Fetch(ctx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		c.Log.Warn("primary source fetch failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.Shutdown.Done():
			return nil, lastErr
		case <-time.After(c.RetryBackoff):
		}
	}
}
