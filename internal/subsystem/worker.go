package subsystem

import (
	"context"
	"log/slog"
)

// WorkerSubsystem implements spec §4.9: consumes Items batches from In,
// drives Pipeline.ProcessItem sequentially, and enforces max_posts_per_run.
type WorkerSubsystem struct {
	In       <-chan Items
	Pipeline *Pipeline
	Shutdown *Shutdown
	Log      *slog.Logger

	MaxPostsPerRun int // 0 = unlimited

	postsEmitted int
}

// Run executes the consume loop until ctx is cancelled or shutdown is
// triggered, mirroring CrawlerSubsystem.Run's cancellation-checking shape.
func (w *WorkerSubsystem) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Shutdown.Done():
			return
		case items, ok := <-w.In:
			if !ok {
				return
			}
			if w.processBatch(ctx, items) {
				return
			}
		}
	}
}

// processBatch processes every item in items in order, returning true if
// the caller should stop (shutdown requested mid-batch, either from the
// per-run cap or an external trigger).
func (w *WorkerSubsystem) processBatch(ctx context.Context, items Items) bool {
	for _, item := range items {
		select {
		case <-w.Shutdown.Done():
			return true
		case <-ctx.Done():
			return true
		default:
		}

		published := w.Pipeline.ProcessItem(ctx, item)
		w.postsEmitted += published

		if w.MaxPostsPerRun > 0 && w.postsEmitted >= w.MaxPostsPerRun {
			w.Log.Info("max_posts_per_run reached, requesting shutdown", "posts_emitted", w.postsEmitted)
			w.Shutdown.Trigger(nil)
			return true
		}
	}
	return false
}
