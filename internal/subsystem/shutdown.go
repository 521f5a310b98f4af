// Package subsystem implements the CrawlerSubsystem and WorkerSubsystem of
// spec §4.8/§4.9 and the shared shutdown coordination of §5: two goroutines
// cooperating over a bounded channel, either of which can request a
// process-wide shutdown.
package subsystem

import "sync"

// Shutdown is the shared signal both subsystems watch, generalizing the
// teacher's CronScheduler.Stop close(chan struct{}) idiom into a
// sync.Once-guarded coordinator that also carries the triggering cause,
// standing in for a graceful-shutdown handle.
type Shutdown struct {
	once sync.Once
	done chan struct{}

	mu  sync.Mutex
	err error
}

// NewShutdown builds an unsignaled coordinator.
func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Trigger requests shutdown, recording cause if this is the first call.
// Safe to call concurrently and more than once; only the first cause wins.
func (s *Shutdown) Trigger(cause error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = cause
		s.mu.Unlock()
		close(s.done)
	})
}

// Done returns a channel closed once shutdown has been triggered.
func (s *Shutdown) Done() <-chan struct{} { return s.done }

// Cause returns the error that triggered shutdown, or nil for a clean
// shutdown (no subsystem reported a fatal cause).
func (s *Shutdown) Cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
