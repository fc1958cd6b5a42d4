package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/verifmatos/internal/metrics"
)

// DefaultPublishTimeout bounds a single publish attempt.
const DefaultPublishTimeout = 500 * time.Millisecond

// TransientError is a publish that failed or timed out. It is logged and
// counted, never returned to the writer that triggered it.
type TransientError struct {
	Fingerprint string
	Err         error
}

func (e *TransientError) Error() string {
	return "publishing invalidation " + e.Fingerprint + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Notifier publishes invalidations in the background so a slow or broken
// channel never delays or fails the write that caused them.
type Notifier struct {
	Publisher Publisher
	Timeout   time.Duration
	Logger    *slog.Logger

	wg sync.WaitGroup
}

// NewNotifier creates a notifier with the given per-publish timeout.
// A zero timeout selects DefaultPublishTimeout.
func NewNotifier(p Publisher, timeout time.Duration) *Notifier {
	return &Notifier{Publisher: p, Timeout: timeout}
}

// Notify schedules one invalidation for topic and returns immediately.
func (n *Notifier) Notify(topic string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.publish(topic); err != nil {
			n.logger().Warn("invalidation publish failed",
				"topic", err.Fingerprint,
				"error", err.Err,
			)
		}
	}()
}

// Wait blocks until all scheduled notifications have finished or timed out.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) publish(topic string) *TransientError {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- n.Publisher.Publish(ctx, topic) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		// A publisher ignoring its context still cannot hold the notifier.
		err = ctx.Err()
	}
	metrics.ObserveFanoutPublish(err, time.Since(start))

	if err != nil {
		return &TransientError{Fingerprint: Fingerprint(topic), Err: err}
	}
	return nil
}

func (n *Notifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
