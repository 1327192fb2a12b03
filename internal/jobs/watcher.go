package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fileconv/internal/logging"
	"fileconv/internal/services"
)

// Watcher polls one job until it is terminal, the attempt budget runs out, a
// permanent failure occurs, or its owner cancels it.
type Watcher struct {
	client   *Client
	onUpdate func(Job)

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	mu  sync.Mutex
	job Job
	err error
}

// Watch starts polling job in the background. onUpdate, when non-nil, runs
// on the watcher goroutine after every poll that returns.
//
// Transient failures are retried. After MaxPollAttempts polls without a
// terminal status the job's Err is set to services.ErrPollingTimeout.
// Cancelling ctx or calling Cancel stops further polls; a request already in
// flight is allowed to finish under its own deadline.
func (c *Client) Watch(ctx context.Context, job Job, onUpdate func(Job)) *Watcher {
	w := &Watcher{
		client:   c,
		onUpdate: onUpdate,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
		job:      job,
	}
	go w.loop(ctx)
	return w
}

// Cancel stops scheduling polls. It is safe to call more than once.
func (w *Watcher) Cancel() {
	w.cancelOnce.Do(func() { close(w.cancel) })
}

// Done is closed when the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Job returns the latest known state of the watched job.
func (w *Watcher) Job() Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job
}

// Wait blocks until the watcher stops and returns the final job. The error
// is nil when the job reached a terminal status, context.Canceled when the
// watcher was cancelled first, and the stopping failure otherwise.
func (w *Watcher) Wait() (Job, error) {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job, w.err
}

func (w *Watcher) finish(job Job, err error) {
	w.mu.Lock()
	w.job = job
	w.err = err
	w.mu.Unlock()
	close(w.done)
}

func (w *Watcher) stopped(ctx context.Context) bool {
	select {
	case <-w.cancel:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (w *Watcher) loop(ctx context.Context) {
	c := w.client
	job := w.Job()
	logger := c.jobLogger(ctx, job)
	attempts := 0
	var lastErr error

	for {
		if job.Terminal() {
			w.finish(job, nil)
			return
		}
		if !job.Status.Active() || job.ServerID == "" {
			_, err := c.Poll(ctx, job)
			w.finish(job, err)
			return
		}
		if w.stopped(ctx) {
			logger.Debug("watch cancelled", logging.Int("polls", attempts))
			w.finish(job, context.Canceled)
			return
		}
		if attempts >= c.maxPollAttempts {
			job.Err = services.Wrap(services.ErrPollingTimeout, "watch",
				fmt.Sprintf("Gave up waiting for the conversion after %d status checks.", attempts), lastErr)
			c.record(ctx, job)
			logger.Warn("polling gave up",
				logging.Int("polls", attempts),
				logging.Duration("interval", c.pollInterval),
				logging.String(logging.FieldStatus, string(job.Status)),
			)
			w.finish(job, job.Err)
			return
		}
		if attempts > 0 {
			timer := time.NewTimer(c.pollInterval)
			select {
			case <-timer.C:
			case <-w.cancel:
				timer.Stop()
				continue
			case <-ctx.Done():
				timer.Stop()
				continue
			}
		}

		attempts++
		pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.requestTimeout)
		updated, err := c.Poll(pollCtx, job)
		cancel()
		job = updated

		w.mu.Lock()
		w.job = job
		w.mu.Unlock()
		if w.onUpdate != nil {
			w.onUpdate(job)
		}

		if err != nil {
			if services.IsTransient(err) && !errors.Is(err, services.ErrAuthorization) {
				lastErr = err
				continue
			}
			logger.Warn("polling stopped", logging.Error(err))
			w.finish(job, err)
			return
		}
		lastErr = nil
	}
}
