package jobs_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"fileconv/internal/jobs"
	"fileconv/internal/services"
	"fileconv/internal/session"
	"fileconv/internal/testsupport"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWatchRetriesTransientFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ScriptStatuses(
		testsupport.StatusStep{HTTPStatus: http.StatusServiceUnavailable, Detail: "busy"},
		testsupport.StatusStep{Status: "processing"},
		testsupport.StatusStep{Status: "completed", ResultPath: "/files/7"},
	)
	job := h.submit(t, "a.txt")

	var updates atomic.Int32
	watcher := h.client.Watch(context.Background(), job, func(jobs.Job) { updates.Add(1) })
	final, err := watcher.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if final.Status != jobs.StatusCompleted || final.ResultLocation != "/files/7" || final.Err != nil {
		t.Fatalf("unexpected final job: %+v", final)
	}
	if updates.Load() != 3 {
		t.Fatalf("expected three updates, got %d", updates.Load())
	}
	if calls := h.backend.Calls(testsupport.RouteStatus); calls != 3 {
		t.Fatalf("expected three status requests, got %d", calls)
	}
	if got := watcher.Job(); got.Status != jobs.StatusCompleted {
		t.Fatalf("expected watcher job to be completed, got %s", got.Status)
	}
}

func TestWatchGivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, func(o *jobs.Options) { o.MaxPollAttempts = 3 })
	h.backend.ScriptStatuses(testsupport.StatusStep{Status: "processing"})
	job := h.submit(t, "a.txt")

	final, err := h.client.Watch(context.Background(), job, nil).Wait()
	if !errors.Is(err, services.ErrPollingTimeout) {
		t.Fatalf("expected polling timeout, got %v", err)
	}
	if final.Status != jobs.StatusProcessing || !errors.Is(final.Err, services.ErrPollingTimeout) {
		t.Fatalf("expected timeout recorded on a non-terminal job, got %+v", final)
	}
	if final.ErrorDetail != "" {
		t.Fatalf("expected no error detail on a polling timeout, got %q", final.ErrorDetail)
	}
	if calls := h.backend.Calls(testsupport.RouteStatus); calls != 3 {
		t.Fatalf("expected exactly three polls, got %d", calls)
	}
	statuses := h.recorder.statuses(job.LocalID)
	if statuses[len(statuses)-1] != jobs.StatusProcessing {
		t.Fatalf("expected final record to keep processing status, got %v", statuses)
	}
}

func TestWatchTransientFailuresCountTowardAttempts(t *testing.T) {
	h := newHarness(t, func(o *jobs.Options) { o.MaxPollAttempts = 2 })
	h.backend.ScriptStatuses(testsupport.StatusStep{HTTPStatus: http.StatusBadGateway, Detail: "upstream"})
	job := h.submit(t, "a.txt")

	final, err := h.client.Watch(context.Background(), job, nil).Wait()
	if !errors.Is(err, services.ErrPollingTimeout) {
		t.Fatalf("expected polling timeout, got %v", err)
	}
	if final.Status != jobs.StatusPending {
		t.Fatalf("expected status untouched, got %s", final.Status)
	}
}

func TestWatchStopsOnAuthorizationFailure(t *testing.T) {
	h := newHarness(t, nil)
	job := h.submit(t, "a.txt")
	h.backend.RevokeTokens()

	final, err := h.client.Watch(context.Background(), job, nil).Wait()
	if !errors.Is(err, services.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if !errors.Is(final.Err, services.ErrAuthorization) {
		t.Fatalf("expected error recorded on job, got %v", final.Err)
	}
	if calls := h.backend.Calls(testsupport.RouteStatus); calls != 1 {
		t.Fatalf("expected a single poll, got %d", calls)
	}
	if h.manager.Snapshot().Phase != session.PhaseAnonymous {
		t.Fatal("expected session to be logged out")
	}
}

func TestWatchCancelLetsInFlightPollFinish(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ScriptStatuses(testsupport.StatusStep{Status: "processing"})
	job := h.submit(t, "a.txt")
	h.backend.SetDelay(testsupport.RouteStatus, 100*time.Millisecond)

	watcher := h.client.Watch(context.Background(), job, nil)
	waitFor(t, "first poll", func() bool { return h.backend.Calls(testsupport.RouteStatus) == 1 })
	watcher.Cancel()
	watcher.Cancel()

	final, err := watcher.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if final.Status != jobs.StatusProcessing || final.Err != nil {
		t.Fatalf("expected in-flight poll result to be applied, got %+v", final)
	}
	time.Sleep(20 * time.Millisecond)
	if calls := h.backend.Calls(testsupport.RouteStatus); calls != 1 {
		t.Fatalf("expected no polls after cancel, got %d", calls)
	}
}

func TestWatchContextCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	job := h.submit(t, "a.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	final, err := h.client.Watch(ctx, job, nil).Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if final != job {
		t.Fatalf("expected job untouched, got %+v", final)
	}
	if calls := h.backend.Calls(testsupport.RouteStatus); calls != 0 {
		t.Fatalf("expected no polls, got %d", calls)
	}
}

func TestWatchTerminalJobFinishesImmediately(t *testing.T) {
	h := newHarness(t, nil)
	job := jobs.Job{LocalID: "l", ServerID: "conv-1", Status: jobs.StatusFailed, ErrorDetail: "boom"}

	watcher := h.client.Watch(context.Background(), job, func(jobs.Job) { t.Error("unexpected update") })
	select {
	case <-watcher.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not finish")
	}
	final, err := watcher.Wait()
	if err != nil || final != job {
		t.Fatalf("expected unchanged job without error, got %+v %v", final, err)
	}
}

func TestWatchJobsIndependently(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ScriptStatuses(testsupport.StatusStep{Status: "failed", Error: "bad page"})
	failing := h.submit(t, "a.txt")
	h.backend.ScriptStatuses(testsupport.StatusStep{Status: "processing"}, testsupport.StatusStep{Status: "completed"})
	succeeding := h.submit(t, "b.txt")

	w1 := h.client.Watch(context.Background(), failing, nil)
	w2 := h.client.Watch(context.Background(), succeeding, nil)
	first, err1 := w1.Wait()
	second, err2 := w2.Wait()
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected watcher errors: %v %v", err1, err2)
	}
	if first.Status != jobs.StatusFailed || first.ErrorDetail != "bad page" {
		t.Fatalf("unexpected failing job: %+v", first)
	}
	if second.Status != jobs.StatusCompleted {
		t.Fatalf("unexpected succeeding job: %+v", second)
	}
}
