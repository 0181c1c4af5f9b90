package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devlogkit/devlog/internal/runstore"
)

type mockRunner struct {
	fn func(ctx context.Context, job *Job) error
}

func (m *mockRunner) Run(ctx context.Context, job *Job) error {
	if m.fn == nil {
		return nil
	}
	return m.fn(ctx, job)
}

func testConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:           2,
		QueueSize:         4,
		MaxAttempts:       1,
		InitialBackoff:    10 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        20 * time.Millisecond,
	}
}

func TestDispatcherEnqueueRunsJob(t *testing.T) {
	done := make(chan struct{})
	runner := &mockRunner{
		fn: func(ctx context.Context, job *Job) error {
			close(done)
			return nil
		},
	}

	d := NewDispatcher(runner, testConfig(), nil)
	defer d.Shutdown(context.Background())

	if err := d.Enqueue(&Job{ID: "j1", Event: "push", Repo: "owner/repo"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Timed out waiting for job execution")
	}
}

func TestDispatcherSerializesSameRepo(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0
	done := make(chan struct{}, 3)

	runner := &mockRunner{
		fn: func(ctx context.Context, job *Job) error {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()

			done <- struct{}{}
			return nil
		},
	}

	cfg := testConfig()
	cfg.Workers = 3
	d := NewDispatcher(runner, cfg, nil)
	defer d.Shutdown(context.Background())

	for i := 0; i < 3; i++ {
		if err := d.Enqueue(&Job{ID: "j", Event: "push", Repo: "owner/repo"}); err != nil {
			t.Fatalf("Enqueue returned error: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
			t.Fatal("Timed out waiting for serialized jobs")
		}
	}

	if maxActive != 1 {
		t.Fatalf("max concurrent executions for one repo = %d, want 1", maxActive)
	}
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	runner := &mockRunner{
		fn: func(ctx context.Context, job *Job) error {
			mu.Lock()
			attempts = append(attempts, job.Attempt)
			n := len(attempts)
			mu.Unlock()

			if n < 3 {
				return errors.New("transient failure")
			}
			close(done)
			return nil
		},
	}

	cfg := testConfig()
	cfg.MaxAttempts = 3
	runs := runstore.NewStore(0)
	runs.Create(&runstore.Run{ID: "retry-job"})
	d := NewDispatcher(runner, cfg, runs)
	defer d.Shutdown(context.Background())

	if err := d.Enqueue(&Job{ID: "retry-job", Event: "push", Repo: "owner/repo"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for retries")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 3 {
		t.Fatalf("attempts = %v, want 3 entries", attempts)
	}
	for i, a := range attempts {
		if a != i+1 {
			t.Errorf("attempt %d recorded as %d", i+1, a)
		}
	}

	// The run store should end on succeeded.
	deadline := time.After(time.Second)
	for {
		if run, ok := runs.Get("retry-job"); ok && run.Status == runstore.StatusSucceeded {
			break
		}
		select {
		case <-deadline:
			t.Fatal("run never reached succeeded status")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDispatcherStopsOnNonRetryable(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	runner := &mockRunner{
		fn: func(ctx context.Context, job *Job) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return NonRetryable(errors.New("bad payload"))
		},
	}

	cfg := testConfig()
	cfg.MaxAttempts = 3
	runs := runstore.NewStore(0)
	runs.Create(&runstore.Run{ID: "bad-job"})
	d := NewDispatcher(runner, cfg, runs)
	defer d.Shutdown(context.Background())

	if err := d.Enqueue(&Job{ID: "bad-job", Event: "push", Repo: "owner/repo"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	// Wait for the failure to be recorded, then a little longer to
	// catch any stray retry.
	deadline := time.After(time.Second)
	for {
		if run, ok := runs.Get("bad-job"); ok && run.Status == runstore.StatusFailed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("run never reached failed status")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 for a non-retryable failure", calls)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	block := make(chan struct{})
	runner := &mockRunner{
		fn: func(ctx context.Context, job *Job) error {
			<-block
			return nil
		},
	}

	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	d := NewDispatcher(runner, cfg, nil)
	defer func() {
		close(block)
		d.Shutdown(context.Background())
	}()

	// First job occupies the worker, second fills the queue.
	if err := d.Enqueue(&Job{ID: "a", Repo: "o/r"}); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	// Give the worker time to pick up the first job.
	time.Sleep(20 * time.Millisecond)
	if err := d.Enqueue(&Job{ID: "b", Repo: "o/r"}); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}

	err := d.Enqueue(&Job{ID: "c", Repo: "o/r"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue c error = %v, want ErrQueueFull", err)
	}
}

func TestDispatcherEnqueueAfterShutdown(t *testing.T) {
	d := NewDispatcher(&mockRunner{}, testConfig(), nil)
	d.Shutdown(context.Background())

	if err := d.Enqueue(&Job{ID: "late", Repo: "o/r"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue after shutdown error = %v, want ErrQueueClosed", err)
	}
}

func TestNonRetryable(t *testing.T) {
	if NonRetryable(nil) != nil {
		t.Error("NonRetryable(nil) should be nil")
	}
	base := errors.New("boom")
	wrapped := NonRetryable(base)
	if !IsNonRetryable(wrapped) {
		t.Error("IsNonRetryable should see the marker")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to the original")
	}
	if IsNonRetryable(base) {
		t.Error("plain errors are retryable")
	}
}
