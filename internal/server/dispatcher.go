package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/devlogkit/devlog/internal/runstore"
)

// Job is one webhook delivery queued for processing.
type Job struct {
	ID      string
	Event   string
	Action  string
	Repo    string // owner/name
	Payload []byte
	Attempt int
}

// Runner executes a queued job.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// errNonRetryable wraps failures that further attempts cannot fix.
type errNonRetryable struct{ err error }

func (e *errNonRetryable) Error() string { return e.err.Error() }
func (e *errNonRetryable) Unwrap() error { return e.err }

// NonRetryable marks err so the dispatcher gives up after the first
// attempt.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &errNonRetryable{err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nr *errNonRetryable
	return errors.As(err, &nr)
}

// DispatcherConfig controls dispatcher behaviour.
type DispatcherConfig struct {
	Workers           int
	QueueSize         int
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// Dispatcher serialises execution per repository and retries failed
// jobs with backoff.
type Dispatcher struct {
	runner Runner
	cfg    DispatcherConfig
	runs   *runstore.Store

	queue chan *queueItem

	keyedLocks *keyedMutex

	stopCh chan struct{}
	wg     sync.WaitGroup

	once sync.Once
}

type queueItem struct {
	job     *Job
	attempt int
}

// NewDispatcher creates a dispatcher with the provided configuration.
// runs may be nil when no history is wanted.
func NewDispatcher(runner Runner, cfg DispatcherConfig, runs *runstore.Store) *Dispatcher {
	normalized := normalizeConfig(cfg)
	d := &Dispatcher{
		runner:     runner,
		cfg:        normalized,
		runs:       runs,
		queue:      make(chan *queueItem, normalized.QueueSize),
		keyedLocks: newKeyedMutex(),
		stopCh:     make(chan struct{}),
	}
	d.startWorkers()
	return d
}

func normalizeConfig(cfg DispatcherConfig) DispatcherConfig {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 15 * time.Second
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return cfg
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Enqueue queues a new job for execution.
func (d *Dispatcher) Enqueue(job *Job) error {
	if job == nil {
		return errors.New("dispatcher enqueue: job is nil")
	}

	select {
	case <-d.stopCh:
		return ErrQueueClosed
	default:
	}

	select {
	case d.queue <- &queueItem{job: job, attempt: 1}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case item, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(item)
		}
	}
}

func (d *Dispatcher) process(item *queueItem) {
	job := item.job
	job.Attempt = item.attempt

	key := fmt.Sprintf("%s/%s", job.Repo, job.Event)
	d.keyedLocks.Lock(job.Repo)

	d.recordStatus(job, runstore.StatusRunning, "")

	ctx := context.Background()
	err := d.runner.Run(ctx, job)

	d.keyedLocks.Unlock(job.Repo)

	if err != nil {
		log.Printf("[Dispatcher] Job %s (%s) attempt %d failed: %v", job.ID, key, item.attempt, err)
		if IsNonRetryable(err) {
			log.Printf("[Dispatcher] Job %s marked non-retryable; no further attempts", job.ID)
			d.recordStatus(job, runstore.StatusFailed, err.Error())
			return
		}
		d.handleRetry(item, err)
		return
	}

	log.Printf("[Dispatcher] Job %s (%s) attempt %d succeeded", job.ID, key, item.attempt)
	d.recordStatus(job, runstore.StatusSucceeded, "")
}

func (d *Dispatcher) handleRetry(item *queueItem, runErr error) {
	if item.attempt >= d.cfg.MaxAttempts {
		log.Printf("[Dispatcher] Job %s exceeded max attempts (%d): %v", item.job.ID, d.cfg.MaxAttempts, runErr)
		d.recordStatus(item.job, runstore.StatusFailed, runErr.Error())
		return
	}

	nextAttempt := item.attempt + 1
	delay := d.backoffDuration(nextAttempt)
	log.Printf("[Dispatcher] Scheduling retry %d for job %s in %s", nextAttempt, item.job.ID, delay)
	d.recordStatus(item.job, runstore.StatusPending, runErr.Error())

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			d.enqueueRetry(&queueItem{
				job:     item.job,
				attempt: nextAttempt,
			})
		case <-d.stopCh:
			return
		}
	}()
}

func (d *Dispatcher) enqueueRetry(item *queueItem) {
	for {
		select {
		case <-d.stopCh:
			return
		case d.queue <- item:
			return
		default:
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func (d *Dispatcher) backoffDuration(attempt int) time.Duration {
	backoff := float64(d.cfg.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= d.cfg.BackoffMultiplier
		if backoff >= float64(d.cfg.MaxBackoff) {
			return d.cfg.MaxBackoff
		}
	}
	return time.Duration(backoff)
}

func (d *Dispatcher) recordStatus(job *Job, status runstore.Status, errMsg string) {
	if d.runs == nil {
		return
	}
	d.runs.SetAttempt(job.ID, job.Attempt)
	d.runs.UpdateStatus(job.ID, status, errMsg)
}

// Shutdown gracefully stops the dispatcher.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.once.Do(func() {
		close(d.stopCh)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return
	case <-done:
		return
	}
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()

	if !ok {
		return
	}

	m.Unlock()
}
