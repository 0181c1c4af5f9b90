// Package runstore keeps an in-memory history of automation runs for
// the server's /runs pages. History is bounded; the oldest runs fall
// off once the cap is reached.
package runstore

import (
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run records one handled webhook delivery.
type Run struct {
	ID        string
	Event     string
	Action    string
	Repo      string
	Status    Status
	Attempt   int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Logs      []LogEntry
}

type LogEntry struct {
	Timestamp time.Time
	Level     string // info, error, success
	Message   string
}

// DefaultKeep is the history bound when none is configured.
const DefaultKeep = 200

type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
	keep int
}

// NewStore creates a store retaining at most keep runs. keep <= 0
// means DefaultKeep.
func NewStore(keep int) *Store {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Store{
		runs: make(map[string]*Run),
		keep: keep,
	}
}

// Create registers a run and evicts the oldest entries beyond the
// retention cap.
func (s *Store) Create(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = StatusPending
	}
	s.runs[run.ID] = run
	s.evictLocked()
}

func (s *Store) evictLocked() {
	if len(s.runs) <= s.keep {
		return
	}
	ordered := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		ordered = append(ordered, run)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	for _, run := range ordered[:len(ordered)-s.keep] {
		delete(s.runs, run.ID)
	}
}

func (s *Store) Get(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

// List returns runs newest first.
func (s *Store) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// UpdateStatus moves a run to a new status. A non-empty errMsg is
// recorded alongside.
func (s *Store) UpdateStatus(id string, status Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		run.Status = status
		if errMsg != "" {
			run.Error = errMsg
		}
		run.UpdatedAt = time.Now()
	}
}

// SetAttempt records the attempt number the dispatcher is on.
func (s *Store) SetAttempt(id string, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		run.Attempt = attempt
		run.UpdatedAt = time.Now()
	}
}

func (s *Store) AddLog(id string, level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		run.Logs = append(run.Logs, LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   message,
		})
		run.UpdatedAt = time.Now()
	}
}
