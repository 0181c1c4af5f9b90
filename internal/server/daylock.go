package server

import (
	"fmt"
	"sync"
	"time"
)

// DayLock suppresses concurrent report rebuilds for the same
// repository and calendar day. Two push deliveries racing on the same
// day would both read the existing report body and the loser's edit
// would clobber the winner's.
type DayLock struct {
	locks sync.Map // map[string]chan struct{}
}

func NewDayLock() *DayLock {
	return &DayLock{}
}

// ReportKey builds the lock key for a repository's report on a day.
func ReportKey(repo string, day time.Time) string {
	return fmt.Sprintf("%s@%s", repo, day.Format("2006-01-02"))
}

// TryAcquire attempts to take the lock for key. It returns false when
// another job already holds it.
func (d *DayLock) TryAcquire(key string) bool {
	actual, _ := d.locks.LoadOrStore(key, make(chan struct{}, 1))
	ch := actual.(chan struct{})

	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the lock for key. Safe to call when the lock was never
// acquired.
func (d *DayLock) Release(key string) {
	if actual, ok := d.locks.Load(key); ok {
		ch := actual.(chan struct{})
		select {
		case <-ch:
		default:
		}
	}
}
