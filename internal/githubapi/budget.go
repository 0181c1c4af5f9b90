package githubapi

import (
	"log"
	"sync"
	"time"
)

// Budget tracks API call volume and enforces a floor on the remaining
// rate limit so automation never drains the quota that interactive
// users of the same token share.
type Budget struct {
	mu             sync.Mutex
	dailyCallLimit int
	buffer         int

	// Daily tracking
	dailyCalls     int
	dailyResetTime time.Time

	// Last observed remaining quota, -1 until a rate limit response
	// has been seen.
	remaining int
}

// NewBudget creates a budget. dailyCallLimit caps calls per calendar
// day; buffer is the remaining-quota floor below which calls are
// refused.
func NewBudget(dailyCallLimit, buffer int) *Budget {
	now := time.Now()

	return &Budget{
		dailyCallLimit: dailyCallLimit,
		buffer:         buffer,
		dailyResetTime: time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()),
		remaining:      -1,
	}
}

// Record counts one API call against the daily budget.
func (b *Budget) Record() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetDailyIfNeeded()
	b.dailyCalls++
}

// Observe stores the remaining quota reported by the API and logs a
// warning once it falls below the buffer.
func (b *Budget) Observe(remaining int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remaining = remaining
	if b.buffer > 0 && remaining < b.buffer {
		log.Printf("[Budget] RATE ALERT: %d requests remaining, below buffer %d", remaining, b.buffer)
	}
}

// CheckLimit returns a LimitError when the daily call limit is reached
// or the observed remaining quota has fallen below the buffer.
func (b *Budget) CheckLimit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetDailyIfNeeded()

	if b.dailyCallLimit > 0 && b.dailyCalls >= b.dailyCallLimit {
		return &LimitError{
			Type:    "daily_calls",
			Limit:   b.dailyCallLimit,
			Current: b.dailyCalls,
			Message: "daily API call limit reached",
		}
	}

	if b.buffer > 0 && b.remaining >= 0 && b.remaining < b.buffer {
		return &LimitError{
			Type:    "rate_limit_buffer",
			Limit:   b.buffer,
			Current: b.remaining,
			Message: "remaining rate limit below buffer",
		}
	}

	return nil
}

// resetDailyIfNeeded resets daily counters once a new day has started.
func (b *Budget) resetDailyIfNeeded() {
	if time.Now().After(b.dailyResetTime) {
		now := time.Now()
		b.dailyCalls = 0
		b.dailyResetTime = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		log.Printf("[Budget] Daily call tracking reset. Next reset: %s", b.dailyResetTime.Format("2006-01-02 15:04:05"))
	}
}

// Stats reports the current budget state.
func (b *Budget) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetDailyIfNeeded()

	return BudgetStats{
		DailyCalls:    b.dailyCalls,
		DailyLimit:    b.dailyCallLimit,
		Remaining:     b.remaining,
		Buffer:        b.buffer,
		NextResetTime: b.dailyResetTime,
	}
}

// BudgetStats is a snapshot of budget counters.
type BudgetStats struct {
	DailyCalls    int       `json:"daily_calls"`
	DailyLimit    int       `json:"daily_limit"`
	Remaining     int       `json:"remaining"`
	Buffer        int       `json:"buffer"`
	NextResetTime time.Time `json:"next_reset_time"`
}

// LimitError reports a budget violation.
type LimitError struct {
	Type    string
	Limit   int
	Current int
	Message string
}

func (e *LimitError) Error() string {
	return e.Message
}
