package hammer

import (
	"math"
	"sync/atomic"
)

// Budget is the shared remaining-request counter for one endpoint.
// Workers claim one unit per request; the counter never goes below
// zero, so exactly Count claims succeed across all workers.
type Budget struct {
	remaining atomic.Int64
}

// NewBudget creates a budget of count requests. A count above MaxInt64
// is capped to it; the counter must never start negative.
func NewBudget(count uint64) *Budget {
	b := &Budget{}
	if count > math.MaxInt64 {
		count = math.MaxInt64
	}
	b.remaining.Store(int64(count))
	return b
}

// TryClaim atomically claims one unit of work. It returns false once
// the counter has reached zero.
func (b *Budget) TryClaim() bool {
	for {
		current := b.remaining.Load()
		if current <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

// Remaining returns the current counter value.
func (b *Budget) Remaining() uint64 {
	current := b.remaining.Load()
	if current < 0 {
		return 0
	}
	return uint64(current)
}

// Abort is the shared failure flag for one endpoint. It only ever goes
// from unset to set; workers check it between requests, never
// mid-flight.
type Abort struct {
	flag atomic.Bool
}

// Set marks the run as aborted.
func (a *Abort) Set() {
	a.flag.Store(true)
}

// Load reports whether the flag has been set.
func (a *Abort) Load() bool {
	return a.flag.Load()
}
