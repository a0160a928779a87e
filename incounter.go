package corral

import "go.uber.org/atomic"

// Incounter counts the not-yet-satisfied incoming edges of one task (§4.2).
// A task becomes schedulable the instant its incounter activates; at most
// one Decrement call ever observes that transition.
type Incounter interface {
	// IsActivated reports whether the counter has reached its activating
	// condition. Stable once true.
	IsActivated() bool

	// Increment records one new incoming edge from source. source is used
	// by sharding implementations (distributed, dyntree) to pick a leaf;
	// it may be nil. Incrementing an already-activated counter is a
	// programming error (§4.2 "Failure semantics").
	Increment(source *Task)

	// Decrement removes one incoming edge and reports whether this call
	// caused activation.
	Decrement(source *Task) DecrementResult

	// Check schedules t if the counter is activated.
	Check(t *Task)

	// Delta is increment/decrement (delta == +1/-1) combined with
	// scheduling t on activation.
	Delta(source *Task, t *Task, delta int) DecrementResult
}

// fetchAddIncounter is the §4.2.1 simple variant: no tree, no sharding,
// just one atomic signed counter. It backs the FETCH_ADD sentinel tag but
// is also exposed as a structured Incounter, which is what
// newStructuredIncounter (control.go) hands out for the simple edge
// family, interchangeably with the tree variants.
type fetchAddIncounter struct {
	count     atomic.Int64
	activated atomic.Bool
}

// newFetchAddIncounter starts the counter at n pending increments already
// accounted for (0 is the common case: increments arrive later via
// Increment).
func newFetchAddIncounter(n int64) *fetchAddIncounter {
	c := &fetchAddIncounter{}
	c.count.Store(n)
	return c
}

func (c *fetchAddIncounter) IsActivated() bool {
	return c.activated.Load()
}

func (c *fetchAddIncounter) Increment(_ *Task) {
	if c.activated.Load() {
		panic(errIncrementAfterActivation)
	}
	c.count.Add(1)
}

func (c *fetchAddIncounter) Decrement(_ *Task) DecrementResult {
	old := c.count.Add(-1) + 1
	if old == 1 {
		if !c.activated.CompareAndSwap(false, true) {
			panic(errDoubleActivation)
		}
		return Activated
	}
	if old <= 0 {
		panic(errDecrementBelowZero)
	}
	return NotActivated
}

func (c *fetchAddIncounter) Check(t *Task) {
	if c.IsActivated() {
		t.schedule()
	}
}

func (c *fetchAddIncounter) Delta(source *Task, t *Task, delta int) DecrementResult {
	switch delta {
	case 1:
		c.Increment(source)
		return NotActivated
	case -1:
		r := c.Decrement(source)
		if r == Activated {
			t.schedule()
		}
		return r
	default:
		panic("corral: Delta expects +1 or -1")
	}
}
