package corral

import (
	"sync/atomic"
	"unsafe"
)

// Outset is the concurrent set of downstream targets notified when a
// source task finishes (§4.3). Insertion and finish race against each
// other; finish must freeze the set exactly once and notify every
// successfully-inserted target exactly once.
type Outset interface {
	// Insert registers target. Fails exactly when the outset has already
	// finished (§4.3 "Insert/finish ordering guarantee").
	Insert(target *Task) InsertResult

	// Finish freezes the set against further insertions and decrements
	// every registered target's incounter exactly once, in unspecified
	// order.
	Finish()

	// Destroy deallocates the outset. Only valid after Finish has drained.
	Destroy()

	// EnableFuture marks the outset externally owned (§4.3). Outsets are
	// garbage-collected and no implementation deallocates anything at
	// Finish, so the mark does not change Finish's behaviour.
	EnableFuture()
}

// simpleOutset is the §4.3.1 variant: a Treiber stack of (target, next)
// cells, exactly the lock-free push/pop discipline of the teacher's
// Stack (stack.go), generalised from carrying an arbitrary unsafe.Pointer
// payload to carrying a *Task and adding the finished-tag freeze that a
// plain idle-worker stack never needed.
type simpleOutset struct {
	head unsafe.Pointer // *outsetCell, or == finishedOutsetHead once frozen

	future bool
}

type outsetCell struct {
	target *Task
	next   *outsetCell
}

// finishedOutsetHead is the one sentinel value Finish ever swaps head to.
// Its fields are never read; only its address matters. Folding the
// freeze into head itself (§3 "atomically swaps the head with a pointer
// carrying a finished tag") means Insert and Finish race over a single
// word instead of a head pointer plus a separate finished flag, closing
// the window where Finish could drain an empty list between an Insert's
// freeze-check and its CAS. Go's garbage collector doesn't allow stealing
// tag bits from a live pointer, so, as elsewhere in this package
// (dyntree.go's dyntreeMinus), the tag is a distinct never-dereferenced
// address instead.
var finishedOutsetHead = &outsetCell{}

func newSimpleOutset() *simpleOutset {
	return &simpleOutset{}
}

// Insert implements the loop from §4.3.1: allocate a cell, then loop
// { read head; if finished, fail; else CAS head -> cell }. The freeze
// check and the CAS target are the same word, so there is no gap between
// them for a concurrent Finish to drain through.
func (o *simpleOutset) Insert(target *Task) InsertResult {
	cell := &outsetCell{target: target}
	for {
		head := atomic.LoadPointer(&o.head)
		if (*outsetCell)(head) == finishedOutsetHead {
			return InsertFail
		}
		cell.next = (*outsetCell)(head)
		if atomic.CompareAndSwapPointer(&o.head, head, unsafe.Pointer(cell)) {
			return InsertSuccess
		}
	}
}

// Finish implements §4.3.1: swap head to the finished sentinel in one
// atomic step, then walk the list it captured and decrement every
// target's incounter. Any Insert whose CAS lands before this swap is
// part of the captured list and gets decremented; any Insert whose load
// lands after it sees finishedOutsetHead and fails. There is no third
// outcome.
func (o *simpleOutset) Finish() {
	head := atomic.SwapPointer(&o.head, unsafe.Pointer(finishedOutsetHead))
	if (*outsetCell)(head) == finishedOutsetHead {
		panic(errDoubleFinish)
	}
	for cell := (*outsetCell)(head); cell != nil; {
		next := cell.next
		cell.target.deltaIn(nil, -1)
		cell = next
	}
}

func (o *simpleOutset) Destroy() {
	// Cells are ordinary Go values collected by the GC once Finish has
	// dropped the last reference to the chain; nothing to free by hand.
}

func (o *simpleOutset) EnableFuture() {
	o.future = true
}
