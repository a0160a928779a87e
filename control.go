package corral

import "sync"

// Runtime binds a Scheduler to a Config so the control-flow constructs
// know which structured incounter/outset family to allocate whenever a
// construct needs a fresh one (§4.4, §6 "Configuration surface"). The
// sentinel-only constructs (Async, Force, Detach) never allocate a
// structured edge-set object and so are plain *Task methods instead —
// only Finish/Future/ParallelFor/Call need a Runtime.
type Runtime struct {
	sched Scheduler
	cfg   Config
}

// NewRuntime wires sched and cfg together for the driver to hand to the
// entry task's body.
func NewRuntime(sched Scheduler, cfg Config) *Runtime {
	return &Runtime{sched: sched, cfg: cfg}
}

func (rt *Runtime) Scheduler() Scheduler { return rt.sched }
func (rt *Runtime) Config() Config       { return rt.cfg }

// newStructuredIncounter allocates the variant selected by rt.cfg for a
// task that is about to own a fresh structured in field (§4.2).
func (rt *Runtime) newStructuredIncounter(owner *Task) Incounter {
	if rt.cfg.Algo == AlgoPortPassing {
		return NewPortIncounter(owner)
	}
	switch rt.cfg.EdgeAlgo {
	case EdgeSimple:
		return newFetchAddIncounter(0)
	case EdgeDistributed:
		return newDistributedIncounter(owner, rt.cfg.BranchingFactor, rt.cfg.NbLevels)
	case EdgeDyntree:
		return newDyntreeIncounter(rt.cfg.BranchingFactor)
	default:
		panic("corral: unknown edge_algo")
	}
}

// newStructuredOutset allocates the variant selected by rt.cfg for
// owner, a task that is about to own a fresh structured out field
// (§4.3). owner is threaded into the dyntree variant so that draining it
// at Finish time decrements each target with owner's real identity — the
// same identity addEdge used to increment it — rather than an anonymous
// nil that would only coincidentally land on the right SNZI leaf.
//
// §3/§4.3 name only two tree-shaped outset designs (simple's Treiber
// stack and the dyntree outset); "distributed" is described at the
// overview level as "a SNZI-tree counter paired with a tree outset" but
// §4.3 gives no separate outset algorithm for it. This pairs the
// distributed edge family with the dyntree outset rather than inventing
// a fourth design — both are tree-shaped and drain through the same
// §4.6 reclamation walk, and it is the only outset shape in the spec
// that the overview's "tree outset" phrase can refer to. Recorded as a
// resolved open point in the design notes.
func (rt *Runtime) newStructuredOutset(owner *Task) Outset {
	if rt.cfg.Algo == AlgoPortPassing {
		return NewPortOutset(rt.sched, rt.cfg.CommunicationDelay)
	}
	switch rt.cfg.EdgeAlgo {
	case EdgeSimple:
		return newSimpleOutset()
	case EdgeDistributed, EdgeDyntree:
		return newDyntreeOutset(rt.sched, rt.cfg.BranchingFactor, rt.cfg.CommunicationDelay, owner)
	default:
		panic("corral: unknown edge_algo")
	}
}

// addEdge implements the §4.4 edge creation protocol: increment the
// target's incounter before attempting the insert, so that a source
// racing to finish between the failed insert and the compensating
// decrement can never cause a missed activation.
func addEdge(source, target *Task) {
	target.incrementIn(source)
	if source.insertOut(target) == InsertFail {
		target.decrementIn(source)
	}
}

// addEdgeOutset is addEdge specialised for the case where the edge's
// source is a bare Outset handle rather than a live source task — the
// shape force() needs when joining a future whose producer may already
// be long gone (§4.4 "force"). Unlike addEdge, there is no pre-increment:
// target always arrives with a fresh unaryIn() counter, which already
// accounts for this single pending edge by construction, so the only
// thing that can go wrong is out having finished already — handled by
// compensating with an immediate decrement, exactly as if out's own
// Finish had reached target first.
func addEdgeOutset(out Outset, target *Task) {
	if out.Insert(target) == InsertFail {
		target.decrementIn(nil)
	}
}

// Async implements §4.4 "async(producer, consumer, label)": producer
// gets a ready incounter and a unary outset aimed at consumer, the edge
// is wired, self jumps to label inline (async never blocks the caller),
// and producer is pushed to run concurrently.
func (t *Task) Async(producer, consumer *Task, label Label) {
	producer.in = readyIn()
	producer.out = unaryOut(nil)
	addEdge(producer, consumer)
	t.JumpTo(label)
	producer.schedule()
}

// Finish implements §4.4 "finish(producer, label)": self suspends at
// label behind a fresh structured incounter, producer is wired into
// that incounter as its first tracked edge, and producer starts
// running. A join-counter token is held across the whole setup so a
// producer (or a sibling async wired into the same incounter by code
// running inside producer) that completes synchronously before setup
// finishes cannot prematurely activate self.
func (rt *Runtime) Finish(self *Task, producer *Task, label Label) {
	producer.in = readyIn()
	producer.out = unaryOut(nil)

	self.in = structuredIn(rt.newStructuredIncounter(self))
	self.incrementIn(nil)

	self.continuationBlockID = label
	self.transferred = true

	addEdge(producer, self)
	producer.schedule()

	self.decrementIn(nil)
}

// Call implements §4.4 "call(target, label) ≡ finish(target, label)".
func (rt *Runtime) Call(self *Task, target *Task, label Label) {
	rt.Finish(self, target, label)
}

// Future allocates a fresh structured outset for producer, per the
// §4.4 "future(producer, out, label)" variant "without out", and runs
// it concurrently with self. The returned Outset is the handle later
// passed to Force.
func (rt *Runtime) Future(self *Task, producer *Task, label Label) Outset {
	out := rt.newStructuredOutset(producer)
	self.FutureWithOutset(producer, out, label)
	return out
}

// FutureWithOutset is §4.4 "future(producer, out, label)" with an
// externally supplied outset: producer gets a ready incounter and out
// as its outstrategy, out is marked externally owned (EnableFuture),
// self continues inline at label, and producer is pushed to run.
func (t *Task) FutureWithOutset(producer *Task, out Outset, label Label) {
	producer.in = readyIn()
	producer.out = structuredOut(out)
	out.EnableFuture()
	t.JumpTo(label)
	producer.schedule()
}

// Force implements §4.4 "force(future_out, label)": self suspends at
// label behind a fresh unary incounter and registers an edge from
// futureOut directly (not from a source task) into self. If futureOut
// has already finished, the edge creation protocol's compensating
// decrement fires immediately, activating self's unary incounter and
// pushing self back onto the scheduler.
func (t *Task) Force(futureOut Outset, label Label) {
	t.in = unaryIn()
	t.continuationBlockID = label
	t.transferred = true
	addEdgeOutset(futureOut, t)
}

// Detach implements §4.4 "detach(label)": self transfers to label with
// a ready incounter and is never rescheduled by any edge — whatever
// runs at label runs unconditionally, the next time self happens to be
// resumed by jump_to or re-added directly.
func (t *Task) Detach(label Label) {
	t.in = readyIn()
	t.JumpTo(label)
}

// ParallelFor implements §4.4 "parallel_for(lo, hi, body, label)": the
// iteration space [lo, hi) becomes a splittable range task wired into
// self's join exactly like finish's producer, so the scheduler can
// steal slices of the range into siblings that join the same incounter
// (§4.4 "Splittable range").
func (rt *Runtime) ParallelFor(self *Task, lo, hi int, body func(i int), label Label) {
	r := &rangeTask{lo: lo, hi: hi, delay: rt.cfg.CommunicationDelay, body: body, sched: rt.sched, join: self}
	producer := r.asTask()
	rt.Finish(self, producer, label)
}

// rangeTask is the §4.4 "Splittable range": a contiguous [lo, hi) slice
// of loop indices, processed communication_delay at a time per
// activation and reusing the calling thread (JumpTo) for the next batch
// as long as work remains, exactly the discipline §4.6's reclaimWalker
// uses for tree nodes instead of indices. An idle scheduler worker can
// call Split concurrently with the owner goroutine still running a
// batch, so lo/hi are guarded by mu rather than read and written bare.
type rangeTask struct {
	lo, hi int
	delay  int
	body   func(i int)
	sched  Scheduler
	join   *Task

	mu sync.Mutex
}

func (r *rangeTask) asTask() *Task {
	t := NewTask(r.sched, func(task *Task) { r.runBatch(task) })
	t.SetSplittable(r)
	t.in = readyIn()
	t.out = unaryOut(nil)
	return t
}

func (r *rangeTask) runBatch(t *Task) {
	n := r.delay
	for n > 0 {
		r.mu.Lock()
		if r.lo >= r.hi {
			r.mu.Unlock()
			break
		}
		i := r.lo
		r.lo++
		r.mu.Unlock()

		r.body(i)
		n--
	}

	r.mu.Lock()
	remaining := r.lo < r.hi
	r.mu.Unlock()
	if remaining {
		t.JumpTo(EntryLabel)
	}
}

// Size reports the remaining, not-yet-stolen iteration count.
func (r *rangeTask) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hi > r.lo {
		return r.hi - r.lo
	}
	return 0
}

// Split carves the upper half of the remaining range off into a new
// task wired into the same join as r, per §4.4 "split() returns a new
// task covering the upper half; edge inserted into the join".
func (r *rangeTask) Split() *Task {
	r.mu.Lock()
	if r.hi-r.lo < 2 {
		r.mu.Unlock()
		return nil
	}
	mid := r.lo + (r.hi-r.lo)/2
	upper := &rangeTask{lo: mid, hi: r.hi, delay: r.delay, body: r.body, sched: r.sched, join: r.join}
	r.hi = mid
	r.mu.Unlock()

	child := upper.asTask()
	addEdge(child, r.join)
	return child
}
