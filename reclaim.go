package corral

import (
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/atomic"
)

// reclaimVisitor processes one queued node during a deferred-reclamation
// walk (§4.6) and returns any further nodes discovered while processing
// it (e.g. an outset's interior child uncovered while CAS-freezing a
// slot). A nil/empty return means the node was a leaf with nothing
// beneath it to visit.
type reclaimVisitor func(node any) []any

// reclaimGroup tracks how many independently-scheduled walkers a single
// launchReclaim call has fanned out into, so onDone fires exactly once
// for the whole transitively-discovered frontier rather than once per
// walker. remaining starts at one for the root walker; every Split
// hands a sibling its own unit of work and therefore adds one more; a
// walker's own local queue draining for good removes one. onDone runs
// on the decrement that takes remaining to zero — the last walker left,
// covering every node any of them ever discovered.
type reclaimGroup struct {
	remaining atomic.Int64
	onDone    func()
}

func newReclaimGroup(onDone func()) *reclaimGroup {
	g := &reclaimGroup{onDone: onDone}
	g.remaining.Store(1)
	return g
}

func (g *reclaimGroup) fork() {
	g.remaining.Inc()
}

func (g *reclaimGroup) finishOne() {
	if g.remaining.Dec() == 0 && g.onDone != nil {
		g.onDone()
	}
}

// reclaimWalker is the §4.6 splittable BFS task: it drains a pending
// frontier communication_delay nodes at a time, and is itself Splittable
// so the scheduler can steal work from it exactly like any other
// splittable-range task. A worker going idle can call Split concurrently
// with the owner goroutine still running a batch, so pending is guarded
// by mu rather than left as a bare gammazero/deque.
type reclaimWalker struct {
	sched Scheduler
	visit reclaimVisitor
	batch int
	group *reclaimGroup

	mu      sync.Mutex
	pending *deque.Deque[any]
}

func newReclaimWalker(sched Scheduler, batch int, visit reclaimVisitor, group *reclaimGroup) *reclaimWalker {
	if batch < 1 {
		batch = 1
	}
	return &reclaimWalker{sched: sched, visit: visit, batch: batch, group: group, pending: deque.New[any]()}
}

// seed queues the initial frontier and returns w for chaining.
func (w *reclaimWalker) seed(items ...any) *reclaimWalker {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range items {
		w.pending.PushBack(it)
	}
	return w
}

// Size reports the remaining frontier, satisfying Splittable.
func (w *reclaimWalker) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Len()
}

// Split removes one queued node from the front of the pending deque and
// hands it to a new walker task covering just that node (§4.6: "split()
// removes one queued node from the front of the pending deque and hands
// it to a new task"). The sibling joins the same group as w and carries
// its own unit of the group's completion count, so w's eventual drain
// and the sibling's eventual drain each fire onDone's countdown
// independently instead of either one firing onDone on its own.
func (w *reclaimWalker) Split() *Task {
	w.mu.Lock()
	if w.pending.Len() == 0 {
		w.mu.Unlock()
		return nil
	}
	item := w.pending.PopFront()
	w.mu.Unlock()

	w.group.fork()
	sibling := newReclaimWalker(w.sched, w.batch, w.visit, w.group).seed(item)
	return sibling.asTask()
}

// asTask wraps w in a Task ready to be pushed to the scheduler: a plain
// background task with a READY incounter (nothing gates starting a
// reclamation walk beyond the caller already having drained/finished
// whatever it is reclaiming) and a NOOP outset (nothing downstream
// observes a reclamation walk's own completion through the DAG; onDone
// exists purely so tests and destroy() callers can join it).
func (w *reclaimWalker) asTask() *Task {
	t := NewTask(w.sched, func(task *Task) { w.runBatch(task) })
	t.SetSplittable(w)
	return t
}

func (w *reclaimWalker) runBatch(t *Task) {
	processed := 0
	for processed < w.batch {
		w.mu.Lock()
		if w.pending.Len() == 0 {
			w.mu.Unlock()
			break
		}
		node := w.pending.PopFront()
		w.mu.Unlock()

		if children := w.visit(node); len(children) > 0 {
			w.mu.Lock()
			for _, c := range children {
				w.pending.PushBack(c)
			}
			w.mu.Unlock()
		}
		processed++
	}

	w.mu.Lock()
	remaining := w.pending.Len()
	w.mu.Unlock()

	if remaining > 0 {
		t.JumpTo(EntryLabel)
		return
	}
	w.group.finishOne()
}

// launchReclaim builds a walker over seed and pushes it straight to sched,
// the ordinary entry point destroy()/finish() callers use; onDone, if
// non-nil, runs once the whole frontier (including every node discovered
// transitively, across every sibling a scheduler split off) has drained.
func launchReclaim(sched Scheduler, batch int, seed []any, visit reclaimVisitor, onDone func()) {
	if len(seed) == 0 {
		if onDone != nil {
			onDone()
		}
		return
	}
	group := newReclaimGroup(onDone)
	w := newReclaimWalker(sched, batch, visit, group).seed(seed...)
	t := w.asTask()
	sched.AddTask(t)
}
