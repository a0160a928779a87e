package corral

import "go.uber.org/atomic"

// Label identifies a block within a task body (§3). EntryLabel is always
// the block a freshly-created task starts at; UninitializedLabel marks
// "must not resume" and is the continuation of a task that has already
// run to completion.
type Label int

const (
	EntryLabel         Label = 0
	UninitializedLabel Label = -1
)

// Body is the state-transition function a Task executes on every Run. It
// dispatches on t.CurrentBlock(), typically with a switch, and drives the
// task forward by calling exactly one of JumpTo or one of the
// control-flow constructs (Async, Finish, Future, Force, ParallelFor,
// Call, Detach) before returning. A Body that returns having called none
// of those ends the task (§4.7: "terminal is implicit").
type Body func(t *Task)

var taskIDs = atomic.NewUint64(0)

// Task is a resumable computation: a small state machine with a stored
// continuation label, an incounter counting unsatisfied incoming edges,
// and an outset of downstream targets to notify on completion (§3).
type Task struct {
	id uint64

	currentBlockID      Label
	continuationBlockID Label

	body Body

	in  inField
	out outField

	// Port-passing family only (§3, §4.5). Populated by the parent just
	// before spawning a child and then owned exclusively by that child;
	// never shared across tasks.
	inports  map[Incounter]*IncounterNode
	outports map[Outset]*OutsetNode

	// Splittable range support (§4.4 "Splittable range").
	splittable Splittable

	jumped      bool
	transferred bool

	sched Scheduler
}

// NewTask creates a task that has never been added to the scheduler: its
// continuation is the entry label, per the §3 invariant.
func NewTask(sched Scheduler, body Body) *Task {
	return &Task{
		id:                  taskIDs.Add(1),
		currentBlockID:      UninitializedLabel,
		continuationBlockID: EntryLabel,
		body:                body,
		in:                  inField{kind: inReady},
		out:                 outField{kind: outNoop},
		sched:               sched,
	}
}

// ID is a stable identity usable for debugging and as the map key basis
// for port-propagation identity (§9: "Identity is best modelled by
// address / stable handle").
func (t *Task) ID() uint64 { return t.id }

// CurrentBlock returns the label the body is currently executing. Bodies
// dispatch on this value.
func (t *Task) CurrentBlock() Label { return t.currentBlockID }

// ContinuationBlock returns the label set for the next resumption. It is
// UninitializedLabel once the task has been driven without calling one of
// JumpTo/Async/Finish/Future/Force/ParallelFor/Call/Detach.
func (t *Task) ContinuationBlock() Label { return t.continuationBlockID }

// IsActivated reports whether t's incounter has reached its activating
// condition and t is therefore schedulable.
func (t *Task) IsActivated() bool { return t.isActivatedIn() }

// Run executes one resumption of t: it swaps continuation into current,
// asserts the task was actually resumable, and invokes body. A body that
// calls JumpTo causes Run to loop in place instead of re-enqueuing,
// modelling the "reuse_calling_thread" scheduler hint of §4.4; a body
// that suspends t (Finish/Future/Force/ParallelFor/Call) returns control
// to the caller without pushing t anywhere — t is re-added to the
// scheduler only when some other task's decrement activates it.
func (t *Task) Run() {
	for {
		if t.continuationBlockID == UninitializedLabel {
			panic(errResumeUninitialized)
		}
		t.currentBlockID = t.continuationBlockID
		t.continuationBlockID = UninitializedLabel
		t.jumped = false
		t.transferred = false

		t.body(t)

		if t.jumped {
			continue
		}
		break
	}

	if !t.transferred {
		t.end()
	}
}

// end runs when body returned without transferring anywhere: t is
// terminal, so its outset fires, notifying every registered target
// exactly once (§4.7).
func (t *Task) end() {
	t.finishOut()
}

// schedule pushes t onto the scheduler. Called by an incounter
// implementation's Check/Delta the instant activation is observed, never
// directly by task bodies.
func (t *Task) schedule() {
	if t.sched != nil {
		t.sched.AddTask(t)
	}
}

// JumpTo sets t's continuation to label and resumes t on the calling
// thread rather than re-enqueuing it (§4.4).
func (t *Task) JumpTo(label Label) {
	t.continuationBlockID = label
	t.jumped = true
}

// Splittable exposes t's splittable-range interface, if any (§4.4
// "Splittable range"; §4.6 reclamation walks are also Splittable).
func (t *Task) Splittable() Splittable { return t.splittable }

// SetSplittable installs the splittable-range behaviour for a
// parallel_for-created range task or a reclamation walker.
func (t *Task) SetSplittable(s Splittable) { t.splittable = s }

// Splittable lets the scheduler steal part of a task's remaining work
// (§3, §4.6).
type Splittable interface {
	// Size returns the remaining work.
	Size() int
	// Split moves part of the remaining work into a new task and returns
	// it, or returns nil when there is nothing to split off. rangeTask
	// hands off the upper half of its range and keeps the lower half;
	// reclaimWalker hands off one queued node from the front of its deque.
	Split() *Task
}
