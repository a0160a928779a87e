package corral

// The four incounter behaviours a task's in field may select without
// dereferencing a structured object (§3 "Incounter sentinels"). The
// original design packs a tag into the low bits of the payload pointer
// itself; Go's garbage collector does not tolerate stolen pointer bits,
// so here the tag lives beside the payload as an ordinary struct field
// instead (see DESIGN.md for the re-architecture rationale).
type inKind uint8

const (
	inReady      inKind = iota // always activated; increment forbidden
	inUnary                    // exactly one pending edge; any decrement schedules
	inFetchAdd                 // signed atomic count; 1->0 on decrement schedules
	inStructured               // a real Incounter object (the "0" tag)
)

type inField struct {
	kind      inKind
	fetchAdd  *fetchAddIncounter
	counter   Incounter
	activated bool // for inUnary/inReady bookkeeping; inReady is always true
}

func readyIn() inField    { return inField{kind: inReady, activated: true} }
func unaryIn() inField    { return inField{kind: inUnary} }
func fetchAddIn(n int64) inField {
	return inField{kind: inFetchAdd, fetchAdd: newFetchAddIncounter(n)}
}
func structuredIn(c Incounter) inField { return inField{kind: inStructured, counter: c} }

func (t *Task) isActivatedIn() bool {
	switch t.in.kind {
	case inReady:
		return true
	case inUnary:
		return t.in.activated
	case inFetchAdd:
		return t.in.fetchAdd.IsActivated()
	case inStructured:
		return t.in.counter.IsActivated()
	default:
		panic("corral: unknown in-sentinel tag")
	}
}

func (t *Task) incrementIn(source *Task) {
	switch t.in.kind {
	case inReady:
		panic(errIncrementAfterActivation)
	case inUnary:
		panic("corral: UNARY incounter does not accept increment")
	case inFetchAdd:
		t.in.fetchAdd.Increment(source)
	case inStructured:
		t.in.counter.Increment(source)
	default:
		panic("corral: unknown in-sentinel tag")
	}
}

// decrementIn removes one incoming edge and, if this call activates t,
// pushes t onto the scheduler (the caller never has to remember to).
func (t *Task) decrementIn(source *Task) DecrementResult {
	var r DecrementResult
	switch t.in.kind {
	case inReady:
		// §3: "decrements schedule immediately" — READY is always already
		// activated, so every decrement reports the same outcome.
		r = Activated
	case inUnary:
		if t.in.activated {
			panic(errDoubleActivation)
		}
		t.in.activated = true
		r = Activated
	case inFetchAdd:
		r = t.in.fetchAdd.Decrement(source)
	case inStructured:
		r = t.in.counter.Decrement(source)
	default:
		panic("corral: unknown in-sentinel tag")
	}
	if r == Activated {
		t.schedule()
	}
	return r
}

func (t *Task) checkIn() {
	if t.isActivatedIn() {
		t.schedule()
	}
}

// deltaIn combines increment/decrement with scheduling on activation
// (§4.2 "delta"). delta must be +1 or -1.
func (t *Task) deltaIn(source *Task, delta int) DecrementResult {
	switch delta {
	case 1:
		t.incrementIn(source)
		return NotActivated
	case -1:
		return t.decrementIn(source)
	default:
		panic("corral: deltaIn expects +1 or -1")
	}
}

// The four outset behaviours a task's out field may select (§3 "Outset
// sentinels").
type outKind uint8

const (
	outNoop                   outKind = iota // dropped notifications
	outUnary                                 // pointer bits encode a single target task
	outDirectDistributedUnary                // encodes a SNZI leaf of a target's distributed incounter
	outStructured                            // a real Outset object (the "0" tag)
)

type outField struct {
	kind        outKind
	unaryTarget *Task
	distLeaf    *snziLeaf
	outset      Outset
}

func noopOut() outField                          { return outField{kind: outNoop} }
func unaryOut(target *Task) outField             { return outField{kind: outUnary, unaryTarget: target} }
func directDistributedUnaryOut(l *snziLeaf) outField {
	return outField{kind: outDirectDistributedUnary, distLeaf: l}
}
func structuredOut(o Outset) outField { return outField{kind: outStructured, outset: o} }

// insertOut registers target against t's outset, dispatching the trivial
// sentinel paths without allocating a structured Outset for the common
// single-target case (§4.4 "Sentinel dispatch").
func (t *Task) insertOut(target *Task) InsertResult {
	switch t.out.kind {
	case outNoop:
		return InsertFail
	case outUnary:
		if t.out.unaryTarget != nil {
			panic("corral: UNARY outset accepts only one target")
		}
		t.out.unaryTarget = target
		return InsertSuccess
	case outDirectDistributedUnary:
		panic("corral: DIRECT_DISTRIBUTED_UNARY outset does not accept Insert")
	case outStructured:
		return t.out.outset.Insert(target)
	default:
		panic("corral: unknown out-sentinel tag")
	}
}

// finishOut freezes t's outset and notifies every registered target
// exactly once (§4.3 "Finish").
func (t *Task) finishOut() {
	switch t.out.kind {
	case outNoop:
		return
	case outUnary:
		if t.out.unaryTarget != nil {
			t.out.unaryTarget.deltaIn(t, -1)
		}
	case outDirectDistributedUnary:
		t.out.distLeaf.depart()
	case outStructured:
		t.out.outset.Finish()
	default:
		panic("corral: unknown out-sentinel tag")
	}
}
