package corral

import "go.uber.org/atomic"

// dyntreeOutSlot is the payload behind one child pointer of a
// dyntreeOutNode. A slot's state (§3 "Dynamic-tree outset", §4.7) is
// identified by which fields are set, plus pointer identity against the
// three finished* sentinels below for the frozen states:
//
//	nil                    -> empty
//	target != nil          -> leaf
//	interior != nil        -> interior
//	== finishedEmptySlot   -> finished_empty
//	== finishedLeafSlot    -> finished_leaf
//	== finishedInteriorSlot -> finished_interior
//
// Once a slot reaches one of the three finished identities it never
// changes again (§8 invariant 5: "No slot in a dyntree outset ever
// transitions out of a finished_* state").
type dyntreeOutSlot struct {
	target   *Task
	interior *dyntreeOutNode
}

var (
	finishedEmptySlot    = &dyntreeOutSlot{}
	finishedLeafSlot     = &dyntreeOutSlot{}
	finishedInteriorSlot = &dyntreeOutSlot{}
)

type dyntreeOutKind uint8

const (
	slotEmpty dyntreeOutKind = iota
	slotLeaf
	slotInterior
	slotFinishedEmpty
	slotFinishedLeaf
	slotFinishedInterior
)

func kindOf(s *dyntreeOutSlot) dyntreeOutKind {
	switch {
	case s == nil:
		return slotEmpty
	case s == finishedEmptySlot:
		return slotFinishedEmpty
	case s == finishedLeafSlot:
		return slotFinishedLeaf
	case s == finishedInteriorSlot:
		return slotFinishedInterior
	case s.target != nil:
		return slotLeaf
	default:
		return slotInterior
	}
}

func finishedVariantOf(kind dyntreeOutKind) *dyntreeOutSlot {
	switch kind {
	case slotEmpty:
		return finishedEmptySlot
	case slotLeaf:
		return finishedLeafSlot
	case slotInterior:
		return finishedInteriorSlot
	default:
		panic("corral: finishedVariantOf on an already-finished kind")
	}
}

type dyntreeOutNode struct {
	children []atomic.Pointer[dyntreeOutSlot]
}

func newDyntreeOutNode(branching int) *dyntreeOutNode {
	return &dyntreeOutNode{children: make([]atomic.Pointer[dyntreeOutSlot], branching)}
}

// dyntreeOutset is the §4.3.2 variant. Insertion walks randomly from the
// root; on hitting empty it CASes the target in; on hitting a leaf it
// replaces it with a fresh interior node holding the old leaf and the new
// target; on hitting any finished_* it fails.
type dyntreeOutset struct {
	root      *dyntreeOutNode
	branching int
	finished  atomic.Bool
	future    bool
	sched     Scheduler
	batch     int

	// owner is the single task every Insert on this outset came from.
	// addEdge keys a target's distributed-incounter increment on the
	// source task's identity (snzi.go's leaf), so the matching decrement
	// visitNode issues at drain time must carry that same identity rather
	// than nil, or the increment and decrement for a real edge can land
	// on different SNZI leaves.
	owner *Task
}

func newDyntreeOutset(sched Scheduler, branching, batch int, owner *Task) *dyntreeOutset {
	if branching < 2 {
		branching = 2
	}
	return &dyntreeOutset{root: newDyntreeOutNode(branching), branching: branching, sched: sched, batch: batch, owner: owner}
}

func (o *dyntreeOutset) Insert(target *Task) InsertResult {
	if target == nil {
		panic("corral: Insert requires a non-nil target")
	}
retry:
	for {
		node := o.root
		for {
			idx := randomChildIndex(o.branching)
			cur := node.children[idx].Load()
			switch kindOf(cur) {
			case slotEmpty:
				leaf := &dyntreeOutSlot{target: target}
				if node.children[idx].CompareAndSwap(cur, leaf) {
					return InsertSuccess
				}
				continue retry
			case slotLeaf:
				fresh := newDyntreeOutNode(o.branching)
				fresh.children[0].Store(&dyntreeOutSlot{target: cur.target})
				idx2 := 1
				if o.branching > 2 {
					idx2 = 1 + randomChildIndex(o.branching-1)
				}
				fresh.children[idx2].Store(&dyntreeOutSlot{target: target})
				interior := &dyntreeOutSlot{interior: fresh}
				if node.children[idx].CompareAndSwap(cur, interior) {
					return InsertSuccess
				}
				// lost the race: fresh is simply dropped for GC, retry
				continue retry
			case slotInterior:
				node = cur.interior
			default: // any finished_* variant
				return InsertFail
			}
		}
	}
}

// Finish implements §4.3.2/§4.6: CAS-freeze every slot to its
// finished_* variant in bounded batches, decrementing each leaf target's
// incounter exactly once and enqueuing each interior's node for further
// processing. The walk itself runs as a splittable reclamation task so a
// large tree drains in parallel.
func (o *dyntreeOutset) Finish() {
	if !o.finished.CompareAndSwap(false, true) {
		panic(errDoubleFinish)
	}
	launchReclaim(o.sched, o.batch, []any{o.root}, o.visitNode, nil)
}

func (o *dyntreeOutset) visitNode(item any) []any {
	node := item.(*dyntreeOutNode)
	var discovered []any
	for i := range node.children {
		for {
			cur := node.children[i].Load()
			kind := kindOf(cur)
			if kind == slotFinishedEmpty || kind == slotFinishedLeaf || kind == slotFinishedInterior {
				break
			}
			marker := finishedVariantOf(kind)
			if !node.children[i].CompareAndSwap(cur, marker) {
				continue
			}
			switch kind {
			case slotLeaf:
				cur.target.deltaIn(o.owner, -1)
			case slotInterior:
				discovered = append(discovered, cur.interior)
			}
			break
		}
	}
	return discovered
}

func (o *dyntreeOutset) Destroy() {
	// Every node is reachable only from the frozen tree at this point;
	// the GC reclaims it once the last reference (held by the owning
	// task) is dropped. Nothing to free by hand.
}

func (o *dyntreeOutset) EnableFuture() { o.future = true }
