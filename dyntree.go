package corral

import "go.uber.org/atomic"

// dyntreeInNode is one node of the dyntree incounter's pending-arrivals
// tree (§3, §4.2.3). Every child slot is an atomic pointer that is either
// nil (free), a real *dyntreeInNode, or dyntreeMinus — a unique sentinel
// address (never a live node) marking "this slot has been plucked
// permanently". Using a distinguishable non-nil pointer for the tag is
// safe under Go's GC, unlike stealing bits from a live pointer.
type dyntreeInNode struct {
	children []atomic.Pointer[dyntreeInNode]

	parent      *dyntreeInNode
	parentIndex int // index into parent.children this node occupies, or -1 for the tree root
}

// dyntreeMinus is the permanent "plucked" sentinel. Its address is the
// tag; its fields are never read.
var dyntreeMinus = &dyntreeInNode{}

func newDyntreeInNode(branching int, parent *dyntreeInNode, parentIndex int) *dyntreeInNode {
	return &dyntreeInNode{
		children:    make([]atomic.Pointer[dyntreeInNode], branching),
		parent:      parent,
		parentIndex: parentIndex,
	}
}

type detachOutcome uint8

const (
	detachSuccess detachOutcome = iota
	detachRace                  // another decrement already plucked n; restart from the tree root
	detachDescend                // n has a real child; descend into it instead
)

// tryDetach attempts to CAS every one of n's child slots from nil to
// dyntreeMinus, in order (§4.2.3 "Decrement algorithm"). On hitting a
// slot that already holds a real child, it rolls back every slot it
// already claimed and reports detachDescend with that child so the caller
// can continue the search there. On hitting a slot another detach just
// claimed, it rolls back and reports detachRace.
func (n *dyntreeInNode) tryDetach() (detachOutcome, *dyntreeInNode) {
	claimed := make([]int, 0, len(n.children))
	for i := range n.children {
		if n.children[i].CompareAndSwap(nil, dyntreeMinus) {
			claimed = append(claimed, i)
			continue
		}
		cur := n.children[i].Load()
		for _, j := range claimed {
			n.children[j].Store(nil)
		}
		if cur == dyntreeMinus {
			return detachRace, nil
		}
		return detachDescend, cur
	}
	return detachSuccess, nil
}

// detachedList is a lock-free stack of fully-detached dyntree-incounter
// nodes, the §4.2.3 "out" tree's functional replacement: every node
// landing here was CAS-validated by tryDetach to have all of its slots
// tagged minus already, i.e. it is already a childless leaf, so the
// §4.6 "walk the out tree" degenerates for this structure to draining a
// flat list rather than recursing — there is nothing beneath any entry
// left to visit. This is grounded directly on the teacher's Stack
// (stack.go): same push/pop CAS loop, generalised from unsafe.Pointer
// payloads to *dyntreeInNode.
type detachedList struct {
	head atomic.Pointer[detachedNode]
}

type detachedNode struct {
	n    *dyntreeInNode
	next *detachedNode
}

func (l *detachedList) push(n *dyntreeInNode) {
	item := &detachedNode{n: n}
	for {
		top := l.head.Load()
		item.next = top
		if l.head.CompareAndSwap(top, item) {
			return
		}
	}
}

// drain removes and returns every node currently on the list, leaving it
// empty. Used by the reclamation walk (§4.6).
func (l *detachedList) drain() []*dyntreeInNode {
	top := l.head.Swap(nil)
	var out []*dyntreeInNode
	for n := top; n != nil; n = n.next {
		out = append(out, n.n)
	}
	return out
}
