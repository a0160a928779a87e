package corral

import "go.uber.org/atomic"

// snzi implements the scalable non-zero indicator §2/§4.2.2 relies on: a
// fixed-shape tree of counters with arrive/depart at the leaves and a
// cheap is_nonzero test at the root. The spec treats the concrete SNZI
// tree below its leaf-operation interface as an external dependency
// ("the concrete SNZI tree implementation below its leaf-operation
// interface" — out of scope, §1); this is the minimal concrete backing
// that satisfies that interface: each node only propagates to its parent
// on a 0<->nonzero transition of its own subtree, rather than forwarding
// every arrive/depart to the root, which is the whole point of using a
// tree instead of one shared atomic counter.
type snziNode struct {
	count  atomic.Int64
	parent *snziNode
}

func (n *snziNode) arrive() {
	if n.count.Add(1) == 1 && n.parent != nil {
		n.parent.arrive()
	}
}

// depart reports whether this call transitioned the node's own subtree
// from nonzero to zero.
func (n *snziNode) depart() bool {
	v := n.count.Add(-1)
	if v < 0 {
		panic(errDecrementBelowZero)
	}
	if v == 0 {
		if n.parent != nil {
			n.parent.depart()
		}
		return true
	}
	return false
}

func (n *snziNode) isNonzero() bool {
	return n.count.Load() > 0
}

// snziLeaf is the only handle leaf callers (distributed incounter,
// DIRECT_DISTRIBUTED_UNARY outsets) ever hold. It knows how to report its
// own tree's root transitioning to zero so the root annotation task can
// be scheduled without the leaf's caller needing to know anything about
// tree shape.
type snziLeaf struct {
	node *snziNode
	tree *snziTree
}

func (l *snziLeaf) arrive() { l.node.arrive() }

// depart is the DIRECT_DISTRIBUTED_UNARY sentinel's path (sentinel.go's
// finishOut): nothing else on that path ever looks at the result, so it
// must self-schedule the owner the moment the root reaches zero.
func (l *snziLeaf) depart() {
	l.node.depart()
	if !l.tree.root.isNonzero() {
		l.tree.scheduleOwnerOnce()
	}
}

// departForIncounter is distributedIncounter.Decrement's path: it reports
// whether this call was the one that actually flipped the tree's
// activated flag, so the caller can return Activated to exactly one
// decrement and let decrementIn schedule, the same contract every other
// Incounter variant honours. It must not itself call owner.schedule —
// decrementIn already will.
func (l *snziLeaf) departForIncounter() bool {
	l.node.depart()
	if !l.tree.root.isNonzero() {
		return l.tree.activateOnce()
	}
	return false
}

// snziTree is a complete branching-factor-ary tree of fixed depth,
// configured at run start via Config.BranchingFactor / Config.NbLevels
// (§4.2.2). The root annotation slot holds the one task scheduled when
// the tree transitions to zero (§2/§3): the distributed
// incounter's owning task.
type snziTree struct {
	root   *snziNode
	leaves []*snziNode

	owner     *Task
	activated atomic.Bool
}

func newSNZITree(branching, levels int, owner *Task) *snziTree {
	if branching < 2 {
		branching = 2
	}
	if levels < 1 {
		levels = 1
	}
	t := &snziTree{owner: owner}
	t.root = &snziNode{}
	level := []*snziNode{t.root}
	for d := 1; d < levels; d++ {
		var next []*snziNode
		for _, n := range level {
			for i := 0; i < branching; i++ {
				child := &snziNode{parent: n}
				next = append(next, child)
			}
		}
		level = next
	}
	t.leaves = level
	return t
}

// leaf selects a leaf deterministically from source when source is
// non-nil, so that every arrive/depart pair sharing that source's
// identity always lands on the same counter (§4.2.2 "route to a leaf
// selected by a deterministic function of source"). A nil source has no
// identity to key on — it is the self-referential join-counter hold
// Finish takes around its own setup (control.go's incrementIn(nil)
// /decrementIn(nil)), where the only thing that matters is that the two
// halves of the pair agree on a leaf. Drawing a fresh random index per
// call would let them disagree and drive some other leaf's count below
// zero, so nil always maps to the same fixed leaf instead of through
// randomChildIndex.
func (t *snziTree) leaf(source *Task) *snziLeaf {
	idx := 0
	if source != nil && len(t.leaves) > 0 {
		idx = int(source.id % uint64(len(t.leaves)))
	}
	return &snziLeaf{node: t.leaves[idx], tree: t}
}

func (t *snziTree) isNonzero() bool {
	return t.root.isNonzero()
}

// activateOnce flips the tree's activated flag and reports whether this
// call was the one that did it: several departing leaves can race to
// observe the root at zero, but the CAS itself is the only correct
// single source of truth for "did I activate", never a separate
// before/after load of the flag around the caller's own depart.
func (t *snziTree) activateOnce() bool {
	return t.activated.CompareAndSwap(false, true)
}

// scheduleOwnerOnce marks the tree activated and schedules the owning
// task at most once.
func (t *snziTree) scheduleOwnerOnce() {
	if t.activateOnce() && t.owner != nil {
		t.owner.schedule()
	}
}
