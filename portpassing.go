package corral

import "go.uber.org/atomic"

// IncounterNode is one node of a port-passing incounter's binary tree of
// pending arrivals (§3, §4.2.4). The tree's root is the incounter
// itself: every other node is reached only via a port some earlier Fork
// call handed out. owner/activated are meaningful only on the unique
// root (parent == nil); every other node leaves them at their zero
// value and defers to root() to find them.
type IncounterNode struct {
	parent            *IncounterNode
	nbRemovedChildren atomic.Int32

	owner     *Task
	activated atomic.Bool
}

func (n *IncounterNode) root() *IncounterNode {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Fork implements §3 "Increment on a port replaces that port in the
// caller with two fresh children of the port": n is conceptually
// consumed and two brand-new leaves are returned for the caller to
// redistribute, typically one kept by the forking task and one handed
// to the task it is about to spawn (§4.5).
func (n *IncounterNode) Fork() (left, right *IncounterNode) {
	if n.root().activated.Load() {
		panic(errIncrementAfterActivation)
	}
	return &IncounterNode{parent: n}, &IncounterNode{parent: n}
}

// Decrement implements §3/§4.2.4: climb from n toward the root, freeing
// nodes along the way. At each ancestor the first arriving sibling
// CASes nb_removed_children 0->1 and stops there; the second sibling to
// arrive finds it already 1 and keeps climbing. Reaching a node with no
// parent means the tree's unique root has just been removed, which
// activates the counter and schedules its owner.
func (n *IncounterNode) Decrement() DecrementResult {
	node := n
	for {
		parent := node.parent
		if parent == nil {
			if !node.activated.CompareAndSwap(false, true) {
				panic(errDoubleActivation)
			}
			if node.owner != nil {
				node.owner.schedule()
			}
			return Activated
		}
		if parent.nbRemovedChildren.CompareAndSwap(0, 1) {
			return NotActivated
		}
		node = parent
	}
}

// PortIncounter is the §4.2.4 port-passing incounter. It is a structured
// Incounter like fetchAddIncounter/distributedIncounter/dyntreeIncounter
// and is interchangeable with them through that interface, but its
// native operations are port-addressed rather than source-hashed:
// RootPort/Fork/DecrementAt are what the port-propagation layer (§4.5)
// and the port-passing control-flow variants actually use. The plain
// Increment/Decrement methods exist only so PortIncounter satisfies
// Incounter for callers that never bothered to hold onto a port — §4.2.4
// is explicit that "increments are not issued by general callers" in
// the family's own idiom. They keep their own pending count entirely
// separate from root's port tree — forking root on every generic
// Increment would grow a spine whose final tip never has a matching
// decrement call, since nothing but a further fork ever consumes it —
// and release root's single inherent reference with one real
// root.Decrement() call exactly when that count reaches zero, so the
// owner is still scheduled through the same path a native port climb
// would use.
type PortIncounter struct {
	root  *IncounterNode
	count atomic.Int64
}

// NewPortIncounter creates a fresh incounter whose tree is a single
// unforked root, owned by owner (the task scheduled when the tree is
// fully drained).
func NewPortIncounter(owner *Task) *PortIncounter {
	return &PortIncounter{root: &IncounterNode{owner: owner}}
}

func (c *PortIncounter) IsActivated() bool { return c.root.activated.Load() }

// RootPort returns the one port every freshly-created PortIncounter
// starts with, for a caller that wants to fork immediately rather than
// going through the generic Increment path. Mixing RootPort/Fork with
// the generic Increment/Decrement on the same instance is not supported
// — pick one discipline per incounter.
func (c *PortIncounter) RootPort() *IncounterNode { return c.root }

func (c *PortIncounter) Increment(_ *Task) {
	if c.IsActivated() {
		panic(errIncrementAfterActivation)
	}
	c.count.Add(1)
}

func (c *PortIncounter) Decrement(_ *Task) DecrementResult {
	old := c.count.Add(-1) + 1
	if old <= 0 {
		panic(errDecrementBelowZero)
	}
	if old == 1 {
		return c.root.Decrement()
	}
	return NotActivated
}

// DecrementAt decrements a specific port this incounter (or an earlier
// Fork of it) handed out, bypassing the pending count plain Decrement
// keeps. This is how the port-propagation layer and any
// port-passing-aware task body actually release an edge it holds a port
// for.
func (c *PortIncounter) DecrementAt(port *IncounterNode) DecrementResult {
	return port.Decrement()
}

func (c *PortIncounter) Check(t *Task) {
	if c.IsActivated() {
		t.schedule()
	}
}

func (c *PortIncounter) Delta(source *Task, t *Task, delta int) DecrementResult {
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

// OutsetNode is the §3/§4.3.3 port-passing outset-node: two atomic
// child pointers, plus target/port fields that are populated only when
// this particular node is being used as a leaf (registered against some
// ancestor's child slot by InsertUnder or handed out directly by
// Fork2). A node's own child slots and its leaf payload are mutually
// exclusive in practice but not enforced structurally, mirroring how
// lightly the spec's own data model ties the two together.
type OutsetNode struct {
	left, right atomic.Pointer[OutsetNode]

	target *Task
	port   *IncounterNode
}

// frozenOutsetChild is the unique sentinel address every child slot is
// CAS-tagged to during Finish (§4.3.3 "Freezing CAS-tags every child
// pointer"). Whatever real value a CAS displaces is read directly off
// the CAS call, so there is no need for separate finished_empty /
// finished_leaf / finished_interior identities the way the dyntree
// outset needs them (outset_dyntree.go) — there is only ever one
// top-level collection to classify per slot, not three.
var frozenOutsetChild = &OutsetNode{}

func (n *OutsetNode) isLeaf() bool { return n.target != nil }

func (n *OutsetNode) childSlot(idx int) *atomic.Pointer[OutsetNode] {
	if idx == 0 {
		return &n.left
	}
	return &n.right
}

// InsertUnder registers target as a descendant of n, walking randomly
// between n's two children the way the dyntree outset walks randomly
// between its branching_factor children (§4.3.2's collision-split idea,
// specialised to arity 2): an empty slot is claimed directly; a slot
// already holding a leaf is replaced by a fresh interior node holding
// the old leaf and the new one; a frozen slot fails the insert.
// viaPort, if non-nil, is what Finish later decrements through instead
// of calling target's own incounter directly — the shape a port-passing
// task uses so its own incounter port, not a root-hashed lookup, is what
// gets released.
func (n *OutsetNode) InsertUnder(target *Task, viaPort *IncounterNode) InsertResult {
	node := n
	for {
		slot := node.childSlot(randomChildIndex(2))
		cur := slot.Load()
		switch {
		case cur == frozenOutsetChild:
			return InsertFail
		case cur == nil:
			leaf := &OutsetNode{target: target, port: viaPort}
			if slot.CompareAndSwap(nil, leaf) {
				return InsertSuccess
			}
		case cur.isLeaf():
			fresh := &OutsetNode{}
			fresh.left.Store(cur)
			fresh.right.Store(&OutsetNode{target: target, port: viaPort})
			if slot.CompareAndSwap(cur, fresh) {
				return InsertSuccess
			}
		default:
			node = cur
		}
	}
}

// Fork2 implements §3/§4.5 "fork2 on a port installs two fresh child
// nodes into the port; these become the two forked outports": n's two
// child slots are claimed directly rather than walked to, since n is a
// port the caller already holds exclusive access to. Reports ok=false
// without side effects if n turns out to already be frozen (§4.5 "if
// fork2 observes a finished outset, the entry is removed from both
// maps").
func (n *OutsetNode) Fork2() (left, right *OutsetNode, ok bool) {
	l := &OutsetNode{}
	if !n.left.CompareAndSwap(nil, l) {
		return nil, nil, false
	}
	r := &OutsetNode{}
	if !n.right.CompareAndSwap(nil, r) {
		n.left.CompareAndSwap(l, nil)
		return nil, nil, false
	}
	return l, r, true
}

// PortOutset is the §4.3.3 structured outset counterpart to
// PortIncounter: a binary tree rooted at root, draining through the
// same bounded-batch reclamation walk (§4.6, reclaim.go) every other
// tree-shaped edge set uses.
type PortOutset struct {
	root     *OutsetNode
	finished atomic.Bool
	future   bool
	sched    Scheduler
	batch    int
}

// NewPortOutset creates an empty outset whose root is an unforked
// placeholder node.
func NewPortOutset(sched Scheduler, batch int) *PortOutset {
	return &PortOutset{root: &OutsetNode{}, sched: sched, batch: batch}
}

// RootPort returns o's root node for a caller that wants to Fork2
// directly rather than going through the generic Insert path.
func (o *PortOutset) RootPort() *OutsetNode { return o.root }

func (o *PortOutset) Insert(target *Task) InsertResult {
	return o.root.InsertUnder(target, nil)
}

// Finish implements §4.3.3 "Finish walks the tree and for each non-null
// leaf with a target, decrements that target's incounter through the
// recorded port": a leaf inserted with a port decrements through that
// port (DecrementAt-equivalent), one inserted generically (no port)
// falls back to the target's own deltaIn.
func (o *PortOutset) Finish() {
	if !o.finished.CompareAndSwap(false, true) {
		panic(errDoubleFinish)
	}
	launchReclaim(o.sched, o.batch, []any{o.root}, o.visitNode, nil)
}

func (o *PortOutset) visitNode(item any) []any {
	node := item.(*OutsetNode)
	var discovered []any
	for _, idx := range [2]int{0, 1} {
		slot := node.childSlot(idx)
		for {
			cur := slot.Load()
			if cur == frozenOutsetChild {
				break
			}
			if !slot.CompareAndSwap(cur, frozenOutsetChild) {
				continue
			}
			if cur == nil {
				break
			}
			if cur.isLeaf() {
				if cur.port != nil {
					cur.port.Decrement()
				} else {
					cur.target.deltaIn(nil, -1)
				}
			} else {
				discovered = append(discovered, cur)
			}
			break
		}
	}
	return discovered
}

func (o *PortOutset) Destroy() {}

func (o *PortOutset) EnableFuture() { o.future = true }

// PropagationMode selects how a spawned child's port maps are derived
// from its parent's (§4.5).
type PropagationMode uint8

const (
	// PropagateDefault gives the child a full copy of the parent's map.
	PropagateDefault PropagationMode = iota
	// PropagateIntersection reduces the child's pre-existing map to keys
	// also present in the parent's.
	PropagateIntersection
	// PropagateDifference reduces the child's pre-existing map to keys
	// not present in the parent's.
	PropagateDifference
)

// PropagateIncounterPorts implements the inports half of §4.5: applies
// mode to derive child's map from parent's (and, for the two filtering
// modes, child's own pre-existing candidate map), then forks every port
// whose key ends up present in both maps so parent and child never share
// a live, unreplaced port.
func PropagateIncounterPorts(mode PropagationMode, parent, child *Task) {
	if len(parent.inports) == 0 {
		return
	}
	if child.inports == nil {
		child.inports = make(map[Incounter]*IncounterNode)
	}
	switch mode {
	case PropagateDefault:
		for key, port := range parent.inports {
			child.inports[key] = port
		}
	case PropagateIntersection:
		for key := range child.inports {
			if _, ok := parent.inports[key]; !ok {
				delete(child.inports, key)
			}
		}
	case PropagateDifference:
		for key := range child.inports {
			if _, ok := parent.inports[key]; ok {
				delete(child.inports, key)
			}
		}
	}
	for key, parentPort := range parent.inports {
		if _, ok := child.inports[key]; !ok {
			continue
		}
		left, right := parentPort.Fork()
		parent.inports[key] = left
		child.inports[key] = right
	}
}

// PropagateOutsetPorts is PropagateIncounterPorts's outports half,
// including §4.5's "if fork2 observes a finished outset, the entry is
// removed from both maps" clause.
func PropagateOutsetPorts(mode PropagationMode, parent, child *Task) {
	if len(parent.outports) == 0 {
		return
	}
	if child.outports == nil {
		child.outports = make(map[Outset]*OutsetNode)
	}
	switch mode {
	case PropagateDefault:
		for key, port := range parent.outports {
			child.outports[key] = port
		}
	case PropagateIntersection:
		for key := range child.outports {
			if _, ok := parent.outports[key]; !ok {
				delete(child.outports, key)
			}
		}
	case PropagateDifference:
		for key := range child.outports {
			if _, ok := parent.outports[key]; ok {
				delete(child.outports, key)
			}
		}
	}
	for key, parentPort := range parent.outports {
		if _, ok := child.outports[key]; !ok {
			continue
		}
		left, right, ok := parentPort.Fork2()
		if !ok {
			delete(parent.outports, key)
			delete(child.outports, key)
			continue
		}
		parent.outports[key] = left
		child.outports[key] = right
	}
}
