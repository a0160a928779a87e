package corral

import "go.uber.org/atomic"

// dyntreeIncounter is the §4.2.3 variant: a tree of pending arrivals
// rooted at in, drained one leaf at a time by Decrement, which parks
// every fully-detached node on out for later reclamation (§4.6).
type dyntreeIncounter struct {
	in        atomic.Pointer[dyntreeInNode]
	out       detachedList
	branching int
	activated atomic.Bool
}

func newDyntreeIncounter(branching int) *dyntreeIncounter {
	if branching < 2 {
		branching = 2
	}
	return &dyntreeIncounter{branching: branching}
}

func (c *dyntreeIncounter) IsActivated() bool {
	return c.activated.Load()
}

// Increment implements §4.2.3 "Increment algorithm". The nil -> fresh-root
// install is documented as requiring only a synchronising read, not a full
// CAS, when called by the sole task preparing the counter (§4.2.3's
// caveat); this implementation always CASes, which is strictly stronger
// than the documented precondition and therefore also correct for the
// single-writer case it describes.
func (c *dyntreeIncounter) Increment(_ *Task) {
	if c.activated.Load() {
		panic(errIncrementAfterActivation)
	}

descend:
	for {
		root := c.in.Load()
		if root == nil {
			leaf := newDyntreeInNode(c.branching, nil, -1)
			if c.in.CompareAndSwap(nil, leaf) {
				return
			}
			continue descend
		}

		node := root
		for {
			idx := randomChildIndex(c.branching)
			cur := node.children[idx].Load()
			switch cur {
			case dyntreeMinus:
				continue descend
			case nil:
				leaf := newDyntreeInNode(c.branching, node, idx)
				if node.children[idx].CompareAndSwap(nil, leaf) {
					return
				}
				continue descend
			default:
				node = cur
			}
		}
	}
}

// Decrement implements §4.2.3 "Decrement algorithm": pick any leaf via
// descent, try to detach it; on success at the root, the whole in tree is
// drained and the counter activates; on success elsewhere, only the
// parent's slot pointing at the detached node is cleared.
func (c *dyntreeIncounter) Decrement(_ *Task) DecrementResult {
retry:
	for {
		root := c.in.Load()
		if root == nil {
			panic("corral: decrement on an already-activated dyntree incounter")
		}

		node := root
		for {
			outcome, child := node.tryDetach()
			switch outcome {
			case detachSuccess:
				if node.parent == nil {
					c.in.Store(nil)
					c.out.push(node)
					if !c.activated.CompareAndSwap(false, true) {
						panic(errDoubleActivation)
					}
					return Activated
				}
				node.parent.children[node.parentIndex].Store(nil)
				c.out.push(node)
				return NotActivated
			case detachRace:
				continue retry
			case detachDescend:
				node = child
			}
		}
	}
}

func (c *dyntreeIncounter) Check(t *Task) {
	if c.IsActivated() {
		t.schedule()
	}
}

func (c *dyntreeIncounter) Delta(source *Task, t *Task, delta int) DecrementResult {
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

// reclaimableNodes returns (and clears) every node parked in out, for the
// §4.6 BFS reclamation walk to drain after this counter has activated and
// nothing references it anymore.
func (c *dyntreeIncounter) reclaimableNodes() []*dyntreeInNode {
	return c.out.drain()
}

// Reclaim launches the §4.6 deferred-reclamation walk over every node
// this counter has detached into out. Every such node was CAS-validated
// leaf-clean at detach time (§4.2.3), so the visitor never discovers
// further children to enqueue — the walk is a single flat batch drain,
// not a recursive descent.
func (c *dyntreeIncounter) Reclaim(sched Scheduler, batch int, onDone func()) {
	nodes := c.reclaimableNodes()
	seed := make([]any, len(nodes))
	for i, n := range nodes {
		seed[i] = n
	}
	launchReclaim(sched, batch, seed, func(any) []any { return nil }, onDone)
}
