package corral

// distributedIncounter is the §4.2.2 variant: a SNZI tree whose root
// annotation slot is the owning task. Increment/decrement route to a
// leaf chosen from the source identity; the root-to-zero event is what
// activates the counter. Decrement reports Activated from the tree's own
// activating CAS (snziLeaf.departForIncounter), never from a separate
// before/after read of the flag, so exactly one concurrent decrement
// ever reports it.
type distributedIncounter struct {
	tree *snziTree
}

func newDistributedIncounter(owner *Task, branching, levels int) *distributedIncounter {
	return &distributedIncounter{tree: newSNZITree(branching, levels, owner)}
}

func (c *distributedIncounter) IsActivated() bool {
	return c.tree.activated.Load()
}

func (c *distributedIncounter) Increment(source *Task) {
	if c.IsActivated() {
		panic(errIncrementAfterActivation)
	}
	c.tree.leaf(source).arrive()
}

func (c *distributedIncounter) Decrement(source *Task) DecrementResult {
	if c.tree.leaf(source).departForIncounter() {
		return Activated
	}
	return NotActivated
}

func (c *distributedIncounter) Check(t *Task) {
	if c.IsActivated() {
		t.schedule()
	}
}

func (c *distributedIncounter) Delta(source *Task, t *Task, delta int) DecrementResult {
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
