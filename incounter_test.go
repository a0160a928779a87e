package corral

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAddIncounterActivatesOnce(t *testing.T) {
	c := newFetchAddIncounter(0)
	c.Increment(nil)
	c.Increment(nil)
	assert.Equal(t, NotActivated, c.Decrement(nil))
	assert.Equal(t, Activated, c.Decrement(nil))
	assert.True(t, c.IsActivated())
	assert.Panics(t, func() { c.Increment(nil) })
}

func TestFetchAddIncounterDoubleActivationPanics(t *testing.T) {
	c := newFetchAddIncounter(1)
	assert.Equal(t, Activated, c.Decrement(nil))
	assert.Panics(t, func() { c.Decrement(nil) })
}

func TestDistributedIncounterActivatesExactlyOnce(t *testing.T) {
	owner := NewTask(&syncScheduler{}, func(tk *Task) {})
	c := newDistributedIncounter(owner, 4, 3)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		c.Increment(nil)
	}
	activations := make(chan DecrementResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			activations <- c.Decrement(nil)
		}()
	}
	wg.Wait()
	close(activations)

	activatedCount := 0
	for r := range activations {
		if r == Activated {
			activatedCount++
		}
	}
	assert.Equal(t, 1, activatedCount)
	assert.True(t, c.IsActivated())
}

func TestDistributedIncounterNotActivatedBeforeAnyIncrement(t *testing.T) {
	owner := NewTask(&syncScheduler{}, func(tk *Task) {})
	c := newDistributedIncounter(owner, 2, 2)
	require.False(t, c.IsActivated(), "a freshly built tree must not report activated before any edge exists")
}

func TestDyntreeIncounterActivatesExactlyOnce(t *testing.T) {
	c := newDyntreeIncounter(4)

	const n = 500
	for i := 0; i < n; i++ {
		c.Increment(nil)
	}

	var wg sync.WaitGroup
	results := make(chan DecrementResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Decrement(nil)
		}()
	}
	wg.Wait()
	close(results)

	activated := 0
	for r := range results {
		if r == Activated {
			activated++
		}
	}
	assert.Equal(t, 1, activated)
	assert.True(t, c.IsActivated())
	assert.Len(t, c.reclaimableNodes(), n, "every detached leaf should have landed in out")
}

// TestIncounterMicrobenchInvariant is scenario S6: P goroutines race
// increment/decrement on a shared incounter; once every increment has a
// matching decrement, exactly one decrement must report activated.
func TestIncounterMicrobenchInvariant(t *testing.T) {
	const workers = 8
	const perWorker = 5000

	for _, build := range []func() Incounter{
		func() Incounter { return newFetchAddIncounter(0) },
		func() Incounter {
			return newDistributedIncounter(NewTask(&syncScheduler{}, func(tk *Task) {}), 4, 3)
		},
		func() Incounter { return newDyntreeIncounter(4) },
	} {
		c := build()
		var wg sync.WaitGroup
		var totalIncrements, totalDecrements int64
		var mu sync.Mutex
		var activations int64

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					c.Increment(nil)
				}
				mu.Lock()
				totalIncrements += perWorker
				mu.Unlock()
			}()
		}
		wg.Wait()

		wg = sync.WaitGroup{}
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					if c.Decrement(nil) == Activated {
						mu.Lock()
						activations++
						mu.Unlock()
					}
				}
				mu.Lock()
				totalDecrements += perWorker
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, totalIncrements, totalDecrements)
		assert.Equal(t, int64(1), activations)
		assert.True(t, c.IsActivated())
	}
}
