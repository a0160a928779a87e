package corral

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdlePoolRunsEveryTask(t *testing.T) {
	sched := NewPool(4)
	const n = 200
	var ran int64
	for i := 0; i < n; i++ {
		sched.AddTask(NewTask(sched, func(tk *Task) { atomic.AddInt64(&ran, 1) }))
	}
	sched.Wait()
	sched.Close()
	assert.Equal(t, int64(n), ran)
}

func TestIdlePoolReusesParkedWorkers(t *testing.T) {
	sched := NewPool(2)
	var ran int64
	for round := 0; round < 3; round++ {
		for i := 0; i < 10; i++ {
			sched.AddTask(NewTask(sched, func(tk *Task) { atomic.AddInt64(&ran, 1) }))
		}
		sched.Wait()
	}
	sched.Close()
	assert.Equal(t, int64(30), ran)
}

func TestIdlePoolAddTaskAfterClosePanics(t *testing.T) {
	sched := NewPool(1)
	sched.Close()
	assert.Panics(t, func() {
		sched.AddTask(NewTask(sched, func(tk *Task) {}))
	})
}

func TestIdlePoolLaunchBlocksUntilDone(t *testing.T) {
	sched := NewPool(2)
	var ran bool
	sched.Launch(NewTask(sched, func(tk *Task) { ran = true }))
	assert.True(t, ran)
	sched.Close()
}

// TestIdlePoolStealsFromSplittableRangeTask is the regression shape for
// the bug where no backend ever called Splittable().Split(): a
// parallel_for range handed to a single worker that never yielded would
// take as long as running every iteration on one goroutine. With
// stealing wired in, idle workers in the pool should carve off slices of
// the still-running range and finish well under that.
func TestIdlePoolStealsFromSplittableRangeTask(t *testing.T) {
	sched := NewPool(8)
	rt := NewRuntime(sched, NewConfig(WithCommunicationDelay(1)))

	const n = 64
	const perIter = 4 * time.Millisecond
	var done int64

	root := NewTask(sched, func(tk *Task) {
		if tk.CurrentBlock() == EntryLabel {
			rt.ParallelFor(tk, 0, n, func(int) {
				time.Sleep(perIter)
				atomic.AddInt64(&done, 1)
			}, 1)
		}
	})

	start := time.Now()
	sched.Launch(root)
	elapsed := time.Since(start)
	sched.Close()

	assert.Equal(t, int64(n), done)
	assert.Less(t, elapsed, time.Duration(n)*perIter/2,
		"a splittable range across an idle pool of workers must run faster than one goroutine serially draining it, or idle workers never stole any work")
}

func TestAntsSchedulerRunsEveryTask(t *testing.T) {
	sched, err := NewAntsScheduler(4)
	require.NoError(t, err)
	const n = 100
	var ran int64
	for i := 0; i < n; i++ {
		sched.AddTask(NewTask(sched, func(tk *Task) { atomic.AddInt64(&ran, 1) }))
	}
	sched.Wait()
	sched.Close()
	assert.Equal(t, int64(n), ran)
}

func TestWorkerPoolSchedulerRunsEveryTask(t *testing.T) {
	sched := NewWorkerPoolScheduler(4)
	const n = 100
	var ran int64
	for i := 0; i < n; i++ {
		sched.AddTask(NewTask(sched, func(tk *Task) { atomic.AddInt64(&ran, 1) }))
	}
	sched.Wait()
	sched.Close()
	assert.Equal(t, int64(n), ran)
}

func TestWorkerPoolSchedulerPreservesFIFOSubmissionOrder(t *testing.T) {
	sched := NewWorkerPoolScheduler(1)
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		sched.AddTask(NewTask(sched, func(tk *Task) { order = append(order, i) }))
	}
	sched.Wait()
	sched.Close()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, order)
}
