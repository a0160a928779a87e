package corral

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncScheduler runs tasks inline, useful for tests that want
// deterministic, single-goroutine execution order. AddTask drains a
// queue trampoline-style rather than calling t.Run() directly: a task's
// own Run() can itself reach AddTask (e.g. an outset's Finish scheduling
// every target it just decremented), and a plain mutex held across
// Run() would deadlock on that reentrant call.
type syncScheduler struct {
	mu     sync.Mutex
	queue  []*Task
	active bool
}

func (s *syncScheduler) AddTask(t *Task) {
	s.mu.Lock()
	s.queue = append(s.queue, t)
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		next.Run()
		s.mu.Lock()
	}
	s.active = false
	s.mu.Unlock()
}
func (s *syncScheduler) Launch(t *Task) { s.AddTask(t) }
func (s *syncScheduler) Wait()          {}
func (s *syncScheduler) Close()         {}

func TestTaskReadyRunsOnce(t *testing.T) {
	var ran int
	task := NewTask(&syncScheduler{}, func(tk *Task) { ran++ })
	require.Equal(t, EntryLabel, task.ContinuationBlock())
	task.Run()
	assert.Equal(t, 1, ran)
}

func TestTaskJumpToLoopsInline(t *testing.T) {
	var visited []Label
	task := NewTask(&syncScheduler{}, func(tk *Task) {
		visited = append(visited, tk.CurrentBlock())
		switch tk.CurrentBlock() {
		case EntryLabel:
			tk.JumpTo(1)
		case 1:
			tk.JumpTo(2)
		case 2:
			// falls through, ends
		}
	})
	task.Run()
	assert.Equal(t, []Label{EntryLabel, Label(1), Label(2)}, visited)
}

func TestTaskResumeUninitializedPanics(t *testing.T) {
	task := NewTask(&syncScheduler{}, func(tk *Task) {})
	task.continuationBlockID = UninitializedLabel
	assert.Panics(t, func() { task.Run() })
}

func TestTaskUnaryOutNotifiesTarget(t *testing.T) {
	sched := &syncScheduler{}
	var targetRan bool
	target := NewTask(sched, func(tk *Task) { targetRan = true })
	target.in = unaryIn()

	source := NewTask(sched, func(tk *Task) {})
	source.out = unaryOut(target)

	source.Run()
	assert.True(t, targetRan, "finishing source should decrement and schedule target")
}
