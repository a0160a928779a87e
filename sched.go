package corral

import (
	"log"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
)

// Scheduler is the external work-stealing pool the core consumes (§6
// "Scheduler interface (consumed)"). The edge-enforcement core does not
// depend on work stealing — it only needs somewhere to push a runnable
// task and, at shutdown, somewhere to drain and release. Of the backends
// below, only idlePool steals (from in-flight Splittable tasks).
type Scheduler interface {
	// AddTask enqueues t for execution (§6 add_thread).
	AddTask(t *Task)
	// Launch runs t and blocks the calling goroutine's caller until the
	// whole DAG reachable from t has quiesced (§6 launch/init/destroy are
	// collapsed into one call for the common "run one program" case; see
	// Wait for the decoupled form).
	Launch(t *Task)
	// Wait blocks until every task submitted so far has completed.
	Wait()
	// Close releases the underlying pool (§6 destroy).
	Close()
}

// idlePool is the §2 "driver/scheduler glue" default backend: a pool of
// goroutines, spawned on demand by AddTask and not capped at any size,
// that reuse themselves across tasks via a lock-free
// stack of parked workers, exactly the FILO idle-worker discipline of the
// teacher's Pool (pool.go) and Stack (stack.go).
//
// The teacher parks a goroutine by calling straight into the Go runtime's
// internal park/ready primitives (mcall(fast_park), safe_ready) so that a
// submission can hand a task to an already-running goroutine without ever
// going through the channel scheduler. Those entry points are private to
// runtime package internals and not something application code can
// reach portably, so this adaptation keeps the teacher's idle-stack
// design — push a parked worker's descriptor when it goes idle, pop one
// before spawning a fresh goroutine — but parks/wakes over a channel
// instead of the runtime's own queue. The stack still keeps recently-used
// goroutines (and their warm stacks/caches) at the front of the line.
type idlePool struct {
	top    atomic.Pointer[idleWorker]
	closed atomic.Bool
	wg     sync.WaitGroup

	// inFlight holds every currently-running Splittable task, keyed by
	// itself. A worker about to park checks here first and steals a
	// Split() off one of them instead of going idle, the thing that
	// actually makes a splittable range/reclamation walk drain in
	// parallel rather than run out as one sequential batch-chain on
	// whichever goroutine first picked it up.
	inFlight sync.Map
}

type idleWorker struct {
	next atomic.Pointer[idleWorker]
	wake chan func()
}

// NewPool creates a Scheduler backed by idlePool. size is advisory: the
// pool never blocks waiting for a free worker, it always either reuses a
// parked one or spawns a fresh goroutine, matching itogami's Submit.
func NewPool(size int) Scheduler {
	log.Printf("corral: starting goroutine pool (hint size=%d)", size)
	return &idlePool{}
}

func (p *idlePool) popIdle() *idleWorker {
	for {
		top := p.top.Load()
		if top == nil {
			return nil
		}
		next := top.next.Load()
		if p.top.CompareAndSwap(top, next) {
			top.next.Store(nil)
			return top
		}
	}
}

func (p *idlePool) pushIdle(w *idleWorker) {
	for {
		top := p.top.Load()
		w.next.Store(top)
		if p.top.CompareAndSwap(top, w) {
			return
		}
	}
}

func (p *idlePool) AddTask(t *Task) {
	if p.closed.Load() {
		panic("corral: AddTask on a closed scheduler")
	}
	p.wg.Add(1)
	fn := p.runFunc(t)
	if w := p.popIdle(); w != nil {
		w.wake <- fn
		return
	}
	go p.loopWorker(fn)
}

// runFunc wraps t.Run with the bookkeeping that makes t visible to idle
// workers looking for work to steal. Run loops a splittable task's body
// in place across every batch (JumpTo) on this one goroutine until it
// either finishes or suspends, so t stays registered in inFlight for
// that whole span, not just one batch.
func (p *idlePool) runFunc(t *Task) func() {
	return func() {
		defer p.wg.Done()
		if t.Splittable() != nil {
			p.inFlight.Store(t, struct{}{})
			defer p.inFlight.Delete(t)
		}
		t.Run()
	}
}

func (p *idlePool) loopWorker(fn func()) {
	w := &idleWorker{wake: make(chan func())}
	for {
		fn()
		if stolen := p.steal(); stolen != nil {
			fn = stolen
			continue
		}
		p.pushIdle(w)
		fn = <-w.wake
	}
}

// steal looks for an in-flight Splittable task and pops part of its
// remaining work into a fresh task this goroutine can run immediately
// instead of parking (§4.4 "Splittable range", §4.6). Split is safe to
// call concurrently with the owner goroutine's own batch loop — both
// rangeTask and reclaimWalker guard their mutable state with a mutex for
// exactly this, so stealing never races the task that's still running.
func (p *idlePool) steal() func() {
	var stolen *Task
	p.inFlight.Range(func(key, _ any) bool {
		t := key.(*Task)
		s := t.Splittable()
		if s == nil || s.Size() < 2 {
			return true
		}
		if child := s.Split(); child != nil {
			stolen = child
			return false
		}
		return true
	})
	if stolen == nil {
		return nil
	}
	p.wg.Add(1)
	return p.runFunc(stolen)
}

func (p *idlePool) Launch(t *Task) {
	p.AddTask(t)
	p.Wait()
}

func (p *idlePool) Wait() { p.wg.Wait() }

func (p *idlePool) Close() {
	p.closed.Store(true)
	log.Printf("corral: goroutine pool stopped")
}

// antsScheduler adapts panjf2000/ants, the teacher's own benchmark
// opponent (benchmarks/itogami_benchmark_test.go), into a Scheduler: a
// bounded goroutine pool with its own internal work queue, used wherever
// the task graph's expected concurrency is known ahead of time and a
// hard cap on live goroutines is wanted.
type antsScheduler struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

// NewAntsScheduler wires github.com/panjf2000/ants/v2 in as the external
// scheduler (§6), sized and configured the same way the teacher's
// benchmarks construct it.
func NewAntsScheduler(size int, opts ...ants.Option) (Scheduler, error) {
	pool, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, err
	}
	return &antsScheduler{pool: pool}, nil
}

func (s *antsScheduler) AddTask(t *Task) {
	s.wg.Add(1)
	if err := s.pool.Submit(func() { defer s.wg.Done(); t.Run() }); err != nil {
		s.wg.Done()
		panic(err)
	}
}

func (s *antsScheduler) Launch(t *Task) {
	s.AddTask(t)
	s.Wait()
}

func (s *antsScheduler) Wait() { s.wg.Wait() }

func (s *antsScheduler) Close() { s.pool.Release() }

// workerPoolScheduler adapts gammazero/workerpool, the teacher's other
// declared dependency, into a Scheduler. Unlike ants and idlePool, its
// submission queue is FIFO rather than work-stealing, which is the
// scheduling shape the Gauss-Seidel pipeline benchmark (S5) wants: futures
// must be serviced roughly in the order their producers were submitted so
// pipeline_window_capacity throttling behaves predictably.
type workerPoolScheduler struct {
	pool *workerpool.WorkerPool
	wg   sync.WaitGroup
}

func NewWorkerPoolScheduler(size int) Scheduler {
	return &workerPoolScheduler{pool: workerpool.New(size)}
}

func (s *workerPoolScheduler) AddTask(t *Task) {
	s.wg.Add(1)
	s.pool.Submit(func() { defer s.wg.Done(); t.Run() })
}

func (s *workerPoolScheduler) Launch(t *Task) {
	s.AddTask(t)
	s.Wait()
}

func (s *workerPoolScheduler) Wait() { s.wg.Wait() }

func (s *workerPoolScheduler) Close() { s.pool.StopWait() }
