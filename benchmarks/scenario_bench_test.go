package test

import (
	"sync/atomic"
	"testing"

	"github.com/quarkrun/corral"
	"github.com/quarkrun/corral/internal/bench"
)

var edgeAlgos = []corral.EdgeAlgo{corral.EdgeSimple, corral.EdgeDistributed, corral.EdgeDyntree}

// asyncBintreeBody grows a perfectly balanced binary tree of async
// children underneath tk, AsyncBintreeSize leaves deep, joining every
// leaf into root via a shared structured incounter. Mirrors the shape of
// the S1 correctness test, minus the bookkeeping, for throughput
// measurement instead.
func asyncBintreeBody(rt *corral.Runtime, root *corral.Task, remaining int) corral.Body {
	var right *corral.Task
	return func(tk *corral.Task) {
		if remaining <= 1 {
			return
		}
		switch tk.CurrentBlock() {
		case corral.EntryLabel:
			half := remaining / 2
			left := corral.NewTask(rt.Scheduler(), asyncBintreeBody(rt, root, half))
			right = corral.NewTask(rt.Scheduler(), asyncBintreeBody(rt, root, remaining-half))
			tk.Async(left, root, 1)
		case 1:
			tk.Async(right, root, 2)
		}
	}
}

func BenchmarkAsyncBintree(b *testing.B) {
	for _, algo := range edgeAlgos {
		algo := algo
		cfg := corral.NewConfig(corral.WithEdgeAlgo(algo))
		b.Run(bench.Label(cfg), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				sched := corral.NewPool(0)
				rt := corral.NewRuntime(sched, cfg)
				var root *corral.Task
				root = corral.NewTask(sched, func(tk *corral.Task) {
					if tk.CurrentBlock() == corral.EntryLabel {
						spawner := corral.NewTask(sched, asyncBintreeBody(rt, root, AsyncBintreeSize))
						rt.Finish(tk, spawner, 1)
					}
				})
				sched.Launch(root)
				sched.Close()
			}
		})
	}
}

// futureBintreeBody is asyncBintreeBody's future/force counterpart: each
// interior node forces its two children's futures before finishing, so
// the whole tree's completion fans back up through Force chains instead
// of a single shared join (S2).
func futureBintreeBody(rt *corral.Runtime, remaining int) corral.Body {
	var leftOut, rightOut corral.Outset
	return func(tk *corral.Task) {
		if remaining <= 1 {
			return
		}
		half := remaining / 2
		switch tk.CurrentBlock() {
		case corral.EntryLabel:
			left := corral.NewTask(rt.Scheduler(), futureBintreeBody(rt, half))
			right := corral.NewTask(rt.Scheduler(), futureBintreeBody(rt, remaining-half))
			leftOut = rt.Future(tk, left, 1)
			rightOut = rt.Future(tk, right, 1)
		case 1:
			tk.Force(leftOut, 2)
		case 2:
			tk.Force(rightOut, 3)
		}
	}
}

func BenchmarkFutureBintree(b *testing.B) {
	for _, algo := range edgeAlgos {
		algo := algo
		cfg := corral.NewConfig(corral.WithEdgeAlgo(algo))
		b.Run(bench.Label(cfg), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				sched := corral.NewPool(0)
				rt := corral.NewRuntime(sched, cfg)
				root := corral.NewTask(sched, futureBintreeBody(rt, AsyncBintreeSize))
				sched.Launch(root)
				sched.Close()
			}
		})
	}
}

// BenchmarkParallelFor measures S4's throughput: ParallelForSize
// independent increments joined through a single structured incounter,
// across every edge family.
func BenchmarkParallelFor(b *testing.B) {
	for _, algo := range edgeAlgos {
		algo := algo
		cfg := corral.NewConfig(corral.WithEdgeAlgo(algo))
		b.Run(bench.Label(cfg), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				var sum int64
				sched := corral.NewPool(0)
				rt := corral.NewRuntime(sched, cfg)
				root := corral.NewTask(sched, func(tk *corral.Task) {
					switch tk.CurrentBlock() {
					case corral.EntryLabel:
						rt.ParallelFor(tk, 0, ParallelForSize, func(i int) {
							atomic.AddInt64(&sum, int64(i))
						}, 1)
					}
				})
				sched.Launch(root)
				sched.Close()
				if sum == 0 {
					b.Fatal("parallel_for body never ran")
				}
			}
		})
	}
}
