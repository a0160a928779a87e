package test

import (
	"sync"
	"testing"

	"github.com/quarkrun/corral"
	"go.uber.org/atomic"
)

// gaussSeidelSequential is the reference this benchmark's pipelined
// version approximates: an in-place relaxation sweep over the interior
// of x, numiters times.
func gaussSeidelSequential(x []float64, numiters int) {
	n := len(x)
	for iter := 0; iter < numiters; iter++ {
		for i := 1; i < n-1; i++ {
			x[i] = 0.5 * (x[i-1] + x[i+1])
		}
	}
}

// gaussSeidelBlocks partitions the interior of a length-n array into
// block_size-wide contiguous ranges, the grain a pipelined sweep hands
// to each stage.
func gaussSeidelBlocks(n, blockSize int) [][2]int {
	var blocks [][2]int
	for lo := 1; lo < n-1; lo += blockSize {
		hi := lo + blockSize
		if hi > n-1 {
			hi = n - 1
		}
		blocks = append(blocks, [2]int{lo, hi})
	}
	return blocks
}

// BenchmarkGaussSeidelSequential is the non-pipelined baseline
// BenchmarkGaussSeidelPipeline is measured against.
func BenchmarkGaussSeidelSequential(b *testing.B) {
	for i := 0; i < b.N; i++ {
		x := make([]float64, GaussSeidelN)
		for j := range x {
			x[j] = float64(j)
		}
		gaussSeidelSequential(x, GaussSeidelIters)
	}
}

// BenchmarkGaussSeidelPipeline is S5: numiters sweeps over an N-point
// grid, each sweep's blocks pipelined left to right through Future/Force
// so block j only waits on block j-1 of the same sweep (§4.4), never on
// the whole grid. In-flight blocks are throttled to
// pipeline_window_capacity and refilled pipeline_burst_rate at a time
// (§6 "Configuration surface"), so both knobs are load-bearing rather
// than decorative.
func BenchmarkGaussSeidelPipeline(b *testing.B) {
	cfg := corral.NewConfig(
		corral.WithEdgeAlgo(corral.EdgeSimple),
		corral.WithPipelineWindowCapacity(8),
		corral.WithPipelineBurstRate(2),
	)
	blocks := gaussSeidelBlocks(GaussSeidelN, GaussSeidelBlock)

	for i := 0; i < b.N; i++ {
		x := make([]float64, GaussSeidelN)
		for j := range x {
			x[j] = float64(j)
		}

		sched := corral.NewWorkerPoolScheduler(len(blocks) + 1)
		rt := corral.NewRuntime(sched, cfg)

		window := make(chan struct{}, cfg.PipelineWindowCapacity)
		for j := 0; j < cfg.PipelineWindowCapacity; j++ {
			window <- struct{}{}
		}
		completed := atomic.NewInt64(0)

		for iter := 0; iter < GaussSeidelIters; iter++ {
			var wg sync.WaitGroup
			wg.Add(1)

			stageOuts := make([]corral.Outset, len(blocks))

			var orchestrator *corral.Task
			orchestrator = corral.NewTask(sched, func(tk *corral.Task) {
				bi := int(tk.CurrentBlock())
				if bi >= len(blocks) {
					last := stageOuts[len(blocks)-1]
					waiter := corral.NewTask(sched, func(w *corral.Task) {
						switch w.CurrentBlock() {
						case corral.EntryLabel:
							w.Force(last, 1)
						case 1:
							wg.Done()
						}
					})
					sched.AddTask(waiter)
					return
				}

				lo, hi := blocks[bi][0], blocks[bi][1]
				var leftOut corral.Outset
				if bi > 0 {
					leftOut = stageOuts[bi-1]
				}
				stage := corral.NewTask(sched, func(p *corral.Task) {
					switch p.CurrentBlock() {
					case corral.EntryLabel:
						if leftOut != nil {
							p.Force(leftOut, 1)
						} else {
							p.JumpTo(1)
						}
					case 1:
						<-window
						for k := lo; k < hi; k++ {
							x[k] = 0.5 * (x[k-1] + x[k+1])
						}
						if completed.Inc()%int64(cfg.PipelineBurstRate) == 0 {
							for r := 0; r < cfg.PipelineBurstRate; r++ {
								window <- struct{}{}
							}
						}
					}
				})
				stageOuts[bi] = rt.Future(tk, stage, corral.Label(bi+1))
			})

			sched.AddTask(orchestrator)
			wg.Wait()
		}
		sched.Close()
	}
}
