// Package bench holds the small scaffolding the benchmark suite shares
// across scenarios: a timing harness keyed by configuration and a
// deliberately non-trivial producer workload for future/force
// benchmarks. Ported from the original C++ suite's bench.cpp, which the
// distilled scenario list (S1-S6) assumes exists but does not itself
// specify.
package bench

import (
	"fmt"
	"time"

	"github.com/quarkrun/corral"
)

// Label renders a Config's (algo, edge_algo) pair the way the original
// suite's stats harness tagged each run, for use in benchmark/sub-test
// names.
func Label(cfg corral.Config) string {
	algo := "direct"
	if cfg.Algo == corral.AlgoPortPassing {
		algo = "portpassing"
	}
	edge := [...]string{"simple", "distributed", "dyntree"}[cfg.EdgeAlgo]
	return fmt.Sprintf("%s/%s", algo, edge)
}

// Run times fn once under cfg and returns the elapsed wall-clock
// duration. fn is handed cfg so it can build whatever Runtime/Scheduler
// it needs; Run itself is oblivious to what's inside.
func Run(cfg corral.Config, fn func(cfg corral.Config)) time.Duration {
	start := time.Now()
	fn(cfg)
	return time.Since(start)
}

// Fib is deliberately recursive and CPU-bound rather than memoized: the
// point is to give a future/force benchmark (S3) real work to overlap
// with readers blocking on Force, not to compute fib quickly.
func Fib(n int) int {
	if n < 2 {
		return n
	}
	return Fib(n-1) + Fib(n-2)
}
