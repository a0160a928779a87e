package test

import "time"

const (
	// AsyncBintreeSize is n for the S1/S2 bintree scenarios.
	AsyncBintreeSize = 1024

	// FuturePoolReaders is the number of readers forcing the same future
	// in S3.
	FuturePoolReaders = 64
	// FibArg is fib(22) == 17711, S3's producer workload.
	FibArg = 22

	// ParallelForSize is n for S4.
	ParallelForSize = 4096

	// GaussSeidelN is the S5 grid size (inner size is GaussSeidelN-2).
	GaussSeidelN       = 130
	GaussSeidelBlock   = 2
	GaussSeidelIters   = 1
	GaussSeidelEpsilon = 0.001

	// IncounterBenchWorkers is P for the S6 microbench.
	IncounterBenchWorkers  = 8
	IncounterBenchDuration = 200 * time.Millisecond

	DefaultExpiredTime = 10 * time.Second

	// SchedulerBenchRunTimes/SchedulerBenchSleep size the comparative
	// scheduler-backend benchmark: RunTimes short sleeping leaves per
	// b.N round, enough to make submission overhead, not the sleep
	// itself, the dominant cost difference between backends.
	SchedulerBenchRunTimes = 10000
	SchedulerBenchSleep    = time.Millisecond
	SchedulerBenchPoolSize = 50000
)
