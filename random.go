package corral

import "go.uber.org/atomic"

// The dyntree and port-passing edge-set variants diffuse contention by
// descending into a randomly chosen child at every node (§5 "Contention
// policy"; §9 "a per-worker pseudo-random stream suffices; it need not be
// cryptographic"). A goroutine-local stream would need thread-local storage
// Go does not offer, so descent instead draws from a single lock-free
// splitmix64 counter: every draw is one atomic add, no lock, no shared
// mutable rand.Rand to race on.
var descentSalt = atomic.NewUint64(0x243f6a8885a308d3)

// randomChildIndex returns a pseudo-random index in [0, branching).
func randomChildIndex(branching int) int {
	if branching <= 1 {
		return 0
	}
	x := descentSalt.Add(0x9e3779b97f4a7c15)
	x ^= x >> 33
	x *= 0xff51afd7ed558cd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return int(x % uint64(branching))
}
