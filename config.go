package corral

// EdgeAlgo selects the top-down ("direct") edge-set family (§6).
type EdgeAlgo uint8

const (
	EdgeSimple EdgeAlgo = iota
	EdgeDistributed
	EdgeDyntree
)

// Algo selects the top-down vs bottom-up family (§6).
type Algo uint8

const (
	AlgoDirect Algo = iota
	AlgoPortPassing
)

// Config is the recognised configuration surface of §6. There is no CLI or
// persisted state beyond these fields; options are applied the same way
// ants.Option and workerpool's functional options are, matching the
// teacher's and the pack's configuration idiom.
type Config struct {
	EdgeAlgo EdgeAlgo
	Algo     Algo

	// BranchingFactor sizes dyntree/distributed nodes. Must be >= 2.
	BranchingFactor int

	// NbLevels is the SNZI tree depth. Must be >= 1.
	NbLevels int

	// CommunicationDelay is the batch size for splittable-range loops and
	// for reclamation walks. Must be >= 1.
	CommunicationDelay int

	// PipelineWindowCapacity bounds in-flight futures for the Gauss-Seidel
	// pipeline benchmark.
	PipelineWindowCapacity int

	// PipelineBurstRate is the number of tokens popped per throttle in
	// that same benchmark.
	PipelineBurstRate int
}

// Option mutates a Config in place, mirroring ants.Option / the
// gammazero/workerpool functional-option shape.
type Option func(*Config)

// DefaultConfig matches the values the scenario suite (§8) exercises.
func DefaultConfig() Config {
	return Config{
		EdgeAlgo:               EdgeSimple,
		Algo:                   AlgoDirect,
		BranchingFactor:        2,
		NbLevels:               4,
		CommunicationDelay:     32,
		PipelineWindowCapacity: 4096,
		PipelineBurstRate:      1,
	}
}

func WithEdgeAlgo(a EdgeAlgo) Option { return func(c *Config) { c.EdgeAlgo = a } }
func WithAlgo(a Algo) Option         { return func(c *Config) { c.Algo = a } }

func WithBranchingFactor(n int) Option {
	if n < 2 {
		panic("corral: branching_factor must be >= 2")
	}
	return func(c *Config) { c.BranchingFactor = n }
}

func WithNbLevels(n int) Option {
	if n < 1 {
		panic("corral: nb_levels must be >= 1")
	}
	return func(c *Config) { c.NbLevels = n }
}

func WithCommunicationDelay(n int) Option {
	if n < 1 {
		panic("corral: communication_delay must be >= 1")
	}
	return func(c *Config) { c.CommunicationDelay = n }
}

func WithPipelineWindowCapacity(n int) Option {
	return func(c *Config) { c.PipelineWindowCapacity = n }
}

func WithPipelineBurstRate(n int) Option {
	return func(c *Config) { c.PipelineBurstRate = n }
}

// NewConfig builds a Config from DefaultConfig plus opts, matching the
// ants.NewPool(size, opts...) construction shape.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
