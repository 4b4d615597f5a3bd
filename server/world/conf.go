package world

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hearthvox/hearth/server/world/chunk"
)

// Config may be used to create a new World. It holds a variety of fields that
// influence the World.
type Config struct {
	// Log is the Logger that will be used to log errors and debug messages to.
	// If set to nil, slog.Default() is set.
	Log *slog.Logger
	// Dim is the Dimension of the World. If set to nil, the World will use
	// Overworld as its dimension.
	Dim Dimension
	// Provider is the Provider implementation used to read and write world
	// data. If set to nil, the Provider used is NopProvider, which does not
	// store any data to disk.
	Provider Provider
	// Generator is the Generator implementation used to generate new columns
	// of the World. If set to nil, the Generator used is NopGenerator, which
	// generates empty columns.
	Generator Generator
	// Seed is the world seed used when the Provider has no settings stored
	// yet. If left 0, a random seed is chosen. A seed already stored by the
	// Provider always wins.
	Seed int64
	// ReadOnly specifies if the World should be read-only, meaning no new
	// data will be written to the Provider.
	ReadOnly bool
	// Dev controls the handling of concurrency invariant violations such as
	// a mutation on a column that is not loaded: when Dev is true these
	// panic, otherwise they are logged and the operation is rejected.
	Dev bool
	// SaveInterval is the interval at which dirty columns and the world
	// settings are flushed in the background. By default, 5 minutes.
	SaveInterval time.Duration
	// EvictionGrace is how long a column stays cached after its last
	// reference is released. By default, 5 seconds.
	EvictionGrace time.Duration
	// SpawnRadius is the radius in columns around the spawn that is kept
	// permanently loaded. By default, 2.
	SpawnRadius int32
}

// New creates a World using the Config. Calling Config.New more than once
// creates multiple worlds over the same provider, which leads to data loss.
func (conf Config) New() *World {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Dim == nil {
		conf.Dim = Overworld
	}
	if conf.Provider == nil {
		conf.Provider = NopProvider{}
	}
	if conf.Generator == nil {
		conf.Generator = NopGenerator{}
	}
	if conf.SaveInterval == 0 {
		conf.SaveInterval = 5 * time.Minute
	}
	if conf.EvictionGrace == 0 {
		conf.EvictionGrace = 5 * time.Second
	}
	if conf.SpawnRadius == 0 {
		conf.SpawnRadius = 2
	}
	conf.Log = conf.Log.With("dimension", conf.Dim.String())

	set := defaultSettings()
	set.Seed = conf.Seed
	if set.Seed == 0 {
		set.Seed = rand.Int64()
	}
	conf.Provider.Settings(set)

	w := &World{
		conf:         conf,
		ra:           conf.Dim.Range(),
		set:          set,
		queue:        make(chan transaction, 128),
		queueClosing: make(chan struct{}),
		closing:      make(chan struct{}),
		r:            rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	w.cache = newChunkCache(w)

	w.queueing.Add(1)
	go w.handleTransactions()
	w.running.Add(2)
	go w.tickLoop()
	go w.backgroundLoop()
	go w.pinSpawnArea()
	return w
}

// Generator generates columns for positions absent from a world's storage.
// Generate must advance the column's generation status by exactly one step,
// using src to obtain neighbouring columns its current stage depends on.
// Neighbours may only be required at a status strictly below the one being
// generated, which keeps cross-column recursion free of cycles.
type Generator interface {
	Generate(pos ChunkPos, col *chunk.Column, src ColumnSource) error
}

// ColumnSource hands a Generator its neighbouring columns, resolved through
// the cache so concurrent generation of shared neighbours happens once.
type ColumnSource interface {
	// RequireStatus returns the column at pos once it has reached at least
	// the target status, loading or generating it as needed.
	RequireStatus(pos ChunkPos, target chunk.Status) (*chunk.Column, error)
}

// NopGenerator is the default Generator a World uses: it generates air-only
// columns.
type NopGenerator struct{}

// Generate jumps the column straight to its terminal status.
func (NopGenerator) Generate(_ ChunkPos, col *chunk.Column, _ ColumnSource) error {
	col.Status = chunk.StatusFull
	return nil
}

// Cause tags the origin of a block mutation. The world records it when
// replicating the mutation to viewers but attaches no meaning to it beyond
// that.
type Cause uint8

const (
	// CausePlayer marks a mutation made by a player action.
	CausePlayer Cause = iota
	// CauseTick marks a mutation made by tick-driven block behaviour.
	CauseTick
	// CauseGeneration marks a mutation made while a column was generated.
	CauseGeneration
)
