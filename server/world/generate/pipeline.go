package generate

import (
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
)

// Stage is one step of a generation pipeline. A stage advances a column from
// the status directly below Target to Target, mutating only the column it is
// handed. Columns of neighbouring positions are reached through the Context
// and are read-only.
type Stage interface {
	// Target returns the status the stage advances a column to.
	Target() chunk.Status
	// Run applies the stage to the column in ctx.
	Run(ctx *Context) error
}

// Pipeline runs an ordered chain of stages, advancing a column by exactly
// one status per Generate call. It implements world.Generator.
type Pipeline struct {
	seed   int64
	stages map[chunk.Status]Stage
}

// New creates a Pipeline from the stages passed. The stages must cover every
// status from the first above empty up to and including the terminal status,
// each exactly once; New panics otherwise, as a pipeline with gaps can never
// complete a column.
func New(seed int64, stages ...Stage) *Pipeline {
	m := make(map[chunk.Status]Stage, len(stages))
	for _, s := range stages {
		if _, ok := m[s.Target()]; ok {
			panic(fmt.Sprintf("generate: duplicate stage for status %v", s.Target()))
		}
		m[s.Target()] = s
	}
	for status := chunk.StatusEmpty + 1; status <= chunk.StatusFull; status++ {
		if _, ok := m[status]; !ok {
			panic(fmt.Sprintf("generate: no stage advances to status %v", status))
		}
	}
	return &Pipeline{seed: seed, stages: m}
}

// Seed returns the seed the pipeline was created with.
func (p *Pipeline) Seed() int64 {
	return p.seed
}

// Generate advances the column at pos by one generation status. The stage
// run is given a random source derived from the seed, the position and the
// stage, so a column generates identically regardless of the order in which
// the world requests its stages.
func (p *Pipeline) Generate(pos world.ChunkPos, col *chunk.Column, src world.ColumnSource) error {
	next := col.Status + 1
	stage, ok := p.stages[next]
	if !ok {
		return fmt.Errorf("column at %v is already at status %v", pos, col.Status)
	}
	ctx := &Context{
		Pos:  pos,
		Col:  col,
		Seed: p.seed,
		Rand: rand.New(rand.NewPCG(stageSeed(p.seed, pos, next), uint64(p.seed))),
		src:  src,
	}
	if err := stage.Run(ctx); err != nil {
		return err
	}
	col.Status = next
	return nil
}

// stageSeed derives the random seed of one stage run from the world seed,
// the column position and the stage.
func stageSeed(seed int64, pos world.ChunkPos, status chunk.Status) uint64 {
	var b [17]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(uint64(seed) >> (8 * i))
	}
	for i := 0; i < 4; i++ {
		b[8+i] = byte(uint32(pos[0]) >> (8 * i))
		b[12+i] = byte(uint32(pos[1]) >> (8 * i))
	}
	b[16] = byte(status)
	return xxhash.Sum64(b[:])
}

// Context carries the inputs of a single stage run.
type Context struct {
	// Pos is the position of the column being generated.
	Pos world.ChunkPos
	// Col is the column being generated. The stage mutates it freely.
	Col *chunk.Column
	// Seed is the world seed.
	Seed int64
	// Rand is a random source deterministic in (seed, position, stage).
	Rand *rand.Rand

	src world.ColumnSource
}

// Require returns the read-only column at pos once it has reached at least
// the target status. The target must be strictly below the status the
// calling stage advances to, which keeps cross-column recursion bounded.
func (ctx *Context) Require(pos world.ChunkPos, target chunk.Status) (*chunk.Column, error) {
	return ctx.src.RequireStatus(pos, target)
}
