package chunk

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/hearthvox/hearth/server/block/cube"
)

// Status marks how far a column has progressed through the generation
// pipeline. A column's Status only ever advances.
type Status uint8

const (
	// StatusEmpty is the status of a column that holds no generated data at
	// all.
	StatusEmpty Status = iota
	// StatusStructureStarts is reached once structure placement has been
	// planned for the column.
	StatusStructureStarts
	// StatusStructureReferences is reached once references to structures
	// starting in neighbouring columns have been collected.
	StatusStructureReferences
	// StatusBiomes is reached once every voxel has a biome assigned.
	StatusBiomes
	// StatusNoise is reached once the base terrain density fill has run.
	StatusNoise
	// StatusSurface is reached once surface rules have replaced the top
	// layers of the terrain.
	StatusSurface
	// StatusCarvers is reached once caves and ravines have been carved out.
	StatusCarvers
	// StatusFeatures is reached once decoration features have been placed.
	StatusFeatures
	// StatusLight is reached once the initial light propagation has run.
	StatusLight
	// StatusSpawn is reached once the initial entity spawn seeding has run.
	StatusSpawn
	// StatusFull is the terminal status of a fully generated column.
	StatusFull
)

// String returns the name of the Status as used in logs and the region tool.
func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

var statusNames = [...]string{
	"empty", "structure_starts", "structure_references", "biomes", "noise",
	"surface", "carvers", "features", "light", "spawn", "full",
}

// BlockEntity is extra state attached to a single block position, such as the
// inventory of a container.
type BlockEntity struct {
	Pos  cube.Pos
	Kind string
	Data map[string]any
}

// Entity is an entity resident in a column, stored by value. Any reference an
// entity keeps to its surroundings is position based; entities never hold
// pointers back into the column.
type Entity struct {
	ID   uuid.UUID
	Kind string
	Pos  mgl64.Vec3
	Data map[string]any
}

// ScheduledTick is a block update scheduled at a specific tick, persisted
// with the column it is positioned in.
type ScheduledTick struct {
	Pos   cube.Pos
	Block uint32
	Tick  int64
}

// Column is the unit of storage and caching: the chunk data of one position
// along with everything that lives inside it.
type Column struct {
	Chunk         *Chunk
	BlockEntities []BlockEntity
	Entities      []Entity
	Ticks         []ScheduledTick
	Status        Status
}

// NewColumn returns a Column around the Chunk passed with StatusEmpty.
func NewColumn(c *Chunk) *Column {
	return &Column{Chunk: c}
}
