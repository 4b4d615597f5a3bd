package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hearthvox/hearth/server/block/cube"
)

// ChunkPos holds the position of a chunk. The type is provided as a utility
// struct for keeping track of a chunk's position. Chunks do not themselves
// keep track of that. Chunk positions are different from block positions in
// the way that increasing the X/Z by one means increasing the absolute value
// on the X/Z axis in terms of blocks by 16.
type ChunkPos [2]int32

// String implements fmt.Stringer and returns (x, z).
func (p ChunkPos) String() string {
	return fmt.Sprintf("(%v, %v)", p[0], p[1])
}

// X returns the X coordinate of the chunk position.
func (p ChunkPos) X() int32 {
	return p[0]
}

// Z returns the Z coordinate of the chunk position.
func (p ChunkPos) Z() int32 {
	return p[1]
}

// Less orders chunk positions for deterministic iteration: by X first, Z
// second.
func (p ChunkPos) Less(other ChunkPos) bool {
	return p[0] < other[0] || (p[0] == other[0] && p[1] < other[1])
}

// chunkPosFromVec3 returns the ChunkPos of the chunk that a world position is
// in.
func chunkPosFromVec3(vec mgl64.Vec3) ChunkPos {
	return ChunkPos{
		int32(math.Floor(vec[0])) >> 4,
		int32(math.Floor(vec[2])) >> 4,
	}
}

// chunkPosFromBlockPos returns the ChunkPos of the chunk that a block
// position is in.
func chunkPosFromBlockPos(p cube.Pos) ChunkPos {
	return ChunkPos{int32(p[0] >> 4), int32(p[2] >> 4)}
}
