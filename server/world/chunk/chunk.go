package chunk

import (
	"github.com/hearthvox/hearth/server/block/cube"
)

// Chunk is the voxel grid of a single column position. It consists of one
// SubChunk for every vertical section slot within the Range: a Chunk never
// has gaps in its section sequence.
type Chunk struct {
	r   cube.Range
	air uint32

	sub []*SubChunk

	// recalculateHeightMap is true if the heightmaps below need to be
	// recalculated before they are next read.
	recalculateHeightMap bool
	// heightMap holds the y value of the highest non-air block for each of
	// the 256 (x, z) positions of the chunk.
	heightMap HeightMap
	// lightBlockers holds the y value of the highest fully light-blocking
	// block for each (x, z) position, used to seed sky light.
	lightBlockers HeightMap
}

// New initialises a new Chunk filled with the air runtime ID passed, spanning
// the Range r.
func New(air uint32, r cube.Range) *Chunk {
	n := (r.Height() >> 4) + 1
	sub := make([]*SubChunk, n)
	for i := range sub {
		sub[i] = NewSubChunk(air)
	}
	return &Chunk{
		r:                    r,
		air:                  air,
		sub:                  sub,
		recalculateHeightMap: true,
		heightMap:            make(HeightMap, 256),
		lightBlockers:        make(HeightMap, 256),
	}
}

// Range returns the cube.Range of the Chunk as passed to New.
func (c *Chunk) Range() cube.Range {
	return c.r
}

// Air returns the runtime ID of air as used by the Chunk.
func (c *Chunk) Air() uint32 {
	return c.air
}

// Sub returns all sections of the Chunk, from bottom to top.
func (c *Chunk) Sub() []*SubChunk {
	return c.sub
}

// SubIndex returns the section index that the y coordinate passed falls in.
func (c *Chunk) SubIndex(y int16) int16 {
	return (y - int16(c.r[0])) >> 4
}

// SubY returns the base y coordinate of the section at the index passed.
func (c *Chunk) SubY(index int16) int16 {
	return (index << 4) + int16(c.r[0])
}

// Block returns the runtime ID of the block at a chunk-local x and z and a
// world y. If the y value is out of the chunk's range, the air runtime ID is
// returned.
func (c *Chunk) Block(x uint8, y int16, z uint8) uint32 {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return c.air
	}
	return c.sub[c.SubIndex(y)].Block(x&15, uint8(y)&15, z&15)
}

// SetBlock sets the runtime ID of a block at a chunk-local x and z and a
// world y. Out-of-range y values are ignored.
func (c *Chunk) SetBlock(x uint8, y int16, z uint8, rid uint32) {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return
	}
	c.sub[c.SubIndex(y)].SetBlock(x&15, uint8(y)&15, z&15, rid)
	c.recalculateHeightMap = true
}

// Biome returns the biome ID at a chunk-local x and z and a world y.
func (c *Chunk) Biome(x uint8, y int16, z uint8) uint32 {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return 0
	}
	return c.sub[c.SubIndex(y)].Biome(x&15, uint8(y)&15, z&15)
}

// SetBiome sets the biome ID at a chunk-local x and z and a world y.
func (c *Chunk) SetBiome(x uint8, y int16, z uint8, biome uint32) {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return
	}
	c.sub[c.SubIndex(y)].SetBiome(x&15, uint8(y)&15, z&15, biome)
}

// HighestBlock returns the y value of the highest non-air block at a
// chunk-local x and z. If the column consists purely of air, the minimum y
// value of the chunk's range is returned.
func (c *Chunk) HighestBlock(x, z uint8) int16 {
	if c.recalculateHeightMap {
		c.calculateHeightMaps()
	}
	return c.heightMap.At(x, z)
}

// HighestLightBlocker returns the y value of the highest block that fully
// blocks light at a chunk-local x and z.
func (c *Chunk) HighestLightBlocker(x, z uint8) int16 {
	if c.recalculateHeightMap {
		c.calculateHeightMaps()
	}
	return c.lightBlockers.At(x, z)
}

// Light returns the effective light level at a position: the highest of the
// sky and block light channels.
func (c *Chunk) Light(x uint8, y int16, z uint8) uint8 {
	return max(c.SkyLight(x, y, z), c.BlockLight(x, y, z))
}

// SkyLight returns the sky light level at a position within the Chunk.
func (c *Chunk) SkyLight(x uint8, y int16, z uint8) uint8 {
	if y < int16(c.r[0]) {
		return 0
	}
	if y > int16(c.r[1]) {
		// Above the world, so full sky light.
		return 15
	}
	return c.sub[c.SubIndex(y)].SkyLight(x&15, uint8(y)&15, z&15)
}

// BlockLight returns the block light level at a position within the Chunk.
func (c *Chunk) BlockLight(x uint8, y int16, z uint8) uint8 {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return 0
	}
	return c.sub[c.SubIndex(y)].BlockLight(x&15, uint8(y)&15, z&15)
}

// setSkyLight sets the sky light level at a position within the Chunk.
func (c *Chunk) setSkyLight(x uint8, y int16, z uint8, level uint8) {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return
	}
	c.sub[c.SubIndex(y)].SetSkyLight(x&15, uint8(y)&15, z&15, level)
}

// setBlockLight sets the block light level at a position within the Chunk.
func (c *Chunk) setBlockLight(x uint8, y int16, z uint8, level uint8) {
	if y < int16(c.r[0]) || y > int16(c.r[1]) {
		return
	}
	c.sub[c.SubIndex(y)].SetBlockLight(x&15, uint8(y)&15, z&15, level)
}

// Compact compacts the Chunk as much as possible, getting rid of any palette
// values that are no longer referenced. Compact is usually called before a
// Chunk is encoded for saving.
func (c *Chunk) Compact() {
	for _, sub := range c.sub {
		sub.compact()
	}
}

// calculateHeightMaps rebuilds both heightmaps of the Chunk by scanning every
// column top to bottom.
func (c *Chunk) calculateHeightMaps() {
	c.recalculateHeightMap = false

	highestNonEmpty := -1
	for i := len(c.sub) - 1; i >= 0; i-- {
		if !c.sub[i].Empty() {
			highestNonEmpty = i
			break
		}
	}
	if highestNonEmpty == -1 {
		for i := range c.heightMap {
			c.heightMap[i] = int16(c.r[0])
			c.lightBlockers[i] = int16(c.r[0]) - 1
		}
		return
	}
	top := c.SubY(int16(highestNonEmpty)) + 15

	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			height, blocker := int16(c.r[0]), int16(c.r[0])-1
			for y := top; y >= int16(c.r[0]); y-- {
				rid := c.Block(x, y, z)
				if rid == c.air {
					continue
				}
				if height == int16(c.r[0]) {
					height = y
				}
				if FilteringBlocks[rid] == 15 {
					blocker = y
					break
				}
			}
			c.heightMap.Set(x, z, height)
			c.lightBlockers.Set(x, z, blocker)
		}
	}
}
