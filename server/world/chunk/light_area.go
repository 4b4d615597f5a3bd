package chunk

import (
	"github.com/hearthvox/hearth/server/block/cube"
)

// Area is a square area of chunks on which light is calculated. Positions in
// an Area are global block positions; chunks missing from the area bound the
// propagation.
type Area struct {
	baseX, baseZ int
	w            int
	c            []*Chunk
	r            cube.Range
	noSky        bool
}

// LightArea creates an Area holding the chunks passed. The chunks must form a
// square (len(c) = w*w) ordered by x first, z second, with x and z holding
// the chunk coordinates of the lowest corner chunk.
func LightArea(c []*Chunk, x, z int) *Area {
	w := 1
	for w*w < len(c) {
		w++
	}
	if w*w != len(c) {
		panic("chunk.LightArea: chunks passed do not form a square")
	}
	return &Area{c: c, w: w, baseX: x, baseZ: z, r: c[0].Range()}
}

// DisableSkyLight stops the Area from seeding or propagating the sky channel,
// used for dimensions the sky does not reach into.
func (a *Area) DisableSkyLight() *Area {
	a.noSky = true
	return a
}

// contains checks if a block position is within the Area horizontally and
// within the vertical range.
func (a *Area) contains(pos cube.Pos) bool {
	cx, cz := (pos[0]>>4)-a.baseX, (pos[2]>>4)-a.baseZ
	return cx >= 0 && cx < a.w && cz >= 0 && cz < a.w && pos[1] >= a.r[0] && pos[1] <= a.r[1]
}

// chunk returns the Chunk that the block position passed is in. The position
// is assumed to be within the Area.
func (a *Area) chunk(pos cube.Pos) *Chunk {
	cx, cz := (pos[0]>>4)-a.baseX, (pos[2]>>4)-a.baseZ
	return a.c[cx*a.w+cz]
}

// block returns the block runtime ID at a position in the Area.
func (a *Area) block(pos cube.Pos) uint32 {
	return a.chunk(pos).Block(uint8(pos[0]), int16(pos[1]), uint8(pos[2]))
}

// opacity returns the amount of light filtered at a position.
func (a *Area) opacity(pos cube.Pos) uint8 {
	return FilteringBlocks[a.block(pos)]
}

// emission returns the light emitted by the block at a position.
func (a *Area) emission(pos cube.Pos) uint8 {
	return LightBlocks[a.block(pos)]
}

// light returns the light level of the channel passed at a position.
func (a *Area) light(pos cube.Pos, ch channel) uint8 {
	c := a.chunk(pos)
	if ch == skyChannel {
		return c.SkyLight(uint8(pos[0]), int16(pos[1]), uint8(pos[2]))
	}
	return c.BlockLight(uint8(pos[0]), int16(pos[1]), uint8(pos[2]))
}

// setLight sets the light level of the channel passed at a position.
func (a *Area) setLight(pos cube.Pos, ch channel, level uint8) {
	c := a.chunk(pos)
	if ch == skyChannel {
		c.setSkyLight(uint8(pos[0]), int16(pos[1]), uint8(pos[2]), level)
		return
	}
	c.setBlockLight(uint8(pos[0]), int16(pos[1]), uint8(pos[2]), level)
}
