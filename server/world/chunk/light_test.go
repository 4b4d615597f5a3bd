package chunk

import (
	"testing"

	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTerrain creates a deterministic 3x3 chunk area: a stone floor up to
// y=20 with a torch, a glowstone block, a leaf block and a stone pillar in the
// centre chunk.
func buildTerrain() []*Chunk {
	chunks := make([]*Chunk, 9)
	for i := range chunks {
		c := New(testAir, testRange)
		for x := uint8(0); x < 16; x++ {
			for z := uint8(0); z < 16; z++ {
				for y := int16(0); y <= 20; y++ {
					c.SetBlock(x, y, z, testStone)
				}
			}
		}
		chunks[i] = c
	}
	centre := chunks[4]
	centre.SetBlock(8, 21, 8, testTorch)
	centre.SetBlock(4, 25, 4, testGlowstone)
	centre.SetBlock(6, 21, 6, testLeaves)
	for y := int16(21); y <= 30; y++ {
		centre.SetBlock(12, y, 12, testStone)
	}
	return chunks
}

// setBlockAt applies a mutation at a global block position within a 3x3 area
// based at chunk (0, 0).
func setBlockAt(chunks []*Chunk, pos cube.Pos, rid uint32) {
	c := chunks[(pos[0]>>4)*3+(pos[2]>>4)]
	c.SetBlock(uint8(pos[0]), int16(pos[1]), uint8(pos[2]), rid)
}

// assertSameLight compares both light channels of two chunk sets voxel by
// voxel.
func assertSameLight(t *testing.T, want, got []*Chunk) {
	t.Helper()
	for cx := 0; cx < 3; cx++ {
		for cz := 0; cz < 3; cz++ {
			w, g := want[cx*3+cz], got[cx*3+cz]
			for x := uint8(0); x < 16; x++ {
				for z := uint8(0); z < 16; z++ {
					for y := int16(testRange[0]); y <= int16(testRange[1]); y++ {
						if ws, gs := w.SkyLight(x, y, z), g.SkyLight(x, y, z); ws != gs {
							t.Fatalf("sky light at (%v, %v, %v): incremental %v, full %v", cx<<4+int(x), y, cz<<4+int(z), gs, ws)
						}
						if wb, gb := w.BlockLight(x, y, z), g.BlockLight(x, y, z); wb != gb {
							t.Fatalf("block light at (%v, %v, %v): incremental %v, full %v", cx<<4+int(x), y, cz<<4+int(z), gb, wb)
						}
					}
				}
			}
		}
	}
}

func TestCalculateLightSky(t *testing.T) {
	chunks := buildTerrain()
	CalculateLight(LightArea(chunks, 0, 0))
	c := chunks[0]

	assert.EqualValues(t, 15, c.SkyLight(5, 21, 5), "open air above the floor")
	assert.EqualValues(t, 0, c.SkyLight(5, 20, 5), "top floor block is opaque")
	assert.EqualValues(t, 0, c.SkyLight(5, 10, 5), "buried in stone")
	// Leaves filter a single level out of the column passing through them.
	assert.EqualValues(t, 14, chunks[4].SkyLight(6, 21, 6))
}

func TestCalculateLightBlock(t *testing.T) {
	chunks := buildTerrain()
	CalculateLight(LightArea(chunks, 0, 0))
	centre := chunks[4]

	assert.EqualValues(t, 14, centre.BlockLight(8, 21, 8), "torch emission")
	assert.EqualValues(t, 13, centre.BlockLight(9, 21, 8), "one step from the torch")
	assert.EqualValues(t, 15, centre.BlockLight(4, 25, 4), "glowstone emission")
	assert.EqualValues(t, 14, centre.BlockLight(4, 26, 4), "one step from the glowstone")
	assert.EqualValues(t, 0, chunks[0].BlockLight(0, 10, 0), "far corner, buried")
}

// relightCase applies the same mutation to two identical pre-lit areas,
// resolves one with a full recalculation and one incrementally, and requires
// both to agree on every voxel.
func relightCase(t *testing.T, pos cube.Pos, rid uint32) {
	full, inc := buildTerrain(), buildTerrain()
	CalculateLight(LightArea(full, 0, 0))
	CalculateLight(LightArea(inc, 0, 0))

	setBlockAt(full, pos, rid)
	setBlockAt(inc, pos, rid)

	CalculateLight(LightArea(full, 0, 0))
	require.True(t, Relight(LightArea(inc, 0, 0), pos), "mutation should be within the incremental budget")

	assertSameLight(t, full, inc)
}

func TestRelightMatchesFull(t *testing.T) {
	for name, c := range map[string]struct {
		pos cube.Pos
		rid uint32
	}{
		"dig into floor":        {cube.Pos{40, 20, 40}, testAir},
		"place shading block":   {cube.Pos{26, 30, 26}, testStone},
		"place torch":           {cube.Pos{40, 21, 10}, testTorch},
		"remove torch":          {cube.Pos{24, 21, 24}, testAir},
		"remove glowstone":      {cube.Pos{20, 25, 20}, testAir},
		"place glass":           {cube.Pos{10, 25, 10}, testGlass},
		"open pillar top":       {cube.Pos{28, 30, 28}, testAir},
		"place leaves over air": {cube.Pos{33, 24, 33}, testLeaves},
	} {
		t.Run(name, func(t *testing.T) {
			relightCase(t, c.pos, c.rid)
		})
	}
}

// TestDisableSkyLight checks a sky-less area keeps its sky channel fully
// dark through both a full calculation and an incremental relight, while the
// block channel behaves as usual.
func TestDisableSkyLight(t *testing.T) {
	chunks := buildTerrain()
	CalculateLight(LightArea(chunks, 0, 0).DisableSkyLight())

	centre := chunks[4]
	assert.EqualValues(t, 0, centre.SkyLight(5, 21, 5), "no sky light above the floor")
	assert.EqualValues(t, 0, chunks[0].SkyLight(0, 30, 0), "no sky light in open air")
	assert.EqualValues(t, 14, centre.BlockLight(8, 21, 8), "torch emission is unaffected")

	// Digging into the floor must not let any sky light in either.
	pos := cube.Pos{40, 20, 40}
	setBlockAt(chunks, pos, testAir)
	require.True(t, Relight(LightArea(chunks, 0, 0).DisableSkyLight(), pos))
	assert.EqualValues(t, 0, chunks[8].SkyLight(8, 20, 8))
}

func TestRelightOutsideArea(t *testing.T) {
	chunks := buildTerrain()
	a := LightArea(chunks, 0, 0)
	CalculateLight(a)

	// Positions outside the area are not the area's responsibility: the
	// relight is a no-op that reports success.
	assert.True(t, Relight(a, cube.Pos{-1, 21, 0}))
	assert.True(t, Relight(a, cube.Pos{0, int(testRange[1]) + 1, 0}))
}

func TestLightAreaNotSquare(t *testing.T) {
	assert.Panics(t, func() {
		LightArea([]*Chunk{New(testAir, testRange), New(testAir, testRange)}, 0, 0)
	})
}
