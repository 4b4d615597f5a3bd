package overworld

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
	"github.com/hearthvox/hearth/server/world/generate"
)

// structureStarts plans the structures starting in a column. Whether a ruin
// starts at a position is a pure function of the seed, so the stage itself
// records nothing; it exists so neighbouring columns can order their
// reference collection after it.
type structureStarts struct{ t *terrain }

func (structureStarts) Target() chunk.Status { return chunk.StatusStructureStarts }

func (s structureStarts) Run(*generate.Context) error { return nil }

// hasRuin reports whether a ruined well starts in the column at pos.
func (t *terrain) hasRuin(pos world.ChunkPos) bool {
	h := uint64(int64(pos[0])*341873128712 ^ int64(pos[1])*132897987541 ^ t.seed)
	return rand.New(rand.NewPCG(h, h>>32)).IntN(80) == 0
}

// structureReferences orders a column after the structure planning of the
// eight columns around it, so a structure reaching across a border is placed
// from a consistent plan on both sides.
type structureReferences struct{ t *terrain }

func (structureReferences) Target() chunk.Status { return chunk.StatusStructureReferences }

func (s structureReferences) Run(ctx *generate.Context) error {
	for dx := int32(-1); dx <= 1; dx++ {
		for dz := int32(-1); dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			pos := world.ChunkPos{ctx.Pos[0] + dx, ctx.Pos[1] + dz}
			if _, err := ctx.Require(pos, chunk.StatusStructureStarts); err != nil {
				return err
			}
		}
	}
	return nil
}

// biomesStage assigns every voxel its biome.
type biomesStage struct{ t *terrain }

func (biomesStage) Target() chunk.Status { return chunk.StatusBiomes }

func (s biomesStage) Run(ctx *generate.Context) error {
	c := ctx.Col.Chunk
	r := c.Range()
	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			b := uint32(s.t.biomeAt(blockCoord(ctx.Pos[0], x), blockCoord(ctx.Pos[1], z)))
			for y := r[0]; y <= r[1]; y++ {
				c.SetBiome(x, int16(y), z, b)
			}
		}
	}
	return nil
}

// noiseStage fills the base terrain: a bedrock floor, stone where the
// density field is positive and water up to sea level.
type noiseStage struct{ t *terrain }

func (noiseStage) Target() chunk.Status { return chunk.StatusNoise }

func (s noiseStage) Run(ctx *generate.Context) error {
	c := ctx.Col.Chunk
	r := c.Range()
	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			wx, wz := blockCoord(ctx.Pos[0], x), blockCoord(ctx.Pos[1], z)
			c.SetBlock(x, int16(r[0]), z, s.t.rids.bedrock)
			for y := r[0] + 1; y <= terrainTop; y++ {
				if s.t.density(wx, y, wz) > 0 {
					c.SetBlock(x, int16(y), z, s.t.rids.stone)
				} else if y <= seaLevel {
					c.SetBlock(x, int16(y), z, s.t.rids.water)
				}
			}
		}
	}
	return nil
}

// surfaceStage replaces the top stone layers of each column with the ground
// cover of its biome.
type surfaceStage struct{ t *terrain }

func (surfaceStage) Target() chunk.Status { return chunk.StatusSurface }

func (s surfaceStage) Run(ctx *generate.Context) error {
	c := ctx.Col.Chunk
	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			top := topSolid(c, x, z, s.t.rids)
			if top == int16(c.Range()[0]) {
				continue
			}
			b := s.t.biomeAt(blockCoord(ctx.Pos[0], x), blockCoord(ctx.Pos[1], z))
			cover := b.cover(s.t, top >= seaLevel)
			for i, rid := range cover {
				y := top - int16(i)
				if y <= int16(c.Range()[0]) || c.Block(x, y, z) != s.t.rids.stone {
					break
				}
				c.SetBlock(x, y, z, rid)
			}
		}
	}
	return nil
}

// carversStage cuts cave systems out of the terrain. Columns below sea level
// are left untouched so caves never breach the ocean floor.
type carversStage struct{ t *terrain }

func (carversStage) Target() chunk.Status { return chunk.StatusCarvers }

func (s carversStage) Run(ctx *generate.Context) error {
	c := ctx.Col.Chunk
	r := c.Range()
	lavaBelow := r[0] + 12
	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			if topSolid(c, x, z, s.t.rids) < seaLevel {
				continue
			}
			wx, wz := blockCoord(ctx.Pos[0], x), blockCoord(ctx.Pos[1], z)
			for y := r[0] + 6; y <= terrainTop; y++ {
				if !s.t.caveAt(wx, y, wz) {
					continue
				}
				rid := c.Block(x, int16(y), z)
				if rid != s.t.rids.stone && rid != s.t.rids.dirt && rid != s.t.rids.grass {
					continue
				}
				if y <= lavaBelow {
					c.SetBlock(x, int16(y), z, s.t.rids.lava)
				} else {
					c.SetBlock(x, int16(y), z, s.t.rids.air)
				}
			}
		}
	}
	return nil
}

// oreType describes one ore vein kind placed by the features stage.
type oreType struct {
	rid        uint32
	tries      int
	size       int
	minY, maxY int
}

// featuresStage decorates the terrain: ore veins, trees, tall grass and the
// ruined wells planned by the structure stages.
type featuresStage struct{ t *terrain }

func (featuresStage) Target() chunk.Status { return chunk.StatusFeatures }

func (s featuresStage) Run(ctx *generate.Context) error {
	s.placeOres(ctx)
	s.placeTrees(ctx)
	s.placeGrass(ctx)
	s.placeRuins(ctx)
	return nil
}

func (s featuresStage) placeOres(ctx *generate.Context) {
	c := ctx.Col.Chunk
	r := c.Range()
	for _, ore := range []oreType{
		{rid: s.t.rids.coalOre, tries: 20, size: 16, minY: r[0] + 1, maxY: 128},
		{rid: s.t.rids.ironOre, tries: 20, size: 8, minY: r[0] + 1, maxY: 64},
		{rid: s.t.rids.gravel, tries: 8, size: 16, minY: r[0] + 1, maxY: 128},
		{rid: s.t.rids.dirt, tries: 16, size: 24, minY: r[0] + 1, maxY: 128},
	} {
		for n := 0; n < ore.tries; n++ {
			x, z := ctx.Rand.IntN(16), ctx.Rand.IntN(16)
			y := ore.minY + ctx.Rand.IntN(ore.maxY-ore.minY)
			for i := 0; i < ore.size; i++ {
				bx, by, bz := x+ctx.Rand.IntN(3)-1, y+ctx.Rand.IntN(3)-1, z+ctx.Rand.IntN(3)-1
				if bx < 0 || bx > 15 || bz < 0 || bz > 15 || by <= r[0] || by > r[1] {
					continue
				}
				if c.Block(uint8(bx), int16(by), uint8(bz)) == s.t.rids.stone {
					c.SetBlock(uint8(bx), int16(by), uint8(bz), ore.rid)
				}
				x, y, z = bx, by, bz
			}
		}
	}
}

func (s featuresStage) placeTrees(ctx *generate.Context) {
	c := ctx.Col.Chunk
	// Trees stay two blocks clear of the column border so their leaves never
	// have to reach into a neighbouring column.
	for x := uint8(2); x <= 13; x++ {
		for z := uint8(2); z <= 13; z++ {
			b := s.t.biomeAt(blockCoord(ctx.Pos[0], x), blockCoord(ctx.Pos[1], z))
			if b.trees() == 0 || ctx.Rand.IntN(256) >= b.trees() {
				continue
			}
			ground := topSolid(c, x, z, s.t.rids)
			if c.Block(x, ground, z) != s.t.rids.grass {
				continue
			}
			s.growTree(ctx, x, ground+1, z)
		}
	}
}

func (s featuresStage) growTree(ctx *generate.Context, x uint8, y int16, z uint8) {
	c := ctx.Col.Chunk
	height := int16(4 + ctx.Rand.IntN(3))
	if int(y+height+1) > c.Range()[1] {
		return
	}
	for ly := y + height - 2; ly <= y+height; ly++ {
		radius := int16(2)
		if ly == y+height {
			radius = 1
		}
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				lx, lz := int16(x)+dx, int16(z)+dz
				if c.Block(uint8(lx), ly, uint8(lz)) == s.t.rids.air {
					c.SetBlock(uint8(lx), ly, uint8(lz), s.t.rids.leaves)
				}
			}
		}
	}
	for ly := y; ly < y+height; ly++ {
		c.SetBlock(x, ly, z, s.t.rids.log)
	}
}

func (s featuresStage) placeGrass(ctx *generate.Context) {
	c := ctx.Col.Chunk
	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			b := s.t.biomeAt(blockCoord(ctx.Pos[0], x), blockCoord(ctx.Pos[1], z))
			if b.grassPatches() == 0 || ctx.Rand.IntN(256) >= b.grassPatches() {
				continue
			}
			ground := topSolid(c, x, z, s.t.rids)
			if c.Block(x, ground, z) == s.t.rids.grass && c.Block(x, ground+1, z) == s.t.rids.air {
				c.SetBlock(x, ground+1, z, s.t.rids.tallGrass)
			}
		}
	}
}

// placeRuins places the part of every nearby ruined well that falls inside
// this column. Each side of a border places its own part from the same plan,
// so the structure joins up without either column writing into the other.
func (s featuresStage) placeRuins(ctx *generate.Context) {
	c := ctx.Col.Chunk
	for dx := int32(-1); dx <= 1; dx++ {
		for dz := int32(-1); dz <= 1; dz++ {
			start := world.ChunkPos{ctx.Pos[0] + dx, ctx.Pos[1] + dz}
			if !s.t.hasRuin(start) {
				continue
			}
			// The well is anchored at a fixed offset within its column.
			cx, cz := int64(start[0])*16+8, int64(start[1])*16+8
			for wx := cx - 2; wx <= cx+2; wx++ {
				for wz := cz - 2; wz <= cz+2; wz++ {
					lx, lz := wx-int64(ctx.Pos[0])*16, wz-int64(ctx.Pos[1])*16
					if lx < 0 || lx > 15 || lz < 0 || lz > 15 {
						continue
					}
					x, z := uint8(lx), uint8(lz)
					ground := topSolid(c, x, z, s.t.rids)
					if ground <= int16(c.Range()[0]) || ground < seaLevel {
						continue
					}
					onRim := wx == cx-2 || wx == cx+2 || wz == cz-2 || wz == cz+2
					if onRim {
						c.SetBlock(x, ground+1, z, s.t.rids.stone)
					} else {
						c.SetBlock(x, ground, z, s.t.rids.water)
					}
				}
			}
		}
	}
}

// lightStage runs the initial light propagation of the column.
type lightStage struct{}

func (lightStage) Target() chunk.Status { return chunk.StatusLight }

func (lightStage) Run(ctx *generate.Context) error {
	chunk.CalculateLight(chunk.LightArea([]*chunk.Chunk{ctx.Col.Chunk}, int(ctx.Pos[0]), int(ctx.Pos[1])))
	return nil
}

// spawnStage seeds the initial passive entities of a column.
type spawnStage struct{ t *terrain }

func (spawnStage) Target() chunk.Status { return chunk.StatusSpawn }

func (s spawnStage) Run(ctx *generate.Context) error {
	if ctx.Rand.IntN(8) != 0 {
		return nil
	}
	c := ctx.Col.Chunk
	ground := topSolid(c, 8, 8, s.t.rids)
	if c.Block(8, ground, 8) != s.t.rids.grass {
		return nil
	}
	var id uuid.UUID
	binary.LittleEndian.PutUint64(id[:8], ctx.Rand.Uint64())
	binary.LittleEndian.PutUint64(id[8:], ctx.Rand.Uint64())
	id[6] = id[6]&0x0f | 0x40
	id[8] = id[8]&0x3f | 0x80

	ctx.Col.Entities = append(ctx.Col.Entities, chunk.Entity{
		ID:   id,
		Kind: "hearth:pig",
		Pos:  mgl64.Vec3{float64(int64(ctx.Pos[0])*16+8) + 0.5, float64(ground + 1), float64(int64(ctx.Pos[1])*16+8) + 0.5},
		Data: map[string]any{"health": 10.0},
	})
	return nil
}

// finalizeStage compacts the column's storage before it reaches its terminal
// status.
type finalizeStage struct{}

func (finalizeStage) Target() chunk.Status { return chunk.StatusFull }

func (finalizeStage) Run(ctx *generate.Context) error {
	ctx.Col.Chunk.Compact()
	return nil
}

// blockCoord converts a chunk coordinate and a local offset to a world block
// coordinate.
func blockCoord(c int32, local uint8) int64 {
	return int64(c)*16 + int64(local)
}

// topSolid returns the Y coordinate of the highest terrain block of a
// column, skipping air, water and foliage.
func topSolid(c *chunk.Chunk, x, z uint8, rids blockSet) int16 {
	for y := int16(terrainTop); y > int16(c.Range()[0]); y-- {
		rid := c.Block(x, y, z)
		if rid != rids.air && rid != rids.water && rid != rids.leaves && rid != rids.tallGrass && rid != rids.log {
			return y
		}
	}
	return int16(c.Range()[0])
}
