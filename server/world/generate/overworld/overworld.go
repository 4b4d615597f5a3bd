// Package overworld implements the terrain pipeline of the overworld
// dimension: noise-based terrain with biome-driven elevation and surface
// rules, caves, ores, trees and small ruin structures.
package overworld

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/generate"
)

const (
	// seaLevel is the Y level up to which unfilled terrain is flooded.
	seaLevel = 62
	// terrainTop is the Y level above which no terrain is generated.
	terrainTop = 140
	// smoothSize is the radius of the kernel used to smooth biome elevation
	// at biome borders.
	smoothSize = 2
)

// gaussianKernel weighs the biome elevations around a column when its height
// bounds are computed, so terrain slopes across biome borders instead of
// stepping.
var gaussianKernel [2*smoothSize + 1][2*smoothSize + 1]float64

func init() {
	for x := -smoothSize; x <= smoothSize; x++ {
		for z := -smoothSize; z <= smoothSize; z++ {
			gaussianKernel[x+smoothSize][z+smoothSize] = 4 * math.Exp(-float64(x*x+z*z)/8)
		}
	}
}

// blockSet holds the runtime IDs the generator places, resolved once when
// the pipeline is built.
type blockSet struct {
	air, bedrock, stone, dirt, grass, sand, gravel, water uint32
	log, leaves, tallGrass, coalOre, ironOre, lava, snow  uint32
}

func resolveBlocks() blockSet {
	rid := func(name string) uint32 {
		id, ok := world.BlockRuntimeID(name, nil)
		if !ok {
			panic("overworld: block " + name + " is not registered")
		}
		return id
	}
	return blockSet{
		air:       world.AirRuntimeID(),
		bedrock:   rid("hearth:bedrock"),
		stone:     rid("hearth:stone"),
		dirt:      rid("hearth:dirt"),
		grass:     rid("hearth:grass_block"),
		sand:      rid("hearth:sand"),
		gravel:    rid("hearth:gravel"),
		water:     rid("hearth:water"),
		log:       rid("hearth:oak_log"),
		leaves:    rid("hearth:oak_leaves"),
		tallGrass: rid("hearth:tall_grass"),
		coalOre:   rid("hearth:coal_ore"),
		ironOre:   rid("hearth:iron_ore"),
		lava:      rid("hearth:lava"),
		snow:      rid("hearth:snow"),
	}
}

// terrain holds the seed-bound state shared by all stages of one pipeline.
type terrain struct {
	seed int64
	rids blockSet

	// continental drives both the biome layout and the large-scale height
	// trend, temperature separates the hot and cold biome bands and detail
	// shapes overhangs and cave systems.
	continental *perlin.Perlin
	temperature *perlin.Perlin
	detail      *perlin.Perlin
}

// New creates the generation pipeline of the overworld for the seed passed.
func New(seed int64) *generate.Pipeline {
	t := &terrain{
		seed:        seed,
		rids:        resolveBlocks(),
		continental: perlin.NewPerlin(2, 2, 3, seed),
		temperature: perlin.NewPerlin(2, 2, 2, seed+1),
		detail:      perlin.NewPerlin(2, 2, 3, seed+2),
	}
	return generate.New(seed,
		structureStarts{t: t},
		structureReferences{t: t},
		biomesStage{t: t},
		noiseStage{t: t},
		surfaceStage{t: t},
		carversStage{t: t},
		featuresStage{t: t},
		lightStage{},
		spawnStage{t: t},
		finalizeStage{},
	)
}

// biomeAt picks the biome of a block column. The position is jittered with a
// position hash before sampling, which roughens the biome borders.
func (t *terrain) biomeAt(x, z int64) biome {
	hash := x*2345803 ^ z*9236449 ^ t.seed
	hash *= hash + 223
	xJitter := hash >> 20 & 3
	zJitter := hash >> 22 & 3
	if xJitter == 3 {
		xJitter = 1
	}
	if zJitter == 3 {
		zJitter = 1
	}
	x, z = x+xJitter-1, z+zJitter-1

	c := t.continental.Noise2D(float64(x)/256, float64(z)/256)
	temp := t.temperature.Noise2D(float64(x)/384, float64(z)/384)
	switch {
	case c < -0.24:
		return biomeOcean
	case c < -0.18:
		return biomeRiver
	case c > 0.3:
		return biomeMountains
	case temp > 0.25:
		return biomeDesert
	case temp < -0.25:
		return biomeSnowy
	case temp > 0:
		return biomeForest
	default:
		return biomePlains
	}
}

// heightBounds returns the smoothed lower and upper terrain bound of a block
// column, weighing the elevation of every biome around it.
func (t *terrain) heightBounds(x, z int64) (lower, upper float64) {
	var minSum, maxSum, weightSum float64
	for sx := int64(-smoothSize); sx <= smoothSize; sx++ {
		for sz := int64(-smoothSize); sz <= smoothSize; sz++ {
			weight := gaussianKernel[sx+smoothSize][sz+smoothSize]
			lo, hi := t.biomeAt(x+sx, z+sz).elevation()
			minSum += float64(lo) * weight
			maxSum += float64(hi) * weight
			weightSum += weight
		}
	}
	return minSum / weightSum, maxSum / weightSum
}

// density returns the terrain density at a voxel; positive density is solid.
func (t *terrain) density(x int64, y int, z int64) float64 {
	lower, upper := t.heightBounds(x, z)
	base := (lower + upper) / 2
	spread := math.Max((upper-lower)/2, 1)
	d := t.detail.Noise3D(float64(x)/64, float64(y)/48, float64(z)/64) * spread
	return d + (base-float64(y))/2
}

// caveAt reports whether the cave field carves the voxel passed out.
func (t *terrain) caveAt(x int64, y int, z int64) bool {
	n := t.detail.Noise3D(float64(x)/36, float64(y)/18+512, float64(z)/36)
	return n > 0.31
}
