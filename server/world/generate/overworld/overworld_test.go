package overworld

import (
	"testing"

	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
	"github.com/hearthvox/hearth/server/world/generate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// genSource resolves neighbour requirements by generating the requested
// columns through the same pipeline, like the world's cache would.
type genSource struct {
	p    *generate.Pipeline
	cols map[world.ChunkPos]*chunk.Column
}

func newGenSource(p *generate.Pipeline) *genSource {
	return &genSource{p: p, cols: make(map[world.ChunkPos]*chunk.Column)}
}

func (s *genSource) RequireStatus(pos world.ChunkPos, target chunk.Status) (*chunk.Column, error) {
	col, ok := s.cols[pos]
	if !ok {
		col = chunk.NewColumn(chunk.New(world.AirRuntimeID(), world.Overworld.Range()))
		s.cols[pos] = col
	}
	for col.Status < target {
		if err := s.p.Generate(pos, col, s); err != nil {
			return nil, err
		}
	}
	return col, nil
}

func generateFull(t *testing.T, seed int64, pos world.ChunkPos) *chunk.Column {
	t.Helper()
	src := newGenSource(New(seed))
	col, err := src.RequireStatus(pos, chunk.StatusFull)
	require.NoError(t, err)
	return col
}

func TestGenerateDeterministic(t *testing.T) {
	for _, pos := range []world.ChunkPos{{0, 0}, {7, -3}, {-12, 25}} {
		a := generateFull(t, 112358, pos)
		b := generateFull(t, 112358, pos)

		ab, err := chunk.Encode(a, chunk.CompressionNone)
		require.NoError(t, err)
		bb, err := chunk.Encode(b, chunk.CompressionNone)
		require.NoError(t, err)
		assert.Equal(t, ab, bb, "column at %v must generate identically for the same seed", pos)
	}
}

func TestGenerateSeedChangesTerrain(t *testing.T) {
	a, err := chunk.Encode(generateFull(t, 1, world.ChunkPos{0, 0}), chunk.CompressionNone)
	require.NoError(t, err)
	b, err := chunk.Encode(generateFull(t, 2, world.ChunkPos{0, 0}), chunk.CompressionNone)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerateTerrainShape(t *testing.T) {
	col := generateFull(t, 995521, world.ChunkPos{3, 3})
	c := col.Chunk
	r := c.Range()

	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			assert.Equal(t, mustRID(t, "hearth:bedrock"), c.Block(x, int16(r[0]), z), "bottom layer must be bedrock")

			top := topSolid(c, x, z, resolveBlocks())
			assert.Greater(t, int(top), r[0], "every column must have terrain above the bedrock floor")
			for y := int16(terrainTop) + 1; y < int16(terrainTop)+5; y++ {
				assert.Equal(t, world.AirRuntimeID(), c.Block(x, y, z), "no terrain may generate above the terrain ceiling")
			}
		}
	}
	assert.Equal(t, chunk.StatusFull, col.Status)
}

func TestGenerateStatusOrder(t *testing.T) {
	src := newGenSource(New(8))
	col := chunk.NewColumn(chunk.New(world.AirRuntimeID(), world.Overworld.Range()))

	for want := chunk.StatusStructureStarts; want <= chunk.StatusFull; want++ {
		require.NoError(t, src.p.Generate(world.ChunkPos{0, 0}, col, src))
		assert.Equal(t, want, col.Status)
	}
}

func mustRID(t *testing.T, name string) uint32 {
	t.Helper()
	rid, ok := world.BlockRuntimeID(name, nil)
	require.True(t, ok)
	return rid
}
