package region

import (
	"testing"

	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderColumnRoundTrip(t *testing.T) {
	for name, format := range formats {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			p, err := NewProvider(dir, Config{Format: format})
			require.NoError(t, err)

			stone, ok := world.BlockRuntimeID("hearth:stone", nil)
			require.True(t, ok)

			col := chunk.NewColumn(chunk.New(world.AirRuntimeID(), world.Overworld.Range()))
			col.Chunk.SetBlock(3, 20, 5, stone)
			col.Status = chunk.StatusFull
			pos := world.ChunkPos{-4, 31}

			require.NoError(t, p.StoreColumn(pos, col))

			// Each format keeps its own compressor; the payload's tag is what
			// reads decode by.
			raw, err := p.Store().Read(pos[0], pos[1])
			require.NoError(t, err)
			require.NotEmpty(t, raw)
			assert.EqualValues(t, p.compression(), raw[0])
			require.NoError(t, p.Close())

			p, err = NewProvider(dir, Config{Format: format})
			require.NoError(t, err)
			defer p.Close()

			got, err := p.LoadColumn(pos)
			require.NoError(t, err)
			assert.Equal(t, stone, got.Chunk.Block(3, 20, 5))
			assert.Equal(t, chunk.StatusFull, got.Status)

			_, err = p.LoadColumn(world.ChunkPos{9, 9})
			assert.ErrorIs(t, err, world.ErrNotFound)
		})
	}
}

func TestProviderMalformedColumn(t *testing.T) {
	p, err := NewProvider(t.TempDir(), Config{})
	require.NoError(t, err)
	defer p.Close()

	pos := world.ChunkPos{0, 0}
	require.NoError(t, p.Store().Write(pos[0], pos[1], []byte{0xff, 0xfe, 0xfd}))

	_, err = p.LoadColumn(pos)
	require.Error(t, err)
	assert.ErrorAs(t, err, &chunk.MalformedError{}, "undecodable stored data must surface as malformed")
}

func TestProviderSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewProvider(dir, Config{})
	require.NoError(t, err)
	defer p.Close()

	set := &world.Settings{
		Name:        "Hearth",
		Spawn:       cube.Pos{16, 80, -32},
		Seed:        424242,
		Time:        6000,
		TimeCycle:   true,
		CurrentTick: 120,
	}
	require.NoError(t, p.SaveSettings(set))

	loaded := &world.Settings{Name: "World", TimeCycle: false}
	p.Settings(loaded)
	assert.Equal(t, "Hearth", loaded.Name)
	assert.Equal(t, cube.Pos{16, 80, -32}, loaded.Spawn)
	assert.Equal(t, int64(424242), loaded.Seed)
	assert.Equal(t, int64(6000), loaded.Time)
	assert.True(t, loaded.TimeCycle)
	assert.Equal(t, int64(120), loaded.CurrentTick)
}

func TestProviderSettingsDefaultsWhenAbsent(t *testing.T) {
	p, err := NewProvider(t.TempDir(), Config{})
	require.NoError(t, err)
	defer p.Close()

	set := &world.Settings{Name: "World", TimeCycle: true}
	p.Settings(set)
	assert.Equal(t, "World", set.Name, "absent settings must leave the defaults untouched")
	assert.True(t, set.TimeCycle)
}
