package mcdb

import (
	"testing"

	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBColumnRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)

	stone, ok := world.BlockRuntimeID("hearth:stone", nil)
	require.True(t, ok)

	col := chunk.NewColumn(chunk.New(world.AirRuntimeID(), world.Overworld.Range()))
	col.Chunk.SetBlock(0, -60, 15, stone)
	col.Status = chunk.StatusFull
	pos := world.ChunkPos{12, -7}

	require.NoError(t, db.StoreColumn(pos, col))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.LoadColumn(pos)
	require.NoError(t, err)
	assert.Equal(t, stone, got.Chunk.Block(0, -60, 15))
	assert.Equal(t, chunk.StatusFull, got.Status)

	_, err = db.LoadColumn(world.ChunkPos{0, 0})
	assert.ErrorIs(t, err, world.ErrNotFound)
}

func TestDBSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	set := &world.Settings{
		Name:        "Hearth",
		Spawn:       cube.Pos{-8, 64, 120},
		Seed:        7,
		Time:        18000,
		TimeCycle:   true,
		CurrentTick: 999,
	}
	require.NoError(t, db.SaveSettings(set))

	loaded := &world.Settings{}
	db.Settings(loaded)
	assert.Equal(t, "Hearth", loaded.Name)
	assert.Equal(t, cube.Pos{-8, 64, 120}, loaded.Spawn)
	assert.Equal(t, int64(7), loaded.Seed)
	assert.Equal(t, int64(18000), loaded.Time)
	assert.Equal(t, int64(999), loaded.CurrentTick)
}

func TestDBMalformedColumn(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	pos := world.ChunkPos{1, 2}
	require.NoError(t, db.ldb.Put(columnKey(pos), []byte{0xba, 0xad}, nil))

	_, err = db.LoadColumn(pos)
	require.Error(t, err)
	assert.ErrorAs(t, err, &chunk.MalformedError{})
}
