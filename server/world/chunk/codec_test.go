package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testColumn builds a column exercising every part of the payload: blocks in
// multiple sections, biomes, calculated light, block entities, entities and
// scheduled ticks.
func testColumn(t *testing.T) *Column {
	t.Helper()
	c := New(testAir, testRange)
	for x := uint8(0); x < 16; x++ {
		for z := uint8(0); z < 16; z++ {
			for y := int16(0); y <= 20; y++ {
				c.SetBlock(x, y, z, testStone)
			}
			c.SetBiome(x, 0, z, 2)
		}
	}
	c.SetBlock(8, 21, 8, testTorch)
	c.SetBlock(2, 40, 2, testGlass)
	CalculateLight(LightArea([]*Chunk{c}, 0, 0))

	col := NewColumn(c)
	col.Status = StatusFull
	col.BlockEntities = append(col.BlockEntities, BlockEntity{
		Pos:  cube.Pos{3, 21, 5},
		Kind: "chest",
		Data: map[string]any{"items": []byte{1, 2, 3}, "locked": true, "name": "loot", "slots": int64(27)},
	})
	col.Entities = append(col.Entities, Entity{
		ID:   uuid.MustParse("7d64ec00-75c8-4a43-9b5c-0c64ef4e78cc"),
		Kind: "pig",
		Pos:  mgl64.Vec3{4.5, 22, 6.5},
		Data: map[string]any{"health": 10.0},
	})
	col.Ticks = append(col.Ticks, ScheduledTick{Pos: cube.Pos{8, 21, 8}, Block: testTorch, Tick: 160})
	return col
}

// TestCodecRoundTrip checks that decoding an encoded column and encoding the
// result again reproduces the exact same bytes.
func TestCodecRoundTrip(t *testing.T) {
	col := testColumn(t)

	payload, err := Encode(col, CompressionNone)
	require.NoError(t, err)

	decoded, err := Decode(payload, testAir)
	require.NoError(t, err)

	assert.Equal(t, col.Status, decoded.Status)
	assert.Equal(t, col.BlockEntities, decoded.BlockEntities)
	assert.Equal(t, col.Entities, decoded.Entities)
	assert.Equal(t, col.Ticks, decoded.Ticks)
	assert.Equal(t, col.Chunk.Block(8, 21, 8), decoded.Chunk.Block(8, 21, 8))

	again, err := Encode(decoded, CompressionNone)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, again), "re-encoded payload differs from original")
}

func TestCodecCompression(t *testing.T) {
	col := testColumn(t)
	reference, err := Encode(col, CompressionNone)
	require.NoError(t, err)

	for _, compression := range []Compression{CompressionZlib, CompressionZstd} {
		payload, err := Encode(col, compression)
		require.NoError(t, err)

		decoded, err := Decode(payload, testAir)
		require.NoError(t, err)

		again, err := Encode(decoded, CompressionNone)
		require.NoError(t, err)
		require.True(t, bytes.Equal(reference, again), "compression %v did not round-trip", compression)
	}
}

func TestCodecFutureVersion(t *testing.T) {
	payload, err := Encode(testColumn(t), CompressionNone)
	require.NoError(t, err)
	// Byte 0 is the compression identifier, byte 1 the schema version.
	payload[1] = CurrentVersion + 1

	_, err = Decode(payload, testAir)
	var unsupported UnsupportedVersionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, byte(CurrentVersion+1), unsupported.Version)
}

func TestCodecMalformed(t *testing.T) {
	full, err := Encode(testColumn(t), CompressionNone)
	require.NoError(t, err)

	for name, payload := range map[string][]byte{
		"empty":               {},
		"bad compression":     {0xff, 1, 2, 3},
		"version only":        full[:2],
		"truncated":           full[:len(full)/2],
		"truncated tail":      full[:len(full)-3],
		"bad zlib":            {byte(CompressionZlib), 1, 2, 3},
		"bad zstd":            {byte(CompressionZstd), 1, 2, 3},
		"bad version":         {byte(CompressionNone), 0},
		"bad range":           append([]byte{byte(CompressionNone), CurrentVersion}, encodeVarints(30, 0)...),
		"range not sectioned": append([]byte{byte(CompressionNone), CurrentVersion}, encodeVarints(0, 20)...),
	} {
		_, err := Decode(payload, testAir)
		var malformed MalformedError
		require.ErrorAs(t, err, &malformed, "payload %q", name)
		require.False(t, errors.As(err, &UnsupportedVersionError{}), "payload %q", name)
	}
}

func TestCodecUnknownBlockState(t *testing.T) {
	buf := bytes.NewBuffer([]byte{CurrentVersion})
	writeVarint(buf, 0)
	writeVarint(buf, 15)
	buf.WriteByte(byte(StatusFull))
	// A single section whose one-entry palette names a state the registry does
	// not know.
	buf.WriteByte(byte(size0))
	writeVaruint(buf, 1)
	writeString(buf, "hearth:missingno")
	writeVaruint(buf, 0)
	writeVarint(buf, int64(stateVersion))

	_, err := Decode(append([]byte{byte(CompressionNone)}, buf.Bytes()...), testAir)
	var malformed MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "hearth:missingno")
}

func TestCodecPaletteIndexOutOfBounds(t *testing.T) {
	buf := bytes.NewBuffer([]byte{CurrentVersion})
	writeVarint(buf, 0)
	writeVarint(buf, 15)
	buf.WriteByte(byte(StatusFull))
	// 1-bit indices all set to 1, but only a single palette entry.
	buf.WriteByte(byte(size1))
	for i := 0; i < size1.uint32s(4096); i++ {
		buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	writeVaruint(buf, 1)
	require.NoError(t, writeBlockState(buf, testStone))

	_, err := Decode(append([]byte{byte(CompressionNone)}, buf.Bytes()...), testAir)
	var malformed MalformedError
	require.ErrorAs(t, err, &malformed)
}

// TestCodecV1Migration decodes a hand-built version 1 payload, which predates
// generation statuses and scheduled ticks, and checks the migration chain
// fills in what the legacy layout lacks.
func TestCodecV1Migration(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1})
	writeVarint(buf, 0)
	writeVarint(buf, 15)
	// Single section: every voxel stone, biome 0, no light.
	buf.WriteByte(byte(size0))
	writeVaruint(buf, 1)
	require.NoError(t, writeBlockState(buf, testStone))
	buf.WriteByte(byte(size0))
	writeVaruint(buf, 1)
	writeVaruint(buf, 0)
	buf.WriteByte(0)
	// No block entities, no entities.
	writeVaruint(buf, 0)
	writeVaruint(buf, 0)

	col, err := Decode(append([]byte{byte(CompressionNone)}, buf.Bytes()...), testAir)
	require.NoError(t, err)

	assert.Equal(t, StatusFull, col.Status, "columns saved before statuses existed were always complete")
	assert.Equal(t, testStone, col.Chunk.Block(5, 5, 5))
	assert.Empty(t, col.Ticks)
}

func encodeVarints(vs ...int64) []byte {
	buf := new(bytes.Buffer)
	for _, v := range vs {
		writeVarint(buf, v)
	}
	return buf.Bytes()
}
