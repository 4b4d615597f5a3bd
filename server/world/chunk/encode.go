package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zlib"
)

// Encode encodes a Column to its binary payload form and compresses it with
// the Compression passed. The resulting bytes are what the region store
// persists for the column's position.
func Encode(col *Column, compression Compression) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4096))
	buf.WriteByte(byte(CurrentVersion))

	c := col.Chunk
	writeVarint(buf, int64(c.r[0]))
	writeVarint(buf, int64(c.r[1]))
	buf.WriteByte(byte(col.Status))

	for _, sub := range c.sub {
		if err := encodeBlockStorage(buf, sub.blocks); err != nil {
			return nil, err
		}
		encodeBiomeStorage(buf, sub.biomes)
		encodeLight(buf, sub)
	}

	writeVaruint(buf, uint64(len(col.BlockEntities)))
	for _, be := range col.BlockEntities {
		writeVarint(buf, int64(be.Pos[0]))
		writeVarint(buf, int64(be.Pos[1]))
		writeVarint(buf, int64(be.Pos[2]))
		writeString(buf, be.Kind)
		if err := writeMap(buf, be.Data); err != nil {
			return nil, fmt.Errorf("encode block entity %v: %w", be.Pos, err)
		}
	}

	writeVaruint(buf, uint64(len(col.Entities)))
	for _, e := range col.Entities {
		buf.Write(e.ID[:])
		writeString(buf, e.Kind)
		for i := 0; i < 3; i++ {
			writeFloat64(buf, e.Pos[i])
		}
		if err := writeMap(buf, e.Data); err != nil {
			return nil, fmt.Errorf("encode entity %v: %w", e.ID, err)
		}
	}

	writeVaruint(buf, uint64(len(col.Ticks)))
	for _, t := range col.Ticks {
		writeVarint(buf, int64(t.Pos[0]))
		writeVarint(buf, int64(t.Pos[1]))
		writeVarint(buf, int64(t.Pos[2]))
		if err := writeBlockState(buf, t.Block); err != nil {
			return nil, fmt.Errorf("encode scheduled tick at %v: %w", t.Pos, err)
		}
		writeVarint(buf, t.Tick)
	}

	return compress(buf.Bytes(), compression)
}

// compress compresses an encoded payload, prefixing it with the compression
// identifier byte.
func compress(payload []byte, compression Compression) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, len(payload)/2+1))
	out.WriteByte(byte(compression))
	switch compression {
	case CompressionNone:
		out.Write(payload)
	case CompressionZlib:
		w := zlib.NewWriter(out)
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("compress column: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress column: %w", err)
		}
	case CompressionZstd:
		out.Write(zstdEncoder.EncodeAll(payload, nil))
	default:
		return nil, fmt.Errorf("compress column: unknown compression %v", compression)
	}
	return out.Bytes(), nil
}

// encodeBlockStorage writes a block PalettedStorage. Palette entries are
// written as persistent block states rather than runtime IDs, so that saved
// columns survive registry changes between runs.
func encodeBlockStorage(buf *bytes.Buffer, storage *PalettedStorage) error {
	buf.WriteByte(byte(storage.bitsPerIndex))
	words := make([]byte, 4)
	for _, w := range storage.words {
		binary.LittleEndian.PutUint32(words, w)
		buf.Write(words)
	}
	writeVaruint(buf, uint64(storage.palette.Len()))
	for _, rid := range storage.palette.values {
		if err := writeBlockState(buf, rid); err != nil {
			return err
		}
	}
	return nil
}

// encodeBiomeStorage writes a biome PalettedStorage. Biome IDs are stable, so
// the palette holds them directly.
func encodeBiomeStorage(buf *bytes.Buffer, storage *PalettedStorage) {
	buf.WriteByte(byte(storage.bitsPerIndex))
	words := make([]byte, 4)
	for _, w := range storage.words {
		binary.LittleEndian.PutUint32(words, w)
		buf.Write(words)
	}
	writeVaruint(buf, uint64(storage.palette.Len()))
	for _, id := range storage.palette.values {
		writeVaruint(buf, uint64(id))
	}
}

// encodeLight writes the two light channels of a SubChunk. A flags byte
// indicates which channels are present, so unlit sections cost one byte.
func encodeLight(buf *bytes.Buffer, sub *SubChunk) {
	var flags byte
	if sub.blockLight != nil {
		flags |= 0x1
	}
	if sub.skyLight != nil {
		flags |= 0x2
	}
	buf.WriteByte(flags)
	if sub.blockLight != nil {
		buf.Write(sub.blockLight)
	}
	if sub.skyLight != nil {
		buf.Write(sub.skyLight)
	}
}

// writeBlockState resolves a runtime ID to its persistent state and writes
// it.
func writeBlockState(buf *bytes.Buffer, rid uint32) error {
	name, properties, ok := RuntimeIDToState(rid)
	if !ok {
		return fmt.Errorf("runtime ID %v has no registered block state", rid)
	}
	writeString(buf, name)
	if err := writeMap(buf, properties); err != nil {
		return err
	}
	writeVarint(buf, int64(stateVersion))
	return nil
}

// stateVersion is the block state schema version written with every palette
// entry. It feeds the block state upgrader on load.
const stateVersion int32 = 1

// writeMap writes a string-keyed map with deterministic ordering: keys are
// sorted before writing so identical maps always produce identical bytes.
func writeMap(buf *bytes.Buffer, m map[string]any) error {
	writeVaruint(buf, uint64(len(m)))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(buf, k)
		switch v := m[k].(type) {
		case string:
			buf.WriteByte(tagString)
			writeString(buf, v)
		case int64:
			buf.WriteByte(tagInt)
			writeVarint(buf, v)
		case int32:
			buf.WriteByte(tagInt)
			writeVarint(buf, int64(v))
		case int:
			buf.WriteByte(tagInt)
			writeVarint(buf, int64(v))
		case float64:
			buf.WriteByte(tagFloat)
			writeFloat64(buf, v)
		case bool:
			buf.WriteByte(tagBool)
			if v {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case []byte:
			buf.WriteByte(tagBytes)
			writeVaruint(buf, uint64(len(v)))
			buf.Write(v)
		default:
			return fmt.Errorf("map value %q has unsupported type %T", k, v)
		}
	}
	return nil
}

const (
	tagString = iota
	tagInt
	tagFloat
	tagBool
	tagBytes
)

func writeString(buf *bytes.Buffer, s string) {
	writeVaruint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeFloat64(buf *bytes.Buffer, f float64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	buf.Write(b)
}

func writeVaruint(buf *bytes.Buffer, v uint64) {
	b := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(b, v)
	buf.Write(b[:n])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	b := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(b, v)
	buf.Write(b[:n])
}
