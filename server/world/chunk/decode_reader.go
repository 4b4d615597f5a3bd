package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/df-mc/worldupgrader/blockupgrader"
	"github.com/klauspost/compress/zlib"
)

// decompress undoes the compression prefix written by compress.
func decompress(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, malformed("empty payload")
	}
	switch Compression(b[0]) {
	case CompressionNone:
		return b[1:], nil
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(b[1:]))
		if err != nil {
			return nil, MalformedError{Reason: "zlib header", Err: err}
		}
		defer zr.Close()
		payload, err := io.ReadAll(zr)
		if err != nil {
			return nil, MalformedError{Reason: "zlib payload", Err: err}
		}
		return payload, nil
	case CompressionZstd:
		payload, err := zstdDecoder.DecodeAll(b[1:], nil)
		if err != nil {
			return nil, MalformedError{Reason: "zstd payload", Err: err}
		}
		return payload, nil
	}
	return nil, malformed("unknown compression %v", b[0])
}

// reader is a cursor over a decoded payload with a sticky error, so that a
// run of reads only needs a single error check.
type reader struct {
	b   []byte
	off int
	err error
}

// errShortPayload is the sticky error set when a read runs past the payload.
var errShortPayload = fmt.Errorf("unexpected end of payload")

func (r *reader) byte() byte {
	if r.err != nil || r.off >= len(r.b) {
		r.fail()
		return 0
	}
	v := r.b[r.off]
	r.off++
	return v
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.b) {
		r.fail()
		return nil
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.b[r.off:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.off += n
	return v
}

func (r *reader) varuint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		r.fail()
		return 0
	}
	r.off += n
	return v
}

func (r *reader) str() string {
	n := r.varuint()
	if n > uint64(len(r.b)-r.off) {
		r.fail()
		return ""
	}
	return string(r.bytes(int(n)))
}

func (r *reader) float64() float64 {
	b := r.bytes(8)
	if r.err != nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = errShortPayload
	}
}

// readBlockStorage parses a block PalettedStorage, resolving every palette
// entry through the block state upgrader and the registry.
func readBlockStorage(r *reader) (*PalettedStorage, error) {
	words, size, err := readStorageWords(r)
	if err != nil {
		return nil, err
	}
	n := int(r.varuint())
	if r.err != nil || n < 1 || n > 4096 {
		return nil, malformed("invalid block palette size %v", n)
	}
	values := make([]uint32, n)
	for i := range values {
		rid, err := readBlockState(r)
		if err != nil {
			return nil, err
		}
		values[i] = rid
	}
	return validateStorage(newPalettedStorage(words, newPalette(size, values)))
}

// readBiomeStorage parses a biome PalettedStorage, whose palette holds biome
// IDs directly.
func readBiomeStorage(r *reader) (*PalettedStorage, error) {
	words, size, err := readStorageWords(r)
	if err != nil {
		return nil, err
	}
	n := int(r.varuint())
	if r.err != nil || n < 1 || n > 4096 {
		return nil, malformed("invalid biome palette size %v", n)
	}
	values := make([]uint32, n)
	for i := range values {
		values[i] = uint32(r.varuint())
	}
	if r.err != nil {
		return nil, MalformedError{Reason: "biome palette", Err: r.err}
	}
	return validateStorage(newPalettedStorage(words, newPalette(size, values)))
}

// readStorageWords parses the index size byte and packed index words of a
// storage.
func readStorageWords(r *reader) ([]uint32, paletteSize, error) {
	bits := r.byte()
	size := paletteSize(bits)
	valid := false
	for _, s := range paletteSizes {
		if s == size {
			valid = true
			break
		}
	}
	if r.err != nil || !valid {
		return nil, 0, malformed("invalid palette index size %v", bits)
	}
	wordCount := size.uint32s(4096)
	raw := r.bytes(wordCount * 4)
	if r.err != nil {
		return nil, 0, MalformedError{Reason: "storage words", Err: r.err}
	}
	words := make([]uint32, wordCount)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, size, nil
}

// validateStorage checks the core palette invariant of a decoded storage:
// every packed index must resolve within the palette's bounds.
func validateStorage(storage *PalettedStorage) (*PalettedStorage, error) {
	limit := uint16(storage.palette.Len())
	for x := byte(0); x < 16; x++ {
		for z := byte(0); z < 16; z++ {
			for y := byte(0); y < 16; y++ {
				if i := storage.paletteIndex(x, y, z); i >= limit {
					return nil, malformed("palette index %v out of bounds (palette holds %v entries)", i, limit)
				}
			}
		}
	}
	return storage, nil
}

// readLight parses the light flags byte and the nibble arrays it announces.
func readLight(r *reader, sub *SubChunk) error {
	flags := r.byte()
	if flags&0x1 != 0 {
		sub.blockLight = bytes.Clone(r.bytes(2048))
	}
	if flags&0x2 != 0 {
		sub.skyLight = bytes.Clone(r.bytes(2048))
	}
	if r.err != nil {
		return MalformedError{Reason: "section light", Err: r.err}
	}
	return nil
}

// readBlockState parses a persistent block state, runs it through the block
// state upgrader and resolves it to a runtime ID. A state unknown to the
// registry fails the decode: the caller treats the column as corrupt and
// regenerates it.
func readBlockState(r *reader) (uint32, error) {
	name := r.str()
	properties, err := readMap(r)
	if err != nil {
		return 0, err
	}
	version := int32(r.varint())
	if r.err != nil {
		return 0, MalformedError{Reason: "block state", Err: r.err}
	}
	state := blockupgrader.Upgrade(blockupgrader.BlockState{
		Name:       name,
		Properties: properties,
		Version:    version,
	})
	rid, ok := StateToRuntimeID(state.Name, state.Properties)
	if !ok {
		return 0, malformed("unknown block state %q", state.Name)
	}
	return rid, nil
}

// readMap parses a map written by writeMap.
func readMap(r *reader) (map[string]any, error) {
	n := int(r.varuint())
	if r.err != nil || n < 0 || n > 65536 {
		return nil, malformed("invalid map size %v", n)
	}
	if n == 0 {
		return nil, nil
	}
	m := make(map[string]any, n)
	for i := 0; i < n; i++ {
		key := r.str()
		switch tag := r.byte(); tag {
		case tagString:
			m[key] = r.str()
		case tagInt:
			m[key] = r.varint()
		case tagFloat:
			m[key] = r.float64()
		case tagBool:
			m[key] = r.byte() != 0
		case tagBytes:
			m[key] = bytes.Clone(r.bytes(int(r.varuint())))
		default:
			if r.err != nil {
				return nil, MalformedError{Reason: "map entry", Err: r.err}
			}
			return nil, malformed("invalid map value tag %v", tag)
		}
	}
	if r.err != nil {
		return nil, MalformedError{Reason: "map entry", Err: r.err}
	}
	return m, nil
}
