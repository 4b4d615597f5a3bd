package chunk

// PalettedStorage is a storage of 4096 voxel states packed as palette indices.
// The size of indices may vary, and the storage holds a palette which maps
// indices to the actual values.
type PalettedStorage struct {
	// bitsPerIndex is the amount of bits required to store one index in the
	// words slice.
	bitsPerIndex uint16
	// filledBitsPerWord is the amount of bits that are actually filled with
	// indices in a single uint32 word. Indices never cross word boundaries,
	// so a number of padding bits may remain per word.
	filledBitsPerWord uint16
	// indexMask is the equivalent of 1<<bitsPerIndex - 1.
	indexMask uint32

	palette *Palette
	words   []uint32
}

// newPalettedStorage creates a new PalettedStorage with the words and palette
// passed.
func newPalettedStorage(words []uint32, palette *Palette) *PalettedStorage {
	bitsPerIndex := uint16(palette.size)
	var filled, mask uint32
	if bitsPerIndex != 0 {
		filled = (32 / uint32(bitsPerIndex)) * uint32(bitsPerIndex)
		mask = (1 << bitsPerIndex) - 1
	}
	return &PalettedStorage{
		bitsPerIndex:      bitsPerIndex,
		filledBitsPerWord: uint16(filled),
		indexMask:         mask,
		palette:           palette,
		words:             words,
	}
}

// emptyStorage creates a PalettedStorage filled with only the value v.
func emptyStorage(v uint32) *PalettedStorage {
	return newPalettedStorage(nil, newPalette(size0, []uint32{v}))
}

// Palette returns the Palette of the PalettedStorage.
func (storage *PalettedStorage) Palette() *Palette {
	return storage.palette
}

// At returns the value of the PalettedStorage at a given x, y and z. The
// coordinates must all be in the range 0-15.
func (storage *PalettedStorage) At(x, y, z byte) uint32 {
	return storage.palette.Value(storage.paletteIndex(x, y, z))
}

// Set sets a value at a specific x, y and z, growing the palette (and, if
// needed, the index size) when the value is not yet present.
func (storage *PalettedStorage) Set(x, y, z byte, v uint32) {
	index := storage.palette.Index(v)
	if index == -1 {
		// The runtime ID was not yet available in the palette. We add it, then
		// check if the storage needs to be resized for the palette pointers to
		// fit.
		var resize bool
		index, resize = storage.palette.Add(v)
		if resize {
			storage.resize(storage.palette.size)
		}
	}
	storage.setPaletteIndex(x, y, z, uint16(index))
}

// paletteIndex looks up the palette index at a given x, y and z value in the
// PalettedStorage.
func (storage *PalettedStorage) paletteIndex(x, y, z byte) uint16 {
	if storage.bitsPerIndex == 0 {
		return 0
	}
	offset := voxelOffset(x, y, z) * uint32(storage.bitsPerIndex)
	word := storage.words[offset/uint32(storage.filledBitsPerWord)]
	return uint16((word >> (offset % uint32(storage.filledBitsPerWord))) & storage.indexMask)
}

// setPaletteIndex sets the palette index at a specific offset in the
// PalettedStorage to the index passed.
func (storage *PalettedStorage) setPaletteIndex(x, y, z byte, i uint16) {
	if storage.bitsPerIndex == 0 {
		return
	}
	offset := voxelOffset(x, y, z) * uint32(storage.bitsPerIndex)
	wordIndex, bitOffset := offset/uint32(storage.filledBitsPerWord), offset%uint32(storage.filledBitsPerWord)

	storage.words[wordIndex] &^= storage.indexMask << bitOffset
	storage.words[wordIndex] |= uint32(i) << bitOffset
}

// voxelOffset converts section-local x, y and z coordinates to a single index
// in the range 0-4095.
func voxelOffset(x, y, z byte) uint32 {
	return (uint32(x&15) << 8) | (uint32(z&15) << 4) | uint32(y&15)
}

// resize changes the size of indices in a PalettedStorage to newSize,
// rewriting all words. The palette itself is assumed to have been grown to
// newSize already.
func (storage *PalettedStorage) resize(newSize paletteSize) {
	if uint16(newSize) == storage.bitsPerIndex {
		return
	}
	indices := storage.indices()

	resized := newPalettedStorage(make([]uint32, newSize.uint32s(4096)), storage.palette)
	for offset, index := range indices {
		x, z, y := byte(offset>>8)&15, byte(offset>>4)&15, byte(offset)&15
		resized.setPaletteIndex(x, y, z, index)
	}
	*storage = *resized
}

// indices returns all 4096 palette indices of the storage in voxelOffset
// order.
func (storage *PalettedStorage) indices() [4096]uint16 {
	var out [4096]uint16
	if storage.bitsPerIndex == 0 {
		return out
	}
	for x := byte(0); x < 16; x++ {
		for z := byte(0); z < 16; z++ {
			for y := byte(0); y < 16; y++ {
				out[voxelOffset(x, y, z)] = storage.paletteIndex(x, y, z)
			}
		}
	}
	return out
}

// compact rewrites the PalettedStorage with a palette holding only values
// that are actually referenced by an index, shrinking the index size where
// possible.
func (storage *PalettedStorage) compact() {
	if storage.bitsPerIndex == 0 {
		return
	}
	indices := storage.indices()

	used := make([]bool, storage.palette.Len())
	for _, index := range indices {
		used[index] = true
	}
	newValues := make([]uint32, 0, storage.palette.Len())
	remap := make([]uint16, storage.palette.Len())
	for i, u := range used {
		if u {
			remap[i] = uint16(len(newValues))
			newValues = append(newValues, storage.palette.values[i])
		}
	}
	size := paletteSizeFor(len(newValues))
	newStorage := newPalettedStorage(make([]uint32, size.uint32s(4096)), newPalette(size, newValues))
	for offset, index := range indices {
		x, z, y := byte(offset>>8)&15, byte(offset>>4)&15, byte(offset)&15
		newStorage.setPaletteIndex(x, y, z, remap[index])
	}
	*storage = *newStorage
}

// Equal reports whether two storages hold exactly the same value at every
// voxel.
func (storage *PalettedStorage) Equal(other *PalettedStorage) bool {
	for x := byte(0); x < 16; x++ {
		for z := byte(0); z < 16; z++ {
			for y := byte(0); y < 16; y++ {
				if storage.At(x, y, z) != other.At(x, y, z) {
					return false
				}
			}
		}
	}
	return true
}
