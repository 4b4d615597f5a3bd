package chunk

// SubChunk is a section of a Column with a fixed height of 16 blocks. It holds
// a paletted block storage, a paletted biome storage and two light channels.
type SubChunk struct {
	air    uint32
	blocks *PalettedStorage
	biomes *PalettedStorage

	// blockLight and skyLight hold nibble-packed light values, two voxels per
	// byte. A nil slice means the channel has not been calculated yet and is
	// treated as fully dark.
	blockLight []uint8
	skyLight   []uint8
}

// NewSubChunk creates a new SubChunk where every voxel holds the air value
// passed and every biome slot holds biome 0.
func NewSubChunk(air uint32) *SubChunk {
	return &SubChunk{
		air:    air,
		blocks: emptyStorage(air),
		biomes: emptyStorage(0),
	}
}

// Empty checks if the SubChunk is considered empty: it is empty if its block
// storage only references air.
func (sub *SubChunk) Empty() bool {
	return sub.blocks.palette.Len() == 1 && sub.blocks.palette.Value(0) == sub.air
}

// Block returns the runtime ID of the block at the section-local position
// passed.
func (sub *SubChunk) Block(x, y, z byte) uint32 {
	return sub.blocks.At(x, y, z)
}

// SetBlock sets the runtime ID of a block at a section-local position.
func (sub *SubChunk) SetBlock(x, y, z byte, rid uint32) {
	sub.blocks.Set(x, y, z, rid)
}

// Biome returns the biome ID at a section-local position.
func (sub *SubChunk) Biome(x, y, z byte) uint32 {
	return sub.biomes.At(x, y, z)
}

// SetBiome sets the biome ID at a section-local position.
func (sub *SubChunk) SetBiome(x, y, z byte, biome uint32) {
	sub.biomes.Set(x, y, z, biome)
}

// Storage returns the block storage of the SubChunk.
func (sub *SubChunk) Storage() *PalettedStorage {
	return sub.blocks
}

// BiomeStorage returns the biome storage of the SubChunk.
func (sub *SubChunk) BiomeStorage() *PalettedStorage {
	return sub.biomes
}

// BlockLight returns the block light value at a section-local position.
func (sub *SubChunk) BlockLight(x, y, z byte) uint8 {
	return nibbleAt(sub.blockLight, x, y, z)
}

// SetBlockLight sets the block light value at a section-local position.
func (sub *SubChunk) SetBlockLight(x, y, z byte, level uint8) {
	if sub.blockLight == nil {
		if level == 0 {
			return
		}
		sub.blockLight = make([]uint8, 2048)
	}
	setNibble(sub.blockLight, x, y, z, level)
}

// SkyLight returns the sky light value at a section-local position.
func (sub *SubChunk) SkyLight(x, y, z byte) uint8 {
	return nibbleAt(sub.skyLight, x, y, z)
}

// SetSkyLight sets the sky light value at a section-local position.
func (sub *SubChunk) SetSkyLight(x, y, z byte, level uint8) {
	if sub.skyLight == nil {
		if level == 0 {
			return
		}
		sub.skyLight = make([]uint8, 2048)
	}
	setNibble(sub.skyLight, x, y, z, level)
}

// clearLight resets both light channels of the SubChunk to fully dark.
func (sub *SubChunk) clearLight() {
	sub.blockLight, sub.skyLight = nil, nil
}

// compact compacts the palettes of the block and biome storages.
func (sub *SubChunk) compact() {
	sub.blocks.compact()
	sub.biomes.compact()
}

// nibbleAt reads a light nibble from a 2048 byte slice. A nil slice reads as
// zero.
func nibbleAt(data []uint8, x, y, z byte) uint8 {
	if data == nil {
		return 0
	}
	offset := voxelOffset(x, y, z)
	if offset&1 == 0 {
		return data[offset>>1] & 0xf
	}
	return data[offset>>1] >> 4
}

// setNibble writes a light nibble into a 2048 byte slice.
func setNibble(data []uint8, x, y, z byte, level uint8) {
	offset := voxelOffset(x, y, z)
	i := offset >> 1
	if offset&1 == 0 {
		data[i] = data[i]&0xf0 | level&0xf
		return
	}
	data[i] = data[i]&0x0f | level<<4
}
