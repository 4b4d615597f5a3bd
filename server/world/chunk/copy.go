package chunk

import (
	"bytes"
	"maps"
	"slices"
)

// Copy returns a deep copy of the Column: mutating the copy or the original
// never shows through to the other.
func (col *Column) Copy() *Column {
	cp := &Column{
		Chunk:  col.Chunk.Copy(),
		Status: col.Status,
		Ticks:  slices.Clone(col.Ticks),
	}
	cp.BlockEntities = make([]BlockEntity, len(col.BlockEntities))
	for i, be := range col.BlockEntities {
		be.Data = maps.Clone(be.Data)
		cp.BlockEntities[i] = be
	}
	cp.Entities = make([]Entity, len(col.Entities))
	for i, e := range col.Entities {
		e.Data = maps.Clone(e.Data)
		cp.Entities[i] = e
	}
	return cp
}

// Copy returns a deep copy of the Chunk.
func (c *Chunk) Copy() *Chunk {
	cp := &Chunk{
		r:                    c.r,
		air:                  c.air,
		recalculateHeightMap: c.recalculateHeightMap,
		heightMap:            slices.Clone(c.heightMap),
		lightBlockers:        slices.Clone(c.lightBlockers),
		sub:                  make([]*SubChunk, len(c.sub)),
	}
	for i, sub := range c.sub {
		cp.sub[i] = sub.Copy()
	}
	return cp
}

// Copy returns a deep copy of the SubChunk.
func (sub *SubChunk) Copy() *SubChunk {
	return &SubChunk{
		air:        sub.air,
		blocks:     sub.blocks.Copy(),
		biomes:     sub.biomes.Copy(),
		blockLight: bytes.Clone(sub.blockLight),
		skyLight:   bytes.Clone(sub.skyLight),
	}
}

// Copy returns a deep copy of the PalettedStorage.
func (storage *PalettedStorage) Copy() *PalettedStorage {
	return newPalettedStorage(slices.Clone(storage.words),
		newPalette(storage.palette.size, slices.Clone(storage.palette.values)))
}
