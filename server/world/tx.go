package world

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world/chunk"
)

// Tx is a transaction on a world's data. A Tx is passed to the function given
// to World.Exec and is valid only until that function returns; any later use
// panics. Methods on Tx operate on loaded columns exclusively: a Tx never
// triggers a load or generation.
type Tx struct {
	w      *World
	closed bool
}

// guard panics if the transaction has finished. Retaining a Tx beyond its
// Exec function would bypass the single-writer discipline entirely, so this
// is never demoted to a logged violation.
func (tx *Tx) guard() {
	if tx.closed {
		panic("world.Tx: use of transaction after it finishes")
	}
}

// World returns the world the transaction operates on.
func (tx *Tx) World() *World {
	return tx.w
}

// Block returns the block runtime ID at pos. It returns air if pos is outside
// the world's range or in a column that is not loaded.
func (tx *Tx) Block(pos cube.Pos) uint32 {
	tx.guard()
	if pos.OutOfBounds(tx.w.ra) {
		return airRID
	}
	col, ok := tx.w.column(chunkPosFromBlockPos(pos))
	if !ok {
		return airRID
	}
	return col.Chunk.Block(uint8(pos[0]&15), int16(pos[1]), uint8(pos[2]&15))
}

// SetBlock sets the block runtime ID at pos, relights the surrounding area
// and replicates the change to all viewers of the column along with its
// cause. A mutation outside the world's range is discarded; a mutation in a
// column that is not loaded is a usage violation and is rejected.
func (tx *Tx) SetBlock(pos cube.Pos, rid uint32, cause Cause) {
	tx.guard()
	if pos.OutOfBounds(tx.w.ra) {
		return
	}
	cp := chunkPosFromBlockPos(pos)
	col, ok := tx.w.column(cp)
	if !ok {
		tx.w.violation(fmt.Sprintf("set block at %v in column %v that is not loaded", pos, cp))
		return
	}
	col.Chunk.SetBlock(uint8(pos[0]&15), int16(pos[1]), uint8(pos[2]&15), rid)
	col.invalidate()

	tx.relight(cp, pos)

	for _, v := range col.viewers {
		v.ViewBlockUpdate(pos, rid, cause)
	}
}

// relight repairs the light around a mutated position. The surrounding 3x3
// columns are used when all of them are loaded, so light crossing column
// borders stays exact; otherwise propagation is bounded to the mutated
// column. A change too deep for incremental relighting falls back to a full
// recompute of the area.
func (tx *Tx) relight(cp ChunkPos, pos cube.Pos) {
	var a *chunk.Area
	if chunks, ok := tx.w.columnArea(cp); ok {
		a = chunk.LightArea(chunks, int(cp[0])-1, int(cp[1])-1)
	} else {
		col, ok := tx.w.column(cp)
		if !ok {
			return
		}
		a = chunk.LightArea([]*chunk.Chunk{col.Chunk}, int(cp[0]), int(cp[1]))
	}
	if !tx.w.conf.Dim.HasSkyLight() {
		a.DisableSkyLight()
	}
	if !chunk.Relight(a, pos) {
		chunk.CalculateLight(a)
	}
}

// Biome returns the biome ID at pos, or 0 for positions outside the range or
// in unloaded columns.
func (tx *Tx) Biome(pos cube.Pos) uint32 {
	tx.guard()
	if pos.OutOfBounds(tx.w.ra) {
		return 0
	}
	col, ok := tx.w.column(chunkPosFromBlockPos(pos))
	if !ok {
		return 0
	}
	return col.Chunk.Biome(uint8(pos[0]&15), int16(pos[1]), uint8(pos[2]&15))
}

// SetBiome sets the biome ID at pos.
func (tx *Tx) SetBiome(pos cube.Pos, biome uint32) {
	tx.guard()
	if pos.OutOfBounds(tx.w.ra) {
		return
	}
	cp := chunkPosFromBlockPos(pos)
	col, ok := tx.w.column(cp)
	if !ok {
		tx.w.violation(fmt.Sprintf("set biome at %v in column %v that is not loaded", pos, cp))
		return
	}
	col.Chunk.SetBiome(uint8(pos[0]&15), int16(pos[1]), uint8(pos[2]&15), biome)
	col.invalidate()
}

// Light returns the light level at pos on whichever channel is brighter,
// which is the value a renderer would use. Positions outside loaded columns
// return full sky light.
func (tx *Tx) Light(pos cube.Pos) uint8 {
	tx.guard()
	col, ok := tx.w.column(chunkPosFromBlockPos(pos))
	if !ok || pos.OutOfBounds(tx.w.ra) {
		return 15
	}
	return col.Chunk.Light(uint8(pos[0]&15), int16(pos[1]), uint8(pos[2]&15))
}

// SkyLight returns the sky light level at pos.
func (tx *Tx) SkyLight(pos cube.Pos) uint8 {
	tx.guard()
	col, ok := tx.w.column(chunkPosFromBlockPos(pos))
	if !ok || pos.OutOfBounds(tx.w.ra) {
		return 15
	}
	return col.Chunk.SkyLight(uint8(pos[0]&15), int16(pos[1]), uint8(pos[2]&15))
}

// HighestBlock returns the Y coordinate of the highest non-air block at the
// x/z column passed, or the bottom of the range if the column is not loaded.
func (tx *Tx) HighestBlock(x, z int) int16 {
	tx.guard()
	col, ok := tx.w.column(ChunkPos{int32(x >> 4), int32(z >> 4)})
	if !ok {
		return int16(tx.w.ra[0])
	}
	return col.Chunk.HighestBlock(uint8(x&15), uint8(z&15))
}

// ScheduleBlockUpdate schedules a block update at pos after delay ticks. The
// update fires only if the block at pos still has the runtime ID passed at
// that time. Scheduled updates persist with the column.
func (tx *Tx) ScheduleBlockUpdate(pos cube.Pos, rid uint32, delay int64) {
	tx.guard()
	if pos.OutOfBounds(tx.w.ra) || delay <= 0 {
		return
	}
	cp := chunkPosFromBlockPos(pos)
	col, ok := tx.w.column(cp)
	if !ok {
		tx.w.violation(fmt.Sprintf("schedule block update at %v in column %v that is not loaded", pos, cp))
		return
	}
	tick := tx.w.CurrentTick() + delay
	for i, t := range col.Ticks {
		if t.Pos == pos {
			col.Ticks[i] = chunk.ScheduledTick{Pos: pos, Block: rid, Tick: tick}
			col.invalidate()
			return
		}
	}
	col.Ticks = append(col.Ticks, chunk.ScheduledTick{Pos: pos, Block: rid, Tick: tick})
	col.invalidate()
}

// AddEntity adds an entity to the column its position falls in. Entities in
// unloaded columns cannot exist and are rejected.
func (tx *Tx) AddEntity(e chunk.Entity) {
	tx.guard()
	cp := chunkPosFromVec3(e.Pos)
	col, ok := tx.w.column(cp)
	if !ok {
		tx.w.violation(fmt.Sprintf("add entity %v in column %v that is not loaded", e.ID, cp))
		return
	}
	col.Entities = append(col.Entities, e)
	col.invalidate()
}

// RemoveEntity removes the entity with the ID passed from the column at pos.
// It returns false if no such entity is resident there.
func (tx *Tx) RemoveEntity(pos ChunkPos, id uuid.UUID) bool {
	tx.guard()
	col, ok := tx.w.column(pos)
	if !ok {
		return false
	}
	for i, e := range col.Entities {
		if e.ID == id {
			col.Entities = slices.Delete(col.Entities, i, i+1)
			col.invalidate()
			return true
		}
	}
	return false
}

// Entities returns the entities resident in the column at pos.
func (tx *Tx) Entities(pos ChunkPos) []chunk.Entity {
	tx.guard()
	col, ok := tx.w.column(pos)
	if !ok {
		return nil
	}
	return col.Entities
}

// BlockEntity returns the data of the block entity at pos and whether one
// exists there.
func (tx *Tx) BlockEntity(pos cube.Pos) (map[string]any, bool) {
	tx.guard()
	col, ok := tx.w.column(chunkPosFromBlockPos(pos))
	if !ok {
		return nil, false
	}
	for _, be := range col.BlockEntities {
		if be.Pos == pos {
			return be.Data, true
		}
	}
	return nil, false
}

// SetBlockEntity attaches block entity data to pos, replacing any data
// already there.
func (tx *Tx) SetBlockEntity(pos cube.Pos, kind string, data map[string]any) {
	tx.guard()
	cp := chunkPosFromBlockPos(pos)
	col, ok := tx.w.column(cp)
	if !ok {
		tx.w.violation(fmt.Sprintf("set block entity at %v in column %v that is not loaded", pos, cp))
		return
	}
	for i, be := range col.BlockEntities {
		if be.Pos == pos {
			col.BlockEntities[i] = chunk.BlockEntity{Pos: pos, Kind: kind, Data: data}
			col.invalidate()
			return
		}
	}
	col.BlockEntities = append(col.BlockEntities, chunk.BlockEntity{Pos: pos, Kind: kind, Data: data})
	col.invalidate()
}

// RemoveBlockEntity removes the block entity at pos, if any.
func (tx *Tx) RemoveBlockEntity(pos cube.Pos) {
	tx.guard()
	col, ok := tx.w.column(chunkPosFromBlockPos(pos))
	if !ok {
		return
	}
	for i, be := range col.BlockEntities {
		if be.Pos == pos {
			col.BlockEntities = slices.Delete(col.BlockEntities, i, i+1)
			col.invalidate()
			return
		}
	}
}

// Payload returns the serialized form of the column at pos as sent to
// viewers. The encoding is cached on the column and reused until the next
// mutation. The second return is false if the column is not loaded.
func (tx *Tx) Payload(pos ChunkPos) ([]byte, bool) {
	tx.guard()
	col, ok := tx.w.column(pos)
	if !ok {
		return nil, false
	}
	if col.payload == nil {
		payload, err := chunk.Encode(col.Column, chunk.CompressionZstd)
		if err != nil {
			tx.w.conf.Log.Error("encode column payload", "X", pos[0], "Z", pos[1], "err", err)
			return nil, false
		}
		col.payload = payload
	}
	return col.payload, true
}

// addViewer subscribes a viewer to the column at pos. The viewer receives
// every mutation within the column until it is removed.
func (tx *Tx) addViewer(pos ChunkPos, v Viewer) bool {
	col, ok := tx.w.column(pos)
	if !ok {
		return false
	}
	col.viewers = append(col.viewers, v)
	return true
}

// removeViewer unsubscribes a viewer from the column at pos.
func (tx *Tx) removeViewer(pos ChunkPos, v Viewer) {
	col, ok := tx.w.column(pos)
	if !ok {
		return
	}
	col.viewers = slices.DeleteFunc(col.viewers, func(o Viewer) bool { return o == v })
}
