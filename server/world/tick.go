package world

import (
	"slices"

	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world/chunk"
)

// timeFull is the length of a full day/night cycle in ticks.
const timeFull = 24000

// randomTickSpeed is the amount of random tick attempts per sub chunk per
// tick.
const randomTickSpeed = 3

// tick runs one simulation step: the clock advances, due scheduled block
// updates fire and random ticks are handed out. Runs on the transaction
// goroutine.
func (w *World) tick(tx *Tx) {
	w.set.Lock()
	w.set.CurrentTick++
	if w.set.TimeCycle {
		w.set.Time = (w.set.Time + 1) % timeFull
	}
	tick := w.set.CurrentTick
	w.set.Unlock()

	if !w.spawnPlaced {
		w.placeSpawn(tx)
	}

	cols := w.cache.loadedAll()
	w.tickScheduledBlocks(tx, cols, tick)
	w.tickRandomBlocks(tx, cols)
}

// tickScheduledBlocks fires every scheduled block update that has come due.
// An update only fires if the block at its position still holds the runtime
// ID it was scheduled with; a block replaced in the meantime silently drops
// its update.
func (w *World) tickScheduledBlocks(tx *Tx, cols map[ChunkPos]*Column, tick int64) {
	for _, col := range cols {
		if len(col.Ticks) == 0 {
			continue
		}
		var due []chunk.ScheduledTick
		col.Ticks = slices.DeleteFunc(col.Ticks, func(t chunk.ScheduledTick) bool {
			if t.Tick > tick {
				return false
			}
			due = append(due, t)
			return true
		})
		if len(due) == 0 {
			continue
		}
		col.invalidate()
		for _, t := range due {
			if tx.Block(t.Pos) == t.Block {
				w.tickBlock(tx, t.Pos, t.Block)
			}
		}
	}
}

// tickRandomBlocks distributes random ticks over the loaded columns. Each
// sub chunk containing at least one randomly ticking block gets a fixed
// amount of attempts at uniformly chosen voxels.
func (w *World) tickRandomBlocks(tx *Tx, cols map[ChunkPos]*Column) {
	for pos, col := range cols {
		baseX, baseZ := int(pos[0])<<4, int(pos[1])<<4
		for i, sub := range col.Chunk.Sub() {
			if sub.Empty() || !subTicksRandomly(sub) {
				continue
			}
			baseY := int(col.Chunk.SubY(int16(i)))
			for n := 0; n < randomTickSpeed; n++ {
				v := w.r.Uint32()
				x, y, z := int(v&15), int(v>>4&15), int(v>>8&15)
				bp := cube.Pos{baseX + x, baseY + y, baseZ + z}
				rid := sub.Block(uint8(x), uint8(y), uint8(z))
				if blocks[rid].randomTick {
					w.tickBlock(tx, bp, rid)
				}
			}
		}
	}
}

// subTicksRandomly reports whether any state in a sub chunk's palette can
// receive random ticks, so fully static sub chunks skip the voxel lottery.
func subTicksRandomly(sub *chunk.SubChunk) bool {
	palette := sub.Storage().Palette()
	for i := 0; i < palette.Len(); i++ {
		if blocks[palette.Value(uint16(i))].randomTick {
			return true
		}
	}
	return false
}

// tickBlock runs the behaviour of a single ticking block. Behaviour is
// dispatched on the state name of the closed block set.
func (w *World) tickBlock(tx *Tx, pos cube.Pos, rid uint32) {
	state, ok := BlockByRuntimeID(rid)
	if !ok {
		return
	}
	switch state.Name {
	case "hearth:dirt":
		// Dirt with sky access next to a grass block grows over.
		if tx.SkyLight(pos.Add(cube.Pos{0, 1})) >= 9 && w.grassNearby(tx, pos) {
			tx.SetBlock(pos, mustRID("hearth:grass_block"), CauseTick)
		}
	case "hearth:grass_block":
		// Grass under an opaque block dies back to dirt.
		if above := tx.Block(pos.Add(cube.Pos{0, 1})); blocks[above].filter >= 15 {
			tx.SetBlock(pos, mustRID("hearth:dirt"), CauseTick)
		}
	case "hearth:tall_grass":
		// Tall grass on anything but grass or dirt breaks.
		below := tx.Block(pos.Add(cube.Pos{0, -1}))
		if st, _ := BlockByRuntimeID(below); st.Name != "hearth:grass_block" && st.Name != "hearth:dirt" {
			tx.SetBlock(pos, airRID, CauseTick)
		}
	case "hearth:snow":
		// Snow melts near bright block light.
		if tx.Light(pos) >= 12 && tx.SkyLight(pos) < 12 {
			tx.SetBlock(pos, airRID, CauseTick)
		}
	case "hearth:oak_leaves":
		// Leaves decay when no log is within reach.
		if !w.logNearby(tx, pos) {
			tx.SetBlock(pos, airRID, CauseTick)
		}
	case "hearth:lava":
		// Lava sets a fuse on flammable neighbours by rescheduling itself.
		tx.ScheduleBlockUpdate(pos, rid, 30)
	}
}

func (w *World) grassNearby(tx *Tx, pos cube.Pos) bool {
	grass := mustRID("hearth:grass_block")
	for _, face := range cube.Faces() {
		if tx.Block(pos.Side(face)) == grass {
			return true
		}
	}
	return false
}

func (w *World) logNearby(tx *Tx, pos cube.Pos) bool {
	log := mustRID("hearth:oak_log")
	for x := -2; x <= 2; x++ {
		for y := -2; y <= 2; y++ {
			for z := -2; z <= 2; z++ {
				if tx.Block(pos.Add(cube.Pos{x, y, z})) == log {
					return true
				}
			}
		}
	}
	return false
}

// mustRID resolves a property-free state of the closed block set that is
// known to be registered.
func mustRID(name string) uint32 {
	rid, ok := BlockRuntimeID(name, nil)
	if !ok {
		panic("world: block " + name + " is not registered")
	}
	return rid
}
