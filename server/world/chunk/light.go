package chunk

import (
	"github.com/hearthvox/hearth/server/block/cube"
)

// channel selects one of the two independent light channels.
type channel uint8

const (
	blockChannel channel = iota
	skyChannel
)

// relightBudget is the maximum amount of voxels an incremental relight may
// darken before it gives up and asks for a full recalculation instead.
const relightBudget = 4096

// lightNode is a single entry of the propagation queue.
type lightNode struct {
	pos   cube.Pos
	level uint8
}

// CalculateLight performs a full light calculation over the Area: all light
// in the chunks is cleared, sources re-seeded and both channels propagated
// with breadth-first flood fills.
func CalculateLight(a *Area) {
	for _, c := range a.c {
		for _, sub := range c.sub {
			sub.clearLight()
		}
	}
	var queue []lightNode
	if !a.noSky {
		queue = a.seedSkyLight(queue)
		a.spread(queue, skyChannel)
	}
	queue = a.seedBlockLight(queue[:0])
	a.spread(queue, blockChannel)
}

// Relight performs an incremental relight of both channels after the single
// voxel at pos was mutated. The mutation must already be applied to the
// chunk data. Relight returns false if the change was too deep to resolve
// incrementally; the caller should then fall back to CalculateLight.
func Relight(a *Area, pos cube.Pos) bool {
	if !a.contains(pos) {
		return true
	}
	if !a.relightChannel(pos, blockChannel) {
		return false
	}
	if a.noSky {
		return true
	}
	return a.relightChannel(pos, skyChannel)
}

// relightChannel relights a single channel around a mutated position using
// the darken-then-respread discipline: light previously fed through the
// position is removed, after which the remaining sources around the darkened
// zone are flooded back in.
func (a *Area) relightChannel(pos cube.Pos, ch channel) bool {
	old := a.light(pos, ch)
	a.setLight(pos, ch, 0)

	removal := []lightNode{{pos: pos, level: old}}
	var reseed []lightNode
	darkened := 0

	for len(removal) > 0 {
		n := removal[0]
		removal = removal[1:]

		for _, f := range cube.Faces() {
			q := n.pos.Side(f)
			if !a.contains(q) {
				continue
			}
			ql := a.light(q, ch)
			if ql == 0 {
				continue
			}
			// A neighbour that is strictly dimmer than the removed node was
			// lit through it. Sky light additionally feeds straight down at
			// full level, so an equal level below a removed 15 is dependent
			// as well.
			if ql < n.level || (ch == skyChannel && f == cube.FaceDown && n.level == 15) {
				a.setLight(q, ch, 0)
				removal = append(removal, lightNode{pos: q, level: ql})
				if darkened++; darkened > relightBudget {
					return false
				}
				continue
			}
			// The neighbour holds light of its own: it becomes a source to
			// flood the darkened zone back in from.
			reseed = append(reseed, lightNode{pos: q, level: ql})
		}
	}

	if ch == blockChannel {
		if em := a.emission(pos); em > 0 {
			a.setLight(pos, ch, em)
			reseed = append(reseed, lightNode{pos: pos, level: em})
		}
	} else {
		// The mutation may have opened or closed the column of sky above the
		// position: recompute the straight-down sky column it is part of.
		reseed = a.seedSkyColumn(reseed, pos[0], pos[2])
	}
	a.spread(reseed, ch)
	return true
}

// spread runs the breadth-first flood fill of a channel from the source
// nodes passed.
func (a *Area) spread(queue []lightNode, ch channel) {
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for _, f := range cube.Faces() {
			q := n.pos.Side(f)
			if !a.contains(q) {
				continue
			}
			nl := a.stepLevel(n.level, q, ch, f)
			if nl > a.light(q, ch) {
				a.setLight(q, ch, nl)
				queue = append(queue, lightNode{pos: q, level: nl})
			}
		}
	}
}

// stepLevel returns the light level that arrives at a neighbour q when
// propagated from a node at the level passed through the face passed. Sky
// light at full level travels straight down without attenuation, which is
// what fills each open column from a single seed at its top.
func (a *Area) stepLevel(level uint8, q cube.Pos, ch channel, f cube.Face) uint8 {
	op := a.opacity(q)
	if ch == skyChannel && f == cube.FaceDown && level == 15 && op == 0 {
		return 15
	}
	cost := uint8(1)
	if op > cost {
		cost = op
	}
	if level <= cost {
		return 0
	}
	return level - cost
}

// seedSkyLight seeds the sky channel of every column in the Area by lighting
// its top voxel, appending the resulting source nodes to queue.
func (a *Area) seedSkyLight(queue []lightNode) []lightNode {
	baseX, baseZ := a.baseX<<4, a.baseZ<<4
	for x := 0; x < a.w<<4; x++ {
		for z := 0; z < a.w<<4; z++ {
			queue = a.seedSkyColumn(queue, baseX+x, baseZ+z)
		}
	}
	return queue
}

// seedSkyColumn recomputes the straight-down sky light of the (x, z) column
// from the top of the world, appending each lit voxel to queue so sideways
// propagation happens in the later flood fill. The column walk applies the
// exact same step rule as the flood fill itself so that a column seed and a
// propagated path can never disagree.
func (a *Area) seedSkyColumn(queue []lightNode, x, z int) []lightNode {
	level := uint8(15)
	for y := a.r[1]; y >= a.r[0]; y-- {
		pos := cube.Pos{x, y, z}
		level = a.stepLevel(level, pos, skyChannel, cube.FaceDown)
		if level == 0 {
			break
		}
		if a.light(pos, skyChannel) != level {
			a.setLight(pos, skyChannel, level)
		}
		queue = append(queue, lightNode{pos: pos, level: level})
	}
	return queue
}

// seedBlockLight seeds the block channel from every light emitting voxel in
// the Area, appending the sources to queue.
func (a *Area) seedBlockLight(queue []lightNode) []lightNode {
	for cx := 0; cx < a.w; cx++ {
		for cz := 0; cz < a.w; cz++ {
			c := a.c[cx*a.w+cz]
			baseX, baseZ := (a.baseX+cx)<<4, (a.baseZ+cz)<<4
			for i, sub := range c.sub {
				if sub.Empty() {
					continue
				}
				baseY := int(c.SubY(int16(i)))
				for x := byte(0); x < 16; x++ {
					for z := byte(0); z < 16; z++ {
						for y := byte(0); y < 16; y++ {
							em := LightBlocks[sub.Block(x, y, z)]
							if em == 0 {
								continue
							}
							pos := cube.Pos{baseX + int(x), baseY + int(y), baseZ + int(z)}
							if em > a.light(pos, blockChannel) {
								a.setLight(pos, blockChannel, em)
								queue = append(queue, lightNode{pos: pos, level: em})
							}
						}
					}
				}
			}
		}
	}
	return queue
}
