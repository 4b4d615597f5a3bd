package world

import (
	"sort"
	"strconv"
	"strings"

	"github.com/brentp/intintmap"
	"github.com/cespare/xxhash/v2"
	"github.com/hearthvox/hearth/server/world/chunk"
)

// BlockState identifies one voxel state of the closed block set by its name
// and property map. The set of states is fixed at init: behaviour is
// dispatched by matching on the name, never through per-block interfaces.
type BlockState struct {
	Name       string
	Properties map[string]any
}

// blockDef is the registered definition of a single state.
type blockDef struct {
	state BlockState
	// filter is the amount of light the block filters out of a passing ray,
	// 15 for fully opaque blocks.
	filter uint8
	// emission is the light level the block emits.
	emission uint8
	// randomTick marks blocks that receive random ticks while their column is
	// within simulation range.
	randomTick bool
	// solid marks blocks that obstruct movement, used for spawn placement.
	solid bool
}

var (
	// blocks holds every registered state, indexed by runtime ID.
	blocks []blockDef
	// stateIDs maps the hash of a state to its runtime ID.
	stateIDs = intintmap.New(256, 0.6)
)

// BlockRuntimeID resolves the runtime ID of a block state. The bool returned
// is false if the state is not part of the block set.
func BlockRuntimeID(name string, properties map[string]any) (uint32, bool) {
	rid, ok := stateIDs.Get(int64(stateHash(name, properties)))
	return uint32(rid), ok
}

// BlockByRuntimeID returns the state registered under a runtime ID.
func BlockByRuntimeID(rid uint32) (BlockState, bool) {
	if int(rid) >= len(blocks) {
		return BlockState{}, false
	}
	return blocks[rid].state, true
}

// AirRuntimeID returns the runtime ID of air, the zero state of every column.
func AirRuntimeID() uint32 {
	return airRID
}

var airRID uint32

// register adds a state to the block set and returns its runtime ID.
func register(def blockDef) uint32 {
	rid := uint32(len(blocks))
	blocks = append(blocks, def)
	stateIDs.Put(int64(stateHash(def.state.Name, def.state.Properties)), int64(rid))
	return rid
}

// stateHash produces a hash of a state's name and canonically ordered
// properties, used as the registry lookup key.
func stateHash(name string, properties map[string]any) uint64 {
	if len(properties) == 0 {
		return xxhash.Sum64String(name)
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		switch v := properties[k].(type) {
		case string:
			b.WriteString(v)
		case bool:
			if v {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		default:
			b.WriteString("?")
		}
	}
	return xxhash.Sum64String(b.String())
}

func init() {
	airRID = register(blockDef{state: BlockState{Name: "hearth:air"}})
	for _, def := range []blockDef{
		{state: BlockState{Name: "hearth:bedrock"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:stone"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:dirt"}, filter: 15, solid: true, randomTick: true},
		{state: BlockState{Name: "hearth:grass_block"}, filter: 15, solid: true, randomTick: true},
		{state: BlockState{Name: "hearth:sand"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:gravel"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:water"}, filter: 2},
		{state: BlockState{Name: "hearth:oak_log"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:oak_leaves"}, filter: 1, randomTick: true},
		{state: BlockState{Name: "hearth:glass"}, solid: true},
		{state: BlockState{Name: "hearth:tall_grass"}, randomTick: true},
		{state: BlockState{Name: "hearth:torch"}, emission: 14},
		{state: BlockState{Name: "hearth:glowstone"}, filter: 15, emission: 15, solid: true},
		{state: BlockState{Name: "hearth:coal_ore"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:iron_ore"}, filter: 15, solid: true},
		{state: BlockState{Name: "hearth:lava"}, filter: 15, emission: 15, randomTick: true},
		{state: BlockState{Name: "hearth:snow"}, filter: 15, solid: true},
	} {
		register(def)
	}

	chunk.FilteringBlocks = make([]uint8, len(blocks))
	chunk.LightBlocks = make([]uint8, len(blocks))
	for rid, def := range blocks {
		chunk.FilteringBlocks[rid] = def.filter
		chunk.LightBlocks[rid] = def.emission
	}
	chunk.StateToRuntimeID = BlockRuntimeID
	chunk.RuntimeIDToState = func(rid uint32) (string, map[string]any, bool) {
		state, ok := BlockByRuntimeID(rid)
		return state.Name, state.Properties, ok
	}
}
