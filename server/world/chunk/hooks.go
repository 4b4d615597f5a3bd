package chunk

// Runtime IDs are not stable between versions or registry changes, so block
// palettes are persisted as (name, properties, version) tuples and resolved
// through these hooks on load. The block registry sets all of them during
// init, before any chunk is created.
var (
	// FilteringBlocks holds the amount of light each block filters, indexed
	// by runtime ID. A value of 15 means the block is fully opaque. It is
	// filled by the block registry before any chunk is created.
	FilteringBlocks []uint8
	// LightBlocks holds the light level emitted by each block, indexed by
	// runtime ID.
	LightBlocks []uint8

	// StateToRuntimeID converts a persistent block state to a runtime ID. It
	// is set by the block registry. The bool returned is false if the state
	// is not known to the registry.
	StateToRuntimeID func(name string, properties map[string]any) (uint32, bool)
	// RuntimeIDToState converts a runtime ID to a persistent block state.
	RuntimeIDToState func(rid uint32) (name string, properties map[string]any, found bool)
)
