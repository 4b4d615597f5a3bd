package world

import (
	"github.com/hearthvox/hearth/server/world/chunk"
)

// Column is a runtime wrapper around the chunk data of one position: the
// stored column plus the state that only matters while it is loaded. Columns
// are exclusively owned by the cache; subscribers hold references counted by
// the cache entry, never the Column itself.
type Column struct {
	*chunk.Column

	// modified is set when the column diverges from what the provider has
	// stored and cleared when it is flushed.
	modified bool
	// payload caches the column's serialized wire form. Invalidated on every
	// mutation, rebuilt on demand at a safe point.
	payload []byte
	// viewers are the viewers of loaders currently showing this column.
	// Mutations within the column are replicated to each.
	viewers []Viewer
}

// newColumn wraps the chunk data of a freshly loaded or generated column.
func newColumn(col *chunk.Column) *Column {
	return &Column{Column: col}
}

// invalidate marks the column dirty and drops its cached payload.
func (col *Column) invalidate() {
	col.modified = true
	col.payload = nil
}
