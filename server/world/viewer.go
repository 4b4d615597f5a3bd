package world

import (
	"github.com/hearthvox/hearth/server/block/cube"
)

// Viewer is the outbound side of a column subscription: the protocol layer
// implements it to receive the data a player must be shown. Payloads handed
// to a Viewer are already serialized and immutable; the Viewer frames and
// transmits them without reaching back into the world.
type Viewer interface {
	// ViewColumn is called when a column enters the Viewer's view, with the
	// column's serialized payload.
	ViewColumn(pos ChunkPos, payload []byte)
	// HideColumn is called when a column leaves the Viewer's view.
	HideColumn(pos ChunkPos)
	// ViewBlockUpdate is called for every block mutation within view, with
	// the cause the mutation carried.
	ViewBlockUpdate(pos cube.Pos, rid uint32, cause Cause)
}

// NopViewer is a Viewer implementation that ignores everything it is shown.
type NopViewer struct{}

func (NopViewer) ViewColumn(ChunkPos, []byte)             {}
func (NopViewer) HideColumn(ChunkPos)                     {}
func (NopViewer) ViewBlockUpdate(cube.Pos, uint32, Cause) {}
