package world

import (
	"github.com/hearthvox/hearth/server/block/cube"
)

// Dimension is a dimension of a World. It influences a variety of properties
// of a World such as the height it has and whether sky light propagates into
// its columns.
type Dimension interface {
	// Range returns the lowest and highest valid Y coordinates of blocks in
	// the Dimension.
	Range() cube.Range
	// HasSkyLight specifies if the Dimension has sky light that must be
	// calculated for its columns.
	HasSkyLight() bool
	String() string
}

var (
	// Overworld is the Dimension implementation of a normal overworld.
	Overworld overworld
	// Nether is a Dimension implementation with a lower world height and no
	// sky light.
	Nether nether
	// End is a Dimension implementation with no sky light.
	End end
)

type overworld struct{}

func (overworld) Range() cube.Range { return cube.Range{-64, 319} }
func (overworld) HasSkyLight() bool { return true }
func (overworld) String() string    { return "overworld" }

type nether struct{}

func (nether) Range() cube.Range { return cube.Range{0, 127} }
func (nether) HasSkyLight() bool { return false }
func (nether) String() string    { return "nether" }

type end struct{}

func (end) Range() cube.Range { return cube.Range{0, 255} }
func (end) HasSkyLight() bool { return false }
func (end) String() string    { return "end" }
