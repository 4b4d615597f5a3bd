package cube

// Face represents the face of a block or entity.
type Face int

const (
	// FaceDown represents the bottom face of a block.
	FaceDown Face = iota
	// FaceUp represents the top face of a block.
	FaceUp
	// FaceNorth represents the north face of a block.
	FaceNorth
	// FaceSouth represents the south face of a block.
	FaceSouth
	// FaceWest represents the west face of a block.
	FaceWest
	// FaceEast represents the east face of a block.
	FaceEast
)

// Opposite returns the opposite face. FaceDown will return FaceUp and so
// forth.
func (f Face) Opposite() Face {
	switch f {
	case FaceDown:
		return FaceUp
	case FaceUp:
		return FaceDown
	case FaceNorth:
		return FaceSouth
	case FaceSouth:
		return FaceNorth
	case FaceWest:
		return FaceEast
	case FaceEast:
		return FaceWest
	}
	panic("invalid face")
}

// String returns the Face as a string.
func (f Face) String() string {
	switch f {
	case FaceDown:
		return "down"
	case FaceUp:
		return "up"
	case FaceNorth:
		return "north"
	case FaceSouth:
		return "south"
	case FaceWest:
		return "west"
	case FaceEast:
		return "east"
	}
	panic("invalid face")
}

// Faces returns a list of all faces, from down to east.
func Faces() []Face {
	return faces[:]
}

var faces = [...]Face{FaceDown, FaceUp, FaceNorth, FaceSouth, FaceWest, FaceEast}
