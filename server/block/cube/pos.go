package cube

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Pos holds the position of a block. The position is represented of an array
// with an x, y and z value, where the y value is the vertical axis.
type Pos [3]int

// X returns the X coordinate of the block position.
func (p Pos) X() int {
	return p[0]
}

// Y returns the Y coordinate of the block position.
func (p Pos) Y() int {
	return p[1]
}

// Z returns the Z coordinate of the block position.
func (p Pos) Z() int {
	return p[2]
}

// String converts the Pos to a string in the format (1,2,3) and returns it.
func (p Pos) String() string {
	return fmt.Sprintf("(%v,%v,%v)", p[0], p[1], p[2])
}

// Add adds two block positions together and returns a new one with the sum as
// its value.
func (p Pos) Add(pos Pos) Pos {
	return Pos{p[0] + pos[0], p[1] + pos[1], p[2] + pos[2]}
}

// Sub subtracts pos from p and returns a new Pos with the difference.
func (p Pos) Sub(pos Pos) Pos {
	return Pos{p[0] - pos[0], p[1] - pos[1], p[2] - pos[2]}
}

// Vec3 returns a vec3 holding the same coordinates as the block position.
func (p Pos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// Vec3Centre returns a Vec3 holding the coordinates of the block position
// with 0.5 added on all axes, so that it points to the centre of the block.
func (p Pos) Vec3Centre() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]) + 0.5, float64(p[1]) + 0.5, float64(p[2]) + 0.5}
}

// Side returns the position on the side of this block position, at a specific
// face.
func (p Pos) Side(face Face) Pos {
	switch face {
	case FaceUp:
		p[1]++
	case FaceDown:
		p[1]--
	case FaceNorth:
		p[2]--
	case FaceSouth:
		p[2]++
	case FaceWest:
		p[0]--
	case FaceEast:
		p[0]++
	}
	return p
}

// Face returns the face that the other Pos was on compared to the current
// position. The other Pos is assumed to be a direct neighbour of the current
// Pos.
func (p Pos) Face(other Pos) Face {
	for _, f := range Faces() {
		if p.Side(f) == other {
			return f
		}
	}
	return FaceUp
}

// Neighbours calls the function passed for each of the block position's
// neighbours. If the Y value of a neighbour is out of the range passed, the
// function will not be called for that position.
func (p Pos) Neighbours(f func(neighbour Pos), r Range) {
	if p.OutOfBounds(r) {
		return
	}
	p[0]++
	f(p)
	p[0] -= 2
	f(p)
	p[0]++
	p[1]++
	if p[1] <= r[1] {
		f(p)
	}
	p[1] -= 2
	if p[1] >= r[0] {
		f(p)
	}
	p[1]++
	p[2]++
	f(p)
	p[2] -= 2
	f(p)
}

// OutOfBounds checks if the Y value of the position is lower or higher than
// the Range r passed.
func (p Pos) OutOfBounds(r Range) bool {
	return p[1] > r[1] || p[1] < r[0]
}

// PosFromVec3 returns a block position by a Vec3, rounding the values down
// adequately.
func PosFromVec3(vec3 mgl64.Vec3) Pos {
	return Pos{int(floor(vec3[0])), int(floor(vec3[1])), int(floor(vec3[2]))}
}

// floor floors the float64 passed and returns it as a float64.
func floor(f float64) float64 {
	v := float64(int(f))
	if f < v {
		return v - 1
	}
	return v
}
