package chunk

// HeightMap holds one int16 y value for each of the 256 (x, z) positions of a
// chunk.
type HeightMap []int16

// At returns the y value at a chunk-local x and z.
func (h HeightMap) At(x, z uint8) int16 {
	return h[(uint16(x)<<4)|uint16(z)]
}

// Set sets the y value at a chunk-local x and z.
func (h HeightMap) Set(x, z uint8, val int16) {
	h[(uint16(x)<<4)|uint16(z)] = val
}
