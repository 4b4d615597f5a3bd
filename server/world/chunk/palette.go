package chunk

// paletteSize is the amount of bits used per palette index in a
// PalettedStorage. Only a closed set of sizes is valid so that indices are
// never split over a word boundary.
type paletteSize byte

const (
	size0 paletteSize = iota
	size1
	size2
	size3
	size4
	size5
	size6
	size8  = 8
	size16 = 16
)

// paletteSizes contains all valid palette sizes in ascending order.
var paletteSizes = []paletteSize{size0, size1, size2, size3, size4, size5, size6, size8, size16}

// paletteSizeFor returns the smallest paletteSize able to hold n distinct
// palette entries.
func paletteSizeFor(n int) paletteSize {
	for _, size := range paletteSizes {
		if size.capacity() >= n {
			return size
		}
	}
	// A palette can never hold more than 65536 entries: a section only has
	// 4096 voxels to begin with.
	panic("palette size overflow")
}

// capacity returns the maximum amount of palette entries that a paletteSize
// can reference.
func (size paletteSize) capacity() int {
	if size == size0 {
		return 1
	}
	return 1 << size
}

// uint32s returns the amount of uint32 words needed to store count indices of
// this size.
func (size paletteSize) uint32s(count int) int {
	if size == size0 {
		return 0
	}
	indicesPerWord := 32 / int(size)
	return (count + indicesPerWord - 1) / indicesPerWord
}

// Palette is a palette of values that every PalettedStorage has. Storages hold
// 'pointers' to indices in this palette.
type Palette struct {
	last      uint32
	lastIndex int16
	size      paletteSize

	// values is a map of values. A PalettedStorage points to the index to
	// this palette.
	values []uint32
}

// newPalette returns a new Palette with size and a slice of added values.
func newPalette(size paletteSize, values []uint32) *Palette {
	return &Palette{size: size, values: values, last: math32MaxUint32}
}

const math32MaxUint32 = ^uint32(0)

// Len returns the amount of unique values in the Palette.
func (palette *Palette) Len() int {
	return len(palette.values)
}

// Add adds a values to the Palette. It does not first check if the value was
// already set in the Palette. The index at which the value was added is
// returned. Another bool is returned indicating if the Palette was resized as
// a result of adding the value.
func (palette *Palette) Add(v uint32) (index int16, resize bool) {
	i := int16(len(palette.values))
	palette.values = append(palette.values, v)

	if palette.needsResize() {
		palette.increaseSize()
		return i, true
	}
	return i, false
}

// Replace calls the function passed for each value present in the Palette. The
// value returned by the function replaces the value present at the index of
// the value passed.
func (palette *Palette) Replace(f func(v uint32) uint32) {
	// Reset last entry as it is no longer valid.
	palette.last = math32MaxUint32
	for index, v := range palette.values {
		palette.values[index] = f(v)
	}
}

// Index loops through the values of the Palette and looks for the index of the
// given value. If the value could not be found, -1 is returned.
func (palette *Palette) Index(runtimeID uint32) int16 {
	if runtimeID == palette.last {
		// Fast path out.
		return palette.lastIndex
	}
	// Slow path in a separate function allows for inlining the fast path.
	return palette.indexSlow(runtimeID)
}

// indexSlow searches the index of a value in the Palette's values slice and
// caches it if found.
func (palette *Palette) indexSlow(runtimeID uint32) int16 {
	l := len(palette.values)
	for i := 0; i < l; i++ {
		if palette.values[i] == runtimeID {
			palette.last = runtimeID
			v := int16(i)
			palette.lastIndex = v
			return v
		}
	}
	return -1
}

// Value returns the value in the Palette at a specific index.
func (palette *Palette) Value(i uint16) uint32 {
	return palette.values[i]
}

// needsResize checks if the Palette, and with it the holding PalettedStorage,
// needs to be resized to a bigger size.
func (palette *Palette) needsResize() bool {
	return len(palette.values) > palette.size.capacity()
}

// increaseSize increases the size of the Palette to the next valid size.
func (palette *Palette) increaseSize() {
	for _, size := range paletteSizes {
		if size > palette.size {
			palette.size = size
			return
		}
	}
	panic("palette size overflow")
}
