package chunk

import (
	"os"
	"testing"

	"github.com/hearthvox/hearth/server/block/cube"
)

// The block registry used by all tests in this package: a handful of states
// covering the interesting combinations of light filtering and emission.
var testStates = []struct {
	name   string
	filter uint8
	emit   uint8
}{
	{name: "hearth:air"},
	{name: "hearth:stone", filter: 15},
	{name: "hearth:glass"},
	{name: "hearth:leaves", filter: 1},
	{name: "hearth:glowstone", filter: 15, emit: 15},
	{name: "hearth:torch", emit: 14},
}

const (
	testAir uint32 = iota
	testStone
	testGlass
	testLeaves
	testGlowstone
	testTorch
)

func TestMain(m *testing.M) {
	FilteringBlocks = make([]uint8, len(testStates))
	LightBlocks = make([]uint8, len(testStates))
	for i, s := range testStates {
		FilteringBlocks[i] = s.filter
		LightBlocks[i] = s.emit
	}
	StateToRuntimeID = func(name string, _ map[string]any) (uint32, bool) {
		for i, s := range testStates {
			if s.name == name {
				return uint32(i), true
			}
		}
		return 0, false
	}
	RuntimeIDToState = func(rid uint32) (string, map[string]any, bool) {
		if int(rid) >= len(testStates) {
			return "", nil, false
		}
		return testStates[rid].name, nil, true
	}
	os.Exit(m.Run())
}

var testRange = cube.Range{0, 63}

func TestChunkBlockRoundTrip(t *testing.T) {
	c := New(testAir, testRange)
	c.SetBlock(3, 40, 9, testStone)

	if rid := c.Block(3, 40, 9); rid != testStone {
		t.Fatalf("Block(3, 40, 9): got %v, want %v", rid, testStone)
	}
	if rid := c.Block(3, 41, 9); rid != testAir {
		t.Fatalf("neighbouring voxel: got %v, want air", rid)
	}
}

func TestChunkOutOfRange(t *testing.T) {
	c := New(testAir, testRange)
	// Writes outside the vertical range are dropped, reads return air.
	c.SetBlock(0, int16(testRange[1])+1, 0, testStone)
	c.SetBlock(0, int16(testRange[0])-1, 0, testStone)

	if rid := c.Block(0, int16(testRange[1])+1, 0); rid != testAir {
		t.Fatalf("read above the range: got %v, want air", rid)
	}
	if rid := c.Block(0, int16(testRange[0])-1, 0); rid != testAir {
		t.Fatalf("read below the range: got %v, want air", rid)
	}
}

func TestChunkBiome(t *testing.T) {
	c := New(testAir, testRange)
	c.SetBiome(7, 12, 7, 4)
	if b := c.Biome(7, 12, 7); b != 4 {
		t.Fatalf("Biome(7, 12, 7): got %v, want 4", b)
	}
	if b := c.Biome(7, 13, 7); b != 0 {
		t.Fatalf("untouched biome: got %v, want 0", b)
	}
}

func TestChunkHighestBlock(t *testing.T) {
	c := New(testAir, testRange)
	for y := int16(0); y <= 20; y++ {
		c.SetBlock(5, y, 5, testStone)
	}
	c.SetBlock(5, 30, 5, testGlass)

	if y := c.HighestBlock(5, 5); y != 30 {
		t.Fatalf("HighestBlock: got %v, want 30", y)
	}
	// Glass does not block light, so the highest blocker is the stone below.
	if y := c.HighestLightBlocker(5, 5); y != 20 {
		t.Fatalf("HighestLightBlocker: got %v, want 20", y)
	}
	if y := c.HighestBlock(6, 5); y != int16(testRange[0]) {
		t.Fatalf("HighestBlock of empty column: got %v, want %v", y, testRange[0])
	}
}

func TestChunkHeightMapTracksMutations(t *testing.T) {
	c := New(testAir, testRange)
	c.SetBlock(0, 10, 0, testStone)
	if y := c.HighestBlock(0, 0); y != 10 {
		t.Fatalf("HighestBlock: got %v, want 10", y)
	}
	c.SetBlock(0, 10, 0, testAir)
	if y := c.HighestBlock(0, 0); y != int16(testRange[0]) {
		t.Fatalf("HighestBlock after removal: got %v, want %v", y, testRange[0])
	}
}

func TestSubChunkEmpty(t *testing.T) {
	sub := NewSubChunk(testAir)
	if !sub.Empty() {
		t.Fatalf("fresh section not Empty")
	}
	sub.SetBlock(0, 0, 0, testStone)
	if sub.Empty() {
		t.Fatalf("section with a block still Empty")
	}
	sub.SetBlock(0, 0, 0, testAir)
	sub.compact()
	if !sub.Empty() {
		t.Fatalf("compacted all-air section not Empty")
	}
}
