package chunk

import (
	"testing"
)

func TestPaletteSizeFor(t *testing.T) {
	for _, c := range []struct {
		n    int
		size paletteSize
	}{
		{1, size0}, {2, size1}, {3, size2}, {4, size2}, {5, size3},
		{9, size4}, {17, size5}, {33, size6}, {65, size8}, {257, size16},
	} {
		if size := paletteSizeFor(c.n); size != c.size {
			t.Errorf("paletteSizeFor(%v): got %v, want %v", c.n, size, c.size)
		}
	}
}

func TestPaletteSizeUint32s(t *testing.T) {
	for _, c := range []struct {
		size  paletteSize
		words int
	}{
		{size0, 0}, {size1, 128}, {size2, 256}, {size3, 410}, {size4, 512},
		{size5, 683}, {size6, 820}, {size8, 1024}, {size16, 2048},
	} {
		if n := c.size.uint32s(4096); n != c.words {
			t.Errorf("size %v: got %v words, want %v", c.size, n, c.words)
		}
	}
}

func TestPaletteAddResizes(t *testing.T) {
	palette := newPalette(size1, []uint32{7, 8})
	if _, resize := palette.Add(9); !resize {
		t.Fatalf("adding a third value to a 1-bit palette must resize")
	}
	if palette.size != size2 {
		t.Fatalf("palette size after resize: got %v, want %v", palette.size, size2)
	}
	if i := palette.Index(9); i != 2 {
		t.Fatalf("index of added value: got %v, want 2", i)
	}
}

func TestPaletteIndexCaching(t *testing.T) {
	palette := newPalette(size2, []uint32{4, 5, 6})
	if i := palette.Index(6); i != 2 {
		t.Fatalf("Index(6): got %v, want 2", i)
	}
	// Second lookup hits the cached entry.
	if i := palette.Index(6); i != 2 {
		t.Fatalf("cached Index(6): got %v, want 2", i)
	}
	if i := palette.Index(42); i != -1 {
		t.Fatalf("Index of missing value: got %v, want -1", i)
	}
}

func TestPaletteReplace(t *testing.T) {
	palette := newPalette(size2, []uint32{1, 2, 3})
	palette.Index(3)
	palette.Replace(func(v uint32) uint32 { return v * 10 })
	if i := palette.Index(30); i != 2 {
		t.Fatalf("Index(30) after Replace: got %v, want 2", i)
	}
	if i := palette.Index(3); i != -1 {
		t.Fatalf("old value still resolvable after Replace")
	}
}
