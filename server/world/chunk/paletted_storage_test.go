package chunk

import (
	"testing"
)

func TestPalettedStorageSetAt(t *testing.T) {
	storage := emptyStorage(0)
	storage.Set(1, 2, 3, 17)
	storage.Set(15, 15, 15, 42)

	if v := storage.At(1, 2, 3); v != 17 {
		t.Fatalf("At(1, 2, 3): got %v, want 17", v)
	}
	if v := storage.At(15, 15, 15); v != 42 {
		t.Fatalf("At(15, 15, 15): got %v, want 42", v)
	}
	if v := storage.At(0, 0, 0); v != 0 {
		t.Fatalf("untouched voxel: got %v, want 0", v)
	}
}

// TestPalettedStorageGrowth sets more unique values than each palette size can
// hold and checks that every voxel still reads back what was written.
func TestPalettedStorageGrowth(t *testing.T) {
	storage := emptyStorage(0)
	v := uint32(0)
	for x := byte(0); x < 16; x++ {
		for z := byte(0); z < 16; z++ {
			for y := byte(0); y < 16; y++ {
				storage.Set(x, y, z, v)
				v++
			}
		}
	}
	if storage.bitsPerIndex != uint16(size16) {
		t.Fatalf("bits per index after 4096 unique values: got %v, want %v", storage.bitsPerIndex, size16)
	}
	v = 0
	for x := byte(0); x < 16; x++ {
		for z := byte(0); z < 16; z++ {
			for y := byte(0); y < 16; y++ {
				if got := storage.At(x, y, z); got != v {
					t.Fatalf("At(%v, %v, %v): got %v, want %v", x, y, z, got, v)
				}
				v++
			}
		}
	}
}

func TestPalettedStorageCompact(t *testing.T) {
	storage := emptyStorage(0)
	for i := uint32(1); i <= 40; i++ {
		storage.Set(byte(i&15), byte(i>>4), 0, i)
	}
	// Overwrite everything back to the zero value, leaving the palette full of
	// unused entries.
	for i := uint32(1); i <= 40; i++ {
		storage.Set(byte(i&15), byte(i>>4), 0, 0)
	}
	storage.compact()

	if n := storage.palette.Len(); n != 1 {
		t.Fatalf("palette length after compact: got %v, want 1", n)
	}
	if storage.bitsPerIndex != uint16(size0) {
		t.Fatalf("bits per index after compact: got %v, want %v", storage.bitsPerIndex, size0)
	}
	if v := storage.At(3, 1, 0); v != 0 {
		t.Fatalf("voxel after compact: got %v, want 0", v)
	}
}

func TestPalettedStorageEqual(t *testing.T) {
	a, b := emptyStorage(0), emptyStorage(0)
	a.Set(4, 5, 6, 9)
	b.Set(4, 5, 6, 9)
	if !a.Equal(b) {
		t.Fatalf("identical storages not Equal")
	}
	b.Set(4, 5, 6, 10)
	if a.Equal(b) {
		t.Fatalf("diverged storages still Equal")
	}
}
