package region

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// sectorSize is the allocation unit of the sector format. Payloads always
	// occupy whole sectors.
	sectorSize = 4096
	// headerSectors is the amount of sectors at the start of a file reserved
	// for the preamble, the directory and the timestamp table.
	headerSectors = 4

	sectorVersion = 1

	// recordHeaderSize is the per-record prefix inside a sector run: a uint32
	// payload length and a uint64 xxhash of the payload.
	recordHeaderSize = 4 + 8
)

// sectorMagic is the preamble every sector format region file starts with.
var sectorMagic = [8]byte{'H', 'R', 'G', 'N', 'S', 'E', 'C', 0}

// sectorEntry is one directory slot: the sector run holding a column's
// current record.
type sectorEntry struct {
	offset uint32 // first sector, counted from the start of the file
	count  uint32 // run length in sectors, 0 if the slot is empty
}

// sectorFile is the random-access region container. A directory at the start
// of the file maps each of the 1024 column slots to a run of sectors; reads
// are a single seek through the directory. Writes that outgrow their run move
// to a free run or the end of the file and update the directory.
type sectorFile struct {
	f       *os.File
	entries [1024]sectorEntry
	stamps  [1024]uint32
	// used tracks sector allocation so freed runs can be reused by later
	// writes. Index 0 is the header area.
	used []bool
}

// openSectorFile opens a sector format region file, creating it with an empty
// directory if absent. A file whose preamble cannot be validated is a hard
// error: guessing at an unreadable header risks destroying every column in
// the region.
func openSectorFile(path string) (*sectorFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	r := &sectorFile{f: f}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		if err := r.writeHeader(); err != nil {
			return nil, fmt.Errorf("initialise: %w", err)
		}
		r.rebuildAllocation()
		return r, nil
	}
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	r.rebuildAllocation()
	return r, nil
}

// read returns the current record of the column slot at region-local (x, z).
func (r *sectorFile) read(x, z uint8) ([]byte, error) {
	entry := r.entries[slot(x, z)]
	if entry.count == 0 {
		return nil, ErrNotFound
	}
	buf := make([]byte, int(entry.count)*sectorSize)
	if _, err := r.f.ReadAt(buf, int64(entry.offset)*sectorSize); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(buf)
	if int(length) > len(buf)-recordHeaderSize {
		return nil, fmt.Errorf("%w: record length %v exceeds %v allocated sectors", errCorrupt, length, entry.count)
	}
	sum := binary.LittleEndian.Uint64(buf[4:])
	payload := buf[recordHeaderSize : recordHeaderSize+int(length)]
	if xxhash.Sum64(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", errCorrupt)
	}
	return payload, nil
}

// write stores a record for the column slot at region-local (x, z). A record
// that moves to a new sector run is fully written before the directory is
// updated, so a crash mid-write leaves the old record reachable. An in-place
// overwrite torn by a crash is caught by the checksum on the next read.
func (r *sectorFile) write(x, z uint8, payload []byte) error {
	s := slot(x, z)
	need := uint32((recordHeaderSize + len(payload) + sectorSize - 1) / sectorSize)

	old := r.entries[s]
	if old.count > 0 && old.count != need {
		r.setUsed(old, false)
	}
	entry := old
	if old.count != need {
		entry = sectorEntry{offset: r.allocate(need), count: need}
	}

	buf := make([]byte, int(need)*sectorSize)
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	binary.LittleEndian.PutUint64(buf[4:], xxhash.Sum64(payload))
	copy(buf[recordHeaderSize:], payload)
	if _, err := r.f.WriteAt(buf, int64(entry.offset)*sectorSize); err != nil {
		if old.count > 0 && old.count != need {
			r.setUsed(old, true)
		}
		return err
	}

	r.entries[s] = entry
	r.stamps[s] = nowStamp()
	r.setUsed(entry, true)
	return r.writeDirectoryEntry(s)
}

// defragment drops sectors no directory entry references by rewriting the
// file with every record packed back to back.
func (r *sectorFile) defragment() error {
	records := make(map[uint16][]byte)
	for s, entry := range r.entries {
		if entry.count == 0 {
			continue
		}
		payload, err := r.read(uint8(s>>5), uint8(s&31))
		if err == nil {
			records[uint16(s)] = payload
		}
	}
	if err := r.f.Truncate(0); err != nil {
		return err
	}
	r.entries = [1024]sectorEntry{}
	if err := r.writeHeader(); err != nil {
		return err
	}
	r.rebuildAllocation()
	for s, payload := range records {
		if err := r.write(uint8(s>>5), uint8(s&31), payload); err != nil {
			return err
		}
	}
	return nil
}

func (r *sectorFile) close() error {
	return r.f.Close()
}

// allocate returns the first run of free sectors able to hold n sectors,
// growing the allocation map past the end of the file if no gap fits.
func (r *sectorFile) allocate(n uint32) uint32 {
	run := uint32(0)
	for i := uint32(headerSectors); ; i++ {
		if int(i) >= len(r.used) {
			r.used = append(r.used, false)
		}
		if r.used[i] {
			run = 0
			continue
		}
		if run++; run == n {
			return i - n + 1
		}
	}
}

// setUsed marks the sectors of a directory entry used or free.
func (r *sectorFile) setUsed(entry sectorEntry, used bool) {
	for i := entry.offset; i < entry.offset+entry.count; i++ {
		for int(i) >= len(r.used) {
			r.used = append(r.used, false)
		}
		r.used[i] = used
	}
}

// rebuildAllocation recomputes the sector allocation map from the directory.
func (r *sectorFile) rebuildAllocation() {
	r.used = make([]bool, headerSectors)
	for i := 0; i < headerSectors; i++ {
		r.used[i] = true
	}
	for _, entry := range r.entries {
		if entry.count > 0 {
			r.setUsed(entry, true)
		}
	}
}

// writeHeader writes the preamble and the full directory and timestamp
// tables.
func (r *sectorFile) writeHeader() error {
	buf := make([]byte, headerSectors*sectorSize)
	copy(buf, sectorMagic[:])
	binary.LittleEndian.PutUint32(buf[8:], sectorVersion)
	for s := range r.entries {
		putDirectoryEntry(buf, uint16(s), r.entries[s], r.stamps[s])
	}
	_, err := r.f.WriteAt(buf, 0)
	return err
}

// writeDirectoryEntry persists the directory and timestamp slots of a single
// column.
func (r *sectorFile) writeDirectoryEntry(s uint16) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:], r.entries[s].offset)
	binary.LittleEndian.PutUint32(buf[4:], r.entries[s].count)
	if _, err := r.f.WriteAt(buf[:], directoryOffset(s)); err != nil {
		return err
	}
	var stamp [4]byte
	binary.LittleEndian.PutUint32(stamp[:], r.stamps[s])
	_, err := r.f.WriteAt(stamp[:], stampOffset(s))
	return err
}

// putDirectoryEntry writes the directory and timestamp slots of a single
// column into an in-memory header buffer, the layout readHeader parses.
func putDirectoryEntry(buf []byte, s uint16, entry sectorEntry, stamp uint32) {
	off := directoryOffset(s)
	binary.LittleEndian.PutUint32(buf[off:], entry.offset)
	binary.LittleEndian.PutUint32(buf[off+4:], entry.count)
	binary.LittleEndian.PutUint32(buf[stampOffset(s):], stamp)
}

// readHeader parses and validates the preamble, directory and timestamp
// tables.
func (r *sectorFile) readHeader() error {
	buf := make([]byte, headerSectors*sectorSize)
	if _, err := io.ReadFull(io.NewSectionReader(r.f, 0, int64(len(buf))), buf); err != nil {
		return fmt.Errorf("header too short: %w", err)
	}
	if [8]byte(buf[:8]) != sectorMagic {
		return fmt.Errorf("not a sector format region file")
	}
	if v := binary.LittleEndian.Uint32(buf[8:]); v != sectorVersion {
		return fmt.Errorf("unsupported sector format version %v", v)
	}
	for s := range r.entries {
		off := directoryOffset(uint16(s))
		r.entries[s] = sectorEntry{
			offset: binary.LittleEndian.Uint32(buf[off:]),
			count:  binary.LittleEndian.Uint32(buf[off+4:]),
		}
		r.stamps[s] = binary.LittleEndian.Uint32(buf[stampOffset(uint16(s)):])
		if entry := r.entries[s]; entry.count > 0 && entry.offset < headerSectors {
			return fmt.Errorf("directory slot %v overlaps the header", s)
		}
	}
	return nil
}

// nowStamp returns the current time as a directory timestamp.
func nowStamp() uint32 {
	return uint32(time.Now().Unix())
}

// slot maps region-local coordinates to a directory slot.
func slot(x, z uint8) uint16 {
	return uint16(x&31)<<5 | uint16(z&31)
}

// directoryOffset is the byte offset of a slot's directory entry.
func directoryOffset(s uint16) int64 {
	return 16 + int64(s)*8
}

// stampOffset is the byte offset of a slot's last-modified timestamp.
func stampOffset(s uint16) int64 {
	return 16 + 1024*8 + int64(s)*4
}
