package region

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

const logVersion = 1

// logMagic is the preamble every append-log region file starts with.
var logMagic = [8]byte{'H', 'R', 'G', 'N', 'L', 'O', 'G', 0}

// logRecordHeaderSize is the fixed prefix of every log record: a slot uint16,
// a uint32 payload length and a uint64 xxhash of the payload.
const logRecordHeaderSize = 2 + 4 + 8

// logFile is the append-only region container. Every write goes to the end
// of the file; an index built by scanning the file on open points reads at
// the most recent record of each column. A torn record at the end of the
// file, left by a crash mid-append, is detected during the scan and
// overwritten by the next write.
type logFile struct {
	f   *os.File
	log *slog.Logger

	// index maps directory slots to the file offset of their newest record.
	index map[uint16]int64
	// cursor is the end of the last valid record, where the next append
	// lands.
	cursor int64
}

// openLogFile opens an append-log region file, creating it with only the
// preamble if absent. As with the sector format, an unreadable preamble is a
// hard error for the file.
func openLogFile(path string, log *slog.Logger) (*logFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	r := &logFile{f: f, log: log, index: make(map[uint16]int64)}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		var header [16]byte
		copy(header[:], logMagic[:])
		binary.LittleEndian.PutUint32(header[8:], logVersion)
		if _, err := f.WriteAt(header[:], 0); err != nil {
			return nil, fmt.Errorf("initialise: %w", err)
		}
		r.cursor = int64(len(header))
		return r, nil
	}
	if err := r.scan(info.Size()); err != nil {
		return nil, err
	}
	return r, nil
}

// scan validates the preamble and walks every record in the file, building
// the read index. The scan stops at the first record that does not fully
// validate: anything past it is an unfinished append and is reclaimed.
func (r *logFile) scan(size int64) error {
	var header [16]byte
	if _, err := r.f.ReadAt(header[:], 0); err != nil {
		return fmt.Errorf("header too short: %w", err)
	}
	if [8]byte(header[:8]) != logMagic {
		return fmt.Errorf("not an append-log region file")
	}
	if v := binary.LittleEndian.Uint32(header[8:]); v != logVersion {
		return fmt.Errorf("unsupported append-log version %v", v)
	}

	offset := int64(len(header))
	for offset < size {
		slot, _, next, err := r.readRecord(offset)
		if err != nil {
			r.log.Warn("region: dropping torn record tail from append-log",
				"offset", offset, "tail", size-offset, "err", err)
			break
		}
		r.index[slot] = offset
		offset = next
	}
	r.cursor = offset
	return nil
}

// read returns the newest record of the column slot at region-local (x, z).
func (r *logFile) read(x, z uint8) ([]byte, error) {
	offset, ok := r.index[slot(x, z)]
	if !ok {
		return nil, ErrNotFound
	}
	_, payload, _, err := r.readRecord(offset)
	return payload, err
}

// write appends a record for the column slot at region-local (x, z) and
// points the index at it. The previous record becomes stale data removed by
// the next defragment.
func (r *logFile) write(x, z uint8, payload []byte) error {
	s := slot(x, z)
	buf := make([]byte, logRecordHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf, s)
	binary.LittleEndian.PutUint32(buf[2:], uint32(len(payload)))
	binary.LittleEndian.PutUint64(buf[6:], xxhash.Sum64(payload))
	copy(buf[logRecordHeaderSize:], payload)

	if _, err := r.f.WriteAt(buf, r.cursor); err != nil {
		return err
	}
	r.index[s] = r.cursor
	r.cursor += int64(len(buf))
	return nil
}

// readRecord reads and validates the record at offset, returning its slot,
// payload and the offset of the next record.
func (r *logFile) readRecord(offset int64) (uint16, []byte, int64, error) {
	var header [logRecordHeaderSize]byte
	if _, err := r.f.ReadAt(header[:], offset); err != nil {
		return 0, nil, 0, fmt.Errorf("%w: record header: %v", errCorrupt, err)
	}
	s := binary.LittleEndian.Uint16(header[:])
	length := binary.LittleEndian.Uint32(header[2:])
	sum := binary.LittleEndian.Uint64(header[6:])
	if s >= 1024 {
		return 0, nil, 0, fmt.Errorf("%w: slot %v out of range", errCorrupt, s)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(r.f, offset+logRecordHeaderSize, int64(length)), payload); err != nil {
		return 0, nil, 0, fmt.Errorf("%w: record payload: %v", errCorrupt, err)
	}
	if xxhash.Sum64(payload) != sum {
		return 0, nil, 0, fmt.Errorf("%w: checksum mismatch", errCorrupt)
	}
	return s, payload, offset + logRecordHeaderSize + int64(length), nil
}

// defragment compacts the log: the newest record of every column is written
// to a fresh file which atomically replaces the old one. Stale records and
// any torn tail disappear.
func (r *logFile) defragment() error {
	path := r.f.Name()
	fresh, err := os.CreateTemp(filepath.Dir(path), "compact-*.rlog")
	if err != nil {
		return err
	}
	compacted := &logFile{f: fresh, log: r.log, index: make(map[uint16]int64)}
	var header [16]byte
	copy(header[:], logMagic[:])
	binary.LittleEndian.PutUint32(header[8:], logVersion)
	if _, err := fresh.WriteAt(header[:], 0); err != nil {
		return err
	}
	compacted.cursor = int64(len(header))

	for s := range r.index {
		_, payload, _, err := r.readRecord(r.index[s])
		if err != nil {
			continue
		}
		if err := compacted.write(uint8(s>>5), uint8(s&31), payload); err != nil {
			return err
		}
	}
	if err := fresh.Sync(); err != nil {
		return err
	}
	if err := os.Rename(fresh.Name(), path); err != nil {
		return err
	}
	old := r.f
	*r = *compacted
	return old.Close()
}

func (r *logFile) close() error {
	return r.f.Close()
}
