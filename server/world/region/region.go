// Package region implements the column byte store: fixed 32x32 groups of
// column payloads kept in region files, with two interchangeable container
// formats. The package stores opaque byte payloads and knows nothing about
// what a column contains.
package region

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/fasthash/fnv1a"
)

// Format selects the container format used for the region files of a store.
// The format of a world is fixed when its first region file is created.
type Format uint8

const (
	// FormatSectors is the random-access format: a sector directory at the
	// start of each file maps column slots to runs of 4KiB sectors.
	FormatSectors Format = iota
	// FormatLog is the append-only format: records are always written at the
	// end of the file and an index built at startup points reads at the most
	// recent record per column.
	FormatLog
)

// String returns the name of the Format as used in world configuration.
func (f Format) String() string {
	switch f {
	case FormatSectors:
		return "sectors"
	case FormatLog:
		return "log"
	}
	return "unknown"
}

// FormatByName resolves a format name from world configuration.
func FormatByName(name string) (Format, bool) {
	switch name {
	case "sectors":
		return FormatSectors, true
	case "log":
		return FormatLog, true
	}
	return 0, false
}

// ErrNotFound is returned by Store.Read for a column that has never been
// written.
var ErrNotFound = errors.New("column not found")

// errCorrupt marks a record whose length or checksum did not match what was
// stored. The store translates it to an absent column after recording the
// corruption.
var errCorrupt = errors.New("corrupt record")

// Config holds the settings of a Store. Zero values are filled by New.
type Config struct {
	// Log is the logger corruption warnings are written to.
	Log *slog.Logger
	// Format is the container format of the store's region files.
	Format Format
}

// Store reads and writes column payloads grouped into region files under a
// single directory, one Store per dimension.
type Store struct {
	conf Config
	dir  string

	mu    sync.Mutex
	open  map[[2]int32]regionFile
	seen  map[uint64]struct{}
	lost  int
	close bool
}

// regionFile is one open region container. Coordinates passed are
// region-local, in the range 0-31.
type regionFile interface {
	read(x, z uint8) ([]byte, error)
	write(x, z uint8, payload []byte) error
	defragment() error
	close() error
}

// New opens a Store over a directory, creating the directory if it does not
// yet exist. Region files are opened lazily as columns are read or written.
func New(dir string, conf Config) (*Store, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("open region store: %w", err)
	}
	return &Store{
		conf: conf,
		dir:  dir,
		open: make(map[[2]int32]regionFile),
		seen: make(map[uint64]struct{}),
	}, nil
}

// Read returns the payload stored for the column at (x, z). ErrNotFound is
// returned if the column was never written. A stored record that fails its
// length or checksum validation is treated exactly like an absent column, so
// the caller regenerates it; the corruption is logged once per position.
func (s *Store) Read(x, z int32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.region(x, z, false)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	payload, err := r.read(uint8(x&31), uint8(z&31))
	if err != nil && !errors.Is(err, errCorrupt) && !errors.Is(err, ErrNotFound) {
		// Same policy as Write: one retry after a short pause covers transient
		// filesystem conditions, anything persistent is surfaced.
		time.Sleep(time.Millisecond * 50)
		payload, err = r.read(uint8(x&31), uint8(z&31))
	}
	if errors.Is(err, errCorrupt) {
		s.recordCorruption(x, z, err)
		return nil, ErrNotFound
	}
	return payload, err
}

// Write stores the payload for the column at (x, z), replacing any previous
// payload. Transient write errors are retried once.
func (s *Store) Write(x, z int32, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.region(x, z, true)
	if err != nil {
		return err
	}
	if err := r.write(uint8(x&31), uint8(z&31), payload); err != nil {
		// Write failures are usually transient conditions such as hitting the
		// open file limit. One retry after a short pause covers those; a
		// persistent failure is surfaced to the caller.
		time.Sleep(time.Millisecond * 50)
		if err = r.write(uint8(x&31), uint8(z&31), payload); err != nil {
			return fmt.Errorf("write column %v,%v: %w", x, z, err)
		}
	}
	return nil
}

// Defragment rewrites every region file currently on disk without stale or
// unreferenced data. For the append-only format this is log compaction; for
// the sector format it drops unreferenced sectors. Defragment is maintenance
// work, not part of the hot path.
func (s *Store) Defragment() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("defragment: %w", err)
	}
	for _, entry := range entries {
		var rx, rz int32
		if n, _ := fmt.Sscanf(entry.Name(), "r.%d.%d."+s.ext(), &rx, &rz); n != 2 {
			continue
		}
		r, err := s.region(rx<<5, rz<<5, false)
		if err != nil {
			return err
		}
		if err := r.defragment(); err != nil {
			return fmt.Errorf("defragment %v: %w", entry.Name(), err)
		}
	}
	return nil
}

// Corruptions returns the amount of distinct corrupt column records the Store
// has come across since it was opened.
func (s *Store) Corruptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// Close closes every open region file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last error
	for pos, r := range s.open {
		if err := r.close(); err != nil {
			last = err
		}
		delete(s.open, pos)
	}
	s.close = true
	return last
}

// region returns the open region file holding the column at (x, z), opening
// or creating it as needed. create controls whether a region file absent from
// disk is created.
func (s *Store) region(x, z int32, create bool) (regionFile, error) {
	if s.close {
		return nil, errors.New("region store closed")
	}
	pos := [2]int32{x >> 5, z >> 5}
	if r, ok := s.open[pos]; ok {
		return r, nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("r.%v.%v.%v", pos[0], pos[1], s.ext()))
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}

	var (
		r   regionFile
		err error
	)
	switch s.conf.Format {
	case FormatSectors:
		r, err = openSectorFile(path)
	case FormatLog:
		r, err = openLogFile(path, s.conf.Log)
	default:
		return nil, fmt.Errorf("unknown region format %v", s.conf.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("open region (%v,%v): %w", pos[0], pos[1], err)
	}
	s.open[pos] = r
	return r, nil
}

// ext returns the file extension of the store's format.
func (s *Store) ext() string {
	if s.conf.Format == FormatLog {
		return "rlog"
	}
	return "rgn"
}

// recordCorruption logs a corrupt column record. Only the first corruption
// per column position is logged: a column that keeps getting requested must
// not storm the log.
func (s *Store) recordCorruption(x, z int32, err error) {
	h := fnv1a.HashUint64(uint64(uint32(x))<<32 | uint64(uint32(z)))
	if _, ok := s.seen[h]; ok {
		return
	}
	s.seen[h] = struct{}{}
	s.lost++
	s.conf.Log.Error("region: corrupt column record, treating as absent", "X", x, "Z", z, "err", err)
}
