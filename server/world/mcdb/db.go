// Package mcdb implements a world provider on top of a leveldb key-value
// store, trading the region files' sequential layout for leveldb's
// write-ahead logging and background compaction.
package mcdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
	"github.com/pelletier/go-toml"
)

// settingsKey is the key the world settings are stored under.
var settingsKey = []byte("settings")

// Config holds the options of a DB.
type Config struct {
	// Log is the logger the DB reports problems to. Defaults to
	// slog.Default().
	Log *slog.Logger
	// Compression is the compression applied to column payloads before they
	// are stored. Defaults to zstandard.
	Compression chunk.Compression
}

// DB implements world.Provider on a leveldb database.
type DB struct {
	conf Config
	ldb  *leveldb.DB
}

// Config.Open opens or creates a leveldb world database at dir.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Compression == chunk.CompressionNone {
		conf.Compression = chunk.CompressionZstd
	}
	ldb, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb database: %w", err)
	}
	return &DB{conf: conf, ldb: ldb}, nil
}

// Open opens a leveldb world database at dir with default options.
func Open(dir string) (*DB, error) {
	return Config{}.Open(dir)
}

// settingsData mirrors world.Settings in its stored form.
type settingsData struct {
	Name        string  `toml:"name"`
	Spawn       []int64 `toml:"spawn"`
	Seed        int64   `toml:"seed"`
	Time        int64   `toml:"time"`
	TimeCycle   bool    `toml:"time_cycle"`
	CurrentTick int64   `toml:"current_tick"`
}

// Settings loads the stored world settings, leaving defaults in place when
// none were saved yet.
func (db *DB) Settings(set *world.Settings) {
	b, err := db.ldb.Get(settingsKey, nil)
	if err != nil {
		return
	}
	var data settingsData
	if err := toml.Unmarshal(b, &data); err != nil {
		db.conf.Log.Error("load settings: malformed record, using defaults", "err", err)
		return
	}
	set.Lock()
	defer set.Unlock()
	set.Name = data.Name
	set.Seed = data.Seed
	set.Time = data.Time
	set.TimeCycle = data.TimeCycle
	set.CurrentTick = data.CurrentTick
	if len(data.Spawn) == 3 {
		set.Spawn = cube.Pos{int(data.Spawn[0]), int(data.Spawn[1]), int(data.Spawn[2])}
	}
}

// SaveSettings stores the world settings.
func (db *DB) SaveSettings(set *world.Settings) error {
	set.Lock()
	data := settingsData{
		Name:        set.Name,
		Spawn:       []int64{int64(set.Spawn[0]), int64(set.Spawn[1]), int64(set.Spawn[2])},
		Seed:        set.Seed,
		Time:        set.Time,
		TimeCycle:   set.TimeCycle,
		CurrentTick: set.CurrentTick,
	}
	set.Unlock()

	b, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return db.ldb.Put(settingsKey, b, nil)
}

// LoadColumn reads and decodes the column at pos.
func (db *DB) LoadColumn(pos world.ChunkPos) (*chunk.Column, error) {
	b, err := db.ldb.Get(columnKey(pos), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, world.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load column %v: %w", pos, err)
	}
	return chunk.Decode(b, world.AirRuntimeID())
}

// StoreColumn encodes and stores a column at pos.
func (db *DB) StoreColumn(pos world.ChunkPos, col *chunk.Column) error {
	b, err := chunk.Encode(col, db.conf.Compression)
	if err != nil {
		return fmt.Errorf("store column %v: %w", pos, err)
	}
	return db.ldb.Put(columnKey(pos), b, nil)
}

// Close closes the underlying database.
func (db *DB) Close() error {
	return db.ldb.Close()
}

// columnKey builds the database key of a column position.
func columnKey(pos world.ChunkPos) []byte {
	k := make([]byte, 9)
	k[0] = 'c'
	binary.LittleEndian.PutUint32(k[1:], uint32(pos[0]))
	binary.LittleEndian.PutUint32(k[5:], uint32(pos[1]))
	return k
}
