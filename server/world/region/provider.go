package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/chunk"
	"github.com/pelletier/go-toml"
)

// settingsFile is the name of the world settings file within a world
// directory.
const settingsFile = "world.toml"

// Provider is a world.Provider backed by a region Store, with the world
// settings kept next to the region files in a TOML file.
type Provider struct {
	store *Store
	dir   string
}

// NewProvider opens a region-backed provider rooted at dir, creating the
// directory if it does not exist. Columns are stored under dir/region.
func NewProvider(dir string, conf Config) (*Provider, error) {
	store, err := New(filepath.Join(dir, "region"), conf)
	if err != nil {
		return nil, fmt.Errorf("open region provider: %w", err)
	}
	return &Provider{store: store, dir: dir}, nil
}

// Store returns the underlying region store.
func (p *Provider) Store() *Store {
	return p.store
}

// settingsData is the TOML shape of the settings file.
type settingsData struct {
	Name        string   `toml:"name"`
	Spawn       []int64  `toml:"spawn"`
	Seed        int64    `toml:"seed"`
	Time        int64    `toml:"time"`
	TimeCycle   bool     `toml:"time_cycle"`
	CurrentTick int64    `toml:"current_tick"`
}

// Settings loads the world settings from the settings file, leaving the
// defaults in place if no settings were saved yet.
func (p *Provider) Settings(set *world.Settings) {
	b, err := os.ReadFile(filepath.Join(p.dir, settingsFile))
	if err != nil {
		return
	}
	var data settingsData
	if err := toml.Unmarshal(b, &data); err != nil {
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

// SaveSettings writes the world settings to the settings file.
func (p *Provider) SaveSettings(set *world.Settings) error {
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
	return os.WriteFile(filepath.Join(p.dir, settingsFile), b, 0644)
}

// LoadColumn reads and decodes the column at pos from the region store.
func (p *Provider) LoadColumn(pos world.ChunkPos) (*chunk.Column, error) {
	b, err := p.store.Read(pos[0], pos[1])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, world.ErrNotFound
		}
		return nil, err
	}
	return chunk.Decode(b, world.AirRuntimeID())
}

// StoreColumn encodes and writes a column to the region store.
func (p *Provider) StoreColumn(pos world.ChunkPos, col *chunk.Column) error {
	b, err := chunk.Encode(col, p.compression())
	if err != nil {
		return fmt.Errorf("store column %v: %w", pos, err)
	}
	return p.store.Write(pos[0], pos[1], b)
}

// compression returns the compressor used for new column payloads: zstandard
// for the append-log format, zlib for the sector format. Reads go by the tag
// on each stored payload, so a world survives the choice changing.
func (p *Provider) compression() chunk.Compression {
	if p.store.conf.Format == FormatLog {
		return chunk.CompressionZstd
	}
	return chunk.CompressionZlib
}

// Close closes the underlying region store.
func (p *Provider) Close() error {
	return p.store.Close()
}
