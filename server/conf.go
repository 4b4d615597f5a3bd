package server

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/generate/overworld"
	"github.com/hearthvox/hearth/server/world/mcdb"
	"github.com/hearthvox/hearth/server/world/region"
	"github.com/pelletier/go-toml"
)

// Config contains the options for starting a server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set
	// to slog.Default().
	Log *slog.Logger
	// Name is the name of the server, shown in logs and the status report.
	Name string
	// Provider is the storage backend of the world. If nil, the world is
	// held in memory only.
	Provider world.Provider
	// Generator creates the columns of the world. If nil, the overworld
	// terrain generator is used with the world's seed.
	Generator world.Generator
	// Seed is the seed of the world when it is created for the first time.
	// If 0, a random seed is chosen.
	Seed int64
	// ReadOnly prevents the server from writing any world data.
	ReadOnly bool
	// Dev makes usage contract violations panic instead of being logged, so
	// they surface during development.
	Dev bool
	// SpawnRadius is the radius in columns around the spawn kept permanently
	// loaded. If 0, the world's default is used.
	SpawnRadius int32
	// SaveInterval is the interval of background world saves. If 0, the
	// world's default is used.
	SaveInterval time.Duration
	// StatusInterval is the interval at which the server logs a status
	// report. If 0, no report is logged.
	StatusInterval time.Duration
}

// New creates a Server using the Config.
func (conf Config) New() *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Name == "" {
		conf.Name = "Hearth"
	}
	if conf.Provider == nil {
		conf.Provider = world.NopProvider{}
	}
	if conf.Seed == 0 {
		conf.Seed = rand.Int64()
	}
	if conf.Generator == nil {
		// The stored seed wins over the configured one, so the generator is
		// built from whatever the provider reports.
		set := &world.Settings{Seed: conf.Seed}
		conf.Provider.Settings(set)
		conf.Seed = set.Seed
		conf.Generator = overworld.New(conf.Seed)
	}

	w := world.Config{
		Log:          conf.Log,
		Dim:          world.Overworld,
		Provider:     conf.Provider,
		Generator:    conf.Generator,
		Seed:         conf.Seed,
		ReadOnly:     conf.ReadOnly,
		Dev:          conf.Dev,
		SpawnRadius:  conf.SpawnRadius,
		SaveInterval: conf.SaveInterval,
	}.New()

	srv := &Server{conf: conf, world: w, closing: make(chan struct{})}
	if conf.StatusInterval > 0 {
		srv.running.Add(1)
		go srv.statusLoop()
	}
	return srv
}

// UserConfig is the configuration of a server as read from its TOML
// configuration file. Config may be called to convert it to a Config.
type UserConfig struct {
	Server struct {
		// Name is the name of the server.
		Name string
		// Dev enables development mode, in which usage contract violations
		// panic instead of being logged.
		Dev bool
		// StatusIntervalSeconds is how often the server logs a status
		// report. 0 disables the report.
		StatusIntervalSeconds int
	}
	World struct {
		// SaveData controls whether world data is saved and loaded. If
		// false, the world is held in memory only and lost on shutdown.
		SaveData bool
		// Folder is the folder that the data of the world resides in.
		Folder string
		// Format selects the storage backend: "sectors" and "log" select a
		// region file format, "leveldb" the leveldb provider.
		Format string
		// Seed controls the procedural generation of the world when it is
		// created. 0 picks a random seed.
		Seed int64
		// ReadOnly opens the world without writing anything back.
		ReadOnly bool
		// SpawnRadius is the radius in columns around the spawn kept
		// permanently loaded.
		SpawnRadius int32
		// SaveIntervalMinutes is the interval of background saves in
		// minutes.
		SaveIntervalMinutes int
	}
}

// Config converts a UserConfig to a Config, opening the world's storage
// backend. An error is returned if the backend cannot be opened.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:            log,
		Name:           uc.Server.Name,
		Seed:           uc.World.Seed,
		ReadOnly:       uc.World.ReadOnly,
		Dev:            uc.Server.Dev,
		SpawnRadius:    uc.World.SpawnRadius,
		SaveInterval:   time.Duration(uc.World.SaveIntervalMinutes) * time.Minute,
		StatusInterval: time.Duration(uc.Server.StatusIntervalSeconds) * time.Second,
	}
	if !uc.World.SaveData {
		return conf, nil
	}

	var err error
	switch name := strings.ToLower(strings.TrimSpace(uc.World.Format)); name {
	case "", "leveldb":
		conf.Provider, err = mcdb.Config{Log: log}.Open(uc.World.Folder)
	case "sectors", "log":
		format, _ := region.FormatByName(name)
		conf.Provider, err = region.NewProvider(uc.World.Folder, region.Config{Log: log, Format: format})
	default:
		return conf, fmt.Errorf("unknown world format %q", uc.World.Format)
	}
	if err != nil {
		return conf, fmt.Errorf("create world provider: %w", err)
	}
	return conf, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	uc := UserConfig{}
	uc.Server.Name = "Hearth"
	uc.Server.StatusIntervalSeconds = 60
	uc.World.SaveData = true
	uc.World.Folder = "world"
	uc.World.Format = "leveldb"
	uc.World.SaveIntervalMinutes = 5
	return uc
}

// ReadConfig reads a UserConfig from the TOML file at path, writing a file
// with the defaults if none exists yet.
func ReadConfig(path string) (UserConfig, error) {
	uc := DefaultConfig()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data, err := toml.Marshal(uc)
		if err != nil {
			return uc, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return uc, fmt.Errorf("create default config: %w", err)
		}
		return uc, nil
	} else if err != nil {
		return uc, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, &uc); err != nil {
		return uc, fmt.Errorf("decode config: %w", err)
	}
	return uc, nil
}
