package server

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hearthvox/hearth/server/world"
	"github.com/hearthvox/hearth/server/world/mcdb"
	"github.com/hearthvox/hearth/server/world/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	uc, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Hearth", uc.Server.Name)
	assert.True(t, uc.World.SaveData)

	// The file written on first run must read back identically.
	again, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uc, again)
}

func TestUserConfigSelectsProvider(t *testing.T) {
	for name, check := range map[string]func(t *testing.T, p world.Provider){
		"leveldb": func(t *testing.T, p world.Provider) {
			assert.IsType(t, &mcdb.DB{}, p)
		},
		"sectors": func(t *testing.T, p world.Provider) {
			assert.IsType(t, &region.Provider{}, p)
		},
		"log": func(t *testing.T, p world.Provider) {
			assert.IsType(t, &region.Provider{}, p)
		},
	} {
		t.Run(name, func(t *testing.T) {
			uc := DefaultConfig()
			uc.World.Format = name
			uc.World.Folder = t.TempDir()

			conf, err := uc.Config(slog.Default())
			require.NoError(t, err)
			require.NotNil(t, conf.Provider)
			check(t, conf.Provider)
			require.NoError(t, conf.Provider.Close())
		})
	}
}

func TestUserConfigRejectsUnknownFormat(t *testing.T) {
	uc := DefaultConfig()
	uc.World.Format = "tape"
	uc.World.Folder = t.TempDir()

	_, err := uc.Config(slog.Default())
	assert.Error(t, err)
}

func TestServerLifecycle(t *testing.T) {
	srv := Config{Generator: world.NopGenerator{}, Seed: 10}.New()
	assert.Equal(t, "Hearth", srv.Name())
	assert.Equal(t, int64(10), srv.World().Seed())

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close(), "closing twice must be safe")
}
