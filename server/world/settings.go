package world

import (
	"sync"

	"github.com/hearthvox/hearth/server/block/cube"
)

// Settings holds the settings of a World that are saved with it: anything
// the world must remember across restarts that is not column data. Fields
// are protected by the embedded mutex; the Provider reads and writes them as
// a whole.
type Settings struct {
	sync.Mutex
	// Name is the display name of the World.
	Name string
	// Spawn is the spawn position of the World, around which columns stay
	// permanently loaded.
	Spawn cube.Pos
	// Seed the world generator was created with. Fixed once the world exists.
	Seed int64
	// Time is the current world time in ticks.
	Time int64
	// TimeCycle specifies if the time advances every tick.
	TimeCycle bool
	// CurrentTick is the tick the world simulation is at, incremented every
	// tick the world runs.
	CurrentTick int64
}

// defaultSettings returns the Settings of a newly created world.
func defaultSettings() *Settings {
	return &Settings{
		Name:      "World",
		Spawn:     cube.Pos{0, 72, 0},
		TimeCycle: true,
	}
}
