package world

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hearthvox/hearth/server/block/cube"
	"github.com/hearthvox/hearth/server/world/chunk"
)

// World manages the columns of one dimension: loading, generation, mutation,
// persistence and the replication of changes to viewers. All data access goes
// through transactions executed on a single goroutine, so code inside a
// transaction never needs locks of its own.
type World struct {
	conf Config
	ra   cube.Range

	set   *Settings
	cache *ChunkCache

	queue        chan transaction
	queueClosing chan struct{}
	queueing     sync.WaitGroup
	closing      chan struct{}
	running      sync.WaitGroup
	o            sync.Once

	// r drives random ticking. Seeded independently of the world seed: the
	// world seed determines terrain, not the order in which blocks tick.
	r *rand.Rand

	// spawnPlaced is set once the spawn has been settled onto the terrain
	// surface. Only touched on the transaction goroutine.
	spawnPlaced bool
}

// transaction carries one unit of work to the transaction goroutine. c is
// closed once the work has run.
type transaction struct {
	c chan struct{}
	f func(tx *Tx)
}

// Exec queues f for execution on the world's transaction goroutine and
// returns a channel that is closed once it has run. Everything reachable
// through the Tx is safe to use until f returns, and not after.
func (w *World) Exec(f func(tx *Tx)) <-chan struct{} {
	c := make(chan struct{})
	w.queue <- transaction{c: c, f: f}
	return c
}

// handleTransactions runs queued transactions one at a time until the world
// closes. Every transaction holds the data lock for its full duration, which
// fences it against the snapshots generation takes of terminal columns.
func (w *World) handleTransactions() {
	defer w.queueing.Done()
	for {
		select {
		case tx := <-w.queue:
			w.executeTx(tx)
		case <-w.queueClosing:
			// Drain what was queued before the close started.
			for {
				select {
				case tx := <-w.queue:
					w.executeTx(tx)
				default:
					return
				}
			}
		}
	}
}

func (w *World) executeTx(tx transaction) {
	t := &Tx{w: w}
	w.cache.dataMu.Lock()
	tx.f(t)
	t.closed = true
	w.cache.dataMu.Unlock()
	close(tx.c)
}

// Name returns the display name of the world as loaded from its settings.
func (w *World) Name() string {
	w.set.Lock()
	defer w.set.Unlock()
	return w.set.Name
}

// Dimension returns the Dimension the world was created with.
func (w *World) Dimension() Dimension {
	return w.conf.Dim
}

// Range returns the vertical range of the world's dimension.
func (w *World) Range() cube.Range {
	return w.ra
}

// Seed returns the world seed used for terrain generation.
func (w *World) Seed() int64 {
	w.set.Lock()
	defer w.set.Unlock()
	return w.set.Seed
}

// Time returns the current world time in ticks.
func (w *World) Time() int64 {
	w.set.Lock()
	defer w.set.Unlock()
	return w.set.Time
}

// SetTime sets the world time in ticks.
func (w *World) SetTime(t int64) {
	w.set.Lock()
	defer w.set.Unlock()
	w.set.Time = t
}

// StopTime stops the advancing of the world time. Blocks keep ticking.
func (w *World) StopTime() {
	w.set.Lock()
	defer w.set.Unlock()
	w.set.TimeCycle = false
}

// StartTime resumes the advancing of the world time.
func (w *World) StartTime() {
	w.set.Lock()
	defer w.set.Unlock()
	w.set.TimeCycle = true
}

// CurrentTick returns the amount of ticks the world has run for since its
// creation. Unlike Time, it never jumps and never stops.
func (w *World) CurrentTick() int64 {
	w.set.Lock()
	defer w.set.Unlock()
	return w.set.CurrentTick
}

// Spawn returns the spawn position of the world.
func (w *World) Spawn() cube.Pos {
	w.set.Lock()
	defer w.set.Unlock()
	return w.set.Spawn
}

// SetSpawn moves the world spawn and pins the columns around the new
// position. Columns pinned for the old spawn stay resident until the world
// restarts.
func (w *World) SetSpawn(pos cube.Pos) {
	w.set.Lock()
	w.set.Spawn = pos
	w.set.Unlock()
	w.pinAround(chunkPosFromBlockPos(pos))
}

// LoadedColumnCount returns the amount of columns currently held in memory.
func (w *World) LoadedColumnCount() int {
	return w.cache.Len()
}

// Stats returns the work counters of the world's column cache.
func (w *World) Stats() Stats {
	return w.cache.Stats()
}

// pinSpawnArea pins the columns around the spawn position so they are
// resident and generated before the first subscriber arrives.
func (w *World) pinSpawnArea() {
	w.pinAround(chunkPosFromBlockPos(w.Spawn()))
}

// placeSpawn settles the spawn position onto the terrain once the spawn
// column has generated: the spawn ends up directly above the highest solid
// block of its column, so players never appear buried or floating. A column
// without any solid block keeps the stored spawn.
func (w *World) placeSpawn(tx *Tx) {
	spawn := w.Spawn()
	col, ok := w.column(chunkPosFromBlockPos(spawn))
	if !ok || col.Status != chunk.StatusFull {
		return
	}
	w.spawnPlaced = true
	for y := w.ra[1]; y >= w.ra[0]; y-- {
		pos := cube.Pos{spawn[0], y, spawn[2]}
		if blocks[tx.Block(pos)].solid {
			if top := pos.Add(cube.Pos{0, 1}); top != spawn {
				w.set.Lock()
				w.set.Spawn = top
				w.set.Unlock()
			}
			return
		}
	}
}

func (w *World) pinAround(centre ChunkPos) {
	r := w.conf.SpawnRadius
	for x := centre[0] - r; x <= centre[0]+r; x++ {
		for z := centre[1] - r; z <= centre[1]+r; z++ {
			w.cache.Pin(ChunkPos{x, z})
		}
	}
}

// violation handles the breach of a usage contract, such as a double release
// or a mutation on an unloaded column. In development mode these panic so the
// offending call site is found; in production they are logged and the
// operation rejected.
func (w *World) violation(msg string) {
	if w.conf.Dev {
		panic("world: " + msg)
	}
	w.conf.Log.Error("usage violation", "err", msg)
}

// save flushes all dirty columns and the world settings.
func (w *World) save() error {
	if w.conf.ReadOnly {
		return nil
	}
	err := w.cache.FlushAll()
	if serr := w.conf.Provider.SaveSettings(w.set); serr != nil && err == nil {
		err = fmt.Errorf("save settings: %w", serr)
	}
	return err
}

// Close stops the world's background goroutines, saves everything resident
// and closes the provider. The world may not be used after Close returns.
func (w *World) Close() error {
	var err error
	w.o.Do(func() {
		close(w.closing)
		w.running.Wait()

		<-w.Exec(func(tx *Tx) {})
		close(w.queueClosing)
		w.queueing.Wait()

		err = w.cache.close()
		if !w.conf.ReadOnly {
			if serr := w.conf.Provider.SaveSettings(w.set); serr != nil && err == nil {
				err = fmt.Errorf("save settings: %w", serr)
			}
		}
		if cerr := w.conf.Provider.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close provider: %w", cerr)
		}
	})
	return err
}

// tickLoop drives the world clock. Each tick advances time, runs scheduled
// block updates and random ticks inside a single transaction.
func (w *World) tickLoop() {
	defer w.running.Done()
	ticker := time.NewTicker(time.Second / 20)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			<-w.Exec(func(tx *Tx) { w.tick(tx) })
		case <-w.closing:
			return
		}
	}
}

// backgroundLoop runs periodic maintenance: flushing dirty columns at the
// save interval and evicting columns whose grace period has expired.
func (w *World) backgroundLoop() {
	defer w.running.Done()
	saver := time.NewTicker(w.conf.SaveInterval)
	evictor := time.NewTicker(time.Second)
	defer saver.Stop()
	defer evictor.Stop()
	for {
		select {
		case <-saver.C:
			<-w.Exec(func(tx *Tx) {
				if err := w.save(); err != nil {
					w.conf.Log.Error("background save", "err", err)
				}
			})
		case <-evictor.C:
			<-w.Exec(func(tx *Tx) {
				w.cache.evictUnused(w.conf.EvictionGrace)
			})
		case <-w.closing:
			return
		}
	}
}

// column returns the loaded, terminal-status column at pos, if any. Only
// called from the transaction goroutine.
func (w *World) column(pos ChunkPos) (*Column, bool) {
	return w.cache.loaded(pos)
}

// columnArea collects the 3x3 area of loaded chunks around pos for light
// propagation across column borders. The second return is false if any of the
// nine columns is not resident.
func (w *World) columnArea(centre ChunkPos) ([]*chunk.Chunk, bool) {
	chunks := make([]*chunk.Chunk, 0, 9)
	for x := centre[0] - 1; x <= centre[0]+1; x++ {
		for z := centre[1] - 1; z <= centre[1]+1; z++ {
			col, ok := w.column(ChunkPos{x, z})
			if !ok {
				return nil, false
			}
			chunks = append(chunks, col.Chunk)
		}
	}
	return chunks, true
}
