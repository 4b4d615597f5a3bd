package world

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hearthvox/hearth/server/world/chunk"
)

// ChunkCache holds every column currently loaded in a world. It is the single
// point of truth for reference counts, in-flight load state and eviction, so
// an acquire racing an eviction always resolves under one lock.
//
// Column data has two writers that never overlap: the generation goroutine
// writes columns that have not reached their terminal status yet, and the
// world's transaction goroutine writes terminal columns. Terminal columns
// handed back into generation as neighbours cross that boundary and are
// snapshotted instead of shared.
type ChunkCache struct {
	w *World

	mu   sync.Mutex
	cond *sync.Cond
	// dataMu serializes transaction access to terminal column data against
	// the snapshots generation takes of terminal neighbours.
	dataMu sync.RWMutex

	entries map[ChunkPos]*cacheEntry
	// queue holds positions waiting for the generation goroutine. Entries in
	// the queue always target the terminal status.
	queue []ChunkPos

	closed bool

	// reads counts provider loads, generations counts pipeline runs. Both
	// are reported through Stats.
	reads, generations int
}

// Stats is a snapshot of the work counters of a ChunkCache.
type Stats struct {
	// Resident is the amount of columns currently held in memory.
	Resident int
	// Reads is the amount of provider loads issued since the cache opened.
	Reads int
	// Generations is the amount of generation pipeline runs since the cache
	// opened.
	Generations int
}

// cacheEntry wraps a loaded (or loading) column with its lifecycle state.
type cacheEntry struct {
	col *Column
	// status mirrors col.Status under the cache lock, so waiters never read
	// column data of an entry another goroutine is advancing.
	status chunk.Status
	// working is set while the generation goroutine is loading or advancing
	// the entry.
	working bool
	// queued is set while the entry waits in the generation queue.
	queued bool
	// err holds the failure of the last load or generation attempt. It is
	// consumed by the first waiter; the next request retries.
	err error

	refs       int
	pinned     bool
	releasedAt time.Time
}

func newChunkCache(w *World) *ChunkCache {
	c := &ChunkCache{w: w, entries: make(map[ChunkPos]*cacheEntry)}
	c.cond = sync.NewCond(&c.mu)
	go c.generationLoop()
	return c
}

// Acquire returns the column at pos with its reference count incremented,
// loading or generating it if needed. Concurrent acquires of an absent
// position issue exactly one load and at most one generation run; every
// caller gets the same column. The caller must pair the call with Release.
func (c *ChunkCache) Acquire(pos ChunkPos) (*Column, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("chunk cache closed")
	}
	e := c.entry(pos)
	// The reference is counted before the load starts. A Release arriving
	// while the load is still in flight lets the load complete and leaves
	// the column cached for the next subscriber.
	e.refs++

	col, err := c.await(pos)
	if err != nil {
		if e.refs--; e.refs == 0 {
			e.releasedAt = time.Now()
		}
		return nil, err
	}
	return col, nil
}

// Release drops a reference to the column at pos. When the last reference is
// released the column becomes eligible for eviction after the grace period.
func (c *ChunkCache) Release(pos ChunkPos) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pos]
	if !ok || e.refs == 0 {
		c.w.violation(fmt.Sprintf("release of column %v that holds no references", pos))
		return
	}
	if e.refs--; e.refs == 0 {
		e.releasedAt = time.Now()
	}
}

// Pin marks the column at pos permanently resident and schedules it for
// loading. Pinned columns are never evicted. Used for the spawn area.
func (c *ChunkCache) Pin(pos ChunkPos) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(pos)
	e.pinned = true
	c.schedule(pos, e)
}

// RequireStatus implements ColumnSource for the generators. It returns the
// column at pos once it is at least at the target status. Calls only arrive
// on the generation goroutine, so advancing the column happens inline; the
// status ordering contract on Generator bounds the recursion.
func (c *ChunkCache) RequireStatus(pos ChunkPos, target chunk.Status) (*chunk.Column, error) {
	c.mu.Lock()
	e := c.entry(pos)
	if e.col == nil || e.status < target {
		e.working = true
		c.mu.Unlock()
		err := c.work(e, pos, target)
		c.mu.Lock()
		e.working = false
		if err != nil {
			e.col, e.status = nil, chunk.StatusEmpty
			c.mu.Unlock()
			return nil, err
		}
	}
	col, status := e.col, e.status
	c.mu.Unlock()

	if status == chunk.StatusFull {
		// A terminal column may be mutated by the transaction goroutine at
		// any time: hand the stage a stable snapshot instead.
		c.dataMu.RLock()
		defer c.dataMu.RUnlock()
		return col.Column.Copy(), nil
	}
	return col.Column, nil
}

// await blocks until the column at pos reaches its terminal status, keeping
// it scheduled with the generation goroutine. c.mu must be held.
func (c *ChunkCache) await(pos ChunkPos) (*Column, error) {
	for {
		e := c.entry(pos)
		if e.err != nil {
			err := e.err
			e.err = nil
			return nil, err
		}
		if e.col != nil && e.status == chunk.StatusFull {
			return e.col, nil
		}
		c.schedule(pos, e)
		c.cond.Wait()
	}
}

// schedule queues an entry for the generation goroutine unless it is already
// queued or being worked on. c.mu must be held.
func (c *ChunkCache) schedule(pos ChunkPos, e *cacheEntry) {
	if e.queued || e.working {
		return
	}
	e.queued = true
	c.queue = append(c.queue, pos)
	c.cond.Broadcast()
}

// generationLoop is the single goroutine all loading and generation runs on.
// Disk reads and pipeline runs never touch the transaction goroutine, so the
// tick clock keeps running while columns are produced.
func (c *ChunkCache) generationLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			return
		}
		pos := c.queue[0]
		c.queue = c.queue[1:]
		e := c.entry(pos)
		e.queued = false
		if e.col != nil && e.status == chunk.StatusFull {
			continue
		}
		e.working = true
		c.mu.Unlock()
		err := c.work(e, pos, chunk.StatusFull)
		c.mu.Lock()
		e.working = false
		if err != nil {
			// A failed attempt leaves nothing half-mutated behind: the entry
			// is reset and the error handed to the first waiter. The next
			// request starts over.
			e.col, e.status, e.err = nil, chunk.StatusEmpty, err
		}
		c.cond.Broadcast()
	}
}

// work loads the column at pos if needed and advances it stage by stage to
// the target status, publishing each advanced status so waiters and
// neighbouring pipeline runs see progress immediately. Runs on the
// generation goroutine with c.mu not held.
func (c *ChunkCache) work(e *cacheEntry, pos ChunkPos, target chunk.Status) error {
	if e.col == nil {
		col, err := c.load(pos)
		if err != nil {
			return err
		}
		c.mu.Lock()
		e.col = newColumn(col)
		e.status = col.Status
		c.cond.Broadcast()
		c.mu.Unlock()
	}

	counted := false
	for e.col.Status < target {
		if !counted {
			c.mu.Lock()
			c.generations++
			c.mu.Unlock()
			counted = true
		}
		before := e.col.Status
		if err := c.w.conf.Generator.Generate(pos, e.col.Column, c); err != nil {
			return GenerationError{Pos: pos, Stage: (before + 1).String(), Err: err}
		}
		if e.col.Status <= before {
			return GenerationError{Pos: pos, Stage: (before + 1).String(), Err: errors.New("generator did not advance the column")}
		}
		c.mu.Lock()
		e.status = e.col.Status
		e.col.invalidate()
		c.cond.Broadcast()
		c.mu.Unlock()
	}
	return nil
}

// load reads the column at pos from the provider. Absent and malformed
// columns both come back as a fresh empty column for the pipeline to fill;
// malformed data is logged, since it means saved work is lost. Anything else
// has no safe fallback and is returned as is.
func (c *ChunkCache) load(pos ChunkPos) (*chunk.Column, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()

	col, err := c.w.conf.Provider.LoadColumn(pos)
	if err == nil {
		return col, nil
	}
	if errors.Is(err, ErrNotFound) {
		return c.emptyColumn(), nil
	}
	if recoverable(err) {
		c.w.conf.Log.Error("load column: malformed data, regenerating", "X", pos[0], "Z", pos[1], "err", err)
		return c.emptyColumn(), nil
	}
	return nil, fmt.Errorf("load column %v: %w", pos, err)
}

// emptyColumn returns a column holding nothing but air, the input of a full
// pipeline run.
func (c *ChunkCache) emptyColumn() *chunk.Column {
	return chunk.NewColumn(chunk.New(airRID, c.w.ra))
}

// loaded returns the column at pos if it is resident at terminal status and
// not being worked on. It is how the transaction goroutine reaches columns.
func (c *ChunkCache) loaded(pos ChunkPos) (*Column, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pos]
	if !ok || e.working || e.col == nil || e.status != chunk.StatusFull {
		return nil, false
	}
	return e.col, true
}

// Flush writes the column at pos to the provider if it is dirty.
func (c *ChunkCache) Flush(pos ChunkPos) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pos]
	if !ok {
		return nil
	}
	return c.flushEntry(pos, e)
}

// FlushAll writes every dirty column to the provider, in deterministic
// position order.
func (c *ChunkCache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var last error
	for _, pos := range c.sortedPositions() {
		if err := c.flushEntry(pos, c.entries[pos]); err != nil {
			last = err
		}
	}
	return last
}

// flushEntry saves a single dirty entry. c.mu must be held; entries being
// worked on are skipped, the generation goroutine publishes them as dirty
// once it is done with them.
func (c *ChunkCache) flushEntry(pos ChunkPos, e *cacheEntry) error {
	if e.working || e.col == nil || !e.col.modified || c.w.conf.ReadOnly {
		return nil
	}
	e.col.Chunk.Compact()
	if err := c.w.conf.Provider.StoreColumn(pos, e.col.Column); err != nil {
		return fmt.Errorf("flush column %v: %w", pos, err)
	}
	e.col.modified = false
	return nil
}

// evictUnused removes every column whose last reference was released longer
// than the grace period ago, flushing dirty ones first. Columns with live
// references, pinned columns and columns being generated are never touched.
func (c *ChunkCache) evictUnused(grace time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for pos, e := range c.entries {
		if e.refs > 0 || e.pinned || e.working || e.queued {
			continue
		}
		if e.col == nil {
			if e.err == nil {
				delete(c.entries, pos)
			}
			continue
		}
		if time.Since(e.releasedAt) < grace {
			continue
		}
		if err := c.flushEntry(pos, e); err != nil {
			c.w.conf.Log.Error("evict: flush failed, keeping column resident", "X", pos[0], "Z", pos[1], "err", err)
			continue
		}
		delete(c.entries, pos)
		evicted++
	}
	return evicted
}

// loadedAll returns a snapshot of every resident terminal-status column. The
// columns themselves may only be touched from the transaction goroutine.
func (c *ChunkCache) loadedAll() map[ChunkPos]*Column {
	c.mu.Lock()
	defer c.mu.Unlock()
	cols := make(map[ChunkPos]*Column, len(c.entries))
	for pos, e := range c.entries {
		if e.working || e.col == nil || e.status != chunk.StatusFull {
			continue
		}
		cols[pos] = e.col
	}
	return cols
}

// Stats returns a snapshot of the cache's work counters.
func (c *ChunkCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Resident: len(c.entries), Reads: c.reads, Generations: c.generations}
}

// Len returns the amount of columns currently resident.
func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// close flushes everything and stops the generation goroutine. Acquire calls
// after close fail.
func (c *ChunkCache) close() error {
	err := c.FlushAll()
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	return err
}

// entry returns the cache entry at pos, creating it if absent. c.mu must be
// held.
func (c *ChunkCache) entry(pos ChunkPos) *cacheEntry {
	e, ok := c.entries[pos]
	if !ok {
		e = &cacheEntry{}
		c.entries[pos] = e
	}
	return e
}

// sortedPositions returns the positions of all entries ordered by X, then Z.
func (c *ChunkCache) sortedPositions() []ChunkPos {
	positions := make([]ChunkPos, 0, len(c.entries))
	for pos := range c.entries {
		positions = append(positions, pos)
	}
	slices.SortFunc(positions, func(a, b ChunkPos) int {
		if a == b {
			return 0
		}
		if a.Less(b) {
			return -1
		}
		return 1
	})
	return positions
}
