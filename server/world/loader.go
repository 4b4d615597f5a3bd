package world

import (
	"errors"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Loader loads the columns around a position for a Viewer, keeping a
// reference on each while it is shown. Loaders drive the subscription model:
// a column with at least one loader on it receives mutations through the
// loader's viewer and is kept resident by the loader's references.
//
// Acquisition happens on a goroutine owned by the Loader, so calling Load
// inside a transaction never stalls the transaction goroutine on generation.
type Loader struct {
	w      *World
	viewer Viewer
	r      int32

	mu   sync.Mutex
	cond *sync.Cond
	// centre is the chunk position the loader was last moved to. valid is
	// false until the first Move.
	centre ChunkPos
	valid  bool
	// loaded holds the columns currently shown to the viewer, ready the
	// columns acquired but not yet shown, toLoad the positions still to be
	// acquired in order of closeness.
	loaded  map[ChunkPos]struct{}
	ready   []ChunkPos
	toLoad  []ChunkPos
	pending map[ChunkPos]struct{}
	closed  bool
}

// NewLoader creates a Loader for the world passed that keeps the columns
// within r chunks around its position loaded for the viewer.
func NewLoader(r int32, w *World, v Viewer) *Loader {
	l := &Loader{w: w, viewer: v, r: r, loaded: make(map[ChunkPos]struct{}), pending: make(map[ChunkPos]struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.acquireLoop()
	return l
}

// Move moves the loader to the position passed. Columns that fall outside
// the radius around the new position are hidden from the viewer and
// released; positions newly in range are queued for acquisition.
func (l *Loader) Move(tx *Tx, pos mgl64.Vec3) {
	centre := chunkPosFromVec3(pos)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || (l.valid && centre == l.centre) {
		return
	}
	l.centre, l.valid = centre, true

	for pos := range l.loaded {
		if !l.within(pos) {
			delete(l.loaded, pos)
			tx.removeViewer(pos, l.viewer)
			l.viewer.HideColumn(pos)
			l.w.cache.Release(pos)
		}
	}
	l.ready = keepWithin(l, l.ready, func(pos ChunkPos) {
		delete(l.pending, pos)
		l.w.cache.Release(pos)
	})
	l.toLoad = keepWithin(l, l.toLoad, func(pos ChunkPos) {
		delete(l.pending, pos)
	})

	for _, pos := range l.sortedRange() {
		if _, ok := l.loaded[pos]; ok {
			continue
		}
		if _, ok := l.pending[pos]; ok {
			continue
		}
		l.pending[pos] = struct{}{}
		l.toLoad = append(l.toLoad, pos)
	}
	l.cond.Broadcast()
}

// Load shows up to n acquired columns to the loader's viewer, sending each
// column's serialized payload. Columns still being loaded or generated are
// picked up by a later call. Must be called inside a transaction.
func (l *Loader) Load(tx *Tx, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for n > 0 && len(l.ready) > 0 {
		pos := l.ready[0]
		l.ready = l.ready[1:]
		delete(l.pending, pos)

		payload, ok := tx.Payload(pos)
		if !ok || !tx.addViewer(pos, l.viewer) {
			l.w.cache.Release(pos)
			continue
		}
		l.loaded[pos] = struct{}{}
		l.viewer.ViewColumn(pos, payload)
		n--
	}
}

// Chunk returns the column at pos if the loader currently shows it. The
// column may only be used inside a transaction on the loader's world.
func (l *Loader) Chunk(pos ChunkPos) (*Column, bool) {
	l.mu.Lock()
	_, shown := l.loaded[pos]
	l.mu.Unlock()
	if !shown {
		return nil, false
	}
	return l.w.column(pos)
}

// Close hides all shown columns and releases every reference the loader
// holds. The loader may not be used after Close.
func (l *Loader) Close(tx *Tx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for pos := range l.loaded {
		tx.removeViewer(pos, l.viewer)
		l.viewer.HideColumn(pos)
		l.w.cache.Release(pos)
	}
	l.loaded = map[ChunkPos]struct{}{}
	for _, pos := range l.ready {
		l.w.cache.Release(pos)
	}
	l.ready, l.toLoad = nil, nil
	l.cond.Broadcast()
}

// acquireLoop acquires queued positions one at a time. A position that left
// the radius while its acquisition was in flight is released as soon as it
// completes.
func (l *Loader) acquireLoop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		for len(l.toLoad) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			return
		}
		pos := l.toLoad[0]
		l.toLoad = l.toLoad[1:]
		l.mu.Unlock()

		_, err := l.w.cache.Acquire(pos)

		l.mu.Lock()
		if err != nil {
			delete(l.pending, pos)
			if !errors.Is(err, ErrNotFound) {
				l.w.conf.Log.Error("loader: acquire column", "X", pos[0], "Z", pos[1], "err", err)
			}
			continue
		}
		if l.closed || !l.within(pos) {
			delete(l.pending, pos)
			l.w.cache.Release(pos)
			continue
		}
		l.ready = append(l.ready, pos)
	}
}

// within reports whether pos falls inside the loader's radius around its
// current centre. l.mu must be held.
func (l *Loader) within(pos ChunkPos) bool {
	dx, dz := int64(pos[0]-l.centre[0]), int64(pos[1]-l.centre[1])
	return dx*dx+dz*dz <= int64(l.r)*int64(l.r)
}

// sortedRange returns every position within the radius around the centre,
// closest first, so the columns around the viewer appear before the edge of
// the circle. l.mu must be held.
func (l *Loader) sortedRange() []ChunkPos {
	positions := make([]ChunkPos, 0, (2*l.r+1)*(2*l.r+1))
	for x := l.centre[0] - l.r; x <= l.centre[0]+l.r; x++ {
		for z := l.centre[1] - l.r; z <= l.centre[1]+l.r; z++ {
			if pos := (ChunkPos{x, z}); l.within(pos) {
				positions = append(positions, pos)
			}
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return distSq(positions[i], l.centre) < distSq(positions[j], l.centre)
	})
	return positions
}

func distSq(a, b ChunkPos) int64 {
	dx, dz := int64(a[0]-b[0]), int64(a[1]-b[1])
	return dx*dx + dz*dz
}

// keepWithin filters a position slice down to those within the loader's
// radius, calling drop for each removed position. l.mu must be held.
func keepWithin(l *Loader, positions []ChunkPos, drop func(pos ChunkPos)) []ChunkPos {
	kept := positions[:0]
	for _, pos := range positions {
		if l.within(pos) {
			kept = append(kept, pos)
		} else {
			drop(pos)
		}
	}
	return kept
}
