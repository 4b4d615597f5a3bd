package world

import (
	"io"

	"github.com/hearthvox/hearth/server/world/chunk"
)

// Provider is the storage backend of a World. It loads and saves the world's
// Settings and its columns. Providers are expected to return ErrNotFound
// from LoadColumn for columns that were never saved, and a
// chunk.MalformedError (possibly wrapped) for stored data that does not
// decode, so the World can fall back to regeneration.
type Provider interface {
	// Settings loads the Settings of the world into the struct passed,
	// leaving defaults in place for anything it has no record of.
	Settings(set *Settings)
	// SaveSettings saves the Settings of the world.
	SaveSettings(set *Settings) error
	// LoadColumn loads the column at a position from storage.
	LoadColumn(pos ChunkPos) (*chunk.Column, error)
	// StoreColumn saves a column to storage.
	StoreColumn(pos ChunkPos, col *chunk.Column) error

	io.Closer
}

// NopProvider is a Provider that stores nothing. Worlds with a NopProvider
// generate every column on demand and forget everything on close.
type NopProvider struct{}

func (NopProvider) Settings(*Settings)           {}
func (NopProvider) SaveSettings(*Settings) error { return nil }
func (NopProvider) LoadColumn(ChunkPos) (*chunk.Column, error) {
	return nil, ErrNotFound
}
func (NopProvider) StoreColumn(ChunkPos, *chunk.Column) error { return nil }
func (NopProvider) Close() error                              { return nil }
