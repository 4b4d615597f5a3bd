package world

import (
	"errors"
	"fmt"

	"github.com/hearthvox/hearth/server/world/chunk"
)

// ErrNotFound is returned by a Provider for a column that has never been
// saved. The caller generates the column instead.
var ErrNotFound = errors.New("column not found")

// GenerationError wraps the failure of a generation stage. The column it was
// produced for is not inserted into the cache; the error travels to the
// subscriber whose request triggered the generation.
type GenerationError struct {
	Pos   ChunkPos
	Stage string
	Err   error
}

func (err GenerationError) Error() string {
	return fmt.Sprintf("generate column %v: stage %q: %v", err.Pos, err.Stage, err.Err)
}

// Unwrap returns the stage's underlying error.
func (err GenerationError) Unwrap() error {
	return err.Err
}

// recoverable reports whether a column load error has a safe fallback.
// Corrupt or malformed data is regenerated; a payload written by a future
// schema version must never be guessed at and is surfaced instead, as is any
// filesystem failure.
func recoverable(err error) bool {
	var malformed chunk.MalformedError
	return errors.As(err, &malformed)
}
