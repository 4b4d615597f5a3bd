package chunk

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CurrentVersion is the schema version written by Encode. Decode accepts this
// version and every older version it has a migration chain for.
const CurrentVersion = 2

// Compression selects the byte compressor applied to an encoded column
// before it is handed to the region store.
type Compression byte

const (
	// CompressionNone stores the payload without compression. Used in tests
	// and by the region tool.
	CompressionNone Compression = iota
	// CompressionZlib compresses the payload with zlib/deflate.
	CompressionZlib
	// CompressionZstd compresses the payload with zstandard.
	CompressionZstd
)

// UnsupportedVersionError is returned by Decode when a payload declares a
// schema version newer than CurrentVersion. Data written by a future version
// must never be guessed at.
type UnsupportedVersionError struct {
	Version byte
}

func (err UnsupportedVersionError) Error() string {
	return fmt.Sprintf("column schema version %v is not supported (current version is %v)", err.Version, CurrentVersion)
}

// MalformedError is returned by Decode when a payload cannot be parsed as the
// version it declares. It is distinct from UnsupportedVersionError: malformed
// data may safely be regenerated, a future schema may not.
type MalformedError struct {
	Reason string
	Err    error
}

func (err MalformedError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("malformed column payload: %v: %v", err.Reason, err.Err)
	}
	return "malformed column payload: " + err.Reason
}

// Unwrap returns the underlying error, if any.
func (err MalformedError) Unwrap() error {
	return err.Err
}

// malformed returns a MalformedError with a reason formatted.
func malformed(format string, a ...any) error {
	return MalformedError{Reason: fmt.Sprintf(format, a...)}
}

// The zstd encoder and decoder are stateless when used through EncodeAll and
// DecodeAll and are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)
