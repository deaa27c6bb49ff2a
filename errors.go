package findtorrent

import (
	"errors"
	"fmt"
)

var (
	// The piece length is below 16 KiB or isn't a power of two.
	ErrInvalidPieceLength = errors.New("invalid piece length")
	// A field required to build the torrent model is absent or has the wrong type.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// A mapped data file doesn't exist, or isn't a regular file.
	ErrMissingFile = errors.New("missing file")
	// Matched by *SizeMismatchError.
	ErrSizeMismatch = errors.New("size mismatch")
	// A seek would leave the bounds of a source.
	ErrOutOfBounds = errors.New("out of bounds")
)

// A mapped data file's size differs from the length the torrent declares for it.
type SizeMismatchError struct {
	// Filesystem path.
	Path string
	// Torrent display path.
	TorrentPath string
	Declared    int64
	Actual      int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf(
		"torrent file %q declares %d bytes but %q has %d",
		e.TorrentPath, e.Declared, e.Path, e.Actual)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}
