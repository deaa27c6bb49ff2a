// Package torrent is a read-only model of the parts of a torrent's metainfo needed to check its
// data: the piece length, the piece hashes and the files in the order they're concatenated.
package torrent

import (
	"fmt"
	"math/bits"

	"github.com/anacrolix/missinggo/v2/panicif"
	"github.com/anacrolix/torrent/metainfo"

	findtorrent "github.com/anacrolix/find-torrent-files"
)

// SHA-1, for both piece hashes and the infohash.
type Hash = metainfo.Hash

const HashSize = metainfo.HashSize

// Piece lengths below this aren't accepted.
const MinPieceLength = 16 << 10

type Torrent struct {
	// The top-level directory of a multi-file torrent, or the name of the file otherwise.
	Name        string
	PieceLength int64
	Pieces      []Hash
	// In the order the torrent's data is concatenated.
	Files []File
	// Zero unless the torrent was loaded from raw metainfo.
	InfoHash Hash
}

// Checks that l is a power of two no smaller than MinPieceLength.
func ValidatePieceLength(l int64) error {
	if l < MinPieceLength || bits.OnesCount64(uint64(l)) != 1 {
		return fmt.Errorf("piece length %v: %w", l, findtorrent.ErrInvalidPieceLength)
	}
	return nil
}

func (t *Torrent) TotalLength() (ret int64) {
	for _, f := range t.Files {
		ret += f.Length
	}
	return
}

// The piece hashes concatenated, as they appear in the metainfo.
func (t *Torrent) HashList() []byte {
	ret := make([]byte, 0, len(t.Pieces)*HashSize)
	for _, h := range t.Pieces {
		ret = append(ret, h[:]...)
	}
	return ret
}

func (t *Torrent) NumPieces() int {
	return len(t.Pieces)
}

// The number of pieces the files' total length divides into.
func (t *Torrent) ExpectedNumPieces() int {
	panicif.LessThanOrEqual(t.PieceLength, 0)
	return int((t.TotalLength() + t.PieceLength - 1) / t.PieceLength)
}

// The length of piece i. Only the last piece can be shorter than PieceLength.
func (t *Torrent) PieceLengthAt(i int) int64 {
	last := t.NumPieces() - 1
	switch {
	case 0 <= i && i < last:
		return t.PieceLength
	case i == last:
		length := t.TotalLength() - int64(i)*t.PieceLength
		if length <= 0 || length > t.PieceLength {
			panic(length)
		}
		return length
	default:
		panic(i)
	}
}

// Checks the piece length, and that the piece hashes cover the files exactly.
func (t *Torrent) Validate() error {
	if err := ValidatePieceLength(t.PieceLength); err != nil {
		return err
	}
	if expected := t.ExpectedNumPieces(); expected != t.NumPieces() {
		return fmt.Errorf(
			"%w: %v bytes in %v byte pieces is %v pieces, but there are %v hashes",
			findtorrent.ErrMalformedMetadata, t.TotalLength(), t.PieceLength, expected, t.NumPieces())
	}
	return nil
}
