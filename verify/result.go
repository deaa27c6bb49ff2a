package verify

import (
	"slices"

	"github.com/RoaringBitmap/roaring"

	"github.com/anacrolix/find-torrent-files/layout"
	"github.com/anacrolix/find-torrent-files/torrent"
)

type Result struct {
	NumPieces   int
	PieceLength int64
	// Indexes of pieces whose hash didn't match.
	Mismatched *roaring.Bitmap
	// The torrent's files, as indexed by FilesWithMismatches.
	Files []torrent.File

	files layout.Index
}

func newResult(t *torrent.Torrent, matches []bool) *Result {
	return &Result{
		NumPieces:   len(matches),
		PieceLength: t.PieceLength,
		Mismatched:  mismatchBitmap(matches),
		Files:       t.Files,
		files: layout.NewIndex(func(yield func(int64) bool) {
			for _, f := range t.Files {
				if !yield(f.Length) {
					return
				}
			}
		}),
	}
}

func (r *Result) Matched(piece int) bool {
	return !r.Mismatched.Contains(uint32(piece))
}

// Per piece, in piece order.
func (r *Result) Matches() []bool {
	ret := make([]bool, r.NumPieces)
	for i := range ret {
		ret[i] = r.Matched(i)
	}
	return ret
}

func (r *Result) MismatchCount() int {
	return int(r.Mismatched.GetCardinality())
}

// Counts every mismatched piece at the full piece length.
func (r *Result) ApproxMismatchBytes() int64 {
	return int64(r.MismatchCount()) * r.PieceLength
}

// Counts the last piece at its actual length.
func (r *Result) MismatchBytes() (ret int64) {
	it := r.Mismatched.Iterator()
	for it.HasNext() {
		ret += r.files.Piece(int(it.Next()), r.PieceLength).Length
	}
	return
}

// Indexes of the torrent files that have data in a mismatched piece, in file order.
func (r *Result) FilesWithMismatches() []int {
	files := roaring.New()
	it := r.Mismatched.Iterator()
	for it.HasNext() {
		for i := range r.files.Locate(r.files.Piece(int(it.Next()), r.PieceLength)) {
			files.Add(uint32(i))
		}
	}
	ret := make([]int, 0, files.GetCardinality())
	for _, i := range files.ToArray() {
		ret = append(ret, int(i))
	}
	return slices.Clip(ret)
}
