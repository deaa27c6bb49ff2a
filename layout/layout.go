// Package layout places a torrent's files in the byte space of the concatenated torrent data, and
// finds the files that a range of that space, such as a piece, covers.
package layout

import (
	"iter"
	"sort"
)

type Extent struct {
	Start, Length int64
}

func (e Extent) End() int64 {
	return e.Start + e.Length
}

type Index struct {
	extents []Extent
}

// Lengths are laid out consecutively from zero.
func NewIndex(lengths iter.Seq[int64]) (ret Index) {
	var start int64
	for l := range lengths {
		ret.extents = append(ret.extents, Extent{start, l})
		start += l
	}
	return
}

func (me Index) Len() int {
	return len(me.extents)
}

// The extent of segment i in the concatenated space.
func (me Index) Extent(i int) Extent {
	return me.extents[i]
}

func (me Index) TotalLength() int64 {
	if len(me.extents) == 0 {
		return 0
	}
	return me.extents[len(me.extents)-1].End()
}

// Yields the index of each segment that overlaps e, with the overlapping part relative to the
// start of that segment. Zero-length segments are never yielded.
func (me Index) Locate(e Extent) iter.Seq2[int, Extent] {
	return func(yield func(int, Extent) bool) {
		first := sort.Search(len(me.extents), func(i int) bool {
			return me.extents[i].End() > e.Start
		})
		for i := first; i < len(me.extents) && e.Length > 0; i++ {
			seg := me.extents[i]
			if seg.Length == 0 {
				continue
			}
			if seg.Start >= e.End() {
				return
			}
			start := max(e.Start, seg.Start)
			end := min(e.End(), seg.End())
			if !yield(i, Extent{start - seg.Start, end - start}) {
				return
			}
		}
	}
}

// The extent of piece i, clamped to the end of the data.
func (me Index) Piece(i int, pieceLength int64) Extent {
	start := int64(i) * pieceLength
	return Extent{start, max(min(pieceLength, me.TotalLength()-start), 0)}
}
