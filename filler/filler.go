// Package filler provides stand-ins for data files that aren't available. A Source reads as a
// fixed number of zero bytes and can be sought like a file, without ever holding more than the
// bytes a caller asks for.
package filler

import (
	"fmt"
	"io"

	"github.com/anacrolix/missinggo/v2/panicif"

	findtorrent "github.com/anacrolix/find-torrent-files"
)

type Source struct {
	size int64
	pos  int64
}

var _ interface {
	io.ReadSeekCloser
	io.WriterTo
} = (*Source)(nil)

func New(size int64) *Source {
	panicif.LessThan(size, 0)
	return &Source{size: size}
}

func (me *Source) Size() int64 {
	return me.size
}

func (me *Source) Tell() int64 {
	return me.pos
}

func (me *Source) remaining() int64 {
	return max(me.size-me.pos, 0)
}

func (me *Source) Read(b []byte) (n int, err error) {
	rem := me.remaining()
	if rem == 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > rem {
		b = b[:rem]
	}
	clear(b)
	n = len(b)
	me.pos += int64(n)
	return
}

// Returns up to n bytes, fewer if the source ends first, and an empty slice at the end. A
// negative n reads to the end.
func (me *Source) ReadN(n int) []byte {
	rem := me.remaining()
	if n < 0 || int64(n) > rem {
		n = int(rem)
	}
	me.pos += int64(n)
	return make([]byte, n)
}

// The resulting position must lie within [0, Size()], otherwise the position is unchanged and
// the error matches findtorrent.ErrOutOfBounds.
func (me *Source) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = me.pos + offset
	case io.SeekEnd:
		pos = me.size + offset
	default:
		return me.pos, fmt.Errorf("invalid whence %v", whence)
	}
	if pos < 0 || pos > me.size {
		return me.pos, fmt.Errorf("seeking to %v in filler of size %v: %w", pos, me.size, findtorrent.ErrOutOfBounds)
	}
	me.pos = pos
	return pos, nil
}

const writeToChunk = 32 << 10

func (me *Source) WriteTo(w io.Writer) (n int64, err error) {
	var zeroes [writeToChunk]byte
	for me.remaining() != 0 {
		chunk := zeroes[:min(me.remaining(), writeToChunk)]
		var n1 int
		n1, err = w.Write(chunk)
		n += int64(n1)
		me.pos += int64(n1)
		if err != nil {
			return
		}
		if n1 != len(chunk) {
			err = io.ErrShortWrite
			return
		}
	}
	return
}

// Does nothing. Present so a Source can stand in for an open file.
func (me *Source) Close() error {
	return nil
}
