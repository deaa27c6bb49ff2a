package pieces

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/anacrolix/missinggo/v2/panicif"
	"golang.org/x/time/rate"

	findtorrent "github.com/anacrolix/find-torrent-files"
	"github.com/anacrolix/find-torrent-files/filler"
)

// The bytes of one torrent file. The only implementations are realFile and fillerSource.
type source interface {
	io.ReadSeekCloser
	Tell() int64
	Size() int64
	isSource()
}

var (
	_ source = (*realFile)(nil)
	_ source = fillerSource{}
)

type fillerSource struct {
	*filler.Source
}

func (fillerSource) isSource() {}

// A mapped data file, bounded to the length the torrent declares for it.
type realFile struct {
	f       *os.File
	limiter *rate.Limiter
	path    string
	size    int64
	pos     int64
}

func (*realFile) isSource() {}

func openRealFile(path string, size int64, limiter *rate.Limiter) (*realFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &realFile{
		f:       f,
		limiter: limiter,
		path:    path,
		size:    size,
	}, nil
}

func (me *realFile) Size() int64 {
	return me.size
}

func (me *realFile) Tell() int64 {
	return me.pos
}

// Returns io.EOF only once the declared length has been read. The file ending before that is an
// error.
func (me *realFile) Read(b []byte) (n int, err error) {
	rem := me.size - me.pos
	if rem <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > rem {
		b = b[:rem]
	}
	if me.limiter != nil && me.limiter.Burst() != 0 {
		b = b[:min(len(b), me.limiter.Burst())]
	}
	t := time.Now()
	n, err = me.f.Read(b)
	me.throttle(t, n)
	me.pos += int64(n)
	if errors.Is(err, io.EOF) {
		if me.pos < me.size {
			err = fmt.Errorf("reading %q: ended at %v of %v bytes: %w", me.path, me.pos, me.size, io.ErrUnexpectedEOF)
		} else {
			err = nil
		}
	} else if err != nil {
		err = fmt.Errorf("reading %q: %w", me.path, err)
	}
	return
}

// Sleeps until n bytes read at t fit the limiter's rate.
func (me *realFile) throttle(t time.Time, n int) {
	if me.limiter == nil {
		return
	}
	r := me.limiter.ReserveN(t, n)
	panicif.False(r.OK())
	time.Sleep(r.DelayFrom(t))
}

func (me *realFile) Seek(offset int64, whence int) (int64, error) {
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
		return me.pos, fmt.Errorf("seeking to %v in %q of size %v: %w", pos, me.path, me.size, findtorrent.ErrOutOfBounds)
	}
	_, err := me.f.Seek(pos, io.SeekStart)
	if err != nil {
		return me.pos, err
	}
	me.pos = pos
	return pos, nil
}

func (me *realFile) Close() error {
	return me.f.Close()
}
