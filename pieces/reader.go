// Package pieces reads a torrent's files as one stream and cuts it into pieces, exactly as the
// stream was cut when the torrent was created. Files that aren't mapped to data on disk read as
// zero bytes of their declared length, so the piece boundaries never shift.
package pieces

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"

	"github.com/anacrolix/log"
	"github.com/anacrolix/missinggo/v2/panicif"
	"golang.org/x/time/rate"

	findtorrent "github.com/anacrolix/find-torrent-files"
	"github.com/anacrolix/find-torrent-files/filler"
	"github.com/anacrolix/find-torrent-files/torrent"
)

var logger = log.Default.WithNames("pieces")

type Piece struct {
	Index int
	// Belongs to the receiver. Every piece has PieceLength bytes except possibly the last.
	Data []byte
}

type Option func(*Reader)

// Logs to l with the "pieces" name added.
func WithLogger(l log.Logger) Option {
	return func(r *Reader) {
		r.logger = l.WithNames("pieces")
	}
}

// Throttles reads from mapped files. Absent files aren't throttled.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(r *Reader) {
		r.limiter = l
	}
}

// Produces the pieces of a torrent's data in order. Each file is opened when the stream reaches
// it and closed as soon as its declared length has been read. A Reader makes one pass: construct
// another to read the pieces again.
type Reader struct {
	pieceLength int64
	files       []torrent.File
	mapping     torrent.FileMapping
	limiter     *rate.Limiter
	logger      log.Logger

	nextFile  int
	cur       source
	buf       []byte
	nextIndex int
	// Sticky. io.EOF once all pieces are returned.
	err error
}

func NewTorrentReader(t *torrent.Torrent, mapping torrent.FileMapping, opts ...Option) (*Reader, error) {
	return NewReader(t.PieceLength, t.Files, mapping, opts...)
}

// Fails before reading anything if the piece length is invalid, or a mapped file is missing or
// has a size other than its declared length.
func NewReader(
	pieceLength int64,
	files []torrent.File,
	mapping torrent.FileMapping,
	opts ...Option,
) (*Reader, error) {
	err := torrent.ValidatePieceLength(pieceLength)
	if err != nil {
		return nil, err
	}
	err = preflight(files, mapping)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		pieceLength: pieceLength,
		files:       files,
		mapping:     mapping,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func preflight(files []torrent.File, mapping torrent.FileMapping) error {
	for _, f := range files {
		fsPath := mapping.Lookup(f)
		if !fsPath.Ok {
			continue
		}
		fi, err := os.Stat(fsPath.Value)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%q for %q: %w", fsPath.Value, f.DisplayPath(), findtorrent.ErrMissingFile)
		}
		if err != nil {
			return fmt.Errorf("checking %q for %q: %w", fsPath.Value, f.DisplayPath(), err)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("%q for %q is not a regular file: %w", fsPath.Value, f.DisplayPath(), findtorrent.ErrMissingFile)
		}
		if fi.Size() != f.Length {
			return &findtorrent.SizeMismatchError{
				Path:        fsPath.Value,
				TorrentPath: f.DisplayPath(),
				Declared:    f.Length,
				Actual:      fi.Size(),
			}
		}
	}
	return nil
}

func (r *Reader) PieceLength() int64 {
	return r.pieceLength
}

// Returns io.EOF after the last piece. Any other error ends the stream and releases the open
// file.
func (r *Reader) Next() (p Piece, err error) {
	if r.err != nil {
		err = r.err
		return
	}
	for {
		if r.cur == nil {
			if r.nextFile == len(r.files) {
				if len(r.buf) == 0 {
					r.err = io.EOF
					err = r.err
					return
				}
				p = r.emit()
				return
			}
			err = r.openNext()
			if err != nil {
				r.fail(err)
				return
			}
		}
		if r.buf == nil {
			r.buf = make([]byte, 0, r.pieceLength)
		}
		var n int
		n, err = r.cur.Read(r.buf[len(r.buf):r.pieceLength])
		r.buf = r.buf[:len(r.buf)+n]
		if err == io.EOF {
			err = r.closeCurrent()
		}
		if err != nil {
			r.fail(err)
			return
		}
		panicif.GreaterThan(int64(len(r.buf)), r.pieceLength)
		if int64(len(r.buf)) == r.pieceLength {
			p = r.emit()
			return
		}
	}
}

func (r *Reader) emit() (p Piece) {
	p = Piece{
		Index: r.nextIndex,
		Data:  r.buf,
	}
	r.nextIndex++
	r.buf = nil
	return
}

func (r *Reader) openNext() error {
	f := r.files[r.nextFile]
	r.nextFile++
	fsPath := r.mapping.Lookup(f)
	if !fsPath.Ok {
		r.cur = fillerSource{filler.New(f.Length)}
		return nil
	}
	rf, err := openRealFile(fsPath.Value, f.Length, r.limiter)
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %w", findtorrent.ErrMissingFile, err)
	}
	if err != nil {
		return fmt.Errorf("opening data for %q: %w", f.DisplayPath(), err)
	}
	r.logger.Levelf(log.Debug, "reading %q from %q", f.DisplayPath(), fsPath.Value)
	r.cur = rf
	return nil
}

func (r *Reader) closeCurrent() (err error) {
	if r.cur == nil {
		return
	}
	err = r.cur.Close()
	r.cur = nil
	return
}

func (r *Reader) fail(err error) {
	r.err = err
	r.closeCurrent()
}

// Releases any open file. Next returns fs.ErrClosed afterwards, unless the stream already ended.
func (r *Reader) Close() error {
	if r.err == nil {
		r.err = fs.ErrClosed
	}
	return r.closeCurrent()
}

// Yields the remaining pieces, stopping at the first error. The Reader is closed when iteration
// stops, however it stops.
func (r *Reader) All() iter.Seq2[Piece, error] {
	return func(yield func(Piece, error) bool) {
		defer r.Close()
		for {
			p, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}
