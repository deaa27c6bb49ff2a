// Package verify hashes a torrent's data, as read through a pieces.Reader, and compares every
// piece with the torrent's piece hashes.
package verify

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"
	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/anacrolix/sync"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/anacrolix/find-torrent-files/pieces"
	"github.com/anacrolix/find-torrent-files/torrent"
)

var logger = log.Default.WithNames("verify")

type Options struct {
	// Pieces are hashed on up to this many goroutines. Files are still read by one goroutine, in
	// order. Values below 2 hash on the reading goroutine.
	Workers int
	// Called after each piece is checked. Calls don't overlap.
	Progress func(Progress)
	// Throttles reading of mapped files.
	ReadLimiter *rate.Limiter
	// Verification and reading log here, under their own names. The package loggers otherwise.
	Logger g.Option[log.Logger]
}

type Progress struct {
	PiecesDone  int
	PiecesTotal int
	Mismatched  int
	BytesDone   int64
	BytesTotal  int64
}

type verifier struct {
	t       *torrent.Torrent
	opts    Options
	matches []bool

	mu       sync.Mutex
	progress Progress
}

// Checks every piece of t, reading mapped files from disk and treating the rest as zeroes. A
// mismatch doesn't stop verification. Errors reading the data, or ctx being done, abort it.
func Verify(ctx context.Context, t *torrent.Torrent, mapping torrent.FileMapping, opts Options) (*Result, error) {
	err := t.Validate()
	if err != nil {
		return nil, fmt.Errorf("verifying %q: %w", t.Name, err)
	}
	vlog := logger
	var readerOpts []pieces.Option
	if opts.Logger.Ok {
		vlog = opts.Logger.Value.WithNames("verify")
		readerOpts = append(readerOpts, pieces.WithLogger(opts.Logger.Value))
	}
	if opts.ReadLimiter != nil {
		readerOpts = append(readerOpts, pieces.WithRateLimiter(opts.ReadLimiter))
	}
	r, err := pieces.NewTorrentReader(t, mapping, readerOpts...)
	if err != nil {
		return nil, fmt.Errorf("verifying %q: %w", t.Name, err)
	}
	defer r.Close()
	v := verifier{
		t:       t,
		opts:    opts,
		matches: make([]bool, t.NumPieces()),
		progress: Progress{
			PiecesTotal: t.NumPieces(),
			BytesTotal:  t.TotalLength(),
		},
	}
	err = v.run(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("verifying %q: %w", t.Name, err)
	}
	res := newResult(t, v.matches)
	vlog.Levelf(log.Debug, "verified %q: %v of %v pieces mismatched", t.Name, res.MismatchCount(), res.NumPieces)
	return res, nil
}

func (v *verifier) run(ctx context.Context, r *pieces.Reader) error {
	var eg errgroup.Group
	parallel := v.opts.Workers > 1
	if parallel {
		eg.SetLimit(v.opts.Workers)
	}
	err := v.dispatch(ctx, r, func(p pieces.Piece) {
		if parallel {
			eg.Go(func() error {
				v.check(p)
				return nil
			})
		} else {
			v.check(p)
		}
	})
	// Outstanding hashes must finish before the result is read, or the error returned.
	eg.Wait()
	if err != nil {
		return err
	}
	if v.progress.PiecesDone != len(v.t.Pieces) {
		return fmt.Errorf("data has %v pieces, expected %v", v.progress.PiecesDone, len(v.t.Pieces))
	}
	return nil
}

func (v *verifier) dispatch(ctx context.Context, r *pieces.Reader, check func(pieces.Piece)) error {
	for {
		err := ctx.Err()
		if err != nil {
			return err
		}
		p, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if p.Index >= len(v.t.Pieces) {
			return fmt.Errorf("data has more than the %v expected pieces", len(v.t.Pieces))
		}
		check(p)
	}
}

func (v *verifier) check(p pieces.Piece) {
	ok := sha1.Sum(p.Data) == v.t.Pieces[p.Index]
	// Distinct indexes, so no lock needed.
	v.matches[p.Index] = ok
	v.mu.Lock()
	defer v.mu.Unlock()
	v.progress.PiecesDone++
	v.progress.BytesDone += int64(len(p.Data))
	if !ok {
		v.progress.Mismatched++
	}
	if v.opts.Progress != nil {
		v.opts.Progress(v.progress)
	}
}

func mismatchBitmap(matches []bool) *roaring.Bitmap {
	bm := roaring.New()
	for i, ok := range matches {
		if !ok {
			bm.Add(uint32(i))
		}
	}
	return bm
}
