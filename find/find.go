// Package find locates the data of a directory of torrent files among files scattered across
// search directories, verifies it against the piece hashes, and imports the torrents whose data
// is complete enough.
package find

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/dustin/go-humanize"

	"github.com/anacrolix/find-torrent-files/importer"
	"github.com/anacrolix/find-torrent-files/sizeindex"
	"github.com/anacrolix/find-torrent-files/torrent"
	"github.com/anacrolix/find-torrent-files/verify"
)

type Status int

const (
	Imported Status = iota
	TooManyMissingBytes
	TooManyMismatchedPieces
)

func (s Status) String() string {
	switch s {
	case Imported:
		return "imported"
	case TooManyMissingBytes:
		return "too many missing bytes"
	case TooManyMismatchedPieces:
		return "too many mismatched pieces"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Outcome struct {
	TorrentFilePath string
	Torrent         *torrent.Torrent
	Match           sizeindex.MatchResult
	// Nil if the torrent was skipped before its pieces were checked.
	Verify *verify.Result
	Status Status
}

type Summary struct {
	Imported int
	Skipped  int
	Failed   int
}

type Finder struct {
	config   *Config
	logger   log.Logger
	index    *sizeindex.Index
	importer importer.Importer
}

// Indexes the search directories. The index is reused for every torrent.
func New(ctx context.Context, config *Config) (*Finder, error) {
	index, err := sizeindex.Build(ctx, config.SearchDirs, sizeindex.WithLogger(config.Logger))
	if err != nil {
		return nil, fmt.Errorf("indexing search dirs: %w", err)
	}
	logger := config.Logger.WithNames("find")
	logger.Levelf(log.Info, "indexed %v files in %v search dirs", index.Len(), len(config.SearchDirs))
	return &Finder{
		config: config,
		logger: logger,
		index:  index,
		importer: importer.Importer{
			ClientDownloadDir:  config.ClientDownloadDir,
			MatchedTorrentsDir: config.MatchedTorrentsDir,
			DryRun:             config.DryRun,
			Out:                config.Out,
			Logger:             g.Some(config.Logger),
		},
	}, nil
}

func (me *Finder) printf(format string, a ...any) {
	fmt.Fprintf(me.config.Out, format, a...)
}

// Processes each *.torrent in the torrents dir in name order. A torrent that fails is logged and
// counted, and the rest are still processed. Only ctx ending stops early.
func (me *Finder) FindTorrents(ctx context.Context) (sum Summary, err error) {
	paths, err := filepath.Glob(filepath.Join(me.config.TorrentsDir, "*.torrent"))
	if err != nil {
		return
	}
	slices.Sort(paths)
	for _, path := range paths {
		if err = ctx.Err(); err != nil {
			return
		}
		var o *Outcome
		o, err = me.FindTorrent(ctx, path)
		me.printf("%s\n", Separator)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			me.logger.Levelf(log.Error, "processing %q: %v", path, err)
			sum.Failed++
			err = nil
			continue
		}
		if o.Status == Imported {
			sum.Imported++
		} else {
			sum.Skipped++
		}
	}
	me.logger.Levelf(log.Info, "%v torrents: %+v", len(paths), sum)
	return
}

// Matches, verifies and possibly imports the torrent at path, printing a report as it goes. A
// torrent skipped for exceeding the fail threshold isn't an error.
func (me *Finder) FindTorrent(ctx context.Context, path string) (*Outcome, error) {
	t, err := torrent.LoadFile(path)
	if err != nil {
		return nil, err
	}
	o := &Outcome{
		TorrentFilePath: path,
		Torrent:         t,
		Match:           me.index.Match(t),
	}
	for _, a := range o.Match.Ambiguous {
		me.printf("Found %d multiple size matches for %s, considering missing\n", len(a.Candidates), a.File)
	}
	totalLength := t.TotalLength()
	threshold := me.config.FailThresholdBytes
	me.printf("Torrent: %s\n", filepath.Base(path))
	me.printf("Missing files: %d / %d (%s)\n",
		o.Match.MissingFiles, len(t.Files), percent(o.Match.MissingFiles, len(t.Files)))
	me.printf("Missing bytes: %s / %s (%s)\n",
		ibytes(o.Match.MissingBytes), ibytes(totalLength), percent(o.Match.MissingBytes, totalLength))
	if o.Match.MissingBytes > threshold {
		me.printf("❌ Skipping torrent due to missing > %s: %s\n", ibytes(threshold), ibytes(o.Match.MissingBytes))
		o.Status = TooManyMissingBytes
		return o, nil
	}
	opts := verify.Options{
		Workers:     me.config.Workers,
		ReadLimiter: me.config.ReadLimiter,
		Logger:      g.Some(me.config.Logger),
	}
	if me.config.ShowProgress {
		opts.Progress = newProgressPrinter(me.config.Out, t.Name, me.config.ProgressInterval).update
	}
	o.Verify, err = verify.Verify(ctx, t, o.Match.Mapping, opts)
	if err != nil {
		return nil, err
	}
	mismatched := o.Verify.MismatchCount()
	me.printf("Mismatched pieces: %s / %s (%s)\n",
		humanize.Comma(int64(mismatched)), humanize.Comma(int64(o.Verify.NumPieces)), percent(mismatched, o.Verify.NumPieces))
	// Every mismatched piece counts at the full piece length, even the shorter last one.
	if mismatchedBytes := o.Verify.ApproxMismatchBytes(); mismatchedBytes > threshold {
		me.printf("❌ Skipping torrent due to missing pieces > %s: %s\n", ibytes(threshold), ibytes(mismatchedBytes))
		o.Status = TooManyMismatchedPieces
		return o, nil
	}
	err = me.importer.Import(path, t, o.Match.Mapping)
	if err != nil {
		return nil, fmt.Errorf("importing %q: %w", t.Name, err)
	}
	me.printf("✅ Processed torrent: %s\n", filepath.Base(path))
	o.Status = Imported
	return o, nil
}
