// Finds the data of torrents among files scattered across directories, checks it against the
// piece hashes, and hardlinks it into place for a torrent client.
//
// Example run:
// $ find-torrent-files find --search-dir /mnt/old --client-download-dir ~/downloads --torrents-dir ~/torrents
// Torrent: ubuntu-20.04.2-live-server-amd64.iso.torrent
// Missing files: 0 / 1 (0.00%)
// Missing bytes: 0 B / 1.1 GiB (0.00%)
// 1s: checking "ubuntu-20.04.2-live-server-amd64.iso": 412 MiB/1.1 GiB, 1648/4636 pieces checked (0 mismatched): 412 MiB/s
// ...
// Mismatched pieces: 0 / 4,636 (0.00%)
// Hardlink /mnt/old/ubuntu.iso to ~/downloads/ubuntu-20.04.2-live-server-amd64.iso
// Move torrent file to matched-torrents/ubuntu-20.04.2-live-server-amd64.iso.torrent
// ✅ Processed torrent: ubuntu-20.04.2-live-server-amd64.iso.torrent
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/envpprof"
	"github.com/anacrolix/log"
	"github.com/anacrolix/torrent/bencode"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/anacrolix/find-torrent-files/dirwatch"
	"github.com/anacrolix/find-torrent-files/find"
	"github.com/anacrolix/find-torrent-files/torrent"
)

// Filtered by --debug. Each package adds its own name.
var (
	baseLogger = log.Default
	logger     = baseLogger.WithNames("main")
)

var flags struct {
	Debug bool `help:"log debug messages"`

	Find          *FindCmd          `arg:"subcommand:find" help:"process every torrent in a directory"`
	Watch         *WatchCmd         `arg:"subcommand:watch" help:"process torrents as they appear in a directory"`
	Verify        *VerifyCmd        `arg:"subcommand:verify" help:"check the pieces of one torrent"`
	ListFiles     *ListFilesCmd     `arg:"subcommand:list-files"`
	SpewBencoding *SpewBencodingCmd `arg:"subcommand:spew-bencoding" help:"dump bencoded values read from stdin"`
}

type FindArgs struct {
	SearchDir          []string `arg:"--search-dir,required" help:"directories to search for data files"`
	ClientDownloadDir  string   `arg:"--client-download-dir,required" help:"where your torrent client downloads files. Matched files are hardlinked here"`
	TorrentsDir        string   `arg:"--torrents-dir,required" help:"directory containing torrent files"`
	MatchedTorrentsDir string   `arg:"--matched-torrents-dir" default:"./matched-torrents" help:"directory to which matched torrents are moved"`
	FailThresholdBytes byteSize `arg:"--fail-threshold-bytes" default:"50MiB" help:"skip torrents missing more than this"`
	DryRun             bool     `arg:"-d,--dry-run" help:"don't hardlink data files or move torrent files"`
	ShowProgress       bool     `arg:"-p,--show-progress" default:"true" help:"show piece checking progress"`
	Workers            int      `arg:"--workers" help:"goroutines hashing pieces, 0 for one per CPU"`
	ReadRate           byteSize `arg:"--read-rate" help:"max bytes per second read from data files, 0 for unlimited"`
}

type FindCmd struct {
	FindArgs
}

type WatchCmd struct {
	FindArgs
}

type VerifyCmd struct {
	TorrentPath string   `arg:"positional,required"`
	SearchDir   []string `arg:"--search-dir,required" help:"directories to search for data files"`
	Summary     bool     `arg:"--summary" help:"display summary at the end"`
	Workers     int      `arg:"--workers" help:"goroutines hashing pieces, 0 for one per CPU"`
	ReadRate    byteSize `arg:"--read-rate" help:"max bytes per second read from data files, 0 for unlimited"`
}

type ListFilesCmd struct {
	TorrentPath string `arg:"positional,required"`
}

type SpewBencodingCmd struct{}

// A byte count that parses from humanized forms like "50MiB" or "1.5 GB".
type byteSize int64

func (me *byteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}
	*me = byteSize(n)
	return nil
}

func (me byteSize) String() string {
	return humanize.IBytes(uint64(me))
}

func readLimiter(bytesPerSecond byteSize) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), 256<<10)
}

func (me *FindArgs) config() *find.Config {
	cfg := find.NewDefaultConfig()
	cfg.SearchDirs = me.SearchDir
	cfg.ClientDownloadDir = me.ClientDownloadDir
	cfg.TorrentsDir = me.TorrentsDir
	cfg.MatchedTorrentsDir = me.MatchedTorrentsDir
	cfg.FailThresholdBytes = int64(me.FailThresholdBytes)
	cfg.DryRun = me.DryRun
	cfg.ShowProgress = me.ShowProgress
	if me.Workers > 0 {
		cfg.Workers = me.Workers
	}
	cfg.ReadLimiter = readLimiter(me.ReadRate)
	cfg.Logger = baseLogger
	return cfg
}

func mainErr() error {
	p := arg.MustParse(&flags)
	level := log.Info
	if flags.Debug {
		level = log.Debug
	}
	baseLogger = log.Default.FilterLevel(level)
	logger = baseLogger.WithNames("main")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	switch {
	case flags.Find != nil:
		return findErr(ctx, flags.Find.config())
	case flags.Watch != nil:
		return watchErr(ctx, flags.Watch.config(), flags.Watch.TorrentsDir)
	case flags.Verify != nil:
		return verifyErr(ctx, flags.Verify)
	case flags.ListFiles != nil:
		t, err := torrent.LoadFile(flags.ListFiles.TorrentPath)
		if err != nil {
			return fmt.Errorf("loading torrent: %w", err)
		}
		for _, f := range t.Files {
			fmt.Println(f.DisplayPath())
		}
		return nil
	case flags.SpewBencoding != nil:
		d := bencode.NewDecoder(os.Stdin)
		for i := 0; ; i++ {
			var v any
			err := d.Decode(&v)
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("decoding message index %d: %w", i, err)
			}
			spew.Dump(v)
		}
		return nil
	default:
		p.Fail(fmt.Sprintf("unexpected subcommand: %v", p.Subcommand()))
		panic("unreachable")
	}
}

func findErr(ctx context.Context, cfg *find.Config) error {
	f, err := find.New(ctx, cfg)
	if err != nil {
		return err
	}
	sum, err := f.FindTorrents(ctx)
	if err != nil {
		return err
	}
	if sum.Failed != 0 {
		return fmt.Errorf("%v torrents failed", sum.Failed)
	}
	return nil
}

// Processes torrents already in the directory and then those that arrive until ctx is done. The
// search dirs are indexed once, at the start.
func watchErr(ctx context.Context, cfg *find.Config, dir string) error {
	f, err := find.New(ctx, cfg)
	if err != nil {
		return err
	}
	dw, err := dirwatch.New(dir, dirwatch.WithLogger(baseLogger))
	if err != nil {
		return fmt.Errorf("watching torrent dir: %w", err)
	}
	defer dw.Close()
	go func() {
		<-ctx.Done()
		dw.Close()
	}()
	for ev := range dw.Events {
		logger.Levelf(log.Debug, "torrent file %v: %q (%v)", ev.Change, ev.TorrentFilePath, ev.InfoHash)
		if ev.Change != dirwatch.Added {
			continue
		}
		_, err := f.FindTorrent(ctx, ev.TorrentFilePath)
		fmt.Fprintln(cfg.Out, find.Separator)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Levelf(log.Error, "processing %q: %v", ev.TorrentFilePath, err)
		}
	}
	// Interrupted is the normal way out.
	return nil
}

func main() {
	defer envpprof.Stop()
	if err := mainErr(); err != nil {
		logger.Levelf(log.Error, "error in main: %v", err)
		os.Exit(1)
	}
}
