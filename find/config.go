package find

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/anacrolix/log"
	"golang.org/x/time/rate"
)

type Config struct {
	// Searched recursively for files with the sizes of torrent files.
	SearchDirs []string
	// Where the torrent client looks for data. Matched files are hardlinked here.
	ClientDownloadDir string
	// Scanned for *.torrent, not recursively.
	TorrentsDir string
	// Torrent files are moved here once their data is imported.
	MatchedTorrentsDir string
	// A torrent is skipped if more than this many bytes are missing, or are in mismatched pieces.
	FailThresholdBytes int64
	// Report what would be imported without touching the filesystem.
	DryRun bool
	// Print piece checking progress at most once per ProgressInterval.
	ShowProgress     bool
	ProgressInterval time.Duration
	// Goroutines hashing pieces of one torrent.
	Workers int
	// Throttles reading of data files. Nil means unlimited.
	ReadLimiter *rate.Limiter
	// The report for the user.
	Out io.Writer
	// The packages doing the work log here, each adding its own name.
	Logger log.Logger
}

func NewDefaultConfig() *Config {
	return &Config{
		MatchedTorrentsDir: "./matched-torrents",
		FailThresholdBytes: 50 << 20,
		ShowProgress:       true,
		ProgressInterval:   time.Second,
		Workers:            runtime.GOMAXPROCS(0),
		Out:                os.Stdout,
		Logger:             log.Default,
	}
}
