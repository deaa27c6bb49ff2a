package find

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/anacrolix/find-torrent-files/verify"
)

// Printed after the report of each torrent.
var Separator = strings.Repeat("-", 40)

func percent[T int | int64](n, d T) string {
	if d == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(d))
}

func ibytes(n int64) string {
	return humanize.IBytes(uint64(n))
}

// Prints verification progress of one torrent, no more than once per interval. The final piece
// is always printed.
type progressPrinter struct {
	w        io.Writer
	name     string
	interval time.Duration
	start    time.Time
	last     time.Time
	lastLine string
}

func newProgressPrinter(w io.Writer, name string, interval time.Duration) *progressPrinter {
	now := time.Now()
	return &progressPrinter{
		w:        w,
		name:     name,
		interval: interval,
		start:    now,
		last:     now,
	}
}

func (me *progressPrinter) update(p verify.Progress) {
	now := time.Now()
	if p.PiecesDone != p.PiecesTotal && now.Sub(me.last) < me.interval {
		return
	}
	me.last = now
	elapsed := now.Sub(me.start)
	var byteRate int64
	if elapsed > 0 {
		byteRate = int64(float64(p.BytesDone) / elapsed.Seconds())
	}
	line := fmt.Sprintf(
		"%v: checking %q: %s/%s, %d/%d pieces checked (%d mismatched): %s/s\n",
		elapsed.Round(time.Millisecond),
		me.name,
		ibytes(p.BytesDone),
		ibytes(p.BytesTotal),
		p.PiecesDone,
		p.PiecesTotal,
		p.Mismatched,
		ibytes(byteRate),
	)
	if line != me.lastLine {
		me.lastLine = line
		io.WriteString(me.w, line)
	}
}
