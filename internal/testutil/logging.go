package testutil

import (
	"slices"
	"sync"

	"github.com/anacrolix/log"
)

// Keeps every record logged through its Logger.
type LogRecorder struct {
	mu      sync.Mutex
	records []log.Record
}

func (me *LogRecorder) Handle(r log.Record) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.records = append(me.records, r)
}

// Passes debug and above to the recorder, and nowhere else.
func (me *LogRecorder) Logger() log.Logger {
	l := log.Default.FilterLevel(log.Debug)
	l.Handlers = []log.Handler{me}
	return l
}

// Whether a record at level was logged by a logger carrying name.
func (me *LogRecorder) Logged(level log.Level, name string) bool {
	me.mu.Lock()
	defer me.mu.Unlock()
	for _, r := range me.records {
		if r.Level == level && slices.Contains(r.Names, name) {
			return true
		}
	}
	return false
}
