// Package dirwatch reports torrent files appearing in and disappearing from a directory.
package dirwatch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"
	"github.com/fsnotify/fsnotify"

	"github.com/anacrolix/find-torrent-files/torrent"
)

var logger = log.Default.WithNames("dirwatch")

type Change uint

const (
	Added Change = iota
	Removed
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

type Event struct {
	Change
	TorrentFilePath string
	InfoHash        torrent.Hash
}

type Instance struct {
	w       *fsnotify.Watcher
	dirName string
	// Closed after Close. Files already in the directory are reported as Added first.
	Events chan Event

	logger log.Logger
	closed chansync.SetOnce
	wg     sync.WaitGroup
	// By clean path.
	infoHashes map[string]torrent.Hash
}

func (me *Instance) handleEvents() {
	defer me.wg.Done()
	for e := range me.w.Events {
		me.logger.Levelf(log.Debug, "event: %v", e)
		if !me.processFile(e.Name) {
			return
		}
	}
}

func (me *Instance) handleErrors() {
	defer me.wg.Done()
	for err := range me.w.Errors {
		me.logger.Levelf(log.Warning, "error in torrent directory watcher: %v", err)
	}
}

func torrentFileInfoHash(fileName string) (ih torrent.Hash, ok bool) {
	t, err := torrent.LoadFile(fileName)
	if err != nil {
		return
	}
	return t.InfoHash, true
}

// Returns false if the instance was closed. A file that still has the infohash it was added
// with isn't reported again.
func (me *Instance) processFile(name string) bool {
	name = filepath.Clean(name)
	if filepath.Ext(name) != ".torrent" {
		return true
	}
	newIh, loaded := torrentFileInfoHash(name)
	oldIh, known := me.infoHashes[name]
	if known && loaded && oldIh == newIh {
		return true
	}
	if known {
		delete(me.infoHashes, name)
		if !me.send(Event{
			TorrentFilePath: name,
			Change:          Removed,
			InfoHash:        oldIh,
		}) {
			return false
		}
	}
	if !loaded {
		return true
	}
	me.infoHashes[name] = newIh
	return me.send(Event{
		TorrentFilePath: name,
		Change:          Added,
		InfoHash:        newIh,
	})
}

func (me *Instance) send(e Event) bool {
	select {
	case me.Events <- e:
		return true
	case <-me.closed.Done():
		return false
	}
}

func (me *Instance) addDir() bool {
	names, err := os.ReadDir(me.dirName)
	if err != nil {
		me.logger.Levelf(log.Warning, "reading torrent directory: %v", err)
		return true
	}
	for _, n := range names {
		if !me.processFile(filepath.Join(me.dirName, n.Name())) {
			return false
		}
	}
	return true
}

type Option func(*Instance)

// Logs to l with the "dirwatch" name added.
func WithLogger(l log.Logger) Option {
	return func(i *Instance) {
		i.logger = l.WithNames("dirwatch")
	}
}

func New(dirName string, opts ...Option) (i *Instance, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	err = w.Add(dirName)
	if err != nil {
		w.Close()
		return
	}
	i = &Instance{
		w:          w,
		dirName:    dirName,
		Events:     make(chan Event),
		logger:     logger,
		infoHashes: make(map[string]torrent.Hash, 20),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.wg.Add(2)
	go func() {
		if i.addDir() {
			i.handleEvents()
		} else {
			i.wg.Done()
		}
	}()
	go i.handleErrors()
	go func() {
		i.wg.Wait()
		close(i.Events)
	}()
	return
}

func (me *Instance) Close() error {
	if !me.closed.Set() {
		return nil
	}
	return me.w.Close()
}
