// Package sizeindex indexes the files under some directories by size, and matches a torrent's
// files to them by size alone.
package sizeindex

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/anacrolix/log"

	"github.com/anacrolix/find-torrent-files/torrent"
)

var logger = log.Default.WithNames("sizeindex")

type Index struct {
	bySize map[int64][]string
	paths  map[string]struct{}
	logger log.Logger
}

type Option func(*Index)

// Logs to l with the "sizeindex" name added.
func WithLogger(l log.Logger) Option {
	return func(me *Index) {
		me.logger = l.WithNames("sizeindex")
	}
}

func New(opts ...Option) *Index {
	me := &Index{
		bySize: make(map[int64][]string),
		paths:  make(map[string]struct{}),
		logger: logger,
	}
	for _, opt := range opts {
		opt(me)
	}
	return me
}

// Walks each of dirs recursively and adds every regular file. Symlinks to regular files are added
// with the size of their target. Symlinks to directories aren't followed. A dir that can't be
// walked at all is an error, unreadable entries below it are logged and skipped.
func Build(ctx context.Context, dirs []string, opts ...Option) (*Index, error) {
	me := New(opts...)
	for _, dir := range dirs {
		err := me.AddDir(ctx, dir)
		if err != nil {
			return nil, err
		}
	}
	me.logger.Levelf(log.Debug, "indexed %v files with %v distinct sizes", me.Len(), len(me.bySize))
	return me, nil
}

func (me *Index) AddDir(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			me.logger.Levelf(log.Warning, "skipping %q: %v", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		var fi fs.FileInfo
		switch d.Type() {
		case 0:
			fi, err = d.Info()
		case fs.ModeSymlink:
			fi, err = os.Stat(path)
		default:
			return nil
		}
		if err != nil {
			me.logger.Levelf(log.Warning, "skipping %q: %v", path, err)
			return nil
		}
		if fi.Mode().IsRegular() {
			me.Add(path, fi.Size())
		}
		return nil
	})
}

// Adding the same path more than once has no further effect.
func (me *Index) Add(path string, size int64) {
	path = filepath.Clean(path)
	if _, ok := me.paths[path]; ok {
		return
	}
	me.paths[path] = struct{}{}
	me.bySize[size] = append(me.bySize[size], path)
}

// The number of distinct files indexed.
func (me *Index) Len() int {
	return len(me.paths)
}

// Paths of the indexed files of the given size, in the order they were added.
func (me *Index) Candidates(size int64) []string {
	return slices.Clone(me.bySize[size])
}

type Ambiguity struct {
	File       torrent.File
	Candidates []string
}

type MatchResult struct {
	// The files that had exactly one candidate.
	Mapping      torrent.FileMapping
	MissingFiles int
	MissingBytes int64
	// Files with several candidates. They're counted as missing too.
	Ambiguous []Ambiguity
}

// Maps each file of t to the single indexed file with the same size. Files with no candidate or
// several candidates are left unmapped.
func (me *Index) Match(t *torrent.Torrent) (ret MatchResult) {
	ret.Mapping = make(torrent.FileMapping)
	for _, f := range t.Files {
		candidates := me.bySize[f.Length]
		if len(candidates) == 1 {
			ret.Mapping.Set(f, candidates[0])
			continue
		}
		// Several same-size files could be told apart by hashing the pieces they'd occupy, but
		// nothing tries that yet: the file counts as missing, and its pieces read as zeroes.
		if len(candidates) > 1 {
			ret.Ambiguous = append(ret.Ambiguous, Ambiguity{
				File:       f,
				Candidates: slices.Clone(candidates),
			})
		}
		ret.MissingFiles++
		ret.MissingBytes += f.Length
	}
	return
}
