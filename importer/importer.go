// Package importer hands matched torrent data over to a torrent client: data files are hardlinked
// into the client's download directory in the torrent's layout, and the metainfo file is moved
// out of the way.
package importer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"

	findtorrent "github.com/anacrolix/find-torrent-files"
	"github.com/anacrolix/find-torrent-files/torrent"
)

var logger = log.Default.WithNames("importer")

type Importer struct {
	ClientDownloadDir  string
	MatchedTorrentsDir string
	// Only report what would be done.
	DryRun bool
	// Receives a line per action taken. Discarded if nil.
	Out io.Writer
	// Logged to under the "importer" name. The package logger otherwise.
	Logger g.Option[log.Logger]
}

type link struct {
	src, dst string
}

// Hardlinks each mapped file of t into ClientDownloadDir, then moves torrentFilePath into
// MatchedTorrentsDir. Nothing is done if any destination already exists.
func (me *Importer) Import(torrentFilePath string, t *torrent.Torrent, mapping torrent.FileMapping) error {
	links, err := me.plan(t, mapping)
	if err != nil {
		return err
	}
	torrentDst := filepath.Join(me.MatchedTorrentsDir, filepath.Base(torrentFilePath))
	if err := checkAbsent(torrentDst); err != nil {
		return err
	}
	if me.DryRun {
		for _, l := range links {
			me.printf("Would hardlink %s to %s\n", l.src, l.dst)
		}
		me.printf("Would move torrent file to %s\n", torrentDst)
		return nil
	}
	for _, l := range links {
		err := os.MkdirAll(filepath.Dir(l.dst), 0o750)
		if err == nil {
			err = os.Link(l.src, l.dst)
		}
		if err != nil {
			return fmt.Errorf("hardlinking %q: %w", l.src, err)
		}
		me.logger().Levelf(log.Debug, "linked %q to %q", l.src, l.dst)
		me.printf("Hardlink %s to %s\n", l.src, l.dst)
	}
	err = os.MkdirAll(me.MatchedTorrentsDir, 0o750)
	if err == nil {
		err = os.Rename(torrentFilePath, torrentDst)
	}
	if err != nil {
		return fmt.Errorf("moving torrent file %q: %w", torrentFilePath, err)
	}
	me.printf("Move torrent file to %s\n", torrentDst)
	return nil
}

func (me *Importer) plan(t *torrent.Torrent, mapping torrent.FileMapping) (links []link, err error) {
	dsts := make(map[string]struct{})
	for _, f := range t.Files {
		src, ok := mapping.Lookup(f).AsTuple()
		if !ok {
			continue
		}
		// os.Link doesn't follow symlinks, and a relative one would dangle at the destination.
		src, err = filepath.EvalSymlinks(src)
		if err != nil {
			return nil, fmt.Errorf("resolving data for %q: %w", f, err)
		}
		rel, err := localPath(f)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(me.ClientDownloadDir, rel)
		if _, ok := dsts[dst]; ok {
			return nil, fmt.Errorf("%w: file %q appears twice", findtorrent.ErrMalformedMetadata, f)
		}
		dsts[dst] = struct{}{}
		if err := checkAbsent(dst); err != nil {
			return nil, err
		}
		links = append(links, link{src, dst})
	}
	return
}

// The file's path relative to the download dir, if it stays inside it.
func localPath(f torrent.File) (string, error) {
	for _, s := range f.Path {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return "", fmt.Errorf("%w: unsafe file path %q", findtorrent.ErrMalformedMetadata, f)
		}
	}
	rel := filepath.Join(f.Path...)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: unsafe file path %q", findtorrent.ErrMalformedMetadata, f)
	}
	return rel, nil
}

func checkAbsent(path string) error {
	_, err := os.Lstat(path)
	if err == nil {
		return fmt.Errorf("%q: %w", path, fs.ErrExist)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (me *Importer) logger() log.Logger {
	if me.Logger.Ok {
		return me.Logger.Value.WithNames("importer")
	}
	return logger
}

func (me *Importer) printf(format string, a ...any) {
	if me.Out == nil {
		return
	}
	fmt.Fprintf(me.Out, format, a...)
}
