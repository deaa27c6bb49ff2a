package torrent

import (
	"strings"

	g "github.com/anacrolix/generics"
)

// A file declared by a torrent. Path is relative to the data root and starts with the torrent's
// name, so a single-file torrent has the one segment.
type File struct {
	Length int64
	Path   []string
}

// Slash-separated Path. This is the key a FileMapping uses.
func (f File) DisplayPath() string {
	return strings.Join(f.Path, "/")
}

func (f File) String() string {
	return f.DisplayPath()
}

// Maps torrent files by display path to the filesystem paths holding their data. Files without
// an entry are absent.
type FileMapping map[string]string

func (m FileMapping) Set(f File, fsPath string) {
	m[f.DisplayPath()] = fsPath
}

func (m FileMapping) Lookup(f File) g.Option[string] {
	fsPath, ok := m[f.DisplayPath()]
	if !ok {
		return g.None[string]()
	}
	return g.Some(fsPath)
}
