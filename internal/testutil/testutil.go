// Package testutil builds torrents and their data for tests.
package testutil

import (
	"crypto/sha1"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"
)

type tt interface {
	require.TestingT
	Helper()
	TempDir() string
}

type File struct {
	// Relative to the torrent name. Ignored for single-file torrents.
	Path []string
	Data []byte
}

type Torrent struct {
	Name        string
	PieceLength int64
	Files       []File
	// Encode with "length" instead of "files". Requires exactly one file.
	SingleFile bool
}

func (t Torrent) Concat() (ret []byte) {
	for _, f := range t.Files {
		ret = append(ret, f.Data...)
	}
	return
}

// The concatenated SHA-1 of each piece of the data.
func (t Torrent) PieceHashes() []byte {
	var ret []byte
	data := t.Concat()
	for len(data) != 0 {
		n := min(int64(len(data)), t.PieceLength)
		h := sha1.Sum(data[:n])
		ret = append(ret, h[:]...)
		data = data[n:]
	}
	return ret
}

func (t Torrent) InfoDict() map[string]any {
	info := map[string]any{
		"name":         t.Name,
		"piece length": t.PieceLength,
		"pieces":       string(t.PieceHashes()),
	}
	if t.SingleFile {
		if len(t.Files) != 1 {
			panic(len(t.Files))
		}
		info["length"] = int64(len(t.Files[0].Data))
		return info
	}
	var files []any
	for _, f := range t.Files {
		var path []any
		for _, s := range f.Path {
			path = append(path, s)
		}
		files = append(files, map[string]any{
			"length": int64(len(f.Data)),
			"path":   path,
		})
	}
	info["files"] = files
	return info
}

func Metainfo(info map[string]any) []byte {
	b, err := bencode.Marshal(map[string]any{
		"announce": "http://tracker.example/announce",
		"info":     info,
	})
	if err != nil {
		panic(err)
	}
	return b
}

func (t Torrent) Metainfo() []byte {
	return Metainfo(t.InfoDict())
}

// Writes the metainfo into dir and returns its path.
func (t Torrent) WriteMetainfo(tb tt, dir string) string {
	tb.Helper()
	return WriteFile(tb, filepath.Join(dir, t.Name+".torrent"), t.Metainfo())
}

func WriteFile(tb tt, path string, data []byte) string {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(tb, os.WriteFile(path, data, 0o640))
	return path
}

// Deterministic pseudo-random bytes, so failures reproduce.
func RandomData(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}
