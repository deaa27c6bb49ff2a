package torrent_test

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	findtorrent "github.com/anacrolix/find-torrent-files"
	"github.com/anacrolix/find-torrent-files/internal/testutil"
	"github.com/anacrolix/find-torrent-files/torrent"
)

func TestLoadSingleFile(t *testing.T) {
	tor, err := torrent.Load(bytes.NewReader(testutil.Greeting.Metainfo()))
	require.NoError(t, err)
	assert.Equal(t, "greeting", tor.Name)
	assert.EqualValues(t, 16384, tor.PieceLength)
	require.Len(t, tor.Files, 1)
	assert.Equal(t, []string{"greeting"}, tor.Files[0].Path)
	assert.EqualValues(t, len(testutil.GreetingFileContents), tor.Files[0].Length)
	assert.EqualValues(t, len(testutil.GreetingFileContents), tor.TotalLength())
	require.Equal(t, 1, tor.NumPieces())
	assert.Equal(t, torrent.Hash(sha1.Sum([]byte(testutil.GreetingFileContents))), tor.Pieces[0])
	assert.NotZero(t, tor.InfoHash)
	assert.NoError(t, tor.Validate())
}

func TestLoadMultiFile(t *testing.T) {
	tt := testutil.Torrent{
		Name:        "dir",
		PieceLength: 16 << 10,
		Files: []testutil.File{
			{Path: []string{"a", "1.bin"}, Data: testutil.RandomData(1, 10000)},
			{Path: []string{"2.bin"}, Data: testutil.RandomData(2, 10000)},
			{Path: []string{"empty"}},
		},
	}
	tor, err := torrent.Load(bytes.NewReader(tt.Metainfo()))
	require.NoError(t, err)
	require.Len(t, tor.Files, 3)
	assert.Equal(t, "dir/a/1.bin", tor.Files[0].DisplayPath())
	assert.Equal(t, "dir/2.bin", tor.Files[1].DisplayPath())
	assert.EqualValues(t, 0, tor.Files[2].Length)
	assert.EqualValues(t, 20000, tor.TotalLength())
	assert.Equal(t, 2, tor.NumPieces())
	assert.Equal(t, tt.PieceHashes(), tor.HashList())
	assert.EqualValues(t, 16384, tor.PieceLengthAt(0))
	assert.EqualValues(t, 20000-16384, tor.PieceLengthAt(1))
	assert.NoError(t, tor.Validate())
}

func TestLoadSameInfoSameInfoHash(t *testing.T) {
	a, err := torrent.Load(bytes.NewReader(testutil.Greeting.Metainfo()))
	require.NoError(t, err)
	b, err := torrent.Load(bytes.NewReader(testutil.Metainfo(testutil.Greeting.InfoDict())))
	require.NoError(t, err)
	assert.Equal(t, a.InfoHash, b.InfoHash)
	info := testutil.Greeting.InfoDict()
	info["name"] = "other"
	c, err := torrent.Load(bytes.NewReader(testutil.Metainfo(info)))
	require.NoError(t, err)
	assert.NotEqual(t, a.InfoHash, c.InfoHash)
}

func TestLoadNotBencode(t *testing.T) {
	_, err := torrent.Load(bytes.NewReader([]byte("not bencode")))
	assert.ErrorIs(t, err, findtorrent.ErrMalformedMetadata)
}

func TestFromDecodedMalformed(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"info": map[string]any{
				"name":         "x",
				"piece length": int64(16384),
				"pieces":       string(make([]byte, 20)),
				"length":       int64(1),
			},
		}
	}
	info := func(m map[string]any) map[string]any { return m["info"].(map[string]any) }
	for _, tc := range []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"no info", func(m map[string]any) { delete(m, "info") }},
		{"info not dict", func(m map[string]any) { m["info"] = "x" }},
		{"no name", func(m map[string]any) { delete(info(m), "name") }},
		{"name not string", func(m map[string]any) { info(m)["name"] = int64(1) }},
		{"no piece length", func(m map[string]any) { delete(info(m), "piece length") }},
		{"piece length not int", func(m map[string]any) { info(m)["piece length"] = "16384" }},
		{"no pieces", func(m map[string]any) { delete(info(m), "pieces") }},
		{"pieces bad length", func(m map[string]any) { info(m)["pieces"] = string(make([]byte, 21)) }},
		{"no length or files", func(m map[string]any) { delete(info(m), "length") }},
		{"negative length", func(m map[string]any) { info(m)["length"] = int64(-1) }},
		{"files not list", func(m map[string]any) { info(m)["files"] = "x" }},
		{"file not dict", func(m map[string]any) { info(m)["files"] = []any{"x"} }},
		{"file no length", func(m map[string]any) {
			info(m)["files"] = []any{map[string]any{"path": []any{"a"}}}
		}},
		{"file no path", func(m map[string]any) {
			info(m)["files"] = []any{map[string]any{"length": int64(1)}}
		}},
		{"file empty path", func(m map[string]any) {
			info(m)["files"] = []any{map[string]any{"length": int64(1), "path": []any{}}}
		}},
		{"file path segment not string", func(m map[string]any) {
			info(m)["files"] = []any{map[string]any{"length": int64(1), "path": []any{int64(1)}}}
		}},
		{"file path segment with slash", func(m map[string]any) {
			info(m)["files"] = []any{map[string]any{"length": int64(1), "path": []any{"a/b"}}}
		}},
		{"name with slash", func(m map[string]any) { info(m)["name"] = "x/y" }},
		{"files share a display path", func(m map[string]any) {
			info(m)["files"] = []any{
				map[string]any{"length": int64(1), "path": []any{"a", "b"}},
				map[string]any{"length": int64(0), "path": []any{"a", "b"}},
			}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := valid()
			tc.mutate(m)
			_, err := torrent.FromDecoded(m)
			assert.ErrorIs(t, err, findtorrent.ErrMalformedMetadata)
		})
	}
	_, err := torrent.FromDecoded(valid())
	assert.NoError(t, err)
	_, err = torrent.FromDecoded([]any{})
	assert.ErrorIs(t, err, findtorrent.ErrMalformedMetadata)
}

func TestFromDecodedBencodeRoundTrip(t *testing.T) {
	var decoded any
	require.NoError(t, bencode.Unmarshal(testutil.Greeting.Metainfo(), &decoded))
	tor, err := torrent.FromDecoded(decoded)
	require.NoError(t, err)
	assert.Equal(t, "greeting", tor.Files[0].DisplayPath())
	// Not loaded from raw metainfo.
	assert.Zero(t, tor.InfoHash)
}

func TestValidatePieceLength(t *testing.T) {
	for _, l := range []int64{16384, 32768, 1 << 20, 1 << 24} {
		assert.NoError(t, torrent.ValidatePieceLength(l), l)
	}
	for _, l := range []int64{0, -16384, 8192, 16000, 16385, 3 << 14} {
		assert.ErrorIs(t, torrent.ValidatePieceLength(l), findtorrent.ErrInvalidPieceLength, l)
	}
}

func TestValidatePieceCount(t *testing.T) {
	tor := torrent.Torrent{
		Name:        "x",
		PieceLength: 16384,
		Files:       []torrent.File{{Length: 16385, Path: []string{"x"}}},
		Pieces:      make([]torrent.Hash, 1),
	}
	assert.ErrorIs(t, tor.Validate(), findtorrent.ErrMalformedMetadata)
	tor.Pieces = make([]torrent.Hash, 2)
	assert.NoError(t, tor.Validate())
	tor.PieceLength = 16000
	assert.ErrorIs(t, tor.Validate(), findtorrent.ErrInvalidPieceLength)
}

func TestFileMapping(t *testing.T) {
	m := make(torrent.FileMapping)
	f := torrent.File{Length: 1, Path: []string{"a", "b"}}
	assert.False(t, m.Lookup(f).Ok)
	m.Set(f, "/data/b")
	assert.Equal(t, "/data/b", m.Lookup(f).Unwrap())
	assert.Equal(t, "/data/b", m["a/b"])
}
