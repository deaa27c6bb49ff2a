package sizeindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/find-torrent-files/internal/testutil"
	"github.com/anacrolix/find-torrent-files/torrent"
)

func TestBuild(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	a1 := testutil.WriteFile(t, filepath.Join(a, "x", "y", "1"), make([]byte, 10))
	a2 := testutil.WriteFile(t, filepath.Join(a, "2"), make([]byte, 20))
	b1 := testutil.WriteFile(t, filepath.Join(b, "1"), make([]byte, 10))
	require.NoError(t, os.Mkdir(filepath.Join(b, "empty"), 0o750))
	index, err := Build(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, 3, index.Len())
	assert.ElementsMatch(t, []string{a1, b1}, index.Candidates(10))
	assert.Equal(t, []string{a2}, index.Candidates(20))
	assert.Empty(t, index.Candidates(30))
}

func TestBuildFollowsFileSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := testutil.WriteFile(t, filepath.Join(t.TempDir(), "target"), make([]byte, 7))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "broken")))
	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(dir, "dirlink")))
	index, err := Build(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{link}, index.Candidates(7))
	assert.Equal(t, 1, index.Len())
}

func TestBuildMissingDir(t *testing.T) {
	_, err := Build(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildCanceled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "a"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverlappingDirsAddOnce(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "sub", "a"), make([]byte, 3))
	index, err := Build(context.Background(), []string{dir, filepath.Join(dir, "sub")})
	require.NoError(t, err)
	assert.Len(t, index.Candidates(3), 1)
}

func TestMatch(t *testing.T) {
	index := New()
	index.Add("/data/unique", 100)
	index.Add("/data/dup1", 200)
	index.Add("/data/dup2", 200)
	tor := &torrent.Torrent{
		Name: "t",
		Files: []torrent.File{
			{Length: 100, Path: []string{"t", "unique"}},
			{Length: 200, Path: []string{"t", "ambiguous"}},
			{Length: 300, Path: []string{"t", "absent"}},
		},
	}
	res := index.Match(tor)
	assert.Equal(t, torrent.FileMapping{"t/unique": "/data/unique"}, res.Mapping)
	assert.Equal(t, 2, res.MissingFiles)
	assert.EqualValues(t, 500, res.MissingBytes)
	require.Len(t, res.Ambiguous, 1)
	assert.Equal(t, tor.Files[1], res.Ambiguous[0].File)
	assert.Equal(t, []string{"/data/dup1", "/data/dup2"}, res.Ambiguous[0].Candidates)
}

func TestMatchSameSizeTwiceInTorrent(t *testing.T) {
	// One candidate for two same-size torrent files maps both to it.
	index := New()
	index.Add("/data/a", 5)
	tor := &torrent.Torrent{
		Name: "t",
		Files: []torrent.File{
			{Length: 5, Path: []string{"t", "1"}},
			{Length: 5, Path: []string{"t", "2"}},
		},
	}
	res := index.Match(tor)
	assert.Len(t, res.Mapping, 2)
	assert.Zero(t, res.MissingFiles)
}

func TestBuildLogger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "broken")))
	var rec testutil.LogRecorder
	_, err := Build(context.Background(), []string{dir}, WithLogger(rec.Logger()))
	require.NoError(t, err)
	assert.True(t, rec.Logged(log.Debug, "sizeindex"))
	assert.True(t, rec.Logged(log.Warning, "sizeindex"))
}
