package torrent

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	findtorrent "github.com/anacrolix/find-torrent-files"
)

// Decodes raw metainfo, and records the infohash.
func Load(r io.Reader) (*Torrent, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var decoded any
	err = bencode.Unmarshal(b, &decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding bencode: %w", findtorrent.ErrMalformedMetadata, err)
	}
	t, err := FromDecoded(decoded)
	if err != nil {
		return nil, err
	}
	mi, err := metainfo.Load(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", findtorrent.ErrMalformedMetadata, err)
	}
	t.InfoHash = mi.HashInfoBytes()
	return t, nil
}

func LoadFile(path string) (*Torrent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}
	return t, nil
}
