package torrent

import (
	"fmt"
	"strings"

	findtorrent "github.com/anacrolix/find-torrent-files"
)

// Builds a Torrent from decoded bencode, where dicts are map[string]any, lists []any, integers
// int64 and byte strings string. This is what bencode.Unmarshal produces into an any.
func FromDecoded(decoded any) (*Torrent, error) {
	root, ok := decoded.(map[string]any)
	if !ok {
		return nil, malformed("metainfo is %T, not a dict", decoded)
	}
	info, err := lookup[map[string]any](root, "info")
	if err != nil {
		return nil, err
	}
	var t Torrent
	t.Name, err = lookup[string](info, "name")
	if err != nil {
		return nil, err
	}
	if strings.Contains(t.Name, "/") {
		return nil, malformed("name %q contains a slash", t.Name)
	}
	t.PieceLength, err = lookup[int64](info, "piece length")
	if err != nil {
		return nil, err
	}
	pieces, err := lookup[string](info, "pieces")
	if err != nil {
		return nil, err
	}
	t.Pieces, err = splitPieces(pieces)
	if err != nil {
		return nil, err
	}
	t.Files, err = decodeFiles(info, t.Name)
	if err != nil {
		return nil, err
	}
	// FileMapping is keyed by display path.
	seen := make(map[string]struct{}, len(t.Files))
	for _, f := range t.Files {
		dp := f.DisplayPath()
		if _, ok := seen[dp]; ok {
			return nil, malformed("file %q appears more than once", dp)
		}
		seen[dp] = struct{}{}
	}
	return &t, nil
}

func malformed(format string, a ...any) error {
	return fmt.Errorf("%w: %s", findtorrent.ErrMalformedMetadata, fmt.Sprintf(format, a...))
}

func lookup[T any](dict map[string]any, key string) (ret T, err error) {
	v, ok := dict[key]
	if !ok {
		err = malformed("missing key %q", key)
		return
	}
	ret, ok = v.(T)
	if !ok {
		err = malformed("key %q has type %T, expected %T", key, v, ret)
	}
	return
}

func splitPieces(blob string) (ret []Hash, err error) {
	if len(blob)%HashSize != 0 {
		err = malformed("pieces has length %v, not a multiple of %v", len(blob), HashSize)
		return
	}
	ret = make([]Hash, len(blob)/HashSize)
	for i := range ret {
		copy(ret[i][:], blob[i*HashSize:(i+1)*HashSize])
	}
	return
}

// Single-file torrents have "length" in the info dict instead of "files". Those are upverted to
// one file named after the torrent.
func decodeFiles(info map[string]any, name string) ([]File, error) {
	if _, ok := info["files"]; !ok {
		length, err := lookup[int64](info, "length")
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, malformed("negative length %v", length)
		}
		return []File{{Length: length, Path: []string{name}}}, nil
	}
	list, err := lookup[[]any](info, "files")
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(list))
	for i, v := range list {
		f, err := decodeFile(v, name)
		if err != nil {
			return nil, fmt.Errorf("file %v: %w", i, err)
		}
		files = append(files, f)
	}
	return files, nil
}

func decodeFile(v any, name string) (f File, err error) {
	dict, ok := v.(map[string]any)
	if !ok {
		err = malformed("file entry is %T, not a dict", v)
		return
	}
	f.Length, err = lookup[int64](dict, "length")
	if err != nil {
		return
	}
	if f.Length < 0 {
		err = malformed("negative length %v", f.Length)
		return
	}
	segments, err := lookup[[]any](dict, "path")
	if err != nil {
		return
	}
	if len(segments) == 0 {
		err = malformed("empty path")
		return
	}
	f.Path = make([]string, 0, len(segments)+1)
	f.Path = append(f.Path, name)
	for _, s := range segments {
		seg, ok := s.(string)
		if !ok {
			err = malformed("path segment is %T, not a string", s)
			return
		}
		if strings.Contains(seg, "/") {
			err = malformed("path segment %q contains a slash", seg)
			return
		}
		f.Path = append(f.Path, seg)
	}
	return
}
