package main

import (
	"context"
	"fmt"
	"runtime"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"

	"github.com/anacrolix/find-torrent-files/sizeindex"
	"github.com/anacrolix/find-torrent-files/torrent"
	"github.com/anacrolix/find-torrent-files/verify"
)

func verifySummary(res *verify.Result) {
	fmt.Println("----------------")
	fmt.Println(" TORRENT-VERIFY ")
	fmt.Println("----------------")
	fmt.Printf("Number of correct pieces: %d\n", res.NumPieces-res.MismatchCount())
	fmt.Printf("Number of wrong pieces: %d\n", res.MismatchCount())
	fmt.Printf("Bytes in wrong pieces: %s\n", byteSize(res.MismatchBytes()))
	for _, i := range res.FilesWithMismatches() {
		fmt.Printf("File with wrong pieces: %s\n", res.Files[i])
	}
}

func verifyErr(ctx context.Context, cmd *VerifyCmd) error {
	t, err := torrent.LoadFile(cmd.TorrentPath)
	if err != nil {
		return fmt.Errorf("loading torrent: %w", err)
	}
	index, err := sizeindex.Build(ctx, cmd.SearchDir, sizeindex.WithLogger(baseLogger))
	if err != nil {
		return fmt.Errorf("indexing search dirs: %w", err)
	}
	match := index.Match(t)
	for _, a := range match.Ambiguous {
		logger.Levelf(log.Warning, "%v candidates for %q, considering it missing", len(a.Candidates), a.File)
	}
	logger.Levelf(log.Info, "%v of %v files missing (%s)", match.MissingFiles, len(t.Files), byteSize(match.MissingBytes))
	workers := cmd.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	res, err := verify.Verify(ctx, t, match.Mapping, verify.Options{
		Workers:     workers,
		ReadLimiter: readLimiter(cmd.ReadRate),
		Logger:      g.Some(baseLogger),
	})
	if err != nil {
		return err
	}
	for i, ok := range res.Matches() {
		fmt.Println(i, ok)
	}
	if cmd.Summary {
		verifySummary(res)
	}
	return nil
}
