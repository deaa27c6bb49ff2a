package testutil

const (
	GreetingFileContents = "hello, world\n"
	GreetingFileName     = "greeting"
)

// A single-file torrent of "greeting", which contains "hello, world\n".
var Greeting = Torrent{
	Name:        GreetingFileName,
	PieceLength: 16 << 10,
	Files:       []File{{Data: []byte(GreetingFileContents)}},
	SingleFile:  true,
}
