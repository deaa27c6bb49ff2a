/*
Package findtorrent locates the data of torrents among arbitrary directories and checks it.

A torrent's files are matched by size against an index of search directories, then the matched
files are read in the torrent's declared order, with absent files standing in as zero bytes, and
every piece is hashed and compared with the metainfo. Torrents whose data checks out can then be
hardlinked into a torrent client's download directory.

The packages, leaves first:

	filler     zero-filled stand-ins for absent files
	torrent    the torrent model decoded from metainfo
	layout     file extents in the concatenated torrent data
	pieces     the piece stream over mapped and absent files
	verify     piece hash verification
	sizeindex  search directory index and size matching
	importer   hardlinking matched data for a torrent client
	find       the per-torrent pipeline and batch runs
	dirwatch   torrent files arriving in a directory
*/
package findtorrent
