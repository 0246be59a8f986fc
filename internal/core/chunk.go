package core

import "bytes"

// ChunkKind classifies an fMP4 chunk on the media channel.
type ChunkKind int

const (
	ChunkUnknown ChunkKind = iota
	ChunkInit
	ChunkMedia
)

var (
	tagFtyp = []byte("ftyp")
	tagMoof = []byte("moof")
)

// ClassifyChunk inspects the 4-byte box tag at offset 4. An "ftyp" tag marks
// an initialization segment, "moof" a media segment. Anything else is unknown
// and still forwarded, but never cached.
func ClassifyChunk(chunk []byte) ChunkKind {
	if len(chunk) < 8 {
		return ChunkUnknown
	}
	tag := chunk[4:8]
	switch {
	case bytes.Equal(tag, tagFtyp):
		return ChunkInit
	case bytes.Equal(tag, tagMoof):
		return ChunkMedia
	default:
		return ChunkUnknown
	}
}
