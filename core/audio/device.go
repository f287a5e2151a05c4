package audio

import "context"

// ChunkSource delivers microphone audio in fixed-size chunks.
//
// Start and Stop bracket one recording; ReadChunk blocks until a full chunk
// has been captured.
type ChunkSource interface {
	Start() error
	ReadChunk(ctx context.Context) ([]int16, error)
	Stop() error
	EncodingInfo() EncodingInfo
}

// Player plays linear16 PCM and blocks until it has been played.
type Player interface {
	Play(ctx context.Context, pcm []byte, encoding EncodingInfo) error
}
