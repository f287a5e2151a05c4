package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"

	// DefaultChunkDuration is the capture window appended to a segment per
	// read.
	DefaultChunkDuration = 500 * time.Millisecond
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

// EncodingInfo describes mono PCM audio.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// FramesFor returns how many frames cover d at this sample rate.
func (e EncodingInfo) FramesFor(d time.Duration) int {
	return int(int64(e.SampleRate) * int64(d) / int64(time.Second))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
)
