package audio

import (
	"encoding/binary"
	"time"
)

// Segment is the audio captured between one press and release of the talk
// key, stored as the sequence of fixed-size chunks it was read in.
//
// A segment is only appended to by its capturer; once handed off it must be
// treated as read-only.
type Segment struct {
	SampleRate int
	Chunks     [][]int16
}

func NewSegment(sampleRate int) *Segment {
	return &Segment{SampleRate: sampleRate}
}

// Append stores a copy of chunk.
func (s *Segment) Append(chunk []int16) {
	if len(chunk) == 0 {
		return
	}
	s.Chunks = append(s.Chunks, append([]int16(nil), chunk...))
}

func (s *Segment) IsEmpty() bool { return s == nil || s.Len() == 0 }

// Len is the total number of samples.
func (s *Segment) Len() int {
	if s == nil {
		return 0
	}

	n := 0
	for _, chunk := range s.Chunks {
		n += len(chunk)
	}
	return n
}

func (s *Segment) Duration() time.Duration {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(s.Len()) * int64(time.Second) / int64(s.SampleRate))
}

// Samples flattens the chunks into one buffer.
func (s *Segment) Samples() []int16 {
	samples := make([]int16, 0, s.Len())
	if s == nil {
		return samples
	}
	for _, chunk := range s.Chunks {
		samples = append(samples, chunk...)
	}
	return samples
}

// Linear16 returns the samples as little-endian 16 bit PCM bytes.
func (s *Segment) Linear16() []byte {
	buf := make([]byte, 0, s.Len()*2)
	if s == nil {
		return buf
	}
	for _, chunk := range s.Chunks {
		for _, sample := range chunk {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(sample))
		}
	}
	return buf
}

func (s *Segment) EncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: s.SampleRate, Format: EncodingLinear16}
}
