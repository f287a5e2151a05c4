package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-drive/core/audio"
)

// Capture reads fixed-size mono linear16 chunks from the default input
// device.
type Capture struct {
	encodingInfo audio.EncodingInfo

	mu      sync.Mutex
	stream  *portaudio.Stream
	in      []int16
	started bool
}

func NewCapture(sampleRate int, chunkDuration time.Duration) (*Capture, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if chunkDuration <= 0 {
		chunkDuration = audio.DefaultChunkDuration
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	encodingInfo := audio.EncodingInfo{SampleRate: sampleRate, Format: audio.EncodingLinear16}
	in := make([]int16, encodingInfo.FramesFor(chunkDuration))
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio input stream: %w", err)
	}

	return &Capture{encodingInfo: encodingInfo, stream: stream, in: in}, nil
}

func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	c.started = true
	return nil
}

// ReadChunk blocks until the next chunk has been captured.
func (c *Capture) ReadChunk(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, fmt.Errorf("capture not started")
	}
	if err := c.stream.Read(); err != nil {
		return nil, fmt.Errorf("failed to read from portaudio stream: %w", err)
	}
	return append([]int16(nil), c.in...), nil
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Capture) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *Capture) Close() error {
	_ = c.Stop()
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("failed to close portaudio stream: %w", err)
	}
	return portaudio.Terminate()
}

// Player plays linear16 audio on the default output device.
type Player struct {
	bufferSize int
	mu         sync.Mutex
}

func NewPlayer(bufferSize int) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Player{bufferSize: bufferSize}, nil
}

// Play writes pcm to a fresh output stream and returns after the stream has
// drained.
func (p *Player) Play(ctx context.Context, pcm []byte, encoding audio.EncodingInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int16, p.bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(encoding.SampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("failed to open portaudio output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio output stream: %w", err)
	}

	samples := len(pcm) / 2
	for offset := 0; offset < samples; offset += len(out) {
		if err := ctx.Err(); err != nil {
			_ = stream.Abort()
			return err
		}

		clear(out)
		for i := 0; i < len(out) && offset+i < samples; i++ {
			out[i] = int16(binary.LittleEndian.Uint16(pcm[(offset+i)*2:]))
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio output stream: %w", err)
	}
	return nil
}

func (p *Player) Close() error {
	return portaudio.Terminate()
}
