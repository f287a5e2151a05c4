package miniaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-drive/core/audio"
)

const pendingChunks = 8

type captureClient struct {
	device     *malgo.Device
	chunkBytes int

	chunks chan []int16

	mu      sync.Mutex
	pending []byte
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, encodingInfo audio.EncodingInfo, chunkFrames int) error {
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency

	c.chunkBytes = chunkFrames * bytesPerFrame
	c.chunks = make(chan []int16, pendingChunks)

	var err error
	c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.collect(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

// collect runs on the audio thread, it must never block.
func (c *captureClient) collect(frames []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, frames...)
	for len(c.pending) >= c.chunkBytes {
		chunk := make([]int16, c.chunkBytes/2)
		for i := range chunk {
			chunk[i] = int16(binary.LittleEndian.Uint16(c.pending[i*2:]))
		}
		c.pending = c.pending[c.chunkBytes:]

		select {
		case c.chunks <- chunk:
		default:
			logger.Warn("dropping captured audio chunk, reader is too slow")
		}
	}
}

func (c *captureClient) Start() error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.reset()
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureClient) ReadChunk(ctx context.Context) ([]int16, error) {
	select {
	case chunk := <-c.chunks:
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *captureClient) Stop() error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

func (c *captureClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = c.pending[:0]
	for {
		select {
		case <-c.chunks:
		default:
			return
		}
	}
}

func (c *captureClient) Uninit() {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
}
