package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-drive/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) {
	c.audioContext = audioContext
}

// Play opens a playback device for the clip's sample rate, feeds it until the
// clip is exhausted and tears it down again.
func (c *playbackClient) Play(ctx context.Context, pcm []byte, encodingInfo audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encodingInfo.SampleRate / 10) // ~100ms of audio
	config.Periods = 4

	var (
		remaining = pcm
		drained   = make(chan struct{})
		closeOnce sync.Once
		bufferMu  sync.Mutex
	)

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			need := int(frameCount) * bytesPerFrame

			bufferMu.Lock()
			defer bufferMu.Unlock()
			if len(remaining) == 0 {
				closeOnce.Do(func() { close(drained) })
				return
			}

			n := copy(pOutput[:min(need, len(pOutput))], remaining)
			remaining = remaining[n:]
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	select {
	case <-drained:
	case <-ctx.Done():
	}

	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return ctx.Err()
}
