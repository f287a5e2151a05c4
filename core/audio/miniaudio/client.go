package miniaudio

import (
	"fmt"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-drive/core/audio"
)

// Client captures and plays audio through miniaudio. It implements both
// [audio.ChunkSource] and [audio.Player].
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo
	playbackClient
	captureClient
}

func NewClient(sampleRate int, chunkDuration time.Duration) (*Client, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if chunkDuration <= 0 {
		chunkDuration = audio.DefaultChunkDuration
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
		encodingInfo: audio.EncodingInfo{SampleRate: sampleRate, Format: audio.EncodingLinear16},
	}
	client.playbackClient.Init(audioCtx)

	if err := client.captureClient.Init(audioCtx, client.encodingInfo, client.encodingInfo.FramesFor(chunkDuration)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) Start() error { return c.captureClient.Start() }

func (c *Client) Stop() error { return c.captureClient.Stop() }

func (c *Client) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *Client) Close() {
	c.captureClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}
