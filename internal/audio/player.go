//go:build !nocgo
// +build !nocgo

package audio

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, fixed to its first sample rate.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoRate    int
	otoErr     error
)

func sharedContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		options := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: numChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		// macOS benefits from larger buffers
		if runtime.GOOS == "darwin" {
			options.BufferSize = 100 * time.Millisecond
		} else {
			options.BufferSize = 50 * time.Millisecond
		}

		ctx, ready, err := oto.NewContext(options)
		if err != nil {
			otoErr = fmt.Errorf("failed to create audio context: %w", err)
			return
		}
		<-ready
		otoContext, otoRate = ctx, sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("%w: audio device opened at %d Hz, got %d Hz", ErrSampleRateChanged, otoRate, sampleRate)
	}
	return otoContext, nil
}

// Player streams samples to the default audio device. Writes block while
// the device catches up, so playback paces synthesis.
type Player struct {
	logger *log.Logger
	volume float64

	mu      sync.Mutex
	guard   rateGuard
	player  *oto.Player
	pipeW   *io.PipeWriter
	scratch []byte
	closed  bool
}

// NewPlayer creates a player. The device is opened on the first write.
func NewPlayer(volume float64, logger *log.Logger) (*Player, error) {
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}
	return &Player{logger: logger, volume: volume}, nil
}

// WriteSamples implements Sink.
func (p *Player) WriteSamples(samples []int16, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if err := p.guard.check(sampleRate); err != nil {
		return err
	}
	if p.player == nil {
		ctx, err := sharedContext(sampleRate)
		if err != nil {
			return err
		}
		pr, pw := io.Pipe()
		p.player = ctx.NewPlayer(pr)
		p.player.SetVolume(p.volume)
		p.pipeW = pw
		p.player.Play()
		p.logger.Debug("Playback started", "sampleRate", sampleRate)
	}

	p.scratch = appendPCM16Bytes(p.scratch[:0], samples)
	if _, err := p.pipeW.Write(p.scratch); err != nil {
		return fmt.Errorf("write to audio device: %w", err)
	}
	return nil
}

// Close waits for queued audio to finish playing and releases the player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.player == nil {
		return nil
	}

	p.pipeW.Close()
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	err := p.player.Close()
	p.player = nil
	p.logger.Debug("Playback finished")
	return err
}
