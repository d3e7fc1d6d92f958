//go:build nocgo
// +build nocgo

package audio

import (
	"errors"

	"github.com/charmbracelet/log"
)

// ErrPlaybackUnavailable is returned by playback in builds without cgo.
var ErrPlaybackUnavailable = errors.New("audio playback not available in nocgo build")

// Player is a stub for builds without cgo.
type Player struct{}

// NewPlayer always fails in nocgo builds.
func NewPlayer(volume float64, logger *log.Logger) (*Player, error) {
	return nil, ErrPlaybackUnavailable
}

// WriteSamples implements Sink.
func (p *Player) WriteSamples(samples []int16, sampleRate int) error {
	return ErrPlaybackUnavailable
}

// Close implements Sink.
func (p *Player) Close() error { return nil }
