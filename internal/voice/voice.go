// Package voice defines the contract between the memory layer and a speech
// synthesis engine, together with the engines this repository ships.
package voice

import (
	"context"
	"errors"
)

// DefaultSampleRate is the sample rate of the stock piper voices.
const DefaultSampleRate = 22050

var (
	// ErrNotInitialized is returned when a model is used before Initialize
	// succeeded or after Shutdown.
	ErrNotInitialized = errors.New("voice model is not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("voice model is already initialized")

	// ErrModelNotFound is returned when the model file cannot be used.
	ErrModelNotFound = errors.New("voice model not found")
)

// Model is a loaded voice. Synthesize may be called any number of times
// between a successful Initialize and Shutdown.
type Model interface {
	// Initialize loads the model identified by modelID with its auxiliary
	// configuration. A failed Initialize leaves nothing behind.
	Initialize(ctx context.Context, modelID, configID string) error

	// Synthesize turns text into mono 16-bit PCM samples.
	Synthesize(ctx context.Context, text string) ([]int16, error)

	// Shutdown releases engine resources. It is safe to call repeatedly.
	Shutdown() error

	// IsInitialized reports whether Synthesize may be called.
	IsInitialized() bool

	// SampleRate returns the sample rate of produced audio in Hz.
	SampleRate() int
}

// BufferedModel is implemented by models that can write into a caller
// supplied slice, letting callers recycle sample buffers.
type BufferedModel interface {
	Model

	// SynthesizeInto appends samples to dst[:0] and returns the result,
	// which may be a reallocated slice.
	SynthesizeInto(ctx context.Context, text string, dst []int16) ([]int16, error)
}

// Factory creates an uninitialized Model.
type Factory func() Model

type speedKey struct{}

// WithSpeed returns a context asking models to speak at speed, where 1.0
// is the voice's natural rate.
func WithSpeed(ctx context.Context, speed float64) context.Context {
	return context.WithValue(ctx, speedKey{}, speed)
}

// SpeedFrom returns the speed carried by ctx, or 1.0.
func SpeedFrom(ctx context.Context) float64 {
	if s, ok := ctx.Value(speedKey{}).(float64); ok && s > 0 {
		return s
	}
	return 1.0
}
