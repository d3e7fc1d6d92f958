package stream

import "errors"

var (
	// ErrInvalidArgument is returned for unusable configuration or input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrModelNotReady is returned when the model has not been initialized.
	ErrModelNotReady = errors.New("voice model is not initialized")

	// ErrBusy is returned when a Synthesizer is already streaming.
	ErrBusy = errors.New("synthesizer is already streaming")

	// ErrCanceled is returned when Cancel was called or the context ended
	// before all chunks were delivered.
	ErrCanceled = errors.New("streaming canceled")

	// ErrStopped is returned when the consumer declined further chunks.
	ErrStopped = errors.New("streaming stopped by consumer")

	// ErrSynthesisFailed wraps an engine error for one chunk. Chunks
	// delivered before the failure are not rolled back.
	ErrSynthesisFailed = errors.New("chunk synthesis failed")
)

// IsCooperativeStop reports whether err ended a stream on request rather
// than because something broke.
func IsCooperativeStop(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, ErrStopped)
}
