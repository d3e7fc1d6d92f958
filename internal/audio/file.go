package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned by Create for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Create opens a file sink chosen by extension: ".wav" for WAV, ".zst"
// (usually ".pcm.zst") for zstd-compressed raw PCM.
func Create(path string) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		sink, err = CreateWAV(path)
	case ".zst":
		sink, err = CreateZstd(path)
	default:
		return nil, fmt.Errorf("%w: %q, use .wav or .pcm.zst", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}
