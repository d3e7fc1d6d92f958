package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth    = 16
	numChannels = 1
	wavPCM      = 1
)

// WAVSink writes a 16-bit mono WAV stream. The header is finalized on
// Close, so the destination must be seekable.
type WAVSink struct {
	out     io.WriteSeeker
	closer  io.Closer // set when the sink owns out
	enc     *wav.Encoder
	guard   rateGuard
	scratch []int
	wrote   bool
	closed  bool

	// DefaultRate is used for the header when Close runs before any
	// samples were written.
	DefaultRate int
}

// NewWAVSink writes to w. The caller keeps ownership of w.
func NewWAVSink(w io.WriteSeeker) *WAVSink {
	return &WAVSink{out: w, DefaultRate: 22050}
}

// CreateWAV creates (or truncates) path and writes WAV audio to it.
func CreateWAV(path string) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	s := NewWAVSink(f)
	s.closer = f
	return s, nil
}

// WriteSamples implements Sink.
func (s *WAVSink) WriteSamples(samples []int16, sampleRate int) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.guard.check(sampleRate); err != nil {
		return err
	}
	if s.enc == nil {
		s.enc = wav.NewEncoder(s.out, sampleRate, bitDepth, numChannels, wavPCM)
	}
	if len(samples) == 0 {
		return nil
	}

	s.scratch = s.scratch[:0]
	for _, v := range samples {
		s.scratch = append(s.scratch, int(v))
	}
	return s.write(s.scratch, sampleRate)
}

func (s *WAVSink) write(data []int, sampleRate int) error {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	s.wrote = true
	return nil
}

// Close finalizes the WAV header and closes the file if the sink opened it.
func (s *WAVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.enc == nil {
		s.enc = wav.NewEncoder(s.out, s.DefaultRate, bitDepth, numChannels, wavPCM)
	}
	if !s.wrote {
		// The encoder only emits its header on the first write.
		err = s.write(nil, s.enc.SampleRate)
	}
	if cerr := s.enc.Close(); err == nil {
		err = cerr
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
