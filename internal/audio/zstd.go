package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/klauspost/compress/zstd"
)

// ZstdSink writes raw little-endian PCM16 through a zstd encoder. The
// output carries no header; readers must know the sample rate.
type ZstdSink struct {
	enc     *zstd.Encoder
	closer  io.Closer
	guard   rateGuard
	scratch []byte
	closed  bool
}

// NewZstdSink compresses into w. The caller keeps ownership of w.
func NewZstdSink(w io.Writer) (*ZstdSink, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &ZstdSink{enc: enc}, nil
}

// CreateZstd creates (or truncates) path and writes compressed PCM to it.
func CreateZstd(path string) (*ZstdSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcm file: %w", err)
	}
	s, err := NewZstdSink(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// WriteSamples implements Sink.
func (s *ZstdSink) WriteSamples(samples []int16, sampleRate int) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.guard.check(sampleRate); err != nil {
		return err
	}

	s.scratch = appendPCM16Bytes(s.scratch[:0], samples)
	if _, err := s.enc.Write(s.scratch); err != nil {
		return fmt.Errorf("write compressed pcm: %w", err)
	}
	return nil
}

// Close flushes the encoder and closes the file if the sink opened it.
func (s *ZstdSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.enc.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close compressed pcm: %w", err)
	}
	return nil
}

// ReadZstdPCM decodes a stream written by ZstdSink.
func ReadZstdPCM(r io.Reader) ([]int16, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress pcm: %w", err)
	}
	return voice.AppendPCM16(nil, data), nil
}

func appendPCM16Bytes(dst []byte, samples []int16) []byte {
	for _, v := range samples {
		dst = append(dst, byte(v), byte(uint16(v)>>8))
	}
	return dst
}
