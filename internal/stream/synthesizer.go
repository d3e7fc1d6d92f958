package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/google/uuid"
)

// charsPerSecond is a rough speaking rate used to size pooled buffers.
const charsPerSecond = 14

// Chunk is the audio for one piece of text.
type Chunk struct {
	Index      int
	Total      int
	Text       string
	Samples    []int16
	SampleRate int
}

// Synthesizer streams long text through a voice model chunk by chunk.
// Progress and cancellation may be used from any goroutine; only one
// stream runs at a time.
type Synthesizer struct {
	logger *log.Logger

	canceled  atomic.Bool
	active    atomic.Bool
	processed atomic.Int64
	total     atomic.Int64
	session   atomic.Pointer[string]
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an idle Synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		logger: log.Default().WithPrefix("stream"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize splits text, synthesizes each chunk with model and passes the
// audio to onChunk in order. Returning false from onChunk ends the stream
// with ErrStopped. Cancel or ctx ending is noticed between chunks and
// yields ErrCanceled; an engine error aborts the remaining chunks with an
// error wrapping ErrSynthesisFailed. It returns nil once every chunk has
// been delivered.
func (s *Synthesizer) Synthesize(ctx context.Context, model voice.Model, text string, onChunk func(Chunk) bool, cfg Config) error {
	if onChunk == nil {
		return fmt.Errorf("%w: nil chunk consumer", ErrInvalidArgument)
	}
	if model == nil || !model.IsInitialized() {
		return ErrModelNotReady
	}
	chunks, err := Split(text, cfg.SplitOptions())
	if err != nil {
		return err
	}

	if !s.active.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.active.Store(false)

	s.canceled.Store(false)
	s.processed.Store(0)
	s.total.Store(int64(len(chunks)))
	session := uuid.NewString()
	s.session.Store(&session)

	logger := s.logger.With("session", session)
	logger.Debug("Streaming started", "chunks", len(chunks), "chars", utf8.RuneCountInString(text))
	start := time.Now()

	for i, chunk := range chunks {
		if err := s.checkCanceled(ctx, cfg); err != nil {
			logger.Info("Streaming canceled", "processed", s.processed.Load(), "total", len(chunks))
			return err
		}
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		delivered, err := s.deliver(ctx, model, i, len(chunks), chunk, onChunk, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
			}
			logger.Error("Chunk synthesis failed", "chunk", i, "error", err)
			return fmt.Errorf("%w: chunk %d: %w", ErrSynthesisFailed, i, err)
		}
		if !delivered {
			logger.Debug("Consumer stopped stream", "chunk", i)
			return ErrStopped
		}
	}

	logger.Debug("Streaming finished",
		"chunks", s.processed.Load(),
		"took", time.Since(start))
	return nil
}

// deliver synthesizes one chunk and hands it to onChunk. It reports false
// when the consumer asked to stop.
func (s *Synthesizer) deliver(ctx context.Context, model voice.Model, index, total int, text string, onChunk func(Chunk) bool, cfg Config) (bool, error) {
	var samples []int16

	if bm, ok := model.(voice.BufferedModel); ok && cfg.Buffers != nil {
		buf := cfg.Buffers.Acquire(estimateSamples(text, model.SampleRate()))
		defer cfg.Buffers.Release(buf)

		out, err := bm.SynthesizeInto(ctx, text, buf.Samples)
		if err != nil {
			return false, err
		}
		buf.Samples = out
		samples = out
	} else {
		out, err := model.Synthesize(ctx, text)
		if err != nil {
			return false, err
		}
		samples = out
	}

	if len(samples) == 0 {
		return true, nil
	}

	keepGoing := onChunk(Chunk{
		Index:      index,
		Total:      total,
		Text:       text,
		Samples:    samples,
		SampleRate: model.SampleRate(),
	})
	s.processed.Add(1)
	return keepGoing, nil
}

func (s *Synthesizer) checkCanceled(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if cfg.AllowCancellation && s.canceled.Load() {
		return ErrCanceled
	}
	return nil
}

// Chunks returns the stream as an iterator. Breaking out of the loop stops
// synthesis; a failure or cancellation is yielded once as the final error.
func (s *Synthesizer) Chunks(ctx context.Context, model voice.Model, text string, cfg Config) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		err := s.Synthesize(ctx, model, text, func(c Chunk) bool {
			return yield(c, nil)
		}, cfg)
		if err != nil && !errors.Is(err, ErrStopped) {
			yield(Chunk{}, err)
		}
	}
}

// Cancel asks the running stream to stop before its next chunk. The chunk
// being synthesized is allowed to finish.
func (s *Synthesizer) Cancel() {
	s.canceled.Store(true)
}

// IsActive reports whether a stream is running.
func (s *Synthesizer) IsActive() bool {
	return s.active.Load()
}

// ProcessedChunks returns how many chunks have been delivered.
func (s *Synthesizer) ProcessedChunks() int {
	return int(s.processed.Load())
}

// TotalChunks returns the chunk count of the current or last stream.
func (s *Synthesizer) TotalChunks() int {
	return int(s.total.Load())
}

// Progress returns ProcessedChunks / TotalChunks, or 0 with no chunks.
func (s *Synthesizer) Progress() float64 {
	total := s.total.Load()
	if total == 0 {
		return 0
	}
	return float64(s.processed.Load()) / float64(total)
}

// SessionID identifies the current or last stream in log output.
func (s *Synthesizer) SessionID() string {
	if id := s.session.Load(); id != nil {
		return *id
	}
	return ""
}

// estimateSamples guesses how many samples text will produce.
func estimateSamples(text string, sampleRate int) int {
	if sampleRate <= 0 {
		sampleRate = voice.DefaultSampleRate
	}
	return utf8.RuneCountInString(text) * sampleRate / charsPerSecond
}
