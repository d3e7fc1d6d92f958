// Package config loads ttsmem settings from a YAML file, TTSMEM_*
// environment variables and command line flags through viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgnsrekt/ttsmem/internal/cache"
	"github.com/dgnsrekt/ttsmem/internal/pool"
	"github.com/dgnsrekt/ttsmem/internal/stream"
	"github.com/dgnsrekt/ttsmem/internal/text"
	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/dustin/go-humanize"
)

// Engines that can be selected with Config.Engine.
const (
	EnginePiper = "piper"
	EngineMock  = "mock"
)

// Speed limits accepted for synthesis requests.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config contains all ttsmem settings.
type Config struct {
	Engine string       `yaml:"engine"`
	Voice  VoiceConfig  `yaml:"voice"`
	Pool   PoolConfig   `yaml:"pool"`
	Cache  CacheConfig  `yaml:"cache"`
	Stream StreamConfig `yaml:"stream"`
	Text   TextConfig   `yaml:"text"`
	Piper  PiperConfig  `yaml:"piper"`
}

// VoiceConfig selects the default voice.
type VoiceConfig struct {
	Model  string  `yaml:"model"`
	Config string  `yaml:"config,omitempty"`
	Speed  float64 `yaml:"speed"`
}

// PoolConfig bounds the sample buffer pool.
type PoolConfig struct {
	MaxBuffers int `yaml:"max_buffers"`
}

// CacheConfig bounds the voice model cache.
type CacheConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	MaxMemory       ByteSize      `yaml:"max_memory"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// StreamConfig controls chunking.
type StreamConfig struct {
	MaxChunkSize         int  `yaml:"max_chunk_size"`
	MinChunkSize         int  `yaml:"min_chunk_size"`
	SplitOnSentences     bool `yaml:"split_on_sentences"`
	SplitOnParagraphs    bool `yaml:"split_on_paragraphs"`
	AllowCancellation    bool `yaml:"allow_cancellation"`
	RespectAbbreviations bool `yaml:"respect_abbreviations"`
}

// TextConfig controls input handling.
type TextConfig struct {
	MaxLength int  `yaml:"max_length"`
	Markdown  bool `yaml:"markdown"`
}

// PiperConfig contains piper engine settings.
type PiperConfig struct {
	Binary          string        `yaml:"binary"`
	SpeakerID       int           `yaml:"speaker_id"`
	LengthScale     float64       `yaml:"length_scale"`
	NoiseScale      float64       `yaml:"noise_scale"`
	NoiseW          float64       `yaml:"noise_w"`
	SentenceSilence time.Duration `yaml:"sentence_silence"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ByteSize is a byte count written in human form ("1.5GB", "512MiB").
type ByteSize int64

// ParseByteSize parses a human readable size. Plain numbers are bytes.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: byte size %q: %w", ErrInvalid, s, err)
	}
	return ByteSize(n), nil
}

// String formats the size with SI units, matching how it is usually typed.
func (b ByteSize) String() string {
	if b <= 0 {
		return "0"
	}
	return humanize.Bytes(uint64(b))
}

// MarshalYAML writes the human form.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// Default returns the stock configuration.
func Default() Config {
	piper := voice.DefaultPiperConfig()
	streamCfg := stream.DefaultConfig()
	return Config{
		Engine: EnginePiper,
		Voice:  VoiceConfig{Speed: 1.0},
		Pool:   PoolConfig{MaxBuffers: pool.DefaultMaxSize},
		Cache: CacheConfig{
			MaxEntries:      cache.DefaultMaxEntries,
			MaxMemory:       ByteSize(cache.DefaultMaxMemory),
			IdleTimeout:     0,
			JanitorInterval: time.Minute,
		},
		Stream: StreamConfig{
			MaxChunkSize:         streamCfg.MaxChunkSize,
			MinChunkSize:         streamCfg.MinChunkSize,
			SplitOnSentences:     streamCfg.SplitOnSentences,
			SplitOnParagraphs:    streamCfg.SplitOnParagraphs,
			AllowCancellation:    streamCfg.AllowCancellation,
			RespectAbbreviations: streamCfg.RespectAbbreviations,
		},
		Text: TextConfig{MaxLength: text.MaxLength},
		Piper: PiperConfig{
			Binary:          piper.Binary,
			SpeakerID:       piper.SpeakerID,
			LengthScale:     piper.LengthScale,
			NoiseScale:      piper.NoiseScale,
			NoiseW:          piper.NoiseW,
			SentenceSilence: piper.SentenceSilence,
			Timeout:         piper.Timeout,
		},
	}
}

// Validate reports the first invalid setting. Values are never clamped.
func (c Config) Validate() error {
	if c.Engine != EnginePiper && c.Engine != EngineMock {
		return fmt.Errorf("%w: engine must be %q or %q, got %q", ErrInvalid, EnginePiper, EngineMock, c.Engine)
	}
	if err := ValidateSpeed(c.Voice.Speed); err != nil {
		return err
	}
	if c.Pool.MaxBuffers < 0 {
		return fmt.Errorf("%w: pool.max_buffers must not be negative, got %d", ErrInvalid, c.Pool.MaxBuffers)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("%w: cache.max_entries must be at least 1, got %d", ErrInvalid, c.Cache.MaxEntries)
	}
	if c.Cache.MaxMemory < 0 {
		return fmt.Errorf("%w: cache.max_memory must not be negative", ErrInvalid)
	}
	if c.Cache.IdleTimeout < 0 || c.Cache.JanitorInterval < 0 {
		return fmt.Errorf("%w: cache durations must not be negative", ErrInvalid)
	}
	if err := c.StreamConfig().SplitOptions().Validate(); err != nil {
		return fmt.Errorf("%w: stream: %w", ErrInvalid, err)
	}
	if c.Text.MaxLength < 1 {
		return fmt.Errorf("%w: text.max_length must be positive, got %d", ErrInvalid, c.Text.MaxLength)
	}
	if c.Piper.LengthScale <= 0 || c.Piper.NoiseScale < 0 || c.Piper.NoiseW < 0 {
		return fmt.Errorf("%w: piper scales must be positive", ErrInvalid)
	}
	if c.Piper.Timeout <= 0 {
		return fmt.Errorf("%w: piper.timeout must be positive, got %s", ErrInvalid, c.Piper.Timeout)
	}
	return nil
}

// ValidateSpeed checks a speaking rate against [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: speed must be between %.1f and %.1f, got %.2f", ErrInvalid, MinSpeed, MaxSpeed, speed)
	}
	return nil
}

// StreamConfig converts the stream section for the synthesizer. Buffers
// are left for the caller to attach.
func (c Config) StreamConfig() stream.Config {
	return stream.Config{
		MaxChunkSize:         c.Stream.MaxChunkSize,
		MinChunkSize:         c.Stream.MinChunkSize,
		SplitOnSentences:     c.Stream.SplitOnSentences,
		SplitOnParagraphs:    c.Stream.SplitOnParagraphs,
		AllowCancellation:    c.Stream.AllowCancellation,
		RespectAbbreviations: c.Stream.RespectAbbreviations,
	}
}

// PiperConfig converts the piper section for the voice package.
func (c Config) PiperConfig() voice.PiperConfig {
	return voice.PiperConfig{
		Binary:          c.Piper.Binary,
		SpeakerID:       c.Piper.SpeakerID,
		LengthScale:     c.Piper.LengthScale,
		NoiseScale:      c.Piper.NoiseScale,
		NoiseW:          c.Piper.NoiseW,
		SentenceSilence: c.Piper.SentenceSilence,
		Timeout:         c.Piper.Timeout,
	}
}
