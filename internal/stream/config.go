package stream

import "github.com/dgnsrekt/ttsmem/internal/pool"

// Defaults for Config.
const (
	DefaultMaxChunkSize = 500
	DefaultMinChunkSize = 50
)

// BufferProvider lends sample buffers for chunk output. *pool.Pool
// satisfies it.
type BufferProvider interface {
	Acquire(minCapacity int) *pool.Buffer
	Release(b *pool.Buffer)
}

// Config controls one streaming call.
type Config struct {
	MaxChunkSize         int
	MinChunkSize         int
	SplitOnSentences     bool
	SplitOnParagraphs    bool
	AllowCancellation    bool
	RespectAbbreviations bool

	// Buffers, when set, supplies the output buffer for each chunk if the
	// model can synthesize into one. Chunk samples are then only valid
	// until the consumer returns.
	Buffers BufferProvider
}

// DefaultConfig returns the stock streaming configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:      DefaultMaxChunkSize,
		MinChunkSize:      DefaultMinChunkSize,
		SplitOnSentences:  true,
		SplitOnParagraphs: true,
		AllowCancellation: true,
	}
}

// SplitOptions returns the segmentation part of the configuration.
func (c Config) SplitOptions() SplitOptions {
	return SplitOptions{
		MaxChunkSize:         c.MaxChunkSize,
		MinChunkSize:         c.MinChunkSize,
		SplitOnSentences:     c.SplitOnSentences,
		SplitOnParagraphs:    c.SplitOnParagraphs,
		RespectAbbreviations: c.RespectAbbreviations,
	}
}

var _ BufferProvider = (*pool.Pool)(nil)
