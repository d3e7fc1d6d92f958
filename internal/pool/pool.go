package pool

import (
	"sync"

	"github.com/charmbracelet/log"
)

const (
	// DefaultMaxSize is the number of idle buffers a pool keeps by default.
	DefaultMaxSize = 10

	// LargeBufferSamples is the capacity above which a released buffer has
	// its backing array dropped instead of being kept (5 MiB of PCM16).
	LargeBufferSamples = 5 * 1024 * 1024 / 2
)

// Pool is a bounded free list of sample buffers. It is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buffers []*Buffer
	maxSize int

	stats Stats

	logger *log.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxSize sets the number of idle buffers the pool may hold.
func WithMaxSize(n int) Option {
	return func(p *Pool) {
		p.maxSize = max(n, 0)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an empty pool.
func New(opts ...Option) *Pool {
	p := &Pool{
		maxSize: DefaultMaxSize,
		logger:  log.Default().WithPrefix("pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buffers = make([]*Buffer, 0, p.maxSize)
	return p
}

// Acquire returns an empty buffer with capacity for at least minCapacity
// samples. The caller owns the buffer until it passes it to Release.
func (p *Pool) Acquire(minCapacity int) *Buffer {
	minCapacity = max(minCapacity, 0)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Acquired++

	// First choice: a pooled buffer that is already big enough.
	for i, b := range p.buffers {
		if b.Cap() >= minCapacity {
			p.removeAt(i)
			b.Reset()
			return b
		}
	}

	// Second choice: grow whichever buffer is cheapest to take.
	if n := len(p.buffers); n > 0 {
		b := p.buffers[n-1]
		p.buffers[n-1] = nil
		p.buffers = p.buffers[:n-1]
		b.Reset()
		b.Grow(minCapacity)
		return b
	}

	p.stats.Allocated++
	return &Buffer{Samples: make([]int16, 0, minCapacity)}
}

// Release returns a buffer to the pool. The caller must not touch b afterwards.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Released++

	if len(p.buffers) >= p.maxSize {
		return
	}

	b.Reset()
	if b.Cap() > LargeBufferSamples {
		p.logger.Debug("Dropping oversized buffer", "capacity", b.Cap())
		b.Samples = nil
	}

	p.buffers = append(p.buffers, b)
	if len(p.buffers) > p.stats.PeakSize {
		p.stats.PeakSize = len(p.buffers)
	}
}

// SetMaxSize changes the bound and discards idle buffers above it.
// Negative values are treated as zero.
func (p *Pool) SetMaxSize(n int) {
	n = max(n, 0)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.maxSize = n
	if len(p.buffers) > n {
		trimmed := len(p.buffers) - n
		clear(p.buffers[n:])
		p.buffers = p.buffers[:n]
		p.logger.Debug("Trimmed pool", "discarded", trimmed, "max", n)
	}
}

// MaxSize returns the current bound.
func (p *Pool) MaxSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSize
}

// Size returns the number of idle buffers held.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers)
}

// Clear discards every idle buffer. The bound is unchanged.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.buffers)
	p.buffers = p.buffers[:0]
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.CurrentSize = len(p.buffers)
	stats.MaxSize = p.maxSize
	return stats
}

// ResetStats zeroes the counters. The peak is reset to the current size,
// not to zero, since it tracks a high-water mark of the live pool.
func (p *Pool) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats = Stats{PeakSize: len(p.buffers)}
}

// removeAt removes the buffer at index i (must be called with lock held).
func (p *Pool) removeAt(i int) {
	last := len(p.buffers) - 1
	p.buffers[i] = p.buffers[last]
	p.buffers[last] = nil
	p.buffers = p.buffers[:last]
}
