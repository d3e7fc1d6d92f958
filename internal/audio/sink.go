package audio

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned when writing to a closed sink.
	ErrClosed = errors.New("sink is closed")

	// ErrSampleRateChanged is returned when a stream switches sample rate.
	ErrSampleRateChanged = errors.New("sample rate changed mid-stream")
)

// Sink consumes mono 16-bit PCM. Samples are only valid for the duration
// of WriteSamples; sinks that keep them must copy.
type Sink interface {
	WriteSamples(samples []int16, sampleRate int) error
	Close() error
}

// rateGuard pins a sink to the first sample rate it sees.
type rateGuard struct {
	rate int
}

func (g *rateGuard) check(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if g.rate == 0 {
		g.rate = sampleRate
		return nil
	}
	if g.rate != sampleRate {
		return fmt.Errorf("%w: %d Hz then %d Hz", ErrSampleRateChanged, g.rate, sampleRate)
	}
	return nil
}

// Collector keeps every sample in memory.
type Collector struct {
	mu      sync.Mutex
	guard   rateGuard
	samples []int16
	writes  int
}

// WriteSamples implements Sink.
func (c *Collector) WriteSamples(samples []int16, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard.check(sampleRate); err != nil {
		return err
	}
	c.samples = append(c.samples, samples...)
	c.writes++
	return nil
}

// Close implements Sink.
func (c *Collector) Close() error { return nil }

// Samples returns a copy of everything written so far.
func (c *Collector) Samples() []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int16(nil), c.samples...)
}

// Writes returns the number of WriteSamples calls.
func (c *Collector) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// SampleRate returns the rate of the collected audio, or 0 before the
// first write.
func (c *Collector) SampleRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guard.rate
}

// Discard is a Sink that drops everything. It counts samples so dry runs
// can still report durations.
type Discard struct {
	Samples int64
}

// WriteSamples implements Sink.
func (d *Discard) WriteSamples(samples []int16, _ int) error {
	d.Samples += int64(len(samples))
	return nil
}

// Close implements Sink.
func (d *Discard) Close() error { return nil }

// Tee writes to every sink in order and stops at the first error.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) WriteSamples(samples []int16, sampleRate int) error {
	for _, s := range t {
		if err := s.WriteSamples(samples, sampleRate); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the errors joined.
func (t tee) Close() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
