package pool

// Buffer is a growable array of 16-bit PCM samples.
//
// A Buffer is owned by exactly one party at a time: either the Pool or the
// caller that acquired it. It must not be used after it has been released.
type Buffer struct {
	Samples []int16
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	return len(b.Samples)
}

// Cap returns the number of samples the buffer can hold without growing.
func (b *Buffer) Cap() int {
	return cap(b.Samples)
}

// Reset empties the buffer but keeps its backing array.
func (b *Buffer) Reset() {
	b.Samples = b.Samples[:0]
}

// Grow ensures the buffer can hold at least n samples without reallocating.
func (b *Buffer) Grow(n int) {
	if n <= cap(b.Samples) {
		return
	}
	grown := make([]int16, len(b.Samples), n)
	copy(grown, b.Samples)
	b.Samples = grown
}

// Append adds samples to the end of the buffer.
func (b *Buffer) Append(samples ...int16) {
	b.Samples = append(b.Samples, samples...)
}
