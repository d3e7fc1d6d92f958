// Package pool recycles PCM sample buffers between synthesis calls.
//
// A Pool holds at most MaxSize idle buffers. Acquire prefers a pooled buffer
// that is already large enough, then grows any pooled buffer, and only
// allocates when the pool is empty. Release hands a buffer back; buffers
// returned to a full pool are dropped for the garbage collector.
package pool
