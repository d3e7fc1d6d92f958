// Package stream splits long text into synthesis-sized chunks and drives a
// voice model over them one chunk at a time.
//
// Chunk boundaries fall after paragraph breaks and sentence terminators.
// A Synthesizer delivers each chunk's audio to a consumer as soon as it is
// ready and can be cancelled between chunks from another goroutine.
package stream
