// Package audio provides sinks for synthesized PCM: WAV files, zstd
// compressed raw PCM and live playback through oto/v3.
//
// Every sink accepts mono 16-bit samples chunk by chunk, so a long text
// never has to be held in memory as a single buffer.
package audio
