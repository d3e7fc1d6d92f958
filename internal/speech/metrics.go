package speech

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// VoiceMetrics holds synthesis counters for one voice.
type VoiceMetrics struct {
	Voice         string
	Syntheses     int64
	Characters    int64
	Samples       int64
	Duration      time.Duration
	Errors        int64
	Canceled      int64
	LastSynthesis time.Time
}

// CharsPerSecond is the average synthesis throughput.
func (v VoiceMetrics) CharsPerSecond() float64 {
	if v.Duration <= 0 {
		return 0
	}
	return float64(v.Characters) / v.Duration.Seconds()
}

// AverageDuration is the mean time spent per synthesis.
func (v VoiceMetrics) AverageDuration() time.Duration {
	if v.Syntheses == 0 {
		return 0
	}
	return v.Duration / time.Duration(v.Syntheses)
}

// Metrics tracks per-voice synthesis statistics.
type Metrics struct {
	mu     sync.Mutex
	voices map[string]*VoiceMetrics
}

func newMetrics() *Metrics {
	return &Metrics{voices: make(map[string]*VoiceMetrics)}
}

// record adds one finished synthesis. Cooperative stops count as
// canceled, not as errors.
func (m *Metrics) record(voiceID string, chars, samples int, elapsed time.Duration, code ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.voices[voiceID]
	if !ok {
		v = &VoiceMetrics{Voice: voiceID}
		m.voices[voiceID] = v
	}
	v.Syntheses++
	v.Characters += int64(chars)
	v.Samples += int64(samples)
	v.Duration += elapsed
	v.LastSynthesis = time.Now()

	switch code {
	case "":
	case CodeCanceled:
		v.Canceled++
	default:
		v.Errors++
	}
}

// Voice returns the metrics of one voice.
func (m *Metrics) Voice(voiceID string) (VoiceMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.voices[voiceID]
	if !ok {
		return VoiceMetrics{}, false
	}
	return *v, true
}

// All returns the metrics of every voice, sorted by voice id.
func (m *Metrics) All() []VoiceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]VoiceMetrics, 0, len(m.voices))
	for _, v := range m.voices {
		out = append(out, *v)
	}
	slices.SortFunc(out, func(a, b VoiceMetrics) int {
		return strings.Compare(a.Voice, b.Voice)
	})
	return out
}

// Reset drops every counter.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.voices)
}
