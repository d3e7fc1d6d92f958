package cache

import (
	"errors"
	"os"
	"time"
)

var (
	// ErrInvalidArgument is returned for caller mistakes such as an empty
	// model identifier or a non-positive entry bound.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLoadFailed is returned when a model cannot be initialized. The
	// cache is left exactly as it was.
	ErrLoadFailed = errors.New("voice model load failed")

	// ErrClosed is returned by GetOrLoad after Close.
	ErrClosed = errors.New("model cache is closed")
)

const (
	// DefaultMaxEntries is the default number of cached models.
	DefaultMaxEntries = 3

	// DefaultMaxMemory is the default footprint bound in bytes (1.5 GB).
	DefaultMaxMemory int64 = 1_500_000_000

	// ModelOverhead is the fixed per-model cost added by FileFootprint.
	ModelOverhead int64 = 10 * 1024 * 1024
)

// FootprintFunc estimates how many bytes a loaded model occupies.
type FootprintFunc func(modelID, configID string) int64

// FileFootprint estimates a model's footprint as twice its file size plus
// ModelOverhead. It is a stand-in until footprints can be measured.
func FileFootprint(modelID, _ string) int64 {
	info, err := os.Stat(modelID)
	if err != nil {
		return ModelOverhead
	}
	return info.Size()*2 + ModelOverhead
}

// Info describes one cached model.
type Info struct {
	ModelID     string
	ConfigID    string
	Footprint   int64     // Estimated bytes
	LoadedAt    time.Time // When the model was loaded
	LastAccess  time.Time // Last hit or load
	AccessCount int64     // Hits plus the initial load
}

// Stats holds cache counters and occupancy.
type Stats struct {
	// Cumulative counters, cleared by ResetStats
	Requests     uint64
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	LoadFailures uint64

	// Live occupancy
	Entries     int
	MemoryUsage int64
	MaxEntries  int
	MaxMemory   int64
}

// HitRate returns hits / requests.
func (s Stats) HitRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests)
}
