package pool

// Stats is a snapshot of pool activity.
type Stats struct {
	Acquired  uint64 // Acquire calls
	Released  uint64 // Release calls, including buffers dropped by a full pool
	Allocated uint64 // Acquire calls that had to allocate a new buffer

	PeakSize    int // Largest number of idle buffers held since the last reset
	CurrentSize int // Idle buffers held right now
	MaxSize     int // Configured bound
}

// Reused returns how many acquisitions were served from the pool.
func (s Stats) Reused() uint64 {
	if s.Allocated > s.Acquired {
		return 0
	}
	return s.Acquired - s.Allocated
}

// ReuseRate returns the share of acquisitions served without allocating.
func (s Stats) ReuseRate() float64 {
	if s.Acquired == 0 {
		return 0
	}
	return float64(s.Reused()) / float64(s.Acquired)
}
