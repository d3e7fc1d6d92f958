package voice

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"
)

// Mock is a deterministic Model for tests and dry runs. Every character of
// input produces SamplesPerChar samples whose value is the character's rune
// truncated to 16 bits, so output can be traced back to its text.
type Mock struct {
	mu sync.Mutex

	initialized bool
	modelID     string
	configID    string

	// Behaviour knobs
	SamplesPerChar int
	Delay          time.Duration
	InitErr        error
	SynthErr       error
	FailOn         map[string]error // per-text synthesis failures

	// Hook runs before each synthesis, outside the lock.
	OnSynthesize func(text string)

	// Observations
	InitCalls     int
	ShutdownCalls int
	Texts         []string
	LastSpeed     float64
}

// NewMock returns a Mock producing one sample per character.
func NewMock() *Mock {
	return &Mock{SamplesPerChar: 1}
}

// MockFactory returns a Factory that records every Mock it creates.
func MockFactory(created *[]*Mock, mu *sync.Mutex) Factory {
	return func() Model {
		m := NewMock()
		if created != nil {
			if mu != nil {
				mu.Lock()
				defer mu.Unlock()
			}
			*created = append(*created, m)
		}
		return m
	}
}

// Initialize implements Model.
func (m *Mock) Initialize(_ context.Context, modelID, configID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitCalls++
	if m.initialized {
		return ErrAlreadyInitialized
	}
	if m.InitErr != nil {
		return m.InitErr
	}
	m.modelID = modelID
	m.configID = configID
	m.initialized = true
	return nil
}

// Synthesize implements Model.
func (m *Mock) Synthesize(ctx context.Context, text string) ([]int16, error) {
	return m.SynthesizeInto(ctx, text, nil)
}

// SynthesizeInto implements BufferedModel.
func (m *Mock) SynthesizeInto(ctx context.Context, text string, dst []int16) ([]int16, error) {
	if hook := m.hook(); hook != nil {
		hook(text)
	}

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, ErrNotInitialized
	}
	m.Texts = append(m.Texts, text)
	m.LastSpeed = SpeedFrom(ctx)
	delay, perChar := m.Delay, m.SamplesPerChar
	err := m.SynthErr
	if e, ok := m.FailOn[text]; ok {
		err = e
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	dst = dst[:0]
	if need := utf8.RuneCountInString(text) * perChar; cap(dst) < need {
		dst = make([]int16, 0, need)
	}
	for _, r := range text {
		for i := 0; i < perChar; i++ {
			dst = append(dst, int16(r))
		}
	}
	return dst, nil
}

// Shutdown implements Model.
func (m *Mock) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ShutdownCalls++
	m.initialized = false
	return nil
}

// IsInitialized implements Model.
func (m *Mock) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// SampleRate implements Model.
func (m *Mock) SampleRate() int {
	return DefaultSampleRate
}

// ModelID returns the identifier passed to Initialize.
func (m *Mock) ModelID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelID
}

// Calls returns the texts synthesized so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Texts...)
}

func (m *Mock) hook() func(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OnSynthesize
}

var _ BufferedModel = (*Mock)(nil)
