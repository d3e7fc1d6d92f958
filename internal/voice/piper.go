package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// MaxModelFileSize is the largest model file Initialize accepts.
	MaxModelFileSize = 500 * 1024 * 1024

	// ModelExtension is the extension piper voice models carry.
	ModelExtension = ".onnx"
)

// PiperConfig configures how the piper binary is invoked.
type PiperConfig struct {
	Binary          string        // piper executable, looked up in PATH
	SpeakerID       int           // speaker for multi-speaker voices
	LengthScale     float64       // phoneme length, 1.0 = normal speed
	NoiseScale      float64       // generator noise
	NoiseW          float64       // phoneme width noise
	SentenceSilence time.Duration // silence after each sentence
	Timeout         time.Duration // per-synthesis timeout
}

// DefaultPiperConfig returns the settings piper uses when no flags are given.
func DefaultPiperConfig() PiperConfig {
	return PiperConfig{
		Binary:          "piper",
		LengthScale:     1.0,
		NoiseScale:      0.667,
		NoiseW:          0.8,
		SentenceSilence: 200 * time.Millisecond,
		Timeout:         30 * time.Second,
	}
}

// Piper is a Model backed by the piper command line synthesizer. Every
// synthesis runs a fresh piper process with the text on stdin and raw PCM
// on stdout.
type Piper struct {
	config PiperConfig
	logger *log.Logger

	mu          sync.RWMutex
	binaryPath  string
	modelPath   string
	configPath  string
	sampleRate  int
	initialized bool
}

// NewPiper creates an uninitialized piper model.
func NewPiper(config PiperConfig, logger *log.Logger) *Piper {
	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.LengthScale <= 0 {
		config.LengthScale = 1.0
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default().WithPrefix("piper")
	}
	return &Piper{config: config, logger: logger}
}

// PiperFactory returns a Factory producing piper models with config.
func PiperFactory(config PiperConfig, logger *log.Logger) Factory {
	return func() Model {
		return NewPiper(config, logger)
	}
}

// Initialize validates the model files and locates the piper binary.
// configID defaults to "<modelID>.json" when empty.
func (p *Piper) Initialize(_ context.Context, modelID, configID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return ErrAlreadyInitialized
	}

	if err := ValidateModelPath(modelID); err != nil {
		return err
	}
	if configID == "" {
		configID = modelID + ".json"
	}
	sampleRate, err := readSampleRate(configID)
	if err != nil {
		return err
	}

	binaryPath, err := exec.LookPath(p.config.Binary)
	if err != nil {
		return fmt.Errorf("piper not found in PATH: %w", err)
	}

	p.binaryPath = binaryPath
	p.modelPath = modelID
	p.configPath = configID
	p.sampleRate = sampleRate
	p.initialized = true

	p.logger.Debug("Voice model initialized", "model", filepath.Base(modelID), "sampleRate", sampleRate)
	return nil
}

// Synthesize implements Model.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]int16, error) {
	return p.SynthesizeInto(ctx, text, nil)
}

// SynthesizeInto implements BufferedModel.
func (p *Piper) SynthesizeInto(ctx context.Context, text string, dst []int16) ([]int16, error) {
	p.mu.RLock()
	if !p.initialized {
		p.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	binary := p.binaryPath
	args := p.args(SpeedFrom(ctx))
	p.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	// Stdin is fully prepared before start so piper never races the writer.
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("piper synthesis timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("piper failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("piper produced no audio output, stderr: %s", strings.TrimSpace(stderr.String()))
	}

	p.logger.Debug("Synthesized chunk", "chars", len(text), "bytes", stdout.Len(), "took", time.Since(start))
	return AppendPCM16(dst[:0], stdout.Bytes()), nil
}

// Shutdown marks the model unusable. Each synthesis owns its process, so
// there is nothing left running to stop.
func (p *Piper) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		p.logger.Debug("Voice model shut down", "model", filepath.Base(p.modelPath))
	}
	p.initialized = false
	return nil
}

// IsInitialized implements Model.
func (p *Piper) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// SampleRate implements Model.
func (p *Piper) SampleRate() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.sampleRate == 0 {
		return DefaultSampleRate
	}
	return p.sampleRate
}

// args builds the piper command line (must be called with lock held).
// Faster speech means shorter phonemes.
func (p *Piper) args(speed float64) []string {
	args := []string{
		"--model", p.modelPath,
		"--config", p.configPath,
		"--output-raw",
		"--length-scale", strconv.FormatFloat(p.config.LengthScale/speed, 'f', 3, 64),
		"--noise-scale", strconv.FormatFloat(p.config.NoiseScale, 'f', 3, 64),
		"--noise-w", strconv.FormatFloat(p.config.NoiseW, 'f', 3, 64),
		"--sentence-silence", strconv.FormatFloat(p.config.SentenceSilence.Seconds(), 'f', 3, 64),
	}
	if p.config.SpeakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(p.config.SpeakerID))
	}
	return args
}

// ValidateModelPath checks that path names a readable piper model of sane size.
func ValidateModelPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty model path", ErrModelNotFound)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ModelExtension {
		return fmt.Errorf("%w: %s is not a %s file", ErrModelNotFound, path, ModelExtension)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModelNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrModelNotFound, path)
	}
	if info.Size() > MaxModelFileSize {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrModelNotFound, path, MaxModelFileSize)
	}
	return nil
}

// piperVoiceConfig is the part of a piper voice config we read.
type piperVoiceConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// readSampleRate reads the output sample rate from a piper voice config.
func readSampleRate(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: config %s", ErrModelNotFound, path)
		}
		return 0, fmt.Errorf("failed to read voice config: %w", err)
	}

	var cfg piperVoiceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("failed to parse voice config %s: %w", path, err)
	}
	if cfg.Audio.SampleRate <= 0 {
		return DefaultSampleRate, nil
	}
	return cfg.Audio.SampleRate, nil
}

var _ BufferedModel = (*Piper)(nil)
