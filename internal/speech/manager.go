// Package speech ties the buffer pool, the voice model cache and the
// streaming synthesizer together behind a single Manager.
package speech

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttsmem/internal/audio"
	"github.com/dgnsrekt/ttsmem/internal/cache"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/pool"
	"github.com/dgnsrekt/ttsmem/internal/stream"
	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/dustin/go-humanize"
)

// Manager owns one pool, one model cache and one synthesizer. Speak calls
// are serialized by the synthesizer; a second concurrent Speak fails with
// ErrBusy.
type Manager struct {
	mu     sync.RWMutex
	cfg    config.Config
	closed bool

	pool    *pool.Pool
	cache   *cache.ModelCache
	synth   *stream.Synthesizer
	metrics *Metrics
	logger  *log.Logger
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger    *log.Logger
	footprint cache.FootprintFunc
}

// WithLogger sets the logger used by the manager and its components.
func WithLogger(logger *log.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithFootprint replaces the cache's memory estimator.
func WithFootprint(fn cache.FootprintFunc) Option {
	return func(o *managerOptions) {
		o.footprint = fn
	}
}

// New validates cfg and builds a Manager that loads voices with factory.
func New(cfg config.Config, factory voice.Factory, opts ...Option) (*Manager, error) {
	if factory == nil {
		return nil, newError(CodeInvalidArgument, "voice factory is nil", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(CodeInvalidArgument, "invalid configuration", err)
	}

	o := managerOptions{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	cacheOpts := []cache.Option{
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithMaxMemory(int64(cfg.Cache.MaxMemory)),
		cache.WithLogger(o.logger.WithPrefix("cache")),
	}
	if o.footprint != nil {
		cacheOpts = append(cacheOpts, cache.WithFootprint(o.footprint))
	}

	m := &Manager{
		cfg: cfg,
		pool: pool.New(
			pool.WithMaxSize(cfg.Pool.MaxBuffers),
			pool.WithLogger(o.logger.WithPrefix("pool")),
		),
		cache:   cache.New(factory, cacheOpts...),
		synth:   stream.New(stream.WithLogger(o.logger.WithPrefix("stream"))),
		metrics: newMetrics(),
		logger:  o.logger.WithPrefix("speech"),
	}
	if cfg.Cache.IdleTimeout > 0 {
		m.cache.StartJanitor(cfg.Cache.JanitorInterval, cfg.Cache.IdleTimeout)
	}

	m.logger.Debug("Manager ready",
		"engine", cfg.Engine,
		"maxEntries", cfg.Cache.MaxEntries,
		"maxMemory", humanize.Bytes(uint64(cfg.Cache.MaxMemory)),
		"maxBuffers", cfg.Pool.MaxBuffers)
	return m, nil
}

// FactoryFor returns the voice factory for the configured engine.
func FactoryFor(cfg config.Config, logger *log.Logger) (voice.Factory, error) {
	if logger == nil {
		logger = log.Default()
	}
	switch cfg.Engine {
	case config.EnginePiper:
		return voice.PiperFactory(cfg.PiperConfig(), logger.WithPrefix("piper")), nil
	case config.EngineMock:
		return func() voice.Model { return voice.NewMock() }, nil
	}
	return nil, newError(CodeInvalidArgument, "unknown engine "+cfg.Engine, config.ErrInvalid)
}

// Config returns the configuration in effect.
func (m *Manager) Config() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) snapshotConfig() (config.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return config.Config{}, ErrClosed
	}
	return m.cfg, nil
}

// Speak sanitizes req.Text, loads the voice through the cache and streams
// the synthesized chunks into sink in order. The sink is not closed.
func (m *Manager) Speak(ctx context.Context, req Request, sink audio.Sink) (Report, error) {
	if sink == nil {
		return Report{}, newError(CodeInvalidArgument, "sink is nil", nil)
	}
	cfg, err := m.snapshotConfig()
	if err != nil {
		return Report{}, err
	}
	req, err = prepare(req, cfg)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Model: req.Model, Characters: utf8.RuneCountInString(req.Text)}
	model, hit, err := m.model(ctx, req)
	rep.CacheHit = hit
	if err != nil {
		m.metrics.record(req.Model, 0, 0, 0, CodeOf(err))
		return rep, err
	}

	streamCfg := cfg.StreamConfig()
	streamCfg.Buffers = m.pool

	m.logger.Debug("Synthesis started",
		"model", req.Model,
		"characters", rep.Characters,
		"speed", req.Speed,
		"cacheHit", hit)

	start := time.Now()
	var sinkErr error
	err = m.synth.Synthesize(voice.WithSpeed(ctx, req.Speed), model, req.Text, func(c stream.Chunk) bool {
		if rep.SessionID == "" {
			rep.SessionID = m.synth.SessionID()
		}
		if werr := sink.WriteSamples(c.Samples, c.SampleRate); werr != nil {
			sinkErr = werr
			return false
		}
		rep.Chunks++
		rep.Total = c.Total
		rep.Samples += len(c.Samples)
		rep.SampleRate = c.SampleRate
		return true
	}, streamCfg)
	rep.Elapsed = time.Since(start)
	if rep.Total == 0 {
		rep.Total = m.synth.TotalChunks()
	}

	switch {
	case sinkErr != nil && errors.Is(err, stream.ErrStopped):
		err = newError(CodeOutputFailed, "writing audio", sinkErr)
	default:
		err = classify(err)
	}
	m.metrics.record(req.Model, rep.Characters, rep.Samples, rep.Elapsed, CodeOf(err))

	if err != nil {
		if CodeOf(err) == CodeCanceled {
			m.logger.Debug("Synthesis stopped", "model", req.Model, "chunks", rep.Chunks, "total", rep.Total)
		} else {
			m.logger.Error("Synthesis failed", "model", req.Model, "chunks", rep.Chunks, "duration", rep.Elapsed, "error", err)
		}
		return rep, err
	}

	m.logger.Info("Synthesis completed",
		"model", req.Model,
		"chunks", rep.Chunks,
		"audio", rep.Audio().Round(time.Millisecond),
		"duration", rep.Elapsed.Round(time.Millisecond),
		"cacheHit", hit)
	return rep, nil
}

// SynthesizeOnce synthesizes short text in a single engine call, without
// chunking. Text longer than the configured maximum chunk size is
// rejected; use Speak for it.
func (m *Manager) SynthesizeOnce(ctx context.Context, req Request) ([]int16, error) {
	cfg, err := m.snapshotConfig()
	if err != nil {
		return nil, err
	}
	req, err = prepare(req, cfg)
	if err != nil {
		return nil, err
	}
	chars := utf8.RuneCountInString(req.Text)
	if chars > cfg.Stream.MaxChunkSize {
		return nil, newError(CodeInvalidArgument, "text is longer than one chunk", nil)
	}

	model, _, err := m.model(ctx, req)
	if err != nil {
		m.metrics.record(req.Model, 0, 0, 0, CodeOf(err))
		return nil, err
	}

	start := time.Now()
	samples, err := model.Synthesize(voice.WithSpeed(ctx, req.Speed), req.Text)
	elapsed := time.Since(start)
	if err != nil {
		err = newError(CodeSynthesisFailed, "synthesis failed", err)
		if ctx.Err() != nil {
			err = newError(CodeCanceled, "synthesis canceled", ctx.Err())
		}
	}
	m.metrics.record(req.Model, chars, len(samples), elapsed, CodeOf(err))
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func (m *Manager) model(ctx context.Context, req Request) (voice.Model, bool, error) {
	model, hit, err := m.cache.Fetch(ctx, req.Model, req.Config)
	if err != nil {
		return nil, false, classify(err)
	}
	return model, hit, nil
}

// Preload loads a voice into the cache ahead of the first Speak.
func (m *Manager) Preload(ctx context.Context, modelID, configID string) error {
	if _, err := m.snapshotConfig(); err != nil {
		return err
	}
	_, _, err := m.model(ctx, Request{Model: modelID, Config: configID})
	return err
}

// Cancel stops the current Speak call after the chunk in progress.
func (m *Manager) Cancel() {
	m.synth.Cancel()
}

// IsSpeaking reports whether a Speak call is streaming.
func (m *Manager) IsSpeaking() bool {
	return m.synth.IsActive()
}

// Progress returns the fraction of chunks delivered by the current or
// last Speak call.
func (m *Manager) Progress() float64 {
	return m.synth.Progress()
}

// Snapshot is a point-in-time view of the manager's components.
type Snapshot struct {
	Pool    pool.Stats
	Cache   cache.Stats
	Models  []cache.Info
	Voices  []VoiceMetrics
	Session string
}

// Stats returns pool, cache and per-voice statistics.
func (m *Manager) Stats() Snapshot {
	return Snapshot{
		Pool:    m.pool.Stats(),
		Cache:   m.cache.Stats(),
		Models:  m.cache.Voices(),
		Voices:  m.metrics.All(),
		Session: m.synth.SessionID(),
	}
}

// ResetStats zeroes pool, cache and voice counters. Cached models and
// pooled buffers are kept.
func (m *Manager) ResetStats() {
	m.pool.ResetStats()
	m.cache.ResetStats()
	m.metrics.Reset()
}

// Reconfigure applies cfg to the running manager. Pool and cache bounds
// take effect immediately, trimming if needed; stream and text settings
// apply from the next Speak. Engine and piper settings need a new Manager.
func (m *Manager) Reconfigure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return newError(CodeInvalidArgument, "invalid configuration", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if cfg.Engine != m.cfg.Engine || cfg.Piper != m.cfg.Piper {
		m.logger.Warn("Engine settings changed, restart to apply", "engine", cfg.Engine)
	}
	if err := m.cache.SetMaxEntries(cfg.Cache.MaxEntries); err != nil {
		return classify(err)
	}
	if err := m.cache.SetMaxMemory(int64(cfg.Cache.MaxMemory)); err != nil {
		return classify(err)
	}
	m.pool.SetMaxSize(cfg.Pool.MaxBuffers)
	if cfg.Cache.IdleTimeout != m.cfg.Cache.IdleTimeout || cfg.Cache.JanitorInterval != m.cfg.Cache.JanitorInterval {
		m.cache.StartJanitor(cfg.Cache.JanitorInterval, cfg.Cache.IdleTimeout)
	}
	m.cfg = cfg

	m.logger.Info("Configuration applied",
		"maxEntries", cfg.Cache.MaxEntries,
		"maxMemory", humanize.Bytes(uint64(cfg.Cache.MaxMemory)),
		"maxBuffers", cfg.Pool.MaxBuffers)
	return nil
}

// Close cancels any Speak call, shuts down every cached model and drops
// pooled buffers. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.synth.Cancel()
	err := m.cache.Close()
	m.pool.Clear()
	return err
}
