package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/ttsmem/internal/audio"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/stream"
	"github.com/dgnsrekt/ttsmem/internal/voice"
)

const fourSentences = "One. Two. Three. Four."

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Engine = config.EngineMock
	cfg.Voice.Model = "v1"
	cfg.Stream.MaxChunkSize = 5
	cfg.Stream.MinChunkSize = 1
	cfg.Stream.SplitOnParagraphs = false
	return cfg
}

type mocks struct {
	mu      sync.Mutex
	created []*voice.Mock
	setup   func(*voice.Mock)
}

func (ms *mocks) factory() voice.Model {
	m := voice.NewMock()
	if ms.setup != nil {
		ms.setup(m)
	}
	ms.mu.Lock()
	ms.created = append(ms.created, m)
	ms.mu.Unlock()
	return m
}

func (ms *mocks) all() []*voice.Mock {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]*voice.Mock(nil), ms.created...)
}

func newManager(t *testing.T, cfg config.Config, ms *mocks) *Manager {
	t.Helper()
	m, err := New(cfg, ms.factory, WithFootprint(func(string, string) int64 { return 100 }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// failingSink accepts ok writes and then fails.
type failingSink struct {
	ok     int
	writes int
}

var errSink = errors.New("disk full")

func (s *failingSink) WriteSamples([]int16, int) error {
	if s.writes >= s.ok {
		return errSink
	}
	s.writes++
	return nil
}

func (s *failingSink) Close() error { return nil }

// funcSink runs fn on every write.
type funcSink func(samples []int16, rate int) error

func (f funcSink) WriteSamples(samples []int16, rate int) error { return f(samples, rate) }
func (f funcSink) Close() error                                 { return nil }

func runes(s string) []int16 {
	var out []int16
	for _, r := range s {
		out = append(out, int16(r))
	}
	return out
}

func TestManager_SpeakStreamsAllChunks(t *testing.T) {
	ms := &mocks{}
	m := newManager(t, testConfig(), ms)

	var sink audio.Collector
	rep, err := m.Speak(context.Background(), Request{Text: "  " + fourSentences + "\n"}, &sink)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if got, want := sink.Samples(), runes(fourSentences); !equalSamples(got, want) {
		t.Errorf("samples = %v, want %v", got, want)
	}
	if rep.Chunks != 4 || rep.Total != 4 {
		t.Errorf("chunks = %d/%d, want 4/4", rep.Chunks, rep.Total)
	}
	if rep.Samples != len(fourSentences) || rep.SampleRate != voice.DefaultSampleRate {
		t.Errorf("report = %+v", rep)
	}
	if rep.CacheHit {
		t.Error("first Speak should miss the cache")
	}
	if rep.SessionID == "" {
		t.Error("expected a session id")
	}
	if rep.Audio() <= 0 {
		t.Errorf("Audio() = %v", rep.Audio())
	}
	if m.Progress() != 1 {
		t.Errorf("Progress() = %v, want 1", m.Progress())
	}

	rep, err = m.Speak(context.Background(), Request{Text: "Again."}, &audio.Discard{})
	if err != nil {
		t.Fatalf("second Speak: %v", err)
	}
	if !rep.CacheHit {
		t.Error("second Speak should hit the cache")
	}
	if n := len(ms.all()); n != 1 {
		t.Errorf("created %d models, want 1", n)
	}
}

func equalSamples(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestManager_SpeedReachesModel(t *testing.T) {
	tests := []struct {
		name  string
		cfg   float64
		req   float64
		wants float64
	}{
		{"request speed", 1.0, 1.5, 1.5},
		{"configured speed", 0.75, 0, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mocks{}
			cfg := testConfig()
			cfg.Voice.Speed = tt.cfg
			m := newManager(t, cfg, ms)

			if _, err := m.Speak(context.Background(), Request{Text: "Hi.", Speed: tt.req}, &audio.Discard{}); err != nil {
				t.Fatalf("Speak: %v", err)
			}
			if got := ms.all()[0].LastSpeed; got != tt.wants {
				t.Errorf("speed = %v, want %v", got, tt.wants)
			}
		})
	}
}

func TestManager_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		model string
		req   Request
	}{
		{"no model", "", Request{Text: "Hello."}},
		{"speed too low", "v1", Request{Text: "Hello.", Speed: 0.25}},
		{"speed too high", "v1", Request{Text: "Hello.", Speed: 2.5}},
		{"empty text", "v1", Request{Text: " \x00\x07 \n"}},
		{"too long", "v1", Request{Text: strings.Repeat("a", 101)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mocks{}
			cfg := testConfig()
			cfg.Voice.Model = tt.model
			cfg.Text.MaxLength = 100
			m := newManager(t, cfg, ms)

			_, err := m.Speak(context.Background(), tt.req, &audio.Discard{})
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
			if CodeOf(err) != CodeInvalidArgument {
				t.Errorf("code = %q", CodeOf(err))
			}
			if n := len(ms.all()); n != 0 {
				t.Errorf("created %d models for a rejected request", n)
			}
			if s := m.Stats().Cache; s.Requests != 0 {
				t.Errorf("cache requests = %d, want 0", s.Requests)
			}
		})
	}
}

func TestManager_NilSink(t *testing.T) {
	m := newManager(t, testConfig(), &mocks{})
	if _, err := m.Speak(context.Background(), Request{Text: "Hi."}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestManager_Markdown(t *testing.T) {
	ms := &mocks{}
	m := newManager(t, testConfig(), ms)

	md := "# Title\n\nSome *bold* text.\n\n```\ncode()\n```\n"
	if _, err := m.Speak(context.Background(), Request{Text: md, Markdown: true}, &audio.Discard{}); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	spoken := strings.Join(ms.all()[0].Calls(), "")
	for _, bad := range []string{"#", "*", "code()"} {
		if strings.Contains(spoken, bad) {
			t.Errorf("spoken text %q contains %q", spoken, bad)
		}
	}
	if !strings.Contains(spoken, "Title.") || !strings.Contains(spoken, "bold") {
		t.Errorf("spoken text %q is missing prose", spoken)
	}
}

func TestManager_LoadFailure(t *testing.T) {
	boom := errors.New("no such voice")
	ms := &mocks{setup: func(m *voice.Mock) { m.InitErr = boom }}
	m := newManager(t, testConfig(), ms)

	_, err := m.Speak(context.Background(), Request{Text: "Hi."}, &audio.Discard{})
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrLoadFailed wrapping the cause", err)
	}
	if s := m.Stats(); s.Cache.Entries != 0 || s.Cache.LoadFailures != 1 {
		t.Errorf("cache stats = %+v", s.Cache)
	}
	if v, ok := m.metrics.Voice("v1"); !ok || v.Errors != 1 {
		t.Errorf("voice metrics = %+v, %v", v, ok)
	}
}

func TestManager_SynthesisFailureKeepsDeliveredChunks(t *testing.T) {
	boom := errors.New("engine crashed")
	ms := &mocks{setup: func(m *voice.Mock) { m.FailOn = map[string]error{"Three. ": boom} }}
	m := newManager(t, testConfig(), ms)

	var sink audio.Collector
	rep, err := m.Speak(context.Background(), Request{Text: fourSentences}, &sink)
	if !errors.Is(err, ErrSynthesisFailed) || !errors.Is(err, stream.ErrSynthesisFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if rep.Chunks != 2 || sink.Writes() != 2 {
		t.Errorf("delivered %d chunks (%d writes), want 2", rep.Chunks, sink.Writes())
	}
	if m.Stats().Cache.Entries != 1 {
		t.Error("model should stay cached after a synthesis failure")
	}
}

func TestManager_SinkFailure(t *testing.T) {
	m := newManager(t, testConfig(), &mocks{})

	sink := &failingSink{ok: 1}
	rep, err := m.Speak(context.Background(), Request{Text: fourSentences}, sink)
	if !errors.Is(err, ErrOutputFailed) || !errors.Is(err, errSink) {
		t.Fatalf("err = %v, want ErrOutputFailed wrapping the sink error", err)
	}
	if rep.Chunks != 1 {
		t.Errorf("chunks = %d, want 1", rep.Chunks)
	}
	if s := m.Stats().Pool; s.Acquired != s.Released {
		t.Errorf("pool acquired %d, released %d", s.Acquired, s.Released)
	}
}

func TestManager_Cancel(t *testing.T) {
	m := newManager(t, testConfig(), &mocks{})

	sink := funcSink(func([]int16, int) error {
		m.Cancel()
		return nil
	})
	rep, err := m.Speak(context.Background(), Request{Text: fourSentences}, sink)
	if !errors.Is(err, ErrCanceled) || !stream.IsCooperativeStop(err) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if rep.Chunks != 1 || rep.Total != 4 {
		t.Errorf("chunks = %d/%d, want 1/4", rep.Chunks, rep.Total)
	}
	if got := m.Progress(); got != 0.25 {
		t.Errorf("Progress() = %v, want 0.25", got)
	}
	v, _ := m.metrics.Voice("v1")
	if v.Canceled != 1 || v.Errors != 0 {
		t.Errorf("voice metrics = %+v", v)
	}
}

func TestManager_ContextCanceled(t *testing.T) {
	m := newManager(t, testConfig(), &mocks{})
	if err := m.Preload(context.Background(), "v1", ""); err != nil {
		t.Fatalf("Preload: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := m.Speak(ctx, Request{Text: fourSentences}, &audio.Discard{})
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if rep.Chunks != 0 {
		t.Errorf("chunks = %d, want 0", rep.Chunks)
	}
}

func TestManager_Busy(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	ms := &mocks{setup: func(m *voice.Mock) {
		m.OnSynthesize = func(string) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-gate
		}
	}}
	m := newManager(t, testConfig(), ms)
	if err := m.Preload(context.Background(), "v1", ""); err != nil {
		t.Fatalf("Preload: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Speak(context.Background(), Request{Text: fourSentences}, &audio.Discard{})
		done <- err
	}()
	<-started

	if !m.IsSpeaking() {
		t.Error("IsSpeaking() = false during Speak")
	}
	if _, err := m.Speak(context.Background(), Request{Text: "Hi."}, &audio.Discard{}); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}

	close(gate)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first Speak: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first Speak did not finish")
	}
}

func TestManager_SynthesizeOnce(t *testing.T) {
	ms := &mocks{}
	cfg := testConfig()
	cfg.Stream.MaxChunkSize = 10
	m := newManager(t, cfg, ms)

	samples, err := m.SynthesizeOnce(context.Background(), Request{Text: "Hello."})
	if err != nil {
		t.Fatalf("SynthesizeOnce: %v", err)
	}
	if !equalSamples(samples, runes("Hello.")) {
		t.Errorf("samples = %v", samples)
	}

	if _, err := m.SynthesizeOnce(context.Background(), Request{Text: fourSentences}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("long text: err = %v, want ErrInvalidArgument", err)
	}
	if calls := ms.all()[0].Calls(); len(calls) != 1 {
		t.Errorf("engine calls = %v, want 1", calls)
	}
}

func TestManager_PooledBuffersAreReused(t *testing.T) {
	m := newManager(t, testConfig(), &mocks{})

	if _, err := m.Speak(context.Background(), Request{Text: fourSentences}, &audio.Discard{}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	s := m.Stats().Pool
	if s.Acquired != 4 || s.Released != 4 {
		t.Errorf("acquired %d, released %d, want 4/4", s.Acquired, s.Released)
	}
	if s.Allocated != 1 {
		t.Errorf("allocated = %d, want 1", s.Allocated)
	}

	m.ResetStats()
	if s := m.Stats(); s.Pool.Acquired != 0 || s.Cache.Requests != 0 || len(s.Voices) != 0 {
		t.Errorf("stats after reset = %+v", s)
	}
}

func TestManager_Reconfigure(t *testing.T) {
	ms := &mocks{}
	m := newManager(t, testConfig(), ms)

	for _, id := range []string{"v1", "v2", "v3"} {
		if err := m.Preload(context.Background(), id, ""); err != nil {
			t.Fatalf("Preload %s: %v", id, err)
		}
	}

	cfg := testConfig()
	cfg.Cache.MaxEntries = 1
	cfg.Pool.MaxBuffers = 2
	if err := m.Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}

	s := m.Stats()
	if s.Cache.Entries != 1 || s.Cache.MaxEntries != 1 {
		t.Errorf("cache = %+v, want one entry", s.Cache)
	}
	if len(s.Models) != 1 || s.Models[0].ModelID != "v3" {
		t.Errorf("models = %+v, want v3 only", s.Models)
	}
	if s.Pool.MaxSize != 2 {
		t.Errorf("pool max = %d, want 2", s.Pool.MaxSize)
	}

	cfg.Cache.MaxMemory = 50
	if err := m.Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure memory: %v", err)
	}
	if got := m.Config().Cache.MaxMemory; got != 50 {
		t.Errorf("max memory = %d", got)
	}
	if s := m.Stats().Cache; s.Entries != 1 {
		t.Errorf("entries = %d, the last model stays even when oversized", s.Entries)
	}

	bad := testConfig()
	bad.Cache.MaxEntries = 0
	if err := m.Reconfigure(bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if got := m.Config().Cache.MaxEntries; got != 1 {
		t.Errorf("rejected config was applied: max entries %d", got)
	}
}

func TestManager_Close(t *testing.T) {
	ms := &mocks{}
	m := newManager(t, testConfig(), ms)
	if err := m.Preload(context.Background(), "v1", ""); err != nil {
		t.Fatalf("Preload: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if ms.all()[0].ShutdownCalls != 1 {
		t.Errorf("shutdown calls = %d, want 1", ms.all()[0].ShutdownCalls)
	}
	if _, err := m.Speak(context.Background(), Request{Text: "Hi."}, &audio.Discard{}); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := m.Reconfigure(testConfig()); !errors.Is(err, ErrClosed) {
		t.Errorf("Reconfigure err = %v, want ErrClosed", err)
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(testConfig(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil factory: err = %v", err)
	}
	cfg := testConfig()
	cfg.Stream.MinChunkSize = 10
	if _, err := New(cfg, (&mocks{}).factory); !errors.Is(err, ErrInvalidArgument) || !errors.Is(err, config.ErrInvalid) {
		t.Errorf("bad config: err = %v", err)
	}
}

func TestFactoryFor(t *testing.T) {
	cfg := testConfig()
	f, err := FactoryFor(cfg, nil)
	if err != nil {
		t.Fatalf("FactoryFor: %v", err)
	}
	if _, ok := f().(*voice.Mock); !ok {
		t.Errorf("mock engine built %T", f())
	}

	cfg.Engine = "espeak"
	if _, err := FactoryFor(cfg, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{stream.ErrStopped, CodeCanceled},
		{stream.ErrBusy, CodeBusy},
		{errors.New("anything"), CodeSynthesisFailed},
		{ErrLoadFailed, CodeLoadFailed},
	}
	for _, tt := range tests {
		if got := CodeOf(classify(tt.err)); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestVoiceMetrics(t *testing.T) {
	m := newMetrics()
	m.record("b", 100, 1000, 2*time.Second, "")
	m.record("b", 50, 500, time.Second, CodeSynthesisFailed)
	m.record("a", 10, 0, 0, CodeCanceled)

	all := m.All()
	if len(all) != 2 || all[0].Voice != "a" || all[1].Voice != "b" {
		t.Fatalf("All() = %+v", all)
	}
	b := all[1]
	if b.Syntheses != 2 || b.Errors != 1 || b.Characters != 150 || b.Samples != 1500 {
		t.Errorf("b = %+v", b)
	}
	if got := b.CharsPerSecond(); got != 50 {
		t.Errorf("CharsPerSecond() = %v, want 50", got)
	}
	if got := b.AverageDuration(); got != 1500*time.Millisecond {
		t.Errorf("AverageDuration() = %v", got)
	}
	if a := all[0]; a.Canceled != 1 || a.CharsPerSecond() != 0 {
		t.Errorf("a = %+v", a)
	}
}

func TestManager_ReportCacheHitFollowsEviction(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.MaxEntries = 1
	m := newManager(t, cfg, &mocks{})

	steps := []struct {
		model   string
		wantHit bool
	}{
		{"v1", false},
		{"v1", true},
		{"v2", false},
		{"v1", false},
		{"v1", true},
	}
	for i, st := range steps {
		rep, err := m.Speak(context.Background(), Request{Model: st.model, Text: "Hi."}, &audio.Discard{})
		if err != nil {
			t.Fatalf("step %d: Speak: %v", i, err)
		}
		if rep.CacheHit != st.wantHit {
			t.Errorf("step %d (%s): CacheHit = %v, want %v", i, st.model, rep.CacheHit, st.wantHit)
		}
	}
}
