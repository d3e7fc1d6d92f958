package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	got := AppendPCM16(nil, EncodePCM16(samples))
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}

	// Odd trailing byte is dropped.
	if n := len(AppendPCM16(nil, []byte{1, 0, 7})); n != 1 {
		t.Errorf("odd input decoded to %d samples, want 1", n)
	}
}

func TestMock_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	if _, err := m.Synthesize(ctx, "hi"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Synthesize before Initialize: got %v, want ErrNotInitialized", err)
	}
	if err := m.Initialize(ctx, "a.onnx", ""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := m.Initialize(ctx, "a.onnx", ""); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize: got %v", err)
	}

	m.SamplesPerChar = 2
	samples, err := m.Synthesize(ctx, "ab")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	want := []int16{'a', 'a', 'b', 'b'}
	if len(samples) != len(want) {
		t.Fatalf("got %v, want %v", samples, want)
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
	if m.IsInitialized() {
		t.Error("model still initialized after Shutdown")
	}
}

func TestMock_SynthesizeIntoReusesBuffer(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	_ = m.Initialize(ctx, "a.onnx", "")

	buf := make([]int16, 0, 64)
	out, err := m.SynthesizeInto(ctx, "hello", buf)
	if err != nil {
		t.Fatalf("SynthesizeInto failed: %v", err)
	}
	if &out[:1][0] != &buf[:1][0] {
		t.Error("expected output to share the supplied backing array")
	}
}

func TestMock_FailOn(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	m := NewMock()
	m.FailOn = map[string]error{"bad": boom}
	_ = m.Initialize(ctx, "a.onnx", "")

	if _, err := m.Synthesize(ctx, "good"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := m.Synthesize(ctx, "bad"); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
}

func TestValidateModelPath(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	if err := os.WriteFile(model, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	wrongExt := filepath.Join(dir, "voice.bin")
	if err := os.WriteFile(wrongExt, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	subdir := filepath.Join(dir, "folder.onnx")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid", model, false},
		{"empty", "  ", true},
		{"wrong extension", wrongExt, true},
		{"missing", filepath.Join(dir, "nope.onnx"), true},
		{"directory", subdir, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModelPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateModelPath(%q) = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrModelNotFound) {
				t.Errorf("error %v does not wrap ErrModelNotFound", err)
			}
		})
	}
}

func writeVoice(t *testing.T, dir string, config string) string {
	t.Helper()
	model := filepath.Join(dir, "en_US-test.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if config != "" {
		if err := os.WriteFile(model+".json", []byte(config), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return model
}

func TestPiper_InitializeErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("missing config", func(t *testing.T) {
		model := writeVoice(t, t.TempDir(), "")
		p := NewPiper(DefaultPiperConfig(), nil)
		if err := p.Initialize(ctx, model, ""); !errors.Is(err, ErrModelNotFound) {
			t.Fatalf("got %v, want ErrModelNotFound", err)
		}
		if p.IsInitialized() {
			t.Error("failed Initialize left model initialized")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		model := writeVoice(t, dir, `{"audio":{"sample_rate":16000}}`)
		cfg := DefaultPiperConfig()
		cfg.Binary = "definitely-not-a-piper-binary"
		p := NewPiper(cfg, nil)
		if err := p.Initialize(ctx, model, ""); err == nil {
			t.Fatal("expected error for missing binary")
		}
		if p.IsInitialized() {
			t.Error("failed Initialize left model initialized")
		}
	})
}

func TestPiper_SynthesizeWithFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	ctx := context.Background()
	dir := t.TempDir()
	model := writeVoice(t, dir, `{"audio":{"sample_rate":16000}}`)

	// Emits two samples (1 and 2) regardless of input.
	script := filepath.Join(dir, "fake-piper")
	body := "#!/bin/sh\ncat >/dev/null\nprintf '\\001\\000\\002\\000'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultPiperConfig()
	cfg.Binary = script
	p := NewPiper(cfg, nil)
	if err := p.Initialize(ctx, model, ""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if p.SampleRate() != 16000 {
		t.Errorf("SampleRate = %d, want 16000", p.SampleRate())
	}

	samples, err := p.Synthesize(ctx, "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(samples) != 2 || samples[0] != 1 || samples[1] != 2 {
		t.Errorf("samples = %v, want [1 2]", samples)
	}

	_ = p.Shutdown()
	if _, err := p.Synthesize(ctx, "again"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Synthesize after Shutdown: got %v", err)
	}
}

func TestSpeedContext(t *testing.T) {
	if got := SpeedFrom(context.Background()); got != 1.0 {
		t.Errorf("default speed = %v, want 1.0", got)
	}
	if got := SpeedFrom(WithSpeed(context.Background(), 1.5)); got != 1.5 {
		t.Errorf("speed = %v, want 1.5", got)
	}

	m := NewMock()
	_ = m.Initialize(context.Background(), "m.onnx", "")
	if _, err := m.Synthesize(WithSpeed(context.Background(), 0.75), "hi"); err != nil {
		t.Fatal(err)
	}
	if m.LastSpeed != 0.75 {
		t.Errorf("LastSpeed = %v, want 0.75", m.LastSpeed)
	}
}

func TestPiper_ArgsScaleLengthBySpeed(t *testing.T) {
	p := NewPiper(DefaultPiperConfig(), nil)
	p.modelPath, p.configPath = "m.onnx", "m.onnx.json"

	args := p.args(2.0)
	for i, a := range args {
		if a == "--length-scale" {
			if args[i+1] != "0.500" {
				t.Errorf("length scale = %s, want 0.500", args[i+1])
			}
			return
		}
	}
	t.Error("no --length-scale argument")
}
