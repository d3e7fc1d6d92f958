package speech

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/text"
)

// Request describes one piece of text to speak.
type Request struct {
	Model    string  // voice model id, defaults to the configured voice
	Config   string  // voice config id, defaults to the configured one
	Text     string  // input text
	Speed    float64 // speaking rate in [0.5, 2.0], zero means the configured speed
	Markdown bool    // treat Text as markdown
}

// Report summarizes a Speak call. It is filled in even when speaking
// stops early.
type Report struct {
	SessionID  string
	Model      string
	CacheHit   bool
	Chunks     int
	Total      int
	Characters int
	Samples    int
	SampleRate int
	Elapsed    time.Duration
}

// Audio returns the playback length of the synthesized samples.
func (r Report) Audio() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Samples) * time.Second / time.Duration(r.SampleRate)
}

// ValidateRequest checks a request that already has its defaults applied.
// Out of range values are rejected, never clamped.
func ValidateRequest(req Request) error {
	if req.Model == "" {
		return newError(CodeInvalidArgument, "model id is empty", nil)
	}
	if err := config.ValidateSpeed(req.Speed); err != nil {
		return newError(CodeInvalidArgument, "speed out of range", err)
	}
	if req.Text == "" {
		return newError(CodeInvalidArgument, "text is empty", text.ErrEmpty)
	}
	return nil
}

// prepare applies defaults from cfg, converts markdown and sanitizes the
// text.
func prepare(req Request, cfg config.Config) (Request, error) {
	if req.Model == "" {
		req.Model = cfg.Voice.Model
		if req.Config == "" {
			req.Config = cfg.Voice.Config
		}
	}
	if req.Speed == 0 {
		req.Speed = cfg.Voice.Speed
	}

	in := req.Text
	if req.Markdown || cfg.Text.Markdown {
		in = text.FromMarkdown(in)
	}
	clean, err := text.Sanitize(in, cfg.Text.MaxLength)
	if err != nil {
		return req, newError(CodeInvalidArgument, fmt.Sprintf("text rejected (%d bytes)", len(req.Text)), err)
	}
	req.Text = clean

	if err := ValidateRequest(req); err != nil {
		return req, err
	}
	return req, nil
}
