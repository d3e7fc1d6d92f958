package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttsmem/internal/audio"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/speech"
	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

var (
	speakText   string
	speakOutput string
	speakPlay   bool
	speakVolume float64
	speakWatch  bool

	speakCmd = &cobra.Command{
		Use:   "speak [FILE|-]",
		Short: "Synthesize text to a file or the speakers",
		Long: paragraph(fmt.Sprintf("\n%s text from a file, stdin or --text. Audio is streamed chunk by chunk to a %s file, a %s file and/or the speakers.",
			keyword("Speak"), keyword(".wav"), keyword(".pcm.zst"))),
		Example: paragraph("ttsmem speak README.md --play\nttsmem speak -t \"Hello there.\" -o hello.wav\ncat notes.txt | ttsmem speak -o notes.pcm.zst --speed 1.25"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runSpeak,
	}
)

func init() {
	speakCmd.Flags().StringVarP(&speakText, "text", "t", "", "text to speak instead of a file")
	speakCmd.Flags().StringVarP(&speakOutput, "output", "o", "", "write audio to a .wav or .pcm.zst file")
	speakCmd.Flags().BoolVarP(&speakPlay, "play", "p", false, "play audio on the default output device")
	speakCmd.Flags().Float64Var(&speakVolume, "volume", 1.0, "playback volume between 0.0 and 1.0")
	speakCmd.Flags().Float64P("speed", "s", 0, "speaking rate between 0.5 and 2.0")
	speakCmd.Flags().Bool("markdown", false, "treat input as markdown")
	speakCmd.Flags().BoolVarP(&speakWatch, "watch", "w", false, "apply config file changes while speaking")

	_ = viper.BindPFlag("voice.speed", speakCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("text.markdown", speakCmd.Flags().Lookup("markdown"))
}

func runSpeak(cmd *cobra.Command, args []string) error {
	if speakOutput == "" && !speakPlay {
		return errors.New("nothing to do: use --output and/or --play")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	input, markdown, err := readInput(speakText, args)
	if err != nil {
		return err
	}
	if cfg.Engine == config.EnginePiper {
		if err := voice.ValidateModelPath(cfg.Voice.Model); err != nil {
			return fmt.Errorf("piper needs a voice model (--model or voice.model): %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := speech.FactoryFor(cfg, log.Default())
	if err != nil {
		return err
	}
	mgr, err := speech.New(cfg, factory)
	if err != nil {
		return err
	}
	defer mgr.Close() //nolint:errcheck

	sink, err := openSinks()
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		sink = newProgressSink(sink, mgr)
	}

	if speakWatch {
		watchConfig(ctx, mgr)
	}

	rep, err := mgr.Speak(ctx, speech.Request{Text: input, Markdown: markdown}, sink)
	if cerr := sink.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("unable to finish audio output: %w", cerr)
	}
	printReport(rep, err)

	if errors.Is(err, speech.ErrCanceled) {
		return nil
	}
	return err
}

func openSinks() (audio.Sink, error) {
	var sinks []audio.Sink
	if speakOutput != "" {
		s, err := audio.Create(speakOutput)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if speakPlay {
		p, err := audio.NewPlayer(speakVolume, log.Default().WithPrefix("audio"))
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, p)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return audio.Tee(sinks...), nil
}

// watchConfig reloads the config file in the background and applies new
// bounds to mgr.
func watchConfig(ctx context.Context, mgr *speech.Manager) {
	path := viper.ConfigFileUsed()
	if path == "" {
		log.Warn("No configuration file to watch")
		return
	}
	go func() {
		err := config.Watch(ctx, path, log.Default().WithPrefix("config"), func(c config.Config) {
			c.ApplyEnv(envCfg)
			if err := mgr.Reconfigure(c); err != nil {
				log.Warn("Could not apply configuration", "error", err)
			}
		})
		if err != nil {
			log.Error("Configuration watcher stopped", "error", err)
		}
	}()
}

// progressSink prints the stream's progress to stderr at most once per
// interval.
type progressSink struct {
	audio.Sink
	mgr   *speech.Manager
	every rate.Sometimes
}

func newProgressSink(sink audio.Sink, mgr *speech.Manager) *progressSink {
	return &progressSink{
		Sink:  sink,
		mgr:   mgr,
		every: rate.Sometimes{First: 1, Interval: 500 * time.Millisecond},
	}
}

func (p *progressSink) WriteSamples(samples []int16, sampleRate int) error {
	if err := p.Sink.WriteSamples(samples, sampleRate); err != nil {
		return err
	}
	p.every.Do(func() {
		fmt.Fprintf(os.Stderr, "\r%s %3.0f%%", faint("speaking"), p.mgr.Progress()*100)
	})
	return nil
}

func (p *progressSink) Close() error {
	fmt.Fprint(os.Stderr, "\r\033[K")
	return p.Sink.Close()
}

func printReport(rep speech.Report, err error) {
	status := keyword("done")
	switch {
	case errors.Is(err, speech.ErrCanceled):
		status = faint("stopped")
	case err != nil:
		status = alert("failed")
	}

	fmt.Fprintln(os.Stderr, row("status", status))
	if rep.Model == "" {
		return
	}
	fmt.Fprintln(os.Stderr, row("voice", rep.Model))
	fmt.Fprintln(os.Stderr, row("chunks", fmt.Sprintf("%d/%d", rep.Chunks, rep.Total)))
	fmt.Fprintln(os.Stderr, row("characters", humanize.Comma(int64(rep.Characters))))
	fmt.Fprintln(os.Stderr, row("audio", rep.Audio().Round(time.Millisecond).String()))
	fmt.Fprintln(os.Stderr, row("took", rep.Elapsed.Round(time.Millisecond).String()))
	if speakOutput != "" && err == nil {
		if info, statErr := os.Stat(speakOutput); statErr == nil {
			fmt.Fprintln(os.Stderr, row("output", fmt.Sprintf("%s (%s)", speakOutput, humanize.Bytes(uint64(info.Size())))))
		}
	}
}
