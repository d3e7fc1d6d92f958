package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/speech"
	"github.com/dgnsrekt/ttsmem/internal/voice"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:   "voices [MODEL...]",
	Short: "Load voices through the model cache and show what stays resident",
	Long: paragraph(fmt.Sprintf("\n%s each voice in order through the model cache, then list the cached voices and the cache counters. Useful to check footprints against %s and %s.",
		keyword("Load"), keyword("cache.max_entries"), keyword("cache.max_memory"))),
	Example: paragraph("ttsmem voices en_US-lessac-medium.onnx de_DE-thorsten-low.onnx"),
	RunE:    runVoices,
}

func runVoices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		if cfg.Voice.Model == "" {
			return errors.New("no voices given and voice.model is not set")
		}
		args = []string{cfg.Voice.Model}
	}

	factory, err := speech.FactoryFor(cfg, log.Default())
	if err != nil {
		return err
	}
	mgr, err := speech.New(cfg, factory)
	if err != nil {
		return err
	}
	defer mgr.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	for _, id := range args {
		if cfg.Engine == config.EnginePiper {
			if err := voice.ValidateModelPath(id); err != nil {
				fmt.Fprintln(out, row(id, alert(err.Error())))
				continue
			}
		}
		start := time.Now()
		if err := mgr.Preload(cmd.Context(), id, ""); err != nil {
			fmt.Fprintln(out, row(id, alert(err.Error())))
			continue
		}
		fmt.Fprintln(out, row(id, faint("loaded in "+time.Since(start).Round(time.Millisecond).String())))
	}

	s := mgr.Stats()
	fmt.Fprintln(out)
	for _, m := range s.Models {
		fmt.Fprintln(out, row(m.ModelID, fmt.Sprintf("%s, used %d times", humanize.IBytes(uint64(m.Footprint)), m.AccessCount)))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, row("entries", fmt.Sprintf("%d/%d", s.Cache.Entries, s.Cache.MaxEntries)))
	fmt.Fprintln(out, row("memory", fmt.Sprintf("%s/%s", humanize.IBytes(uint64(s.Cache.MemoryUsage)), humanize.IBytes(uint64(s.Cache.MaxMemory)))))
	fmt.Fprintln(out, row("evictions", humanize.Comma(int64(s.Cache.Evictions))))
	fmt.Fprintln(out, row("hit rate", fmt.Sprintf("%.0f%%", s.Cache.HitRate()*100)))
	return nil
}
