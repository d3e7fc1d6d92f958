package main

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/dgnsrekt/ttsmem/internal/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	chunksText string

	chunksCmd = &cobra.Command{
		Use:   "chunks [FILE|-]",
		Short: "Show how text is split into synthesis chunks",
		Long: paragraph(fmt.Sprintf("\n%s the chunks %s would synthesize, without loading a voice.",
			keyword("Print"), keyword("ttsmem speak"))),
		Example: paragraph("ttsmem chunks README.md\nttsmem chunks --max 120 --min 20 -t \"One. Two. Three.\""),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runChunks,
	}
)

func init() {
	chunksCmd.Flags().StringVarP(&chunksText, "text", "t", "", "text to split instead of a file")
	chunksCmd.Flags().Int("max", 0, "maximum chunk size in characters")
	chunksCmd.Flags().Int("min", 0, "minimum chunk size in characters")
	chunksCmd.Flags().Bool("abbreviations", false, "do not split after common abbreviations")

	_ = viper.BindPFlag("stream.max_chunk_size", chunksCmd.Flags().Lookup("max"))
	_ = viper.BindPFlag("stream.min_chunk_size", chunksCmd.Flags().Lookup("min"))
	_ = viper.BindPFlag("stream.respect_abbreviations", chunksCmd.Flags().Lookup("abbreviations"))
}

func runChunks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	input, markdown, err := readInput(chunksText, args)
	if err != nil {
		return err
	}
	clean, err := prepareText(input, markdown, cfg)
	if err != nil {
		return err
	}

	chunks, err := stream.Split(clean, cfg.StreamConfig().SplitOptions())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := len(strconv.Itoa(len(chunks)))
	for i, c := range chunks {
		n := utf8.RuneCountInString(c)
		fmt.Fprintf(out, "%s %s %q\n",
			keyword(fmt.Sprintf("%*d", width, i+1)),
			faint(fmt.Sprintf("%4d", n)),
			c)
	}
	fmt.Fprintln(out, faint(fmt.Sprintf("%d chunks, max %d, min %d", len(chunks), cfg.Stream.MaxChunkSize, cfg.Stream.MinChunkSize)))
	return nil
}
