// Package main provides the entry point for the ttsmem CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/dgnsrekt/ttsmem/internal/text"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	logFile    string
	envCfg     config.Env
	closeLog   = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "ttsmem",
		Short: "Stream text to speech with pooled buffers and cached voices",
		Long: paragraph(
			fmt.Sprintf("\nStream text to speech with %s and %s.", keyword("pooled buffers"), keyword("cached voices")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return prepare()
		},
	}
)

// prepare runs after flag parsing: it sets up logging and reads an
// explicitly passed config file.
func prepare() error {
	path := logFile
	if path == "" {
		path = envCfg.LogFile
	}
	closer, err := setupLog(path, envCfg.LogLevel, debug)
	if err != nil {
		return err
	}
	closeLog = closer

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); errors.Is(err, fs.ErrNotExist) {
			log.Warn("Configuration file does not exist", "path", configFile)
		} else if err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		} else {
			log.Debug("Using configuration file", "path", configFile)
		}
	}
	return nil
}

// loadConfig resolves the effective configuration from defaults, the
// config file, TTSMEM_* variables and flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(envCfg)
	return cfg, cfg.Validate()
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput returns the text to work on: the literal value when set,
// otherwise the file named by args or stdin. Markdown files are detected
// by extension.
func readInput(literal string, args []string) (string, bool, error) {
	if literal != "" {
		return literal, false, nil
	}

	arg := "-"
	if len(args) > 0 {
		arg = args[0]
	}
	if arg == "-" {
		if yes, err := stdinIsPipe(); err != nil {
			return "", false, err
		} else if !yes {
			return "", false, errors.New("missing input: pass a file, pipe text to stdin or use --text")
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), false, nil
	}

	b, err := os.ReadFile(arg)
	if err != nil {
		return "", false, fmt.Errorf("unable to open file: %w", err)
	}
	return string(b), isMarkdownFile(arg), nil
}

func isMarkdownFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdown", ".mkdn", ".mkd", ".markdown":
		return true
	}
	return false
}

// prepareText converts markdown and sanitizes input the way the speech
// manager does.
func prepareText(in string, markdown bool, cfg config.Config) (string, error) {
	if markdown || cfg.Text.Markdown {
		in = text.FromMarkdown(in)
	}
	return text.Sanitize(in, cfg.Text.MaxLength)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = closeLog()
		os.Exit(1)
	}
	_ = closeLog()
}

func init() {
	var err error
	if envCfg, err = config.ParseEnv(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultConfigFile()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringP("engine", "e", "", "synthesis engine (piper or mock)")
	rootCmd.PersistentFlags().StringP("model", "m", "", "voice model, a piper .onnx file")
	rootCmd.PersistentFlags().String("voice-config", "", "voice config, defaults to <model>.json")

	// Config bindings
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("voice.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("voice.config", rootCmd.PersistentFlags().Lookup("voice-config"))

	rootCmd.AddCommand(speakCmd, chunksCmd, voicesCmd, configCmd, manCmd)
}

func configDirs() []string {
	scope := gap.NewScope(gap.User, "ttsmem")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ttsmem")}, dirs...)
	}

	if c := envCfg.ConfigHome; c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs
}

func defaultConfigFile() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(configDirs()[0], "ttsmem.yml")
}

func tryLoadConfigFromDefaultPlaces() {
	for _, v := range configDirs() {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("ttsmem")
	viper.SetConfigType("yaml")
	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
	}
}
