package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable viper reads.
const EnvPrefix = "ttsmem"

// Env holds process settings that only come from the environment.
type Env struct {
	ConfigHome  string `env:"TTSMEM_CONFIG_HOME"`
	PiperBinary string `env:"TTSMEM_PIPER_BINARY"`
	LogLevel    string `env:"TTSMEM_LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"TTSMEM_LOG_FILE"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// SetDefaults registers every default with v so that environment
// variables resolve even for keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("engine", d.Engine)
	v.SetDefault("voice.model", d.Voice.Model)
	v.SetDefault("voice.config", d.Voice.Config)
	v.SetDefault("voice.speed", d.Voice.Speed)

	v.SetDefault("pool.max_buffers", d.Pool.MaxBuffers)

	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.max_memory", d.Cache.MaxMemory.String())
	v.SetDefault("cache.idle_timeout", d.Cache.IdleTimeout)
	v.SetDefault("cache.janitor_interval", d.Cache.JanitorInterval)

	v.SetDefault("stream.max_chunk_size", d.Stream.MaxChunkSize)
	v.SetDefault("stream.min_chunk_size", d.Stream.MinChunkSize)
	v.SetDefault("stream.split_on_sentences", d.Stream.SplitOnSentences)
	v.SetDefault("stream.split_on_paragraphs", d.Stream.SplitOnParagraphs)
	v.SetDefault("stream.allow_cancellation", d.Stream.AllowCancellation)
	v.SetDefault("stream.respect_abbreviations", d.Stream.RespectAbbreviations)

	v.SetDefault("text.max_length", d.Text.MaxLength)
	v.SetDefault("text.markdown", d.Text.Markdown)

	v.SetDefault("piper.binary", d.Piper.Binary)
	v.SetDefault("piper.speaker_id", d.Piper.SpeakerID)
	v.SetDefault("piper.length_scale", d.Piper.LengthScale)
	v.SetDefault("piper.noise_scale", d.Piper.NoiseScale)
	v.SetDefault("piper.noise_w", d.Piper.NoiseW)
	v.SetDefault("piper.sentence_silence", d.Piper.SentenceSilence)
	v.SetDefault("piper.timeout", d.Piper.Timeout)
}

// BindEnv makes v resolve TTSMEM_SECTION_KEY for section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load builds a validated Config from v. Keys v does not know keep their
// defaults.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("engine") {
		cfg.Engine = strings.ToLower(v.GetString("engine"))
	}

	// Voice
	if v.IsSet("voice.model") {
		cfg.Voice.Model = v.GetString("voice.model")
	}
	if v.IsSet("voice.config") {
		cfg.Voice.Config = v.GetString("voice.config")
	}
	if v.IsSet("voice.speed") {
		cfg.Voice.Speed = v.GetFloat64("voice.speed")
	}

	// Pool
	if v.IsSet("pool.max_buffers") {
		cfg.Pool.MaxBuffers = v.GetInt("pool.max_buffers")
	}

	// Cache
	if v.IsSet("cache.max_entries") {
		cfg.Cache.MaxEntries = v.GetInt("cache.max_entries")
	}
	if v.IsSet("cache.max_memory") {
		size, err := ParseByteSize(v.GetString("cache.max_memory"))
		if err != nil {
			return cfg, err
		}
		cfg.Cache.MaxMemory = size
	}
	if v.IsSet("cache.idle_timeout") {
		cfg.Cache.IdleTimeout = v.GetDuration("cache.idle_timeout")
	}
	if v.IsSet("cache.janitor_interval") {
		cfg.Cache.JanitorInterval = v.GetDuration("cache.janitor_interval")
	}

	// Stream
	if v.IsSet("stream.max_chunk_size") {
		cfg.Stream.MaxChunkSize = v.GetInt("stream.max_chunk_size")
	}
	if v.IsSet("stream.min_chunk_size") {
		cfg.Stream.MinChunkSize = v.GetInt("stream.min_chunk_size")
	}
	if v.IsSet("stream.split_on_sentences") {
		cfg.Stream.SplitOnSentences = v.GetBool("stream.split_on_sentences")
	}
	if v.IsSet("stream.split_on_paragraphs") {
		cfg.Stream.SplitOnParagraphs = v.GetBool("stream.split_on_paragraphs")
	}
	if v.IsSet("stream.allow_cancellation") {
		cfg.Stream.AllowCancellation = v.GetBool("stream.allow_cancellation")
	}
	if v.IsSet("stream.respect_abbreviations") {
		cfg.Stream.RespectAbbreviations = v.GetBool("stream.respect_abbreviations")
	}

	// Text
	if v.IsSet("text.max_length") {
		cfg.Text.MaxLength = v.GetInt("text.max_length")
	}
	if v.IsSet("text.markdown") {
		cfg.Text.Markdown = v.GetBool("text.markdown")
	}

	// Piper
	if v.IsSet("piper.binary") {
		cfg.Piper.Binary = v.GetString("piper.binary")
	}
	if v.IsSet("piper.speaker_id") {
		cfg.Piper.SpeakerID = v.GetInt("piper.speaker_id")
	}
	if v.IsSet("piper.length_scale") {
		cfg.Piper.LengthScale = v.GetFloat64("piper.length_scale")
	}
	if v.IsSet("piper.noise_scale") {
		cfg.Piper.NoiseScale = v.GetFloat64("piper.noise_scale")
	}
	if v.IsSet("piper.noise_w") {
		cfg.Piper.NoiseW = v.GetFloat64("piper.noise_w")
	}
	if v.IsSet("piper.sentence_silence") {
		cfg.Piper.SentenceSilence = v.GetDuration("piper.sentence_silence")
	}
	if v.IsSet("piper.timeout") {
		cfg.Piper.Timeout = v.GetDuration("piper.timeout")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile reads a single YAML file with environment overrides applied.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	return Load(v)
}

// ApplyEnv overlays process-only environment settings.
func (c *Config) ApplyEnv(e Env) {
	if e.PiperBinary != "" {
		c.Piper.Binary = e.PiperBinary
	}
}
