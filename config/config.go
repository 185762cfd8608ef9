// Package config loads the daemon configuration. The file is yaml; every
// key has a default so an empty file yields a playable setup with one null
// output.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
)

// Duration wraps time.Duration with yaml decoding of the "500ms" / "2s"
// notation; bare numbers are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.v2 decoding.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		// yaml.v2 hands bare numbers over as their text
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			*d = Duration(secs * float64(time.Second))
			return nil
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: bad duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := unmarshal(&secs); err != nil {
		return err
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MixRampAbort selects what happens when the mixramp window collapses to
// zero samples: skip the fade or cut over abruptly.
type MixRampAbort string

const (
	// MixRampAbortSkip performs a plain gapless transition.
	MixRampAbortSkip MixRampAbort = "skip"
	// MixRampAbortCut drops the outgoing song's final chunk at the border.
	MixRampAbortCut MixRampAbort = "cut"
)

// ReplayGain is the replay_gain block.
type ReplayGain struct {
	Mode          string  `yaml:"mode"`
	Preamp        float64 `yaml:"preamp"`
	MissingPreamp float64 `yaml:"missing_preamp"`
	Limit         *bool   `yaml:"limit"`
}

// Output is one audio_outputs entry.
type Output struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	MixerType  string   `yaml:"mixer_type"`
	Device     string   `yaml:"device"`
	BufferTime Duration `yaml:"buffer_time"`
	PeriodTime Duration `yaml:"period_time"`
	DoP        bool     `yaml:"dop"`
	AlwaysOn   bool     `yaml:"always_on"`
	Tags       *bool    `yaml:"tags"`
	// Format pins the device format, overriding negotiation.
	Format string `yaml:"format"`
	// Path is the destination of writer and recorder outputs.
	Path string `yaml:"path"`
	// BitRate is the encoder bit rate of recorder outputs, kbit/s.
	BitRate int `yaml:"bit_rate"`
}

// SendTags reports whether the output forwards tags; default true.
func (o Output) SendTags() bool {
	return o.Tags == nil || *o.Tags
}

// Config is the daemon configuration.
type Config struct {
	// AudioBufferSize is the chunk pool size in MiB.
	AudioBufferSize int `yaml:"audio_buffer_size"`
	// BufferedBeforePlay is the number of chunks prebuffered before the
	// outputs unpause.
	BufferedBeforePlay int `yaml:"buffered_before_play"`
	// AudioOutputFormat overrides the negotiated device format,
	// "rate:bits:channels".
	AudioOutputFormat string `yaml:"audio_output_format"`

	ReplayGain ReplayGain `yaml:"replay_gain"`

	CrossFadeSeconds    float64      `yaml:"crossfade_seconds"`
	MixRampDb           float64      `yaml:"mixramp_db"`
	MixRampDelaySeconds float64      `yaml:"mixramp_delay_seconds"`
	MixRampAbort        MixRampAbort `yaml:"mixramp_abort"`

	Outputs []Output `yaml:"audio_outputs"`
}

// Default returns the built-in configuration: 4 MiB pool, 32 prebuffered
// chunks, one null output.
func Default() Config {
	return Config{
		AudioBufferSize:    4,
		BufferedBeforePlay: 32,
		ReplayGain:         ReplayGain{Mode: "off"},
		MixRampAbort:       MixRampAbortSkip,
		Outputs: []Output{
			{Name: "default", Type: "null", MixerType: "none"},
		},
	}
}

// Load reads and validates a yaml configuration file. Keys missing from
// the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes yaml configuration bytes over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	cfg.Outputs = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if len(cfg.Outputs) == 0 {
		cfg.Outputs = Default().Outputs
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field consistency.
func (c *Config) Validate() error {
	if c.AudioBufferSize < 1 {
		return fmt.Errorf("config: audio_buffer_size must be at least 1 MiB")
	}
	if c.BufferedBeforePlay < 0 {
		return fmt.Errorf("config: buffered_before_play must not be negative")
	}
	if c.BufferedBeforePlay >= c.PoolChunks() {
		return fmt.Errorf("config: buffered_before_play (%d) exceeds the chunk pool (%d)",
			c.BufferedBeforePlay, c.PoolChunks())
	}
	if c.AudioOutputFormat != "" {
		if _, err := phonod.ParseAudioFormat(c.AudioOutputFormat); err != nil {
			return err
		}
	}
	if _, err := phonod.ParseReplayGainMode(c.ReplayGain.Mode); err != nil {
		return err
	}
	if c.CrossFadeSeconds < 0 {
		return fmt.Errorf("config: crossfade_seconds must not be negative")
	}
	switch c.MixRampAbort {
	case "", MixRampAbortSkip, MixRampAbortCut:
	default:
		return fmt.Errorf("config: mixramp_abort must be skip or cut")
	}
	names := map[string]bool{}
	for _, o := range c.Outputs {
		if o.Name == "" {
			return fmt.Errorf("config: output without a name")
		}
		if names[o.Name] {
			return fmt.Errorf("config: duplicate output name %q", o.Name)
		}
		names[o.Name] = true
	}
	return nil
}

// PoolChunks converts audio_buffer_size to a chunk count.
func (c *Config) PoolChunks() int {
	return c.AudioBufferSize * 1024 * 1024 / buffer.ChunkSize
}

// OutputFormat returns the parsed audio_output_format override, undefined
// when not configured.
func (c *Config) OutputFormat() phonod.AudioFormat {
	if c.AudioOutputFormat == "" {
		return phonod.AudioFormat{}
	}
	af, _ := phonod.ParseAudioFormat(c.AudioOutputFormat)
	return af
}

// ReplayGainConfig converts the replay_gain block to the runtime policy.
func (c *Config) ReplayGainConfig() phonod.ReplayGainConfig {
	mode, _ := phonod.ParseReplayGainMode(c.ReplayGain.Mode)
	limit := true
	if c.ReplayGain.Limit != nil {
		limit = *c.ReplayGain.Limit
	}
	return phonod.ReplayGainConfig{
		Mode:          mode,
		Preamp:        c.ReplayGain.Preamp,
		MissingPreamp: c.ReplayGain.MissingPreamp,
		Limit:         limit,
	}
}

// CrossFade returns the configured cross-fade duration.
func (c *Config) CrossFade() time.Duration {
	return time.Duration(c.CrossFadeSeconds * float64(time.Second))
}

// MixRampDelay returns the configured mixramp delay.
func (c *Config) MixRampDelay() time.Duration {
	return time.Duration(c.MixRampDelaySeconds * float64(time.Second))
}
