package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-listen/algorithms/filters"
	"github.com/RyanBlaney/sonido-listen/algorithms/resample"
	"github.com/RyanBlaney/sonido-listen/algorithms/spectral"
	"github.com/RyanBlaney/sonido-listen/algorithms/windowing"
	"github.com/RyanBlaney/sonido-listen/capture"
	"github.com/RyanBlaney/sonido-listen/pitch"
)

// EnvPrefix prefixes environment overrides, e.g. SONIDO_LISTEN_CAPTURE_TARGET_SAMPLE_RATE
const EnvPrefix = "SONIDO_LISTEN"

// Config represents the application configuration
type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Output   string         `mapstructure:"output" yaml:"output"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
}

// CaptureConfig contains capture session settings
type CaptureConfig struct {
	Source           string        `mapstructure:"source" yaml:"source"` // portaudio, wav or sine
	TargetSampleRate int           `mapstructure:"target_sample_rate" yaml:"target_sample_rate"`
	BufferFrames     int           `mapstructure:"buffer_frames" yaml:"buffer_frames"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	PaceDelay        time.Duration `mapstructure:"pace_delay" yaml:"pace_delay"`
	WAVPath          string        `mapstructure:"wav_path" yaml:"wav_path"`
	RealTime         bool          `mapstructure:"real_time" yaml:"real_time"`
	Loop             bool          `mapstructure:"loop" yaml:"loop"`
	SineFrequency    float64       `mapstructure:"sine_frequency" yaml:"sine_frequency"`
}

// AnalysisConfig contains pitch analysis settings
type AnalysisConfig struct {
	SampleSize   int     `mapstructure:"sample_size" yaml:"sample_size"`
	Peaks        int     `mapstructure:"peaks" yaml:"peaks"`
	Window       string  `mapstructure:"window" yaml:"window"`
	Backend      string  `mapstructure:"backend" yaml:"backend"`
	MinMagnitude float64 `mapstructure:"min_magnitude" yaml:"min_magnitude"`
	RemoveDC     bool    `mapstructure:"remove_dc" yaml:"remove_dc"`
	DCCutoff     float64 `mapstructure:"dc_cutoff" yaml:"dc_cutoff"`
	Refine       bool    `mapstructure:"refine" yaml:"refine"`
}

// Source names
const (
	SourcePortAudio = "portaudio"
	SourceWAV       = "wav"
	SourceSine      = "sine"
)

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("output", "text")

	v.SetDefault("capture.source", SourcePortAudio)
	v.SetDefault("capture.target_sample_rate", 2000)
	v.SetDefault("capture.buffer_frames", capture.DefaultBufferFrames)
	v.SetDefault("capture.read_timeout", 2*time.Second)
	v.SetDefault("capture.pace_delay", capture.DefaultPaceDelay)
	v.SetDefault("capture.wav_path", "")
	v.SetDefault("capture.real_time", true)
	v.SetDefault("capture.loop", false)
	v.SetDefault("capture.sine_frequency", 440.0)

	v.SetDefault("analysis.sample_size", 1024)
	v.SetDefault("analysis.peaks", 3)
	v.SetDefault("analysis.window", string(windowing.None))
	v.SetDefault("analysis.backend", string(spectral.BackendRecursive))
	v.SetDefault("analysis.min_magnitude", 0.0)
	v.SetDefault("analysis.remove_dc", false)
	v.SetDefault("analysis.dc_cutoff", filters.DefaultDCCutoff)
	v.SetDefault("analysis.refine", false)
}

// New returns a viper instance with defaults and environment overrides bound
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path (optional) plus environment and defaults
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration can drive a listener
func (c *Config) Validate() error {
	var errs []error

	switch c.Capture.Source {
	case SourcePortAudio, SourceSine:
	case SourceWAV:
		if c.Capture.WAVPath == "" {
			errs = append(errs, errors.New("capture.wav_path is required for the wav source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown capture.source %q", c.Capture.Source))
	}

	decimator, err := resample.NewDecimator(capture.HardwareSampleRate, c.Capture.TargetSampleRate)
	if err != nil {
		errs = append(errs, fmt.Errorf("capture.target_sample_rate: %w", err))
	} else if bins := decimator.OutputLength(c.Analysis.SampleSize); !spectral.IsPowerOfTwo(bins) {
		errs = append(errs, fmt.Errorf("analysis.sample_size %d resamples to %d bins, not a power of two",
			c.Analysis.SampleSize, bins))
	}

	if c.Capture.ReadTimeout < 0 || c.Capture.PaceDelay < 0 {
		errs = append(errs, errors.New("capture durations must not be negative"))
	}
	if c.Analysis.Peaks < 0 {
		errs = append(errs, fmt.Errorf("analysis.peaks must not be negative, got %d", c.Analysis.Peaks))
	}
	if c.Analysis.DCCutoff < 0 {
		errs = append(errs, fmt.Errorf("analysis.dc_cutoff must not be negative, got %g", c.Analysis.DCCutoff))
	}
	if _, err := windowing.ParseType(c.Analysis.Window); err != nil {
		errs = append(errs, err)
	}
	if _, err := spectral.ParseBackend(c.Analysis.Backend); err != nil {
		errs = append(errs, err)
	}
	switch c.Output {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output))
	}

	return errors.Join(errs...)
}

// ListenerConfig converts the analysis section for pitch.NewListener
func (c *Config) ListenerConfig() pitch.Config {
	window, _ := windowing.ParseType(c.Analysis.Window)
	backend, _ := spectral.ParseBackend(c.Analysis.Backend)

	return pitch.Config{
		SampleSize:   c.Analysis.SampleSize,
		Peaks:        c.Analysis.Peaks,
		Window:       window,
		Backend:      backend,
		MinMagnitude: c.Analysis.MinMagnitude,
		RemoveDC:     c.Analysis.RemoveDC,
		DCCutoff:     c.Analysis.DCCutoff,
		Refine:       c.Analysis.Refine,
	}
}

// SessionOptions converts the capture section into session options
func (c *Config) SessionOptions() []capture.Option {
	return []capture.Option{
		capture.WithBufferFrames(c.Capture.BufferFrames),
		capture.WithReadTimeout(c.Capture.ReadTimeout),
		capture.WithPaceDelay(c.Capture.PaceDelay),
	}
}
