package pitch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
	"github.com/RyanBlaney/sonido-listen/algorithms/filters"
	"github.com/RyanBlaney/sonido-listen/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-listen/algorithms/resample"
	"github.com/RyanBlaney/sonido-listen/algorithms/spectral"
	"github.com/RyanBlaney/sonido-listen/algorithms/windowing"
	"github.com/RyanBlaney/sonido-listen/capture"
	"github.com/RyanBlaney/sonido-listen/logging"
)

// Config holds the analysis parameters of a Listener
type Config struct {
	SampleSize   int              `json:"sample_size"`   // raw hardware samples per window
	Peaks        int              `json:"peaks"`         // frequencies reported per reading
	Window       windowing.Type   `json:"window"`        // analysis window, none by default
	Backend      spectral.Backend `json:"backend"`       // FFT implementation
	MinMagnitude float64          `json:"min_magnitude"` // readings below this are flagged silent
	RemoveDC     bool             `json:"remove_dc"`     // high-pass each window before the transform
	DCCutoff     float64          `json:"dc_cutoff"`     // corner of the DC blocker in Hz
	Refine       bool             `json:"refine"`        // report sub-bin frequencies by parabolic interpolation
}

// DefaultConfig returns a configuration for 2 kHz analysis of 1024-sample windows
func DefaultConfig() Config {
	return Config{
		SampleSize: 1024,
		Peaks:      3,
		Window:     windowing.None,
		Backend:    spectral.BackendRecursive,
	}
}

// Reading is the result of one analysis cycle
type Reading struct {
	Frequencies []int     `json:"frequencies"`       // dominant frequencies in Hz, strongest first
	Magnitudes  []float64 `json:"magnitudes"`        // magnitude of each reported bin
	Refined     []float64 `json:"refined,omitempty"` // interpolated frequencies in Hz, with Config.Refine
	Level       float64   `json:"level"`             // RMS of the resampled window
	Centroid    float64   `json:"centroid"`          // magnitude-weighted mean frequency in Hz
	Silent      bool      `json:"silent"`            // strongest magnitude below MinMagnitude
	SampleRate  int       `json:"sample_rate"`       // analysis rate after decimation
	Bins        int       `json:"bins"`              // transform length
	Timestamp   time.Time `json:"timestamp"`
}

// Source is the session a Listener reads from
type Source interface {
	resample.WindowSource
}

// Listener runs acquire → window → transform → peak extraction over a capture session
type Listener struct {
	config   Config
	source   Source
	acquirer *resample.Acquirer
	fft      *spectral.FFT
	window   *windowing.Window
	dc       *filters.DCBlocker
	bins     int
	logger   logging.Logger
}

// Option configures a Listener
type Option func(*Listener)

// WithLogger sets the listener logger
func WithLogger(logger logging.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListener creates a listener over an opened session. The resampled window
// length SampleSize*targetRate/hardwareRate must be a power of two.
func NewListener(source Source, config Config, opts ...Option) (*Listener, error) {
	if config.SampleSize <= 0 {
		return nil, fmt.Errorf("pitch: sample size must be positive, got %d", config.SampleSize)
	}
	if config.Peaks < 0 {
		return nil, fmt.Errorf("%w: peak count %d", harmonic.ErrInvalidArgument, config.Peaks)
	}

	if source.TargetRate() == 0 {
		return nil, fmt.Errorf("pitch: %w", capture.ErrNotOpen)
	}

	decimator, err := resample.NewDecimator(source.HardwareRate(), source.TargetRate())
	if err != nil {
		return nil, err
	}

	bins := decimator.OutputLength(config.SampleSize)
	if !spectral.IsPowerOfTwo(bins) {
		return nil, fmt.Errorf("%w: %d samples at %d/%d Hz resample to %d",
			spectral.ErrInvalidLength, config.SampleSize, source.TargetRate(), source.HardwareRate(), bins)
	}

	window, err := windowing.New(config.Window, bins)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		config: config,
		source: source,
		fft:    spectral.NewFFTWithBackend(config.Backend),
		window: window,
		bins:   bins,
		logger: logging.GetGlobalLogger(),
	}
	if config.RemoveDC {
		l.dc = filters.NewDCBlocker(source.TargetRate(), config.DCCutoff)
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithFields(logging.Fields{"component": "pitch_listener"})
	l.acquirer = resample.NewAcquirer(source).WithLogger(l.logger)

	if l.dc != nil {
		l.logger.Debug("DC blocker enabled", logging.Fields{
			"cutoff_hz": l.dc.Cutoff(),
			"pole":      l.dc.Pole(),
		})
	}

	return l, nil
}

// Bins returns the transform length of each analysis window
func (l *Listener) Bins() int {
	return l.bins
}

// Detect performs one analysis cycle. It blocks while the window is captured.
func (l *Listener) Detect(ctx context.Context) (*Reading, error) {
	seq, err := l.acquirer.AcquireWindow(ctx, l.config.SampleSize)
	if err != nil {
		return nil, err
	}

	return l.Analyze(seq)
}

// Analyze runs the spectral stages on an already resampled window
func (l *Listener) Analyze(seq []common.Complex) (*Reading, error) {
	level := common.RMS(common.RealParts(seq))
	if l.dc != nil {
		seq = l.dc.Apply(seq)
	}

	windowed, err := l.window.Apply(seq)
	if err != nil {
		return nil, err
	}

	spectrum, err := l.fft.Compute(windowed)
	if err != nil {
		return nil, err
	}

	rate := l.source.TargetRate()
	extractor := harmonic.NewPeakExtractor(rate)
	peaks, err := extractor.ExtractSpectralPeaks(spectrum, l.config.Peaks)
	if err != nil {
		return nil, err
	}
	magnitudes := spectral.MagnitudeSpectrum(spectrum)

	reading := &Reading{
		Frequencies: make([]int, len(peaks)),
		Magnitudes:  make([]float64, len(peaks)),
		Level:       level,
		Centroid:    spectral.Centroid(magnitudes, rate, len(spectrum)),
		SampleRate:  rate,
		Bins:        len(spectrum),
		Timestamp:   time.Now(),
	}
	for i, p := range peaks {
		reading.Frequencies[i] = spectral.BinFrequency(p.BinIndex, rate, len(spectrum))
		reading.Magnitudes[i] = p.Magnitude
	}
	reading.Silent = common.Max(reading.Magnitudes) < l.config.MinMagnitude

	if l.config.Refine {
		refined := extractor.RefineWithInterpolation(magnitudes, peaks, len(spectrum))
		reading.Refined = make([]float64, len(refined))
		for i, p := range refined {
			reading.Refined[i] = p.Frequency
		}
	}

	return reading, nil
}

// Handler receives each successful reading from Run
type Handler func(*Reading)

// Run calls Detect in a loop and hands readings to handler. A failed cycle is
// logged and skipped; Run returns when ctx is done or the session can no
// longer produce windows.
func (l *Listener) Run(ctx context.Context, handler Handler) error {
	logger := l.logger.WithContext(ctx).WithFields(logging.Fields{"function": "Run"})
	logger.Info("Listening", logging.Fields{
		"sample_size": l.config.SampleSize,
		"bins":        l.bins,
		"peaks":       l.config.Peaks,
		"backend":     string(l.fft.Backend()),
	})

	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		reading, err := l.Detect(ctx)
		if err != nil {
			if terminal(ctx, err) {
				logger.Info("Listener stopped", logging.Fields{"skipped": skipped, "reason": err.Error()})
				return err
			}
			skipped++
			logger.Warn("Skipping analysis cycle", logging.Fields{"error": err.Error(), "skipped": skipped})
			continue
		}

		handler(reading)
	}
}

// terminal reports whether err means no later cycle can succeed
func terminal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, capture.ErrClosed) ||
		errors.Is(err, capture.ErrNotOpen) ||
		errors.Is(err, capture.ErrPermissionDenied) ||
		errors.Is(err, capture.ErrDevice)
}
