package resample

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
	"github.com/RyanBlaney/sonido-listen/logging"
)

// WindowSource delivers blocks of raw hardware-rate samples.
// capture.Session is the production implementation.
type WindowSource interface {
	// ReadWindow blocks until exactly n raw samples are available
	ReadWindow(ctx context.Context, n int) ([]int16, error)
	HardwareRate() int
	TargetRate() int
}

// Acquirer reads one raw window from a source and decimates it to the
// source's target rate
type Acquirer struct {
	source WindowSource
	logger logging.Logger
}

// NewAcquirer creates an acquirer over source
func NewAcquirer(source WindowSource) *Acquirer {
	return &Acquirer{
		source: source,
		logger: logging.WithFields(logging.Fields{
			"component": "window_acquirer",
		}),
	}
}

// WithLogger replaces the acquirer's logger
func (a *Acquirer) WithLogger(logger logging.Logger) *Acquirer {
	if logger != nil {
		a.logger = logger.WithFields(logging.Fields{"component": "window_acquirer"})
	}
	return a
}

// AcquireWindow reads sampleCount raw samples and returns the resampled window.
// This is the only blocking step of the analysis pipeline.
func (a *Acquirer) AcquireWindow(ctx context.Context, sampleCount int) ([]common.Complex, error) {
	if sampleCount <= 0 {
		return nil, fmt.Errorf("resample: sample count must be positive, got %d", sampleCount)
	}

	raw, err := a.source.ReadWindow(ctx, sampleCount)
	if err != nil {
		return nil, err
	}

	decimator, err := NewDecimator(a.source.HardwareRate(), a.source.TargetRate())
	if err != nil {
		return nil, err
	}

	window, err := decimator.Decimate(raw, sampleCount)
	if err != nil {
		a.logger.Error(err, "Decimation failed", logging.Fields{
			"sample_count": sampleCount,
			"captured":     len(raw),
			"step":         decimator.Step(),
		})
		return nil, err
	}

	a.logger.Debug("Window acquired", logging.Fields{
		"sample_count":    sampleCount,
		"resampled_count": len(window),
		"step":            decimator.Step(),
	})

	return window, nil
}
