package capture

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"
)

// ToneDevice synthesizes a continuous sine. It stands in for a microphone
// when no input hardware is present.
type ToneDevice struct {
	frequency float64
	amplitude float64
	realTime  bool
}

// NewToneDevice creates a device producing frequency Hz at amplitude. With
// realTime set, reads are paced to the stream's sample rate. Without it the
// stream never blocks: a session over it keeps overwriting its ring with the
// newest samples, so it suits tests and offline runs rather than live pacing.
func NewToneDevice(frequency, amplitude float64, realTime bool) *ToneDevice {
	return &ToneDevice{frequency: frequency, amplitude: amplitude, realTime: realTime}
}

func (d *ToneDevice) MinBufferFrames(cfg StreamConfig) (int, error) {
	return 256, nil
}

func (d *ToneDevice) Open(cfg StreamConfig) (Stream, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, cfg.SampleRate)
	}
	if d.frequency < 0 || d.frequency > float64(cfg.SampleRate)/2 {
		return nil, fmt.Errorf("%w: tone %.1f Hz above Nyquist for %d Hz", ErrUnsupportedFormat, d.frequency, cfg.SampleRate)
	}

	return &toneStream{
		step:      2 * math.Pi * d.frequency / float64(cfg.SampleRate),
		amplitude: d.amplitude,
		rate:      cfg.SampleRate,
		chunk:     max(cfg.BufferFrames, 1),
		realTime:  d.realTime,
		stopped:   make(chan struct{}),
	}, nil
}

type toneStream struct {
	mu        sync.Mutex
	phase     float64
	step      float64
	amplitude float64
	rate      int
	chunk     int
	realTime  bool
	stopped   chan struct{}
	stopOnce  sync.Once
}

func (s *toneStream) Start() error {
	return nil
}

func (s *toneStream) Read(buf []int16) (int, error) {
	select {
	case <-s.stopped:
		return 0, ErrStreamStopped
	default:
	}

	n := min(len(buf), s.chunk)

	if s.realTime {
		timer := time.NewTimer(time.Duration(n) * time.Second / time.Duration(s.rate))
		select {
		case <-timer.C:
		case <-s.stopped:
			timer.Stop()
			return 0, ErrStreamStopped
		}
	} else {
		// let the reader in between chunks
		runtime.Gosched()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range n {
		v := s.amplitude * math.Sin(s.phase)
		buf[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
		s.phase = math.Mod(s.phase+s.step, 2*math.Pi)
	}
	return n, nil
}

func (s *toneStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}
