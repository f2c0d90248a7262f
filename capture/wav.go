package capture

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// WAVDevice replays a WAV file as if it were a microphone. The file must be
// recorded at the requested hardware rate; multi-channel files are reduced to
// their first channel.
type WAVDevice struct {
	path     string
	realTime bool
	loop     bool
}

// WAVOption configures a WAVDevice
type WAVOption func(*WAVDevice)

// WithRealTime paces delivery at the file's sample rate. Without it the file is
// delivered as fast as the session can copy it, and a looping file keeps
// overwriting the session ring, which suits tests and offline analysis.
func WithRealTime(enabled bool) WAVOption {
	return func(d *WAVDevice) { d.realTime = enabled }
}

// WithLoop restarts playback at the end of the file instead of returning io.EOF
func WithLoop(enabled bool) WAVOption {
	return func(d *WAVDevice) { d.loop = enabled }
}

// NewWAVDevice creates a device replaying path
func NewWAVDevice(path string, opts ...WAVOption) *WAVDevice {
	d := &WAVDevice{path: path}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *WAVDevice) MinBufferFrames(cfg StreamConfig) (int, error) {
	return 256, nil
}

func (d *WAVDevice) Open(cfg StreamConfig) (Stream, error) {
	samples, err := LoadWAV(d.path, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s holds no samples", ErrUnsupportedFormat, d.path)
	}

	chunk := max(cfg.BufferFrames, 1)
	return &wavStream{
		samples:  samples,
		chunk:    chunk,
		interval: time.Duration(chunk) * time.Second / time.Duration(cfg.SampleRate),
		realTime: d.realTime,
		loop:     d.loop,
		stopped:  make(chan struct{}),
	}, nil
}

// LoadWAV decodes path into mono 16-bit samples. sampleRate, when positive,
// must match the file's rate.
func LoadWAV(path string, sampleRate int) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid wav file", ErrUnsupportedFormat, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav file: %w", err)
	}

	if sampleRate > 0 && int(dec.SampleRate) != sampleRate {
		return nil, fmt.Errorf("%w: %s is %d Hz, need %d Hz",
			ErrUnsupportedFormat, path, dec.SampleRate, sampleRate)
	}

	channels := max(int(dec.NumChans), 1)
	bitDepth := int(dec.BitDepth)

	samples := make([]int16, len(buf.Data)/channels)
	for i := range samples {
		samples[i] = toPCM16(buf.Data[i*channels], bitDepth)
	}
	return samples, nil
}

// toPCM16 rescales a decoded integer sample to signed 16 bits
func toPCM16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		// 8-bit wav is unsigned
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}

type wavStream struct {
	mu       sync.Mutex
	samples  []int16
	pos      int
	chunk    int
	interval time.Duration
	realTime bool
	loop     bool
	stopped  chan struct{}
	stopOnce sync.Once
}

func (s *wavStream) Start() error {
	return nil
}

func (s *wavStream) Read(buf []int16) (int, error) {
	select {
	case <-s.stopped:
		return 0, ErrStreamStopped
	default:
	}

	if s.realTime {
		timer := time.NewTimer(s.interval)
		select {
		case <-timer.C:
		case <-s.stopped:
			timer.Stop()
			return 0, ErrStreamStopped
		}
	} else {
		runtime.Gosched()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.samples) {
		if !s.loop {
			return 0, io.EOF
		}
		s.pos = 0
	}

	n := copy(buf[:min(len(buf), s.chunk)], s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *wavStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}
