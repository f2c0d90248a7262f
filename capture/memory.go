package capture

import (
	"math"
	"sync"
)

// MemoryDevice is a Device fed programmatically. It backs tests and
// simulated sources: samples passed to Feed are delivered to the open stream
// in order.
type MemoryDevice struct {
	mu        sync.Mutex
	pending   []int16
	notify    chan struct{}
	minFrames int
	openErr   error
	opens     int
	lastCfg   StreamConfig
	stream    *memoryStream
}

// MemoryOption configures a MemoryDevice
type MemoryOption func(*MemoryDevice)

// WithMinBufferFrames sets the minimum buffer the device reports
func WithMinBufferFrames(frames int) MemoryOption {
	return func(d *MemoryDevice) { d.minFrames = frames }
}

// WithOpenError makes Open fail, e.g. with ErrPermissionDenied
func WithOpenError(err error) MemoryOption {
	return func(d *MemoryDevice) { d.openErr = err }
}

// NewMemoryDevice creates an empty in-memory device
func NewMemoryDevice(opts ...MemoryOption) *MemoryDevice {
	d := &MemoryDevice{
		notify:    make(chan struct{}),
		minFrames: 256,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed queues samples for delivery
func (d *MemoryDevice) Feed(samples ...int16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, samples...)
	close(d.notify)
	d.notify = make(chan struct{})
}

func (d *MemoryDevice) MinBufferFrames(cfg StreamConfig) (int, error) {
	return d.minFrames, nil
}

func (d *MemoryDevice) Open(cfg StreamConfig) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.lastCfg = cfg
	d.stream = &memoryStream{device: d, stopped: make(chan struct{})}
	return d.stream, nil
}

// Opens returns how many times Open succeeded
func (d *MemoryDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// LastConfig returns the configuration of the most recent successful Open
func (d *MemoryDevice) LastConfig() StreamConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCfg
}

// Stopped reports whether the most recently opened stream has been stopped
func (d *MemoryDevice) Stopped() bool {
	d.mu.Lock()
	stream := d.stream
	d.mu.Unlock()

	if stream == nil {
		return false
	}
	select {
	case <-stream.stopped:
		return true
	default:
		return false
	}
}

type memoryStream struct {
	device   *MemoryDevice
	stopped  chan struct{}
	stopOnce sync.Once
}

func (s *memoryStream) Start() error {
	return nil
}

func (s *memoryStream) Read(buf []int16) (int, error) {
	d := s.device
	for {
		d.mu.Lock()
		if len(d.pending) > 0 {
			n := copy(buf, d.pending)
			d.pending = d.pending[n:]
			d.mu.Unlock()
			return n, nil
		}
		wait := d.notify
		d.mu.Unlock()

		select {
		case <-wait:
		case <-s.stopped:
			return 0, ErrStreamStopped
		}
	}
}

func (s *memoryStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}

// SineWave synthesizes n samples of a sine at freqHz sampled at sampleRate,
// scaled to amplitude and clipped to the int16 range
func SineWave(freqHz, amplitude float64, sampleRate, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		v := amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate))
		out[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
	}
	return out
}
