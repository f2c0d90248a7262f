package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
	"github.com/RyanBlaney/sonido-listen/logging"
)

const (
	DefaultPaceDelay    = 10 * time.Millisecond
	DefaultBufferFrames = 4096
	DefaultStopGrace    = time.Second

	// MaxWindowFrames bounds ReadWindow and the ring: 30 seconds at the hardware rate
	MaxWindowFrames = 30 * HardwareSampleRate
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateOpen
	stateInert
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpen:
		return "open"
	case stateInert:
		return "inert"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadTimeout bounds how long ReadWindow waits for samples. Zero waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Session) { s.readTimeout = d }
}

// WithPaceDelay sets the pause after each read that keeps a consumer loop
// from spinning. Zero disables it.
func WithPaceDelay(d time.Duration) Option {
	return func(s *Session) { s.paceDelay = d }
}

// WithBufferFrames sets the requested buffering in frames. The device minimum
// still wins when it is larger.
func WithBufferFrames(frames int) Option {
	return func(s *Session) { s.bufferFrames = frames }
}

// WithStopGrace bounds how long Close waits for the capture goroutine to exit
func WithStopGrace(d time.Duration) Option {
	return func(s *Session) { s.stopGrace = d }
}

// Stats reports capture counters
type Stats struct {
	Captured uint64 `json:"captured"` // samples delivered by the device
	Dropped  uint64 `json:"dropped"`  // samples overwritten before they were read
	Buffered int    `json:"buffered"` // samples currently waiting in the ring
}

// Session owns one capture device. Once open, a background goroutine copies
// device samples into a ring buffer; ReadWindow consumes them.
//
// A session whose Open fails stays inert: reads return ErrNotOpen.
// Only one ReadWindow may be in flight at a time.
type Session struct {
	device Device
	gate   PermissionGate
	logger logging.Logger

	readTimeout  time.Duration
	paceDelay    time.Duration
	bufferFrames int
	stopGrace    time.Duration

	mu         sync.Mutex
	state      sessionState
	targetRate int
	stream     Stream
	ring       *common.SampleRing
	notify     chan struct{} // closed and replaced whenever the ring or state changes
	closed     chan struct{}
	pumpDone   chan struct{}
	pumpErr    error
	captured   uint64
	dropped    uint64

	reading atomic.Bool
}

// NewSession creates an unopened session for device. A nil gate is treated as
// AlwaysAuthorized.
func NewSession(device Device, gate PermissionGate, opts ...Option) *Session {
	if gate == nil {
		gate = AlwaysAuthorized
	}

	s := &Session{
		device:       device,
		gate:         gate,
		logger:       logging.GetGlobalLogger(),
		paceDelay:    DefaultPaceDelay,
		bufferFrames: DefaultBufferFrames,
		stopGrace:    DefaultStopGrace,
		notify:       make(chan struct{}),
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.Fields{"component": "capture_session"})

	return s
}

// Open acquires the device at HardwareSampleRate and starts background capture.
// targetSampleRate is the rate windows will later be decimated to.
//
// If the permission gate refuses, Open returns ErrPermissionDenied and the
// session stays inert.
func (s *Session) Open(targetSampleRate int) error {
	logger := s.logger.WithFields(logging.Fields{
		"function":    "Open",
		"target_rate": targetSampleRate,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateOpen:
		return opError("open", ErrAlreadyOpen)
	case stateClosed:
		return opError("open", ErrClosed)
	}

	if targetSampleRate <= 0 || targetSampleRate > HardwareSampleRate {
		return opError("open", fmt.Errorf("%w: target sample rate %d outside (0, %d]",
			ErrInvalidArgument, targetSampleRate, HardwareSampleRate))
	}

	if s.bufferFrames > MaxWindowFrames {
		return opError("open", fmt.Errorf("%w: buffer of %d frames exceeds %d",
			ErrInvalidArgument, s.bufferFrames, MaxWindowFrames))
	}

	if s.device == nil {
		s.state = stateInert
		return opError("open", fmt.Errorf("%w: no device", ErrDevice))
	}

	if !s.gate.MicrophoneAuthorized() {
		s.state = stateInert
		logger.Warn("Microphone permission not granted, session is inert")
		return opError("open", ErrPermissionDenied)
	}

	cfg := StreamConfig{
		SampleRate: HardwareSampleRate,
		Channels:   ChannelMono,
		Format:     FormatPCM16,
	}

	minFrames, err := s.device.MinBufferFrames(cfg)
	if err != nil {
		s.state = stateInert
		logger.Error(err, "Failed to query minimum buffer size")
		return opError("open", fmt.Errorf("%w: %w", ErrDevice, err))
	}
	cfg.BufferFrames = min(max(minFrames, s.bufferFrames, 1), MaxWindowFrames)

	stream, err := s.device.Open(cfg)
	if err != nil {
		s.state = stateInert
		if errors.Is(err, ErrPermissionDenied) {
			logger.Warn("Device refused microphone access, session is inert")
			return opError("open", err)
		}
		logger.Error(err, "Failed to open capture device")
		return opError("open", fmt.Errorf("%w: %w", ErrDevice, err))
	}

	if err := stream.Start(); err != nil {
		s.state = stateInert
		_ = stream.Stop()
		logger.Error(err, "Failed to start capture")
		return opError("open", fmt.Errorf("%w: %w", ErrDevice, err))
	}

	s.state = stateOpen
	s.targetRate = targetSampleRate
	s.stream = stream
	s.ring = common.NewSampleRing(cfg.BufferFrames)
	s.pumpDone = make(chan struct{})

	go s.pump(stream, cfg.BufferFrames, s.pumpDone)

	logger.Info("Capture session opened", logging.Fields{
		"hardware_rate": HardwareSampleRate,
		"buffer_frames": cfg.BufferFrames,
		"min_frames":    minFrames,
	})

	return nil
}

// pump copies device samples into the ring until the stream fails or stops
func (s *Session) pump(stream Stream, chunk int, done chan struct{}) {
	defer close(done)

	buf := make([]int16, chunk)
	for {
		n, err := stream.Read(buf)

		s.mu.Lock()
		if s.state != stateOpen {
			s.mu.Unlock()
			return
		}
		if n > 0 {
			dropped := s.ring.Write(buf[:n])
			s.captured += uint64(n)
			s.dropped += uint64(dropped)
			s.broadcastLocked()
		}
		if err != nil {
			s.pumpErr = err
			s.broadcastLocked()
			s.mu.Unlock()
			s.logger.Error(err, "Capture stream failed", logging.Fields{"function": "pump"})
			return
		}
		s.mu.Unlock()
	}
}

func (s *Session) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// ReadWindow blocks until n raw samples have been captured and returns them,
// oldest first. It waits on the capture goroutine rather than polling, then
// pauses for the pace delay.
//
// n must lie in (0, MaxWindowFrames], else ErrInvalidArgument.
//
// Errors: ErrNotOpen before a successful Open, ErrClosed if the session is
// closed before or during the wait, ErrTimeout when the read timeout or the
// context deadline expires, ErrBusy if another read is pending, ErrDevice if
// the stream failed.
func (s *Session) ReadWindow(ctx context.Context, n int) ([]int16, error) {
	if n <= 0 || n > MaxWindowFrames {
		return nil, opError("read", fmt.Errorf("%w: window size %d outside (0, %d]",
			ErrInvalidArgument, n, MaxWindowFrames))
	}
	if !s.reading.CompareAndSwap(false, true) {
		return nil, opError("read", ErrBusy)
	}
	defer s.reading.Store(false)

	var timeout <-chan time.Time
	if s.readTimeout > 0 {
		timer := time.NewTimer(s.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	s.mu.Lock()
	for {
		switch s.state {
		case stateIdle, stateInert:
			s.mu.Unlock()
			return nil, opError("read", ErrNotOpen)
		case stateClosed:
			s.mu.Unlock()
			return nil, opError("read", ErrClosed)
		}

		if n > s.ring.Cap() {
			s.ring.Grow(n)
		}

		if s.ring.Available() >= n {
			break
		}
		if s.pumpErr != nil {
			err := s.pumpErr
			s.mu.Unlock()
			return nil, opError("read", fmt.Errorf("%w: %w", ErrDevice, err))
		}

		wait := s.notify
		s.mu.Unlock()

		select {
		case <-wait:
		case <-s.closed:
			return nil, opError("read", ErrClosed)
		case <-timeout:
			return nil, opError("read", fmt.Errorf("%w after %s", ErrTimeout, s.readTimeout))
		case <-ctx.Done():
			return nil, opError("read", contextError(ctx))
		}

		s.mu.Lock()
	}

	raw := make([]int16, n)
	s.ring.Read(raw)
	s.mu.Unlock()

	s.pace(ctx)

	return raw, nil
}

// pace sleeps for the pace delay; the window is already read, so an early
// wake-up only shortens the pause
func (s *Session) pace(ctx context.Context) {
	if s.paceDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.paceDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.closed:
	case <-ctx.Done():
	}
}

func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// Close stops the device and releases the handle. Pending reads fail with
// ErrClosed. Closing an unopened, inert or closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosed
	close(s.closed)
	s.broadcastLocked()
	stream, pumpDone := s.stream, s.pumpDone
	s.stream = nil
	s.mu.Unlock()

	err := stream.Stop()

	grace := time.NewTimer(s.stopGrace)
	defer grace.Stop()
	select {
	case <-pumpDone:
	case <-grace.C:
		s.logger.Warn("Capture goroutine did not exit after stop", logging.Fields{
			"function": "Close",
			"grace":    s.stopGrace.String(),
		})
	}

	if err != nil {
		s.logger.Error(err, "Failed to stop capture device", logging.Fields{"function": "Close"})
		return opError("close", fmt.Errorf("%w: %w", ErrDevice, err))
	}

	st := s.Stats()
	s.logger.Info("Capture session closed", logging.Fields{
		"captured": st.Captured,
		"dropped":  st.Dropped,
	})
	return nil
}

// HardwareRate returns the device capture rate
func (s *Session) HardwareRate() int {
	return HardwareSampleRate
}

// TargetRate returns the analysis rate passed to Open, or 0 before Open
func (s *Session) TargetRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetRate
}

// IsOpen reports whether the session holds a running device
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateOpen
}

// Stats returns a snapshot of the capture counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Captured: s.captured, Dropped: s.dropped}
	if s.ring != nil {
		st.Buffered = s.ring.Available()
	}
	return st
}
