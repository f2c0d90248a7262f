// Package portaudio provides a capture.Device backed by the system default
// input through PortAudio.
package portaudio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/sonido-listen/capture"
	"github.com/RyanBlaney/sonido-listen/logging"
)

const (
	minFrames = 64

	// drainTimeout bounds how long Stop waits for a blocked Read after Abort
	drainTimeout = 2 * time.Second
)

// Device opens the default PortAudio input device
type Device struct {
	logger logging.Logger
}

// NewDevice creates a PortAudio device
func NewDevice() *Device {
	return &Device{
		logger: logging.WithFields(logging.Fields{
			"component": "portaudio_device",
		}),
	}
}

// MinBufferFrames derives the minimum buffer from the default input's low latency
func (d *Device) MinBufferFrames(cfg capture.StreamConfig) (int, error) {
	if err := pa.Initialize(); err != nil {
		return 0, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer pa.Terminate()

	info, err := pa.DefaultInputDevice()
	if err != nil {
		return 0, fmt.Errorf("no default input device: %w", err)
	}

	frames := int(info.DefaultLowInputLatency.Seconds() * float64(cfg.SampleRate))
	return max(frames, minFrames), nil
}

func (d *Device) Open(cfg capture.StreamConfig) (capture.Stream, error) {
	if cfg.Channels != capture.ChannelMono || cfg.Format != capture.FormatPCM16 {
		return nil, fmt.Errorf("%w: portaudio device captures mono pcm16 only", capture.ErrUnsupportedFormat)
	}

	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	buf := make([]int16, max(cfg.BufferFrames, minFrames))
	stream, err := pa.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(buf), buf)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	d.logger.Debug("PortAudio input stream opened", logging.Fields{
		"sample_rate":   cfg.SampleRate,
		"buffer_frames": len(buf),
	})

	return &stream{
		stream:       stream,
		terminate:    pa.Terminate,
		buf:          buf,
		logger:       d.logger,
		drainTimeout: drainTimeout,
	}, nil
}

// blockingStream is the part of *pa.Stream the capture stream drives
type blockingStream interface {
	Start() error
	Read() error
	Abort() error
	Close() error
}

type stream struct {
	stream       blockingStream
	terminate    func() error
	buf          []int16
	logger       logging.Logger
	drainTimeout time.Duration

	mu       sync.Mutex
	pending  []int16
	stopped  bool
	reads    sync.WaitGroup // hardware reads in progress
	stopOnce sync.Once
	stopErr  error
}

func (s *stream) Start() error {
	return s.stream.Start()
}

// Read fills dst from the last hardware buffer, blocking on PortAudio for a new one when empty
func (s *stream) Read(dst []int16) (int, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, capture.ErrStreamStopped
	}
	if len(s.pending) == 0 {
		s.reads.Add(1)
		s.mu.Unlock()

		err := s.stream.Read()
		s.reads.Done()
		if err != nil && !errors.Is(err, pa.InputOverflowed) {
			return 0, err
		}
		if err != nil {
			s.logger.Warn("PortAudio input overflowed, samples were lost")
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return 0, capture.ErrStreamStopped
		}
		s.pending = s.buf
	}

	n := copy(dst, s.pending)
	s.pending = s.pending[n:]
	s.mu.Unlock()
	return n, nil
}

// Stop aborts the stream, waits for a Read blocked in PortAudio to return and
// only then closes the stream and terminates the library. If the read does not
// return within the drain timeout the stream is left open rather than freed
// underneath it.
func (s *stream) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		err := s.stream.Abort()

		drained := make(chan struct{})
		go func() {
			s.reads.Wait()
			close(drained)
		}()

		timer := time.NewTimer(s.drainTimeout)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
			s.logger.Warn("PortAudio read still blocked after abort, leaving stream open", logging.Fields{
				"timeout": s.drainTimeout.String(),
			})
			s.stopErr = fmt.Errorf("portaudio read did not return within %s", s.drainTimeout)
			return
		}

		if closeErr := s.stream.Close(); err == nil {
			err = closeErr
		}
		if termErr := s.terminate(); err == nil {
			err = termErr
		}
		s.stopErr = err
	})
	return s.stopErr
}
