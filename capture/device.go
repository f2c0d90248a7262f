package capture

// HardwareSampleRate is the fixed rate every capture device records at
const HardwareSampleRate = 8000

// ChannelLayout describes the channel configuration of a stream
type ChannelLayout int

const (
	ChannelMono ChannelLayout = 1
)

// SampleFormat describes the encoding of captured samples
type SampleFormat int

const (
	// FormatPCM16 is signed 16-bit linear PCM
	FormatPCM16 SampleFormat = iota + 1
)

func (f SampleFormat) String() string {
	switch f {
	case FormatPCM16:
		return "pcm16"
	default:
		return "unknown"
	}
}

// StreamConfig is what a session asks a device for
type StreamConfig struct {
	SampleRate   int           `json:"sample_rate"`
	Channels     ChannelLayout `json:"channels"`
	Format       SampleFormat  `json:"format"`
	BufferFrames int           `json:"buffer_frames"` // internal device buffering, in frames
}

// Device is a platform audio input. Implementations wrap the OS capture API;
// the session never touches the driver directly.
type Device interface {
	// MinBufferFrames reports the smallest buffer the device accepts for cfg
	MinBufferFrames(cfg StreamConfig) (int, error)

	// Open acquires the device. Implementations return ErrPermissionDenied
	// when the platform refuses microphone access.
	Open(cfg StreamConfig) (Stream, error)
}

// Stream is an opened device handle
type Stream interface {
	// Start begins continuous capture
	Start() error

	// Read blocks until at least one sample is available and fills buf.
	// After Stop it must return promptly with an error.
	Read(buf []int16) (int, error)

	// Stop halts capture and releases the handle
	Stop() error
}

// PermissionGate reports whether the process may record from the microphone
type PermissionGate interface {
	MicrophoneAuthorized() bool
}

// PermissionFunc adapts a function to PermissionGate
type PermissionFunc func() bool

func (f PermissionFunc) MicrophoneAuthorized() bool {
	return f()
}

// AlwaysAuthorized is a gate for platforms without a permission model
var AlwaysAuthorized PermissionGate = PermissionFunc(func() bool { return true })
