package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-listen/logging"
)

func TestToneDeviceIsPhaseContinuous(t *testing.T) {
	device := NewToneDevice(500, 12000, false)
	stream, err := device.Open(StreamConfig{SampleRate: HardwareSampleRate, BufferFrames: 64})
	require.NoError(t, err)
	require.NoError(t, stream.Start())

	var got []int16
	buf := make([]int16, 100)
	for len(got) < 256 {
		n, err := stream.Read(buf)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, 64)
		got = append(got, buf[:n]...)
	}

	want := SineWave(500, 12000, HardwareSampleRate, 256)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1, "sample %d", i)
	}

	require.NoError(t, stream.Stop())
	_, err = stream.Read(buf)
	assert.ErrorIs(t, err, ErrStreamStopped)
}

func TestToneDeviceRejectsAliasedTone(t *testing.T) {
	_, err := NewToneDevice(5000, 1000, false).Open(StreamConfig{SampleRate: HardwareSampleRate})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestToneDeviceFeedsSession(t *testing.T) {
	session := NewSession(NewToneDevice(250, 8000, true), nil,
		WithLogger(&logging.NoOpLogger{}), WithBufferFrames(128), WithPaceDelay(0))
	require.NoError(t, session.Open(2000))
	defer session.Close()

	raw, err := session.ReadWindow(context.Background(), 512)
	require.NoError(t, err)
	assert.Len(t, raw, 512)
	assert.NotZero(t, session.Stats().Captured)
}

func TestUnpacedToneKeepsSessionResponsive(t *testing.T) {
	session := NewSession(NewToneDevice(250, 8000, false), nil,
		WithLogger(&logging.NoOpLogger{}), WithBufferFrames(256), WithPaceDelay(0))
	require.NoError(t, session.Open(2000))

	for range 5 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		raw, err := session.ReadWindow(ctx, 512)
		cancel()
		require.NoError(t, err)
		assert.Len(t, raw, 512)
	}

	start := time.Now()
	require.NoError(t, session.Close())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.GreaterOrEqual(t, session.Stats().Captured, uint64(5*512))
}
