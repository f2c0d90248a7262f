package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// writeTestWAV encodes interleaved samples into a temporary PCM wav file
func writeTestWAV(t *testing.T, sampleRate, bitDepth, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())

	return path
}

func TestLoadWAVMono16(t *testing.T) {
	path := writeTestWAV(t, 8000, 16, 1, []int{0, 100, -100, 32767})

	samples, err := LoadWAV(path, 8000)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 100, -100, 32767}, samples)
}

func TestLoadWAVStereoTakesFirstChannel(t *testing.T) {
	path := writeTestWAV(t, 8000, 16, 2, []int{1, -1, 2, -2, 3, -3})

	samples, err := LoadWAV(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3}, samples)
}

func TestLoadWAV24BitIsRescaled(t *testing.T) {
	path := writeTestWAV(t, 8000, 24, 1, []int{256, -512, 8388607})

	samples, err := LoadWAV(path, 8000)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -2, 32767}, samples)
}

func TestLoadWAVRejectsWrongRate(t *testing.T) {
	path := writeTestWAV(t, 44100, 16, 1, []int{1, 2, 3})

	_, err := LoadWAV(path, 8000)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data"), 0o644))

	_, err := LoadWAV(path, 8000)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadWAV(filepath.Join(t.TempDir(), "missing.wav"), 8000)
	assert.Error(t, err)
}

func TestWAVStreamLoops(t *testing.T) {
	path := writeTestWAV(t, 8000, 16, 1, []int{5, 6, 7})

	stream, err := NewWAVDevice(path, WithLoop(true)).Open(StreamConfig{SampleRate: 8000, BufferFrames: 2})
	require.NoError(t, err)
	require.NoError(t, stream.Start())

	buf := make([]int16, 2)
	var got []int16
	for len(got) < 7 {
		n, err := stream.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, []int16{5, 6, 7, 5, 6, 7, 5}, got[:7])

	require.NoError(t, stream.Stop())
	_, err = stream.Read(buf)
	assert.ErrorIs(t, err, ErrStreamStopped)
}
