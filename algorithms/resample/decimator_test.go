package resample

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
	"github.com/RyanBlaney/sonido-listen/logging"
)

func ramp(n int) []int16 {
	raw := make([]int16, n)
	for i := range raw {
		raw[i] = int16(i)
	}
	return raw
}

func TestDecimateEveryFourthSample(t *testing.T) {
	d, err := NewDecimator(8000, 2000)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Step())

	out, err := d.Decimate(ramp(16), 16)
	require.NoError(t, err)
	assert.Equal(t, []common.Complex{{Re: 0}, {Re: 4}, {Re: 8}, {Re: 12}}, out)
}

func TestDecimateTruncatingStep(t *testing.T) {
	// 8000/3000 truncates to a step of 2
	d, err := NewDecimator(8000, 3000)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Step())
	assert.Equal(t, 6, d.OutputLength(16))

	out, err := d.Decimate(ramp(16), 16)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10}, common.RealParts(out))
}

func TestDecimateShortCaptureIsOutOfRange(t *testing.T) {
	d, err := NewDecimator(8000, 2000)
	require.NoError(t, err)

	_, err = d.Decimate(ramp(10), 16)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDecimateHugeWindowIsOutOfRange(t *testing.T) {
	d, err := NewDecimator(8000, 2000)
	require.NoError(t, err)

	_, err = d.Decimate(ramp(16), math.MaxInt/1000)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// lengths near the int limit stay exact instead of wrapping
	assert.Equal(t, (math.MaxInt/1000)/4, d.OutputLength(math.MaxInt/1000))
	assert.Equal(t, math.MaxInt/4, d.OutputLength(math.MaxInt))
}

func TestDecimateEmpty(t *testing.T) {
	d, err := NewDecimator(8000, 1000)
	require.NoError(t, err)

	out, err := d.Decimate(ramp(4), 4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewDecimatorRejectsBadRates(t *testing.T) {
	for _, rates := range [][2]int{{0, 1000}, {8000, 0}, {8000, -1}, {8000, 16000}} {
		_, err := NewDecimator(rates[0], rates[1])
		assert.ErrorIs(t, err, ErrInvalidRate, "%v", rates)
	}
}

type stubSource struct {
	raw    []int16
	err    error
	target int
	asked  int
}

func (s *stubSource) ReadWindow(ctx context.Context, n int) ([]int16, error) {
	s.asked = n
	if s.err != nil {
		return nil, s.err
	}
	return s.raw, nil
}

func (s *stubSource) HardwareRate() int { return 8000 }
func (s *stubSource) TargetRate() int   { return s.target }

func TestAcquireWindow(t *testing.T) {
	src := &stubSource{raw: ramp(32), target: 2000}
	a := NewAcquirer(src).WithLogger(&logging.NoOpLogger{})

	out, err := a.AcquireWindow(context.Background(), 32)
	require.NoError(t, err)
	assert.Equal(t, 32, src.asked)
	assert.Equal(t, []float64{0, 4, 8, 12, 16, 20, 24, 28}, common.RealParts(out))
	for _, c := range out {
		assert.Zero(t, c.Im)
	}
}

func TestAcquireWindowPropagatesSourceError(t *testing.T) {
	boom := errors.New("not open")
	a := NewAcquirer(&stubSource{err: boom, target: 2000}).WithLogger(&logging.NoOpLogger{})

	_, err := a.AcquireWindow(context.Background(), 16)
	assert.ErrorIs(t, err, boom)
}

func TestAcquireWindowShortRead(t *testing.T) {
	a := NewAcquirer(&stubSource{raw: ramp(8), target: 2000}).WithLogger(&logging.NoOpLogger{})

	_, err := a.AcquireWindow(context.Background(), 32)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestAcquireWindowRejectsNonPositiveCount(t *testing.T) {
	a := NewAcquirer(&stubSource{target: 2000})
	_, err := a.AcquireWindow(context.Background(), 0)
	assert.Error(t, err)
}
