package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrumx/svi/core"
)

func tone(blockSize int, rate float64) []complex128 {
	samples := make([]complex128, blockSize)
	for i := range samples {
		samples[i] = cmplx.Exp(complex(0, 2*math.Pi*rate*float64(i)))
	}
	return samples
}

func TestPeriodogram_Empty(t *testing.T) {
	assert.Nil(t, Periodogram(nil))
}

func TestPeriodogram_SizeIsPowerOfTwo(t *testing.T) {
	spectrum := Periodogram(make([]complex128, 100))
	assert.Equal(t, 128, len(spectrum))
}

func TestPeriodogram_TonePeak(t *testing.T) {
	blockSize := 64

	// a tone at a quarter of the sample rate peaks a quarter above the center bin
	spectrum := Periodogram(tone(blockSize, 0.25))

	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	assert.Equal(t, blockSize/2+blockSize/4, peak)
}

func TestPeriodogram_DCPeaksAtCenter(t *testing.T) {
	spectrum := Periodogram(tone(64, 0))

	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	assert.Equal(t, 32, peak)
}

func TestReduce(t *testing.T) {
	spectrum := []float64{1, 5, 2, 2, 9, 3, 4, 4}

	reduced := Reduce(spectrum, 4)

	assert.Equal(t, []float64{5, 2, 9, 4}, reduced)
}

func TestReduce_NoopWhenSmallEnough(t *testing.T) {
	spectrum := []float64{1, 2}
	assert.Equal(t, spectrum, Reduce(spectrum, 4))
	assert.Equal(t, spectrum, Reduce(spectrum, 0))
}

func TestRow(t *testing.T) {
	row := Row("synthetic", core.FrequencyRange{From: 100, To: 200}, tone(64, 0.25), 32)

	require.NotNil(t, row)
	assert.Equal(t, 32, row.Bins())
	assert.Equal(t, len(row.Power), len(row.DB))
	assert.Equal(t, core.DeviceID("synthetic"), row.Device)
	assert.False(t, row.Timestamp.IsZero())
}

func TestRow_Empty(t *testing.T) {
	assert.Nil(t, Row("synthetic", core.FrequencyRange{}, nil, 32))
}
