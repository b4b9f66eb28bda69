// Package dsp computes periodogram rows from raw IQ sample blocks, for
// sources that deliver samples instead of precomputed spectra.
package dsp

import (
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/dsputils"
	fourier "github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/spectrumx/svi/core"
	"github.com/spectrumx/svi/core/decode"
)

// Periodogram computes the linear power spectrum of one block of IQ samples,
// bins ordered from the lowest to the highest frequency with the center of
// the sampled range in the middle. The block is Blackman-windowed and
// zero-padded to the next power of two.
func Periodogram(samples []complex128) []float64 {
	if len(samples) == 0 {
		return nil
	}

	coeff := window.Blackman(len(samples))
	windowed := make([]complex128, len(samples))
	for i, s := range samples {
		windowed[i] = s * complex(coeff[i], 0)
	}

	size := dsputils.NextPowerOf2(len(windowed))
	spectrum := fourier.FFT(dsputils.ZeroPad(windowed, size))

	result := make([]float64, size)
	center := size / 2
	for i, v := range spectrum {
		resultIndex := i + center
		if i >= center {
			resultIndex = i - center
		}
		magnitude := 2 * cmplx.Abs(v) / float64(size)
		result[resultIndex] = magnitude * magnitude
	}
	return result
}

// Reduce shrinks a spectrum to at most the given number of bins, keeping the
// maximum of each chunk so narrow peaks survive the reduction.
func Reduce(spectrum []float64, bins int) []float64 {
	if bins <= 0 || len(spectrum) <= bins {
		return spectrum
	}

	result := make([]float64, bins)
	step := float64(len(spectrum)) / float64(bins)
	for i := range result {
		from := int(float64(i) * step)
		to := int(float64(i+1) * step)
		if to > len(spectrum) {
			to = len(spectrum)
		}
		max := spectrum[from]
		for _, v := range spectrum[from+1 : to] {
			if v > max {
				max = v
			}
		}
		result[i] = max
	}
	return result
}

// Row builds a decoded row from one block of IQ samples, reduced to the given
// number of bins.
func Row(device core.DeviceID, frequencyRange core.FrequencyRange, samples []complex128, bins int) *core.DecodedRow {
	power := Reduce(Periodogram(samples), bins)
	if len(power) == 0 {
		return nil
	}
	return &core.DecodedRow{
		Device:    device,
		Range:     frequencyRange,
		Timestamp: time.Now(),
		Power:     power,
		DB:        decode.ToDB(power),
	}
}
