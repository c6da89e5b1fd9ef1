package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var (
	ErrTooShort   = errors.New("too few samples")
	ErrNonUniform = errors.New("samples are not uniformly spaced")
	ErrNoPeaks    = errors.New("response has too few peaks")
)

// SampleInterval returns the common spacing of times.
func SampleInterval(times []float64) (float64, error) {
	if len(times) < 2 {
		return 0, ErrTooShort
	}
	h := (times[len(times)-1] - times[0]) / float64(len(times)-1)
	if !(h > 0) {
		return 0, ErrNonUniform
	}
	for i := 1; i < len(times); i++ {
		if math.Abs(times[i]-times[i-1]-h) > 1e-6*h {
			return 0, fmt.Errorf("%w: step %d is %g, expected %g", ErrNonUniform, i, times[i]-times[i-1], h)
		}
	}
	return h, nil
}

// PowerSpectrum returns |X(f)| for the non-negative frequencies of the
// mean-removed, Hann-windowed signal.
func PowerSpectrum(values []float64) []float64 {
	n := len(values)
	if n < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	windowed := make([]float64, n)
	for i, v := range values {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = (v - mean) * w
	}
	spectrum := fft.FFTReal(windowed)
	ps := make([]float64, n/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantFrequency returns the strongest frequency in Hz, refined between
// bins by fitting a parabola through the peak and its neighbours.
func DominantFrequency(times, values []float64) (float64, error) {
	if len(times) != len(values) {
		return 0, fmt.Errorf("%d times but %d values", len(times), len(values))
	}
	if len(values) < 4 {
		return 0, ErrTooShort
	}
	h, err := SampleInterval(times)
	if err != nil {
		return 0, err
	}
	ps := PowerSpectrum(values)

	peak := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[peak] {
			peak = i
		}
	}
	offset := 0.0
	if peak+1 < len(ps) {
		a, b, c := ps[peak-1], ps[peak], ps[peak+1]
		if d := a - 2*b + c; d != 0 {
			offset = 0.5 * (a - c) / d
		}
	}
	return (float64(peak) + offset) / (float64(len(values)) * h), nil
}
