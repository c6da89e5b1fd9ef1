package analysis

import (
	"fmt"
	"math"
)

// Peak is a local maximum located between samples.
type Peak struct {
	Time  float64
	Value float64
}

// Peaks finds the positive local maxima of a uniformly sampled signal.
func Peaks(times, values []float64) ([]Peak, error) {
	h, err := SampleInterval(times)
	if err != nil {
		return nil, err
	}
	var peaks []Peak
	for i := 1; i+1 < len(values); i++ {
		a, b, c := values[i-1], values[i], values[i+1]
		if b <= 0 || b < a || b <= c {
			continue
		}
		p, v := 0.0, b
		if d := a - 2*b + c; d != 0 {
			p = 0.5 * (a - c) / d
			v = b - 0.25*(a-c)*p
		}
		peaks = append(peaks, Peak{Time: times[i] + p*h, Value: v})
	}
	return peaks, nil
}

// Response summarizes a free decaying oscillation. Frequencies are in rad/s.
type Response struct {
	SpectralPeakHz   float64
	DampedFrequency  float64
	NaturalFrequency float64
	DampingRatio     float64
	LogDecrement     float64
	Peaks            []Peak
}

// Analyze measures a free response. The damped frequency and the damping
// ratio come from the first and last positive peaks; the spectral peak is
// reported alongside as a cross-check.
func Analyze(times, values []float64) (Response, error) {
	var r Response
	var err error
	if r.SpectralPeakHz, err = DominantFrequency(times, values); err != nil {
		return r, err
	}
	if r.Peaks, err = Peaks(times, values); err != nil {
		return r, err
	}
	if len(r.Peaks) < 2 {
		return r, fmt.Errorf("%w: found %d", ErrNoPeaks, len(r.Peaks))
	}

	first, last := r.Peaks[0], r.Peaks[len(r.Peaks)-1]
	cycles := float64(len(r.Peaks) - 1)
	period := (last.Time - first.Time) / cycles
	r.DampedFrequency = 2 * math.Pi / period
	r.LogDecrement = math.Log(first.Value/last.Value) / cycles
	r.DampingRatio = DampingRatioFromDecrement(r.LogDecrement)
	r.NaturalFrequency = r.DampedFrequency / math.Sqrt(1-r.DampingRatio*r.DampingRatio)
	return r, nil
}

// DampingRatioFromDecrement inverts δ = 2πζ/√(1−ζ²).
func DampingRatioFromDecrement(delta float64) float64 {
	return delta / math.Sqrt(4*math.Pi*math.Pi+delta*delta)
}

// Oscillator is a mass on a linear spring and damper.
type Oscillator struct {
	Mass, Stiffness, Damping float64
}

func (o Oscillator) NaturalFrequency() float64 { return math.Sqrt(o.Stiffness / o.Mass) }

func (o Oscillator) DampingRatio() float64 {
	return o.Damping / (2 * math.Sqrt(o.Stiffness*o.Mass))
}

// Displacement is the closed-form underdamped response from x0 and v0.
// It returns NaN unless the oscillator is underdamped.
func (o Oscillator) Displacement(x0, v0, t float64) float64 {
	wn, zeta := o.NaturalFrequency(), o.DampingRatio()
	if !(zeta < 1) {
		return math.NaN()
	}
	wd := wn * math.Sqrt(1-zeta*zeta)
	decay := math.Exp(-zeta * wn * t)
	return decay * (x0*math.Cos(wd*t) + (v0+zeta*wn*x0)/wd*math.Sin(wd*t))
}
