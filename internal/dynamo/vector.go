package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector is a dense vector of generalized coordinates, speeds or forces.
// Binary operations require equal lengths.
type Vector []float64

func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

func (v Vector) Add(other Vector) Vector {
	return floats.AddTo(make(Vector, len(v)), v, other)
}

func (v Vector) Sub(other Vector) Vector {
	return floats.SubTo(make(Vector, len(v)), v, other)
}

func (v Vector) Scale(factor float64) Vector {
	return floats.ScaleTo(make(Vector, len(v)), factor, v)
}

// AddScaled returns v + alpha*s.
func (v Vector) AddScaled(alpha float64, s Vector) Vector {
	return floats.AddScaledTo(make(Vector, len(v)), v, alpha, s)
}

// Concat returns a new vector holding v followed by w.
func Concat(v, w Vector) Vector {
	out := make(Vector, 0, len(v)+len(w))
	out = append(out, v...)
	return append(out, w...)
}
