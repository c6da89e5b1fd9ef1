package integrators

import (
	"fmt"
	"strings"
)

// Tableau is an explicit embedded Runge-Kutta pair. B gives the propagated
// solution, BHat the embedded one used only for the error estimate.
type Tableau struct {
	Name       string
	C          []float64
	A          [][]float64
	B          []float64
	BHat       []float64
	Order      int
	ErrorOrder int
}

func (t Tableau) Stages() int { return len(t.B) }

// Merson coefficients (RK-Merson 4(3)).
var (
	m21 = 1.0 / 3.0
	m31 = 1.0 / 6.0
	m32 = 1.0 / 6.0
	m41 = 1.0 / 8.0
	m43 = 3.0 / 8.0
	m51 = 1.0 / 2.0
	m53 = -3.0 / 2.0
	m54 = 2.0
)

// Merson is the default pair: five stages, fourth-order solution, third
// order embedded estimate. Its error term is h/30·(2k1 − 9k3 + 8k4 − k5).
var Merson = Tableau{
	Name: "merson",
	C:    []float64{0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 2.0, 1},
	A: [][]float64{
		{},
		{m21},
		{m31, m32},
		{m41, 0, m43},
		{m51, 0, m53, m54},
	},
	B:          []float64{1.0 / 6.0, 0, 0, 2.0 / 3.0, 1.0 / 6.0},
	BHat:       []float64{1.0 / 10.0, 0, 3.0 / 10.0, 2.0 / 5.0, 1.0 / 5.0},
	Order:      4,
	ErrorOrder: 3,
}

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0
)

// DormandPrince is the 5(4) pair. The seventh stage evaluates the
// propagated solution and only feeds the error estimate.
var DormandPrince = Tableau{
	Name: "dopri",
	C:    []float64{0, a2, a3, a4, a5, 1, 1},
	A: [][]float64{
		{},
		{b21},
		{b31, b32},
		{b41, b42, b43},
		{b51, b52, b53, b54},
		{b61, b62, b63, b64, b65},
		{c1, 0, c3, c4, c5, c6},
	},
	B:          []float64{c1, 0, c3, c4, c5, c6, 0},
	BHat:       []float64{5179.0 / 57600.0, 0, 7571.0 / 16695.0, 393.0 / 640.0, -92097.0 / 339200.0, 187.0 / 2100.0, 1.0 / 40.0},
	Order:      5,
	ErrorOrder: 4,
}

var tableaux = map[string]Tableau{
	Merson.Name:        Merson,
	DormandPrince.Name: DormandPrince,
}

// TableauByName accepts "merson" or "dopri" (case insensitive). Empty means
// Merson.
func TableauByName(name string) (Tableau, error) {
	if name == "" {
		return Merson, nil
	}
	t, ok := tableaux[strings.ToLower(name)]
	if !ok {
		return Tableau{}, fmt.Errorf("unknown integrator: %s", name)
	}
	return t, nil
}

func TableauNames() []string {
	return []string{Merson.Name, DormandPrince.Name}
}
