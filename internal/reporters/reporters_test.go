package reporters

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/forces"
	"github.com/san-kum/mbsim/internal/integrators"
	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// block builds a 2 kg block on a slider 10 m from ground, tied back by a
// spring of natural length 10 and launched at 10 m/s.
func block(t *testing.T, damping float64) (*multibody.System, mechanics.BodyID, *dynamo.State) {
	t.Helper()
	tree := mechanics.NewTree()
	b, err := tree.AddBody("block1", mechanics.Ground, mechanics.Translation(r3.Vec{X: 10}),
		mechanics.MassProperties{Mass: 2, Inertia: mechanics.NewInertia(1)}, mechanics.IdentityTransform(), mechanics.Slider)
	require.NoError(t, err)
	f := forces.NewSubsystem()
	f.Add(forces.TwoPointLinearSpring(mechanics.Ground, r3.Vec{}, b, r3.Vec{}, 10, 10))
	if damping > 0 {
		f.Add(forces.TwoPointLinearDamper(mechanics.Ground, r3.Vec{}, b, r3.Vec{}, damping))
	}
	sys := multibody.New(tree, f)
	st := sys.RealizeTopology()
	require.NoError(t, tree.SetU(st, b, 10))
	return sys, b, st
}

type every struct {
	r        stepper.Reporter
	interval float64
}

func run(t *testing.T, sys *multibody.System, st *dynamo.State, stop float64, reps ...every) *stepper.Result {
	t.Helper()
	integ, err := integrators.New(sys, integrators.WithAccuracy(1e-8))
	require.NoError(t, err)
	s := stepper.New(sys, integ)
	for _, e := range reps {
		_, err := s.AddReporter(e.r, e.interval)
		require.NoError(t, err)
	}
	require.NoError(t, s.Initialize(st))
	res, err := s.StepTo(stop)
	require.NoError(t, err)
	return res
}

func TestConsole_Format(t *testing.T) {
	sys, b, st := block(t, 0)
	v := sys.View(st)
	require.NoError(t, v.Realize(dynamo.StagePosition))

	var buf bytes.Buffer
	NewConsole(&buf, b).Report(v)
	assert.Equal(t, "      0.00       10.0000      0.0000      0.0000\n", buf.String())
}

var errDiskFull = errors.New("disk full")

type brokenWriter struct{ writes int }

func (w *brokenWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errDiskFull
}

func TestConsole_WriteErrorSurfacesAtClose(t *testing.T) {
	sys, b, st := block(t, 0)
	w := &brokenWriter{}
	c := NewConsole(w, b)

	integ, err := integrators.New(sys)
	require.NoError(t, err)
	s := stepper.New(sys, integ)
	_, err = s.AddReporter(c, 0.5)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(st))

	res, err := s.StepTo(2)
	require.NotNil(t, res)
	assert.Equal(t, stepper.Finished, res.Phase)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 1, w.writes)
	assert.ErrorIs(t, c.Close(), errDiskFull)
}

func TestCSVWriter_LinesPerReport(t *testing.T) {
	sys, b, st := block(t, 0)
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := NewCSVWriter(path, b)
	require.NoError(t, err)

	run(t, sys, st, 0.2, every{w, 0.1})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0.000000, 10.000000, 0.000000, 0.000000, ", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0.100000, "))
	assert.True(t, strings.HasPrefix(lines[2], "0.200000, "))
	for _, l := range lines {
		assert.Len(t, strings.Split(l, ", "), 5)
	}
}

func TestCSVWriter_CloseTwice(t *testing.T) {
	w, err := NewCSVWriter(filepath.Join(t.TempDir(), "x.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestCSVWriter_BadPath(t *testing.T) {
	_, err := NewCSVWriter(filepath.Join(t.TempDir(), "missing", "x.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRecorder(t *testing.T) {
	sys, b, st := block(t, 0.1)
	rec := NewRecorder()
	run(t, sys, st, 1, every{rec, 0.1})

	require.Equal(t, 11, rec.Len())
	assert.Equal(t, []mechanics.BodyID{b}, rec.Bodies())
	times := rec.Times()
	assert.InDelta(t, 0, times[0], 0)
	assert.InDelta(t, 1, times[10], 1e-12)
	assert.Equal(t, 10.0, rec.Speed(0)[0])

	origins := rec.Origin(b)
	q := rec.Coordinate(0)
	for i := range origins {
		assert.InDelta(t, 10+q[i], origins[i].X, 1e-12)
	}
	assert.Nil(t, rec.Origin(mechanics.Ground))

	rec.Reset()
	assert.Zero(t, rec.Len())
}

func TestEnergy_ConservedWithoutDamping(t *testing.T) {
	sys, _, st := block(t, 0)
	e := NewEnergy()
	assert.Equal(t, dynamo.StageVelocity, e.RequiredStage())
	run(t, sys, st, 2, every{e, 0.05})

	sum := e.Summary()
	assert.InDelta(t, 100, sum.Initial, 1e-12)
	assert.InDelta(t, 0, sum.Dissipated, 1e-4)
	assert.InDelta(t, sum.MaxTotal, sum.MinTotal, 1e-4)
}

func TestEnergy_DamperDissipates(t *testing.T) {
	sys, _, st := block(t, 1)
	e := NewEnergy()
	run(t, sys, st, 2, every{e, 0.05})

	sum := e.Summary()
	assert.Greater(t, sum.Dissipated, 1.0)
	samples := e.Samples()
	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i].Total(), samples[i-1].Total()+1e-6)
	}
}

func TestEnergy_EmptySummary(t *testing.T) {
	assert.Equal(t, EnergySummary{}, NewEnergy().Summary())
}

func TestFunc(t *testing.T) {
	sys, _, st := block(t, 0)
	var times []float64
	f := Func(func(v *multibody.View) { times = append(times, v.Time()) })
	run(t, sys, st, 0.5, every{f, 0.25})
	assert.Len(t, times, 3)
}
