package experiment

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/forces"
	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/san-kum/mbsim/internal/reporters"
	"github.com/san-kum/mbsim/internal/stepper"
	"gonum.org/v1/gonum/spatial/r3"
)

// Env is what factories see while an experiment is being built.
type Env struct {
	Config *config.Config
	Tree   *mechanics.Tree
	// System is nil while forces are built.
	System *multibody.System
	Output io.Writer
	Dir    string
}

func (e *Env) Body(name string) (mechanics.BodyID, error) {
	id, ok := e.Tree.BodyByName(name)
	if !ok {
		return 0, fmt.Errorf("%w %q", config.ErrUnknownBody, name)
	}
	return id, nil
}

// Bodies resolves names, or returns every body except ground when names is
// empty.
func (e *Env) Bodies(names []string) ([]mechanics.BodyID, error) {
	if len(names) == 0 {
		var out []mechanics.BodyID
		for _, b := range e.Tree.Bodies() {
			if b.ID != mechanics.Ground {
				out = append(out, b.ID)
			}
		}
		return out, nil
	}
	out := make([]mechanics.BodyID, len(names))
	for i, n := range names {
		id, err := e.Body(n)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// Path resolves p against the output directory.
func (e *Env) Path(p string) string {
	if e.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.Dir, p)
}

// ForceFactory receives the params decoded by config.ForceConfig.Decode.
type ForceFactory func(env *Env, name string, params any) (forces.Element, error)

// ReporterFactory receives the params decoded by config.ReporterConfig.Decode.
type ReporterFactory func(env *Env, params any) (stepper.Reporter, error)

type Registry struct {
	forces    map[string]ForceFactory
	reporters map[string]ReporterFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		forces:    make(map[string]ForceFactory),
		reporters: make(map[string]ReporterFactory),
	}

	r.forces["spring"] = func(env *Env, name string, params any) (forces.Element, error) {
		p := params.(*config.SpringParams)
		a, b, err := pair(env, p.BodyA, p.BodyB)
		if err != nil {
			return forces.Element{}, err
		}
		e := forces.TwoPointLinearSpring(a, vec(p.StationA), b, vec(p.StationB), p.Stiffness, p.NaturalLength)
		e.Name = name
		return e, nil
	}
	r.forces["damper"] = func(env *Env, name string, params any) (forces.Element, error) {
		p := params.(*config.DamperParams)
		a, b, err := pair(env, p.BodyA, p.BodyB)
		if err != nil {
			return forces.Element{}, err
		}
		e := forces.TwoPointLinearDamper(a, vec(p.StationA), b, vec(p.StationB), p.Damping)
		e.Name = name
		return e, nil
	}
	r.forces["constant"] = func(env *Env, name string, params any) (forces.Element, error) {
		p := params.(*config.ConstantParams)
		body, err := env.Body(p.Body)
		if err != nil {
			return forces.Element{}, err
		}
		e := forces.StationForce(body, vec(p.Station), vec(p.Force))
		e.Name = name
		return e, nil
	}
	r.forces["gravity"] = func(_ *Env, name string, params any) (forces.Element, error) {
		e := forces.UniformGravity(vec(params.(*config.GravityParams).G))
		e.Name = name
		return e, nil
	}

	r.reporters["console"] = func(env *Env, params any) (stepper.Reporter, error) {
		body, err := env.Body(params.(*config.ConsoleParams).Body)
		if err != nil {
			return nil, err
		}
		return reporters.NewConsole(env.Output, body), nil
	}
	r.reporters["csv"] = func(env *Env, params any) (stepper.Reporter, error) {
		p := params.(*config.CSVParams)
		bodies, err := env.Bodies(p.Bodies)
		if err != nil {
			return nil, err
		}
		return reporters.NewCSVWriter(env.Path(p.Path), bodies...)
	}
	r.reporters["recorder"] = func(env *Env, params any) (stepper.Reporter, error) {
		bodies, err := env.Bodies(params.(*config.RecorderParams).Bodies)
		if err != nil {
			return nil, err
		}
		return reporters.NewRecorder(bodies...), nil
	}
	r.reporters["energy"] = func(*Env, any) (stepper.Reporter, error) {
		return reporters.NewEnergy(), nil
	}

	return r
}

func pair(env *Env, a, b string) (mechanics.BodyID, mechanics.BodyID, error) {
	ia, err := env.Body(a)
	if err != nil {
		return 0, 0, err
	}
	ib, err := env.Body(b)
	if err != nil {
		return 0, 0, err
	}
	return ia, ib, nil
}

func vec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// RegisterReporter adds or replaces the factory for kind. The live view
// registers itself this way since it needs a running program.
func (r *Registry) RegisterReporter(kind string, f ReporterFactory) {
	r.reporters[kind] = f
}

func (r *Registry) Force(kind string) (ForceFactory, error) {
	f, ok := r.forces[kind]
	if !ok {
		return nil, fmt.Errorf("%w: force %q", config.ErrUnknownKind, kind)
	}
	return f, nil
}

func (r *Registry) Reporter(kind string) (ReporterFactory, error) {
	f, ok := r.reporters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no factory for reporter %q", config.ErrUnknownKind, kind)
	}
	return f, nil
}

func (r *Registry) ListForces() []string    { return sortedKeys(r.forces) }
func (r *Registry) ListReporters() []string { return sortedKeys(r.reporters) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
