package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/san-kum/mbsim/internal/integrators"
	"github.com/san-kum/mbsim/internal/mechanics"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDuration = 60.0
	DefaultInterval = 0.1
	DefaultAccuracy = 1e-3
	GroundName      = "ground"
)

// Config describes a model, its forces, its reporters and how to integrate
// it. Bodies are listed parents first.
type Config struct {
	Name       string           `yaml:"name"`
	Duration   float64          `yaml:"duration"`
	Integrator IntegratorConfig `yaml:"integrator"`
	Bodies     []BodyConfig     `yaml:"bodies"`
	Forces     []ForceConfig    `yaml:"forces"`
	Reporters  []ReporterConfig `yaml:"reporters"`
}

type IntegratorConfig struct {
	Method      string  `yaml:"method"`
	Accuracy    float64 `yaml:"accuracy"`
	MinStep     float64 `yaml:"min_step,omitempty"`
	MaxStep     float64 `yaml:"max_step,omitempty"`
	InitialStep float64 `yaml:"initial_step,omitempty"`
}

type BodyConfig struct {
	Name    string     `yaml:"name"`
	Parent  string     `yaml:"parent"`
	Joint   string     `yaml:"joint"`
	Mass    float64    `yaml:"mass"`
	COM     [3]float64 `yaml:"com,flow"`
	Inertia float64    `yaml:"inertia"`
	// Location and Angle place the joint frame in the parent; Angle is a
	// rotation in degrees about z, so a slider can move along any
	// direction in the xy plane.
	Location [3]float64 `yaml:"location,flow"`
	Angle    float64    `yaml:"angle,omitempty"`
	Offset   [3]float64 `yaml:"offset,flow,omitempty"`
	Q        float64    `yaml:"q,omitempty"`
	U        float64    `yaml:"u,omitempty"`
}

type ForceConfig struct {
	Kind   string         `yaml:"kind"`
	Name   string         `yaml:"name,omitempty"`
	Params map[string]any `yaml:"params"`
}

type ReporterConfig struct {
	Kind     string         `yaml:"kind"`
	Interval float64        `yaml:"interval"`
	Params   map[string]any `yaml:"params,omitempty"`
}

// Force parameters, decoded from ForceConfig.Params.

type SpringParams struct {
	BodyA         string     `mapstructure:"body_a"`
	StationA      [3]float64 `mapstructure:"station_a"`
	BodyB         string     `mapstructure:"body_b"`
	StationB      [3]float64 `mapstructure:"station_b"`
	Stiffness     float64    `mapstructure:"stiffness"`
	NaturalLength float64    `mapstructure:"natural_length"`
}

type DamperParams struct {
	BodyA    string     `mapstructure:"body_a"`
	StationA [3]float64 `mapstructure:"station_a"`
	BodyB    string     `mapstructure:"body_b"`
	StationB [3]float64 `mapstructure:"station_b"`
	Damping  float64    `mapstructure:"damping"`
}

type ConstantParams struct {
	Body    string     `mapstructure:"body"`
	Station [3]float64 `mapstructure:"station"`
	Force   [3]float64 `mapstructure:"force"`
}

type GravityParams struct {
	G [3]float64 `mapstructure:"g"`
}

// Reporter parameters, decoded from ReporterConfig.Params.

type ConsoleParams struct {
	Body string `mapstructure:"body"`
}

type CSVParams struct {
	Path   string   `mapstructure:"path"`
	Bodies []string `mapstructure:"bodies"`
}

type RecorderParams struct {
	Bodies []string `mapstructure:"bodies"`
}

type LiveParams struct {
	Speed float64 `mapstructure:"speed"`
}

var (
	ErrUnknownKind  = errors.New("unknown kind")
	ErrUnknownBody  = errors.New("unknown body")
	ErrUnknownForce = errors.New("unknown force")
)

func DefaultConfig() *Config {
	cfg, _ := Preset("sliding_block")
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Duration: DefaultDuration}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyDefaults() {
	if c.Integrator.Accuracy == 0 {
		c.Integrator.Accuracy = DefaultAccuracy
	}
	for i := range c.Bodies {
		if c.Bodies[i].Parent == "" {
			c.Bodies[i].Parent = GroundName
		}
		if c.Bodies[i].Joint == "" {
			c.Bodies[i].Joint = mechanics.Slider.String()
		}
	}
	for i := range c.Reporters {
		if c.Reporters[i].Interval == 0 {
			c.Reporters[i].Interval = DefaultInterval
		}
	}
}

// DecodeParams decodes a free-form parameter map into out, rejecting keys
// out does not declare.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// Decode decodes f.Params into the struct for its kind.
func (f ForceConfig) Decode() (any, error) {
	var out any
	switch strings.ToLower(f.Kind) {
	case "spring":
		out = &SpringParams{}
	case "damper":
		out = &DamperParams{}
	case "constant":
		out = &ConstantParams{}
	case "gravity":
		out = &GravityParams{G: [3]float64{0, -9.81, 0}}
	default:
		return nil, fmt.Errorf("%w: force %q", ErrUnknownKind, f.Kind)
	}
	if err := DecodeParams(f.Params, out); err != nil {
		return nil, fmt.Errorf("force %s params: %w", f.Kind, err)
	}
	return out, nil
}

// Decode decodes r.Params into the struct for its kind. Kinds without
// parameters decode to nil.
func (r ReporterConfig) Decode() (any, error) {
	var out any
	switch strings.ToLower(r.Kind) {
	case "console":
		out = &ConsoleParams{}
	case "csv":
		out = &CSVParams{}
	case "recorder":
		out = &RecorderParams{}
	case "live":
		out = &LiveParams{}
	case "energy":
		if len(r.Params) > 0 {
			return nil, fmt.Errorf("reporter energy takes no params")
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: reporter %q", ErrUnknownKind, r.Kind)
	}
	if err := DecodeParams(r.Params, out); err != nil {
		return nil, fmt.Errorf("reporter %s params: %w", r.Kind, err)
	}
	return out, nil
}

// Validate checks everything that can be checked without building the
// system.
func (c *Config) Validate() error {
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("duration must be positive and finite, got %g", c.Duration)
	}
	if _, err := integrators.TableauByName(c.Integrator.Method); err != nil {
		return err
	}
	if !(c.Integrator.Accuracy > 0) {
		return fmt.Errorf("integrator accuracy must be positive, got %g", c.Integrator.Accuracy)
	}

	known := map[string]bool{GroundName: true}
	for i, b := range c.Bodies {
		if b.Name == "" {
			return fmt.Errorf("body %d has no name", i)
		}
		if known[b.Name] {
			return fmt.Errorf("body %q declared twice", b.Name)
		}
		if !known[b.Parent] {
			return fmt.Errorf("body %q: %w: parent %q", b.Name, ErrUnknownBody, b.Parent)
		}
		if _, err := mechanics.ParseJoint(b.Joint); err != nil {
			return fmt.Errorf("body %q: %w", b.Name, err)
		}
		if b.Mass < 0 || b.Inertia < 0 {
			return fmt.Errorf("body %q: mass and inertia must be non-negative", b.Name)
		}
		known[b.Name] = true
	}
	checkBody := func(what, name string) error {
		if !known[name] {
			return fmt.Errorf("%s: %w %q", what, ErrUnknownBody, name)
		}
		return nil
	}

	for i, f := range c.Forces {
		p, err := f.Decode()
		if err != nil {
			return fmt.Errorf("force %d: %w", i, err)
		}
		what := fmt.Sprintf("force %d (%s)", i, f.Kind)
		switch p := p.(type) {
		case *SpringParams:
			err = errors.Join(checkBody(what, p.BodyA), checkBody(what, p.BodyB))
			if p.Stiffness < 0 || p.NaturalLength < 0 {
				err = errors.Join(err, fmt.Errorf("%s: stiffness and natural length must be non-negative", what))
			}
		case *DamperParams:
			err = errors.Join(checkBody(what, p.BodyA), checkBody(what, p.BodyB))
			if p.Damping < 0 {
				err = errors.Join(err, fmt.Errorf("%s: damping must be non-negative", what))
			}
		case *ConstantParams:
			err = checkBody(what, p.Body)
		}
		if err != nil {
			return err
		}
	}

	lives := 0
	for i, r := range c.Reporters {
		if strings.EqualFold(r.Kind, "live") {
			if lives++; lives > 1 {
				return fmt.Errorf("reporter %d: only one live reporter is allowed", i)
			}
		}
		if !(r.Interval > 0) {
			return fmt.Errorf("reporter %d (%s): interval must be positive, got %g", i, r.Kind, r.Interval)
		}
		p, err := r.Decode()
		if err != nil {
			return fmt.Errorf("reporter %d: %w", i, err)
		}
		what := fmt.Sprintf("reporter %d (%s)", i, r.Kind)
		switch p := p.(type) {
		case *ConsoleParams:
			err = checkBody(what, p.Body)
		case *CSVParams:
			if p.Path == "" {
				err = fmt.Errorf("%s: path is required", what)
			}
			for _, b := range p.Bodies {
				err = errors.Join(err, checkBody(what, b))
			}
		case *RecorderParams:
			for _, b := range p.Bodies {
				err = errors.Join(err, checkBody(what, b))
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Body returns the named body's config.
func (c *Config) Body(name string) (BodyConfig, bool) {
	for _, b := range c.Bodies {
		if b.Name == name {
			return b, true
		}
	}
	return BodyConfig{}, false
}

// Clone returns a copy of c that shares nothing mutable with it.
func (c *Config) Clone() *Config {
	out := *c
	out.Bodies = append([]BodyConfig(nil), c.Bodies...)
	out.Forces = make([]ForceConfig, len(c.Forces))
	for i, f := range c.Forces {
		f.Params = cloneParams(f.Params)
		out.Forces[i] = f
	}
	out.Reporters = make([]ReporterConfig, len(c.Reporters))
	for i, r := range c.Reporters {
		r.Params = cloneParams(r.Params)
		out.Reporters[i] = r
	}
	return &out
}

func cloneParams(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		if vs, ok := v.([]any); ok {
			v = append([]any(nil), vs...)
		}
		out[k] = v
	}
	return out
}

// SetForceParam overrides one parameter of the force called name.
func (c *Config) SetForceParam(name, param string, value any) error {
	for i := range c.Forces {
		if c.Forces[i].Name != name {
			continue
		}
		if c.Forces[i].Params == nil {
			c.Forces[i].Params = map[string]any{}
		}
		c.Forces[i].Params[param] = value
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownForce, name)
}
