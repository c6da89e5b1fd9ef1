package config

import (
	"fmt"
	"sort"
)

// The sliding block: 2 kg on a slider 10 m out along x, tied to the
// ground origin by a spring whose natural length is that distance, and
// launched at 10 m/s.
func slidingBlock() *Config {
	return &Config{
		Name:       "sliding_block",
		Duration:   60,
		Integrator: IntegratorConfig{Method: "merson", Accuracy: DefaultAccuracy},
		Bodies: []BodyConfig{{
			Name: "block1", Parent: GroundName, Joint: "slider",
			Mass: 2, Inertia: 1, Location: [3]float64{10, 0, 0}, U: 10,
		}},
		Forces: []ForceConfig{
			{Kind: "spring", Name: "tether", Params: map[string]any{
				"body_a": GroundName, "body_b": "block1", "stiffness": 10.0, "natural_length": 10.0,
			}},
			{Kind: "damper", Name: "drag", Params: map[string]any{
				"body_a": GroundName, "body_b": "block1", "damping": 0.1,
			}},
		},
		Reporters: []ReporterConfig{
			{Kind: "console", Interval: 0.1, Params: map[string]any{"body": "block1"}},
			{Kind: "csv", Interval: 0.1, Params: map[string]any{"path": "sliding_block.csv", "bodies": []string{"block1"}}},
			{Kind: "energy", Interval: 0.2},
		},
	}
}

var presets = map[string]func() *Config{
	"sliding_block": slidingBlock,
	"undamped": func() *Config {
		c := slidingBlock()
		c.Name = "undamped"
		c.Duration = 20
		c.Forces = c.Forces[:1]
		c.Reporters = []ReporterConfig{{Kind: "energy", Interval: 0.1}}
		return c
	},
	"two_block_chain": func() *Config {
		return &Config{
			Name:       "two_block_chain",
			Duration:   30,
			Integrator: IntegratorConfig{Method: "dopri", Accuracy: 1e-6},
			Bodies: []BodyConfig{
				{Name: "block1", Parent: GroundName, Joint: "slider", Mass: 1, Inertia: 1, Location: [3]float64{5, 0, 0}, U: 2},
				{Name: "block2", Parent: "block1", Joint: "slider", Mass: 1, Inertia: 1, Location: [3]float64{5, 0, 0}},
			},
			Forces: []ForceConfig{
				{Kind: "spring", Params: map[string]any{"body_a": GroundName, "body_b": "block1", "stiffness": 20.0, "natural_length": 5.0}},
				{Kind: "spring", Params: map[string]any{"body_a": "block1", "body_b": "block2", "stiffness": 20.0, "natural_length": 5.0}},
				{Kind: "damper", Params: map[string]any{"body_a": "block1", "body_b": "block2", "damping": 0.2}},
			},
			Reporters: []ReporterConfig{
				{Kind: "console", Interval: 0.5, Params: map[string]any{"body": "block2"}},
				{Kind: "recorder", Interval: 0.05},
				{Kind: "energy", Interval: 0.1},
			},
		}
	},
	"falling_block": func() *Config {
		return &Config{
			Name:       "falling_block",
			Duration:   2,
			Integrator: IntegratorConfig{Method: "merson", Accuracy: 1e-6},
			Bodies: []BodyConfig{{
				// Rotated so the slider axis points straight down.
				Name: "block1", Parent: GroundName, Joint: "slider",
				Mass: 1, Inertia: 1, Location: [3]float64{0, 20, 0}, Angle: -90,
			}},
			Forces: []ForceConfig{
				{Kind: "gravity", Params: map[string]any{"g": []float64{0, -9.81, 0}}},
			},
			Reporters: []ReporterConfig{
				{Kind: "console", Interval: 0.25, Params: map[string]any{"body": "block1"}},
				{Kind: "energy", Interval: 0.1},
			},
		}
	},
}

// Preset returns a fresh copy of the named preset.
func Preset(name string) (*Config, error) {
	f, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: preset %q", ErrUnknownKind, name)
	}
	return f(), nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
