package experiment

import (
	"testing"

	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func energyOnly(t *testing.T) *config.Config {
	cfg := preset(t, "sliding_block")
	cfg.Duration = 2
	cfg.Reporters = []config.ReporterConfig{{Kind: "energy", Interval: 0.1}}
	return cfg
}

func TestSweep_Damping(t *testing.T) {
	base := energyOnly(t)
	values := []float64{0, 0.5, 2, 8}

	runs, err := NewSweep(base, "drag", "damping", values).Workers(2).Run()
	require.NoError(t, err)
	require.Len(t, runs, len(values))

	prev := 0.0
	for i, r := range runs {
		require.NoError(t, r.Err)
		assert.Equal(t, values[i], r.Value)
		assert.Equal(t, stepper.Finished, r.Result.Phase)
		final := r.Experiment.Energy().Summary().Final
		if i == 0 {
			assert.InDelta(t, 100, final, 0.5)
		} else {
			assert.Less(t, final, prev, "damping %g", r.Value)
		}
		prev = final
	}

	// The base config is left alone.
	assert.Equal(t, 0.1, base.Forces[1].Params["damping"])
}

func TestSweep_Config(t *testing.T) {
	s := NewSweep(energyOnly(t), "tether", "stiffness", []float64{20})
	cfg, err := s.Config(20)
	require.NoError(t, err)
	assert.Equal(t, "sliding_block_stiffness_20", cfg.Name)
	assert.Equal(t, 20.0, cfg.Forces[0].Params["stiffness"])
}

func TestSweep_UnknownForce(t *testing.T) {
	_, err := NewSweep(energyOnly(t), "brake", "damping", []float64{1}).Run()
	assert.ErrorIs(t, err, config.ErrUnknownForce)
}

func TestSweep_FailedPointKeepsOthers(t *testing.T) {
	runs, err := NewSweep(energyOnly(t), "drag", "damping", []float64{0.1, -1}).Run()
	require.Error(t, err)
	require.Len(t, runs, 2)
	assert.NoError(t, runs[0].Err)
	assert.NotNil(t, runs[0].Result)
	assert.Error(t, runs[1].Err)
	assert.Nil(t, runs[1].Experiment)
}
