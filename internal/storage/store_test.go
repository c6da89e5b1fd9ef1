package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/experiment"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

// saveRun runs a preset with its reporters stripped and saves it.
func saveRun(t *testing.T, st *Store, name string, duration, record float64) string {
	t.Helper()
	cfg, err := config.Preset(name)
	require.NoError(t, err)
	cfg.Duration = duration
	cfg.Reporters = nil

	var opts []experiment.Option
	if record > 0 {
		opts = append(opts, experiment.WithRecording(record))
	}
	e, err := experiment.Build(cfg, opts...)
	require.NoError(t, err)
	res, err := e.Run()
	require.NoError(t, err)
	runID, err := st.Save(e, res, nil)
	require.NoError(t, err)
	return runID
}

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	require.NoError(t, st.Init())

	cfg, err := config.Preset("sliding_block")
	require.NoError(t, err)
	cfg.Duration = 1
	cfg.Reporters = nil
	e, err := experiment.Build(cfg, experiment.WithRecording(0.1))
	require.NoError(t, err)
	res, err := e.Run()
	require.NoError(t, err)

	runID, err := st.Save(e, res, nil)
	require.NoError(t, err)
	assert.Regexp(t, `^sliding_block_[0-9a-f]{8}$`, runID)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "sliding_block", meta.Name)
	assert.Equal(t, "finished", meta.Phase)
	assert.Equal(t, "merson", meta.Integrator)
	assert.Equal(t, []string{"block1"}, meta.Bodies)
	assert.Equal(t, 11, meta.Samples)
	assert.Equal(t, 1.0, meta.EndTime)
	assert.Equal(t, float64(res.StepsAccepted), meta.Metrics["mbsim_steps_accepted_total"])
	assert.Empty(t, meta.Error)

	tr, err := st.LoadStates(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"q0", "u0", "block1.x", "block1.y", "block1.z"}, tr.Columns)
	require.Len(t, tr.Times, 11)
	assert.Equal(t, 1.0, tr.Times[10])

	q, ok := tr.Column("q0")
	require.True(t, ok)
	x, ok := tr.Column("block1.x")
	require.True(t, ok)
	for i := range q {
		assert.InDelta(t, 10+q[i], x[i], 1e-12)
	}
	u, _ := tr.Column("u0")
	assert.Equal(t, 10.0, u[0])
	assert.Equal(t, e.Recorder().Coordinate(0), q)
	_, ok = tr.Column("nope")
	assert.False(t, ok)

	loaded, err := st.LoadConfig(runID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Bodies, loaded.Bodies)
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, st.Init())
	a := saveRun(t, st, "undamped", 0.5, 0)
	b := saveRun(t, st, "undamped", 0.5, 0)
	assert.NotEqual(t, a, b)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "junk"), 0755))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[1].Timestamp.Before(runs[0].Timestamp))
}

func TestStore_NoTrajectory(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	runID := saveRun(t, st, "undamped", 0.5, 0)

	_, err := st.LoadStates(runID)
	assert.True(t, errors.Is(err, ErrNoTrajectory))

	var buf bytes.Buffer
	require.NoError(t, st.ExportJSON(runID, &buf))
	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, runID, data.Metadata.ID)
	assert.Empty(t, data.Rows)
}

func TestStore_ExportJSON(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	runID := saveRun(t, st, "falling_block", 1, 0.25)

	var buf bytes.Buffer
	require.NoError(t, st.ExportJSON(runID, &buf))
	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "falling_block", data.Metadata.Name)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, data.Times)
	require.Len(t, data.Rows, 5)
	assert.InDelta(t, 0.5*9.81, data.Rows[4][0], 1e-9)
}

func TestStore_LoadMissing(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("nope")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
