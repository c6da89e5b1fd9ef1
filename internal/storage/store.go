// Package storage persists finished runs: metadata as JSON, the config as
// YAML and the recorded trajectory as CSV, one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/experiment"
	"github.com/san-kum/mbsim/internal/reporters"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/sirupsen/logrus"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	statesFile   = "states.csv"
)

var ErrNoTrajectory = errors.New("run has no recorded trajectory")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Timestamp     time.Time          `json:"timestamp"`
	Duration      float64            `json:"duration"`
	EndTime       float64            `json:"end_time"`
	Integrator    string             `json:"integrator"`
	Accuracy      float64            `json:"accuracy"`
	Bodies        []string           `json:"bodies"`
	Phase         string             `json:"phase"`
	Error         string             `json:"error,omitempty"`
	StepsAccepted int                `json:"steps_accepted"`
	StepsRejected int                `json:"steps_rejected"`
	EventsFired   int                `json:"events_fired"`
	Samples       int                `json:"samples"`
	Metrics       map[string]float64 `json:"metrics"`
}

// Save writes a run to a fresh directory and returns its ID. runErr is the
// error StepTo returned, if any; failed runs are saved too.
func (s *Store) Save(e *experiment.Experiment, res *stepper.Result, runErr error) (string, error) {
	cfg := e.Config()
	runID := fmt.Sprintf("%s_%s", cfg.Name, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	tree := e.System().Tree()
	meta := RunMetadata{
		ID:         runID,
		Name:       cfg.Name,
		Timestamp:  time.Now(),
		Duration:   cfg.Duration,
		Integrator: e.Integrator().Tableau().Name,
		Accuracy:   e.Integrator().Accuracy(),
	}
	for _, b := range tree.Bodies()[1:] {
		meta.Bodies = append(meta.Bodies, b.Name)
	}
	if res != nil {
		meta.EndTime = res.State.Time()
		meta.Phase = res.Phase.String()
		meta.StepsAccepted = res.StepsAccepted
		meta.StepsRejected = res.StepsRejected
		meta.EventsFired = res.EventsFired
		meta.Metrics = make(map[string]float64, len(res.Metrics))
		for k, v := range res.Metrics {
			// JSON has no NaN or Inf.
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				meta.Metrics[k] = v
			}
		}
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	if rec := e.Recorder(); rec != nil {
		meta.Samples = rec.Len()
		header := []string{"time"}
		for i := 0; i < tree.NQ(); i++ {
			header = append(header, fmt.Sprintf("q%d", i))
		}
		for i := 0; i < tree.NU(); i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
		for _, id := range rec.Bodies() {
			b, err := tree.Body(id)
			if err != nil {
				return "", err
			}
			header = append(header, b.Name+".x", b.Name+".y", b.Name+".z")
		}
		if err := writeStates(filepath.Join(runDir, statesFile), header, rec.Samples()); err != nil {
			return "", err
		}
	}

	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	logrus.Infof("saved run %s to %s", runID, runDir)
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeStates(path string, header []string, samples []reporters.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, s := range samples {
		row := make([]string, 0, len(header))
		row = append(row, formatFloat(s.Time))
		for _, v := range s.Q {
			row = append(row, formatFloat(v))
		}
		for _, v := range s.U {
			row = append(row, formatFloat(v))
		}
		for _, p := range s.Origins {
			row = append(row, formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			logrus.Debugf("skipping %s: %v", entry.Name(), err)
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

// Trajectory is a recorded run as columns keyed by header name.
type Trajectory struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the named column, without the time column.
func (t *Trajectory) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, true
}

func (s *Store) LoadStates(runID string) (*Trajectory, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrNoTrajectory)
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrNoTrajectory)
	}

	tr := &Trajectory{Columns: records[0][1:]}
	for i, rec := range records[1:] {
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", runID, i+2, err)
			}
			row[j] = v
		}
		tr.Times = append(tr.Times, row[0])
		tr.Rows = append(tr.Rows, row[1:])
	}
	return tr, nil
}

// ExportData is a whole run in one JSON document.
type ExportData struct {
	Metadata RunMetadata `json:"metadata"`
	Columns  []string    `json:"columns,omitempty"`
	Times    []float64   `json:"times,omitempty"`
	Rows     [][]float64 `json:"rows,omitempty"`
}

func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Metadata: *meta}
	tr, err := s.LoadStates(runID)
	switch {
	case err == nil:
		data.Columns, data.Times, data.Rows = tr.Columns, tr.Times, tr.Rows
	case !errors.Is(err, ErrNoTrajectory):
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
