package experiment

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/sirupsen/logrus"
)

// Sweep runs copies of a base config that differ in one force parameter.
// Each run has its own system and stepper, so runs proceed in parallel.
// The build options are shared by every run and must not carry per-run
// state such as metrics or a non-concurrent output writer.
type Sweep struct {
	base    *config.Config
	force   string
	param   string
	values  []float64
	workers int
	opts    []Option
}

// SweepRun is the outcome of one point of a sweep. Experiment is nil when
// the config could not be built.
type SweepRun struct {
	Value      float64
	Experiment *Experiment
	Result     *stepper.Result
	Err        error
}

func NewSweep(base *config.Config, force, param string, values []float64, opts ...Option) *Sweep {
	return &Sweep{
		base:    base,
		force:   force,
		param:   param,
		values:  values,
		workers: runtime.NumCPU(),
		opts:    opts,
	}
}

// Workers caps how many runs execute at once.
func (s *Sweep) Workers(n int) *Sweep {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Config returns the config for one sweep value.
func (s *Sweep) Config(value float64) (*config.Config, error) {
	cfg := s.base.Clone()
	if err := cfg.SetForceParam(s.force, s.param, value); err != nil {
		return nil, err
	}
	cfg.Name = fmt.Sprintf("%s_%s_%g", s.base.Name, s.param, value)
	return cfg, nil
}

// Run executes every point and returns them in the order of the values. A
// failed run does not stop the others; the returned error joins them all.
func (s *Sweep) Run() ([]SweepRun, error) {
	for _, v := range s.values {
		if _, err := s.Config(v); err != nil {
			return nil, err
		}
	}

	runs := make([]SweepRun, len(s.values))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, v := range s.values {
		wg.Add(1)
		go func(idx int, value float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			runs[idx] = s.runOne(value)
		}(i, v)
	}
	wg.Wait()

	var errs []error
	for _, r := range runs {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s=%g: %w", s.param, r.Value, r.Err))
		}
	}
	return runs, errors.Join(errs...)
}

func (s *Sweep) runOne(value float64) SweepRun {
	run := SweepRun{Value: value}
	cfg, err := s.Config(value)
	if err != nil {
		run.Err = err
		return run
	}
	e, err := Build(cfg, s.opts...)
	if err != nil {
		run.Err = err
		return run
	}
	run.Experiment = e
	run.Result, run.Err = e.Run()
	logrus.Debugf("sweep %s=%g done: %v", s.param, value, run.Err)
	return run
}
