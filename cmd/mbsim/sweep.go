package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/mbsim/internal/analysis"
	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/experiment"
	"github.com/spf13/cobra"
)

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadModel(cmd, args)
	if err != nil {
		return err
	}
	if len(sweepValues) == 0 {
		return errors.New("--values is required")
	}
	if !(sweepRecord > 0) {
		return errors.New("--record must be positive")
	}

	// Concurrent runs cannot share the console or output files.
	kept := cfg.Reporters[:0]
	hasEnergy := false
	for _, r := range cfg.Reporters {
		switch strings.ToLower(r.Kind) {
		case "console", "csv", "live":
			continue
		case "energy":
			hasEnergy = true
		}
		kept = append(kept, r)
	}
	cfg.Reporters = kept
	if !hasEnergy {
		cfg.Reporters = append(cfg.Reporters, config.ReporterConfig{Kind: "energy", Interval: sweepRecord})
	}

	s := experiment.NewSweep(cfg, sweepForce, sweepParam, sweepValues,
		experiment.WithOutput(io.Discard),
		experiment.WithRecording(sweepRecord),
	).Workers(workers)
	runs, runErr := s.Run()
	if runs == nil {
		return runErr
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %s.%s", cfg.Name, sweepForce, sweepParam)))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tPHASE\tSTEPS\tREJECTED\tFINAL ENERGY\tDAMPING RATIO\tNATURAL (rad/s)")
	for _, r := range runs {
		if r.Result == nil {
			fmt.Fprintf(w, "%g\t%s\t-\t-\t-\t-\t-\n", r.Value, errorStyle.Render("invalid"))
			continue
		}
		energy := "-"
		if en := r.Experiment.Energy(); en != nil {
			energy = fmt.Sprintf("%.4f", en.Summary().Final)
		}
		zeta, wn := "-", "-"
		if rec := r.Experiment.Recorder(); rec != nil && rec.Len() > 0 && len(rec.Samples()[0].Q) > 0 {
			if resp, err := analysis.Analyze(rec.Times(), rec.Coordinate(0)); err == nil {
				zeta = fmt.Sprintf("%.5f", resp.DampingRatio)
				wn = fmt.Sprintf("%.5f", resp.NaturalFrequency)
			}
		}
		fmt.Fprintf(w, "%g\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.Value, r.Result.Phase, r.Result.StepsAccepted, r.Result.StepsRejected, energy, zeta, wn)
	}
	if err := w.Flush(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
