package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	duration   float64
	accuracy   float64
	integrator string
	outDir     string
	record     float64
	noSave     bool
	quiet      bool
	// live view
	interval float64
	speed    float64
	theme    string
	// plot and analyze
	column        string
	analyzeColumn string
	phase         bool
	// init-config
	preset string
	// sweep
	sweepForce  string
	sweepParam  string
	sweepValues []float64
	workers     int
	sweepRecord float64
)

// main registers the commands and exits 1 if the chosen one fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "mbsim",
		Short:         "staged multibody dynamics with event-scheduled stepping",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mbsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)
	runCmd.Flags().StringVar(&outDir, "out", ".", "directory for reporter output files")
	runCmd.Flags().Float64Var(&record, "record", 0.1, "trajectory sampling interval for storage (0 disables)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "drop console reporters")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addModelFlags(liveCmd)
	liveCmd.Flags().StringVar(&outDir, "out", ".", "directory for reporter output files")
	liveCmd.Flags().Float64Var(&record, "record", 0.1, "trajectory sampling interval for storage (0 disables)")
	liveCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")
	liveCmd.Flags().Float64Var(&interval, "interval", 0.2, "frame interval in simulated seconds")
	liveCmd.Flags().Float64Var(&speed, "speed", 1, "simulated seconds per wall second (0 runs flat out)")
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "", "plot only this column")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "measure natural frequency and damping ratio",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&analyzeColumn, "column", "q0", "displacement column to analyze")
	analyzeCmd.Flags().BoolVar(&phase, "phase", false, "also draw the phase portrait")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "write a saved run as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in models",
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a preset as an editable YAML config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "sliding_block", "preset to start from")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "run one model over a range of force parameter values in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepForce, "force", "drag", "name of the force to vary")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "damping", "force parameter to vary")
	sweepCmd.Flags().Float64SliceVar(&sweepValues, "values", nil, "comma-separated parameter values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (defaults to the number of CPUs)")
	sweepCmd.Flags().Float64Var(&sweepRecord, "record", 0.05, "sampling interval for the response analysis")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, initCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml); overrides the preset")
	cmd.Flags().Float64Var(&duration, "time", 0, "stop time (defaults to the model's)")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "integrator accuracy (defaults to the model's)")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator: merson or dopri")
}
