package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/experiment"
	"github.com/san-kum/mbsim/internal/metrics"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/san-kum/mbsim/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func isTerminal(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// loadModel picks the config file, else the named preset, else the default
// model, then applies command-line overrides.
func loadModel(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case configFile != "":
		cfg, err = config.Load(configFile)
	case len(args) == 1:
		cfg, err = config.Preset(args[0])
		if err != nil {
			err = fmt.Errorf("%w (available: %s)", err, strings.Join(config.PresetNames(), ", "))
		}
	default:
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("accuracy") {
		cfg.Integrator.Accuracy = accuracy
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator.Method = integrator
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadModel(cmd, args)
	if err != nil {
		return err
	}
	if quiet {
		kept := cfg.Reporters[:0]
		for _, r := range cfg.Reporters {
			if !strings.EqualFold(r.Kind, "console") {
				kept = append(kept, r)
			}
		}
		cfg.Reporters = kept
	}

	drift := metrics.NewEnergyDrift()
	e, err := experiment.Build(cfg,
		experiment.WithOutput(os.Stdout),
		experiment.WithDir(outDir),
		experiment.WithRecording(record),
		experiment.WithStepperOptions(
			stepper.WithMetric(drift),
			stepper.WithMetric(metrics.NewStability(1e6)),
		),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	res, runErr := e.Run()
	elapsed := time.Since(start)

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return errors.Join(runErr, err)
		}
		if runID, err = st.Save(e, res, runErr); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if res != nil {
		printSummary(e, res, runID, elapsed)
	}
	return runErr
}

func printSummary(e *experiment.Experiment, res *stepper.Result, runID string, elapsed time.Duration) {
	var b strings.Builder
	row := func(label, format string, args ...any) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(fmt.Sprintf(format, args...)) + "\n")
	}

	status := okStyle.Render(res.Phase.String())
	if res.Phase == stepper.Failed {
		status = errorStyle.Render(res.Phase.String())
	}
	b.WriteString(titleStyle.Render(e.Config().Name) + "  " + status + "\n\n")
	if runID != "" {
		row("run id", "%s", runID)
	}
	row("end time", "%.6g s", res.State.Time())
	row("wall time", "%v", elapsed.Round(time.Millisecond))
	row("integrator", "%s (accuracy %g)", e.Integrator().Tableau().Name, e.Integrator().Accuracy())
	row("steps", "%d accepted, %d rejected", res.StepsAccepted, res.StepsRejected)
	row("rhs evaluations", "%d", res.Integrator.Evaluations)
	row("reports", "%d", res.EventsFired)
	if en := e.Energy(); en != nil && len(en.Samples()) > 0 {
		sum := en.Summary()
		row("energy", "%.6g -> %.6g", sum.Initial, sum.Final)
		row("dissipated", "%.6g", sum.Dissipated)
	}

	keys := make([]string, 0, len(res.Metrics))
	for k := range res.Metrics {
		if !strings.HasPrefix(k, "mbsim_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		row(k, "%.6g", res.Metrics[k])
	}

	out := strings.TrimRight(b.String(), "\n")
	if isTerminal(os.Stdout) {
		out = boxStyle.Render(out)
	}
	fmt.Println(out)
}
