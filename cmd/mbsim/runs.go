package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mbsim/internal/analysis"
	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tEND\tINTEG\tPHASE\tSTEPS\tSAMPLES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%s\t%s\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.EndTime,
			run.Integrator,
			run.Phase,
			run.StepsAccepted,
			run.Samples,
		)
	}
	return w.Flush()
}

// plotWidth fits plots to the terminal, leaving room for the axis labels.
func plotWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		return min(w-12, 120)
	}
	return 80
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(tr.Rows) == 0 {
		return fmt.Errorf("run %s: no data to plot", runID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Name)
	fmt.Printf("samples: %d over %.4gs\n\n", len(tr.Rows), meta.EndTime)

	columns := tr.Columns
	if column != "" {
		columns = []string{column}
	}
	const maxPlots = 6
	plotted := 0
	for _, name := range columns {
		if plotted == maxPlots {
			break
		}
		data, ok := tr.Column(name)
		if !ok {
			return fmt.Errorf("run %s has no column %q (have %s)", runID, name, strings.Join(tr.Columns, ", "))
		}
		if column == "" && flat(data) {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(plotWidth()),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
		plotted++
	}
	return nil
}

func flat(data []float64) bool {
	for _, v := range data {
		if v != data[0] {
			return false
		}
	}
	return true
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	data, ok := tr.Column(analyzeColumn)
	if !ok {
		return fmt.Errorf("run %s has no column %q (have %s)", runID, analyzeColumn, strings.Join(tr.Columns, ", "))
	}

	fmt.Printf("response analysis: %s\n", meta.ID)
	fmt.Printf("model: %s, column %s\n\n", meta.Name, analyzeColumn)

	ps := analysis.PowerSpectrum(data)
	if len(ps) > 8 {
		graph := asciigraph.Plot(ps[:len(ps)/4],
			asciigraph.Height(12),
			asciigraph.Width(plotWidth()),
			asciigraph.Caption("amplitude spectrum ("+analyzeColumn+")"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	resp, err := analysis.Analyze(tr.Times, data)
	if err != nil {
		return err
	}
	fmt.Printf("spectral peak:      %.4f Hz\n", resp.SpectralPeakHz)
	fmt.Printf("damped frequency:   %.4f rad/s (period %.4f s)\n", resp.DampedFrequency, 2*math.Pi/resp.DampedFrequency)
	fmt.Printf("natural frequency:  %.4f rad/s\n", resp.NaturalFrequency)
	fmt.Printf("log decrement:      %.5f over %d peaks\n", resp.LogDecrement, len(resp.Peaks))
	fmt.Printf("damping ratio:      %.5f\n", resp.DampingRatio)

	if phase && strings.HasPrefix(analyzeColumn, "q") {
		speed, ok := tr.Column("u" + strings.TrimPrefix(analyzeColumn, "q"))
		if ok {
			fmt.Println()
			fmt.Println("phase portrait (" + analyzeColumn + " vs speed)")
			fmt.Print(analysis.NewPhasePortrait(data, speed).ASCII(60, 20))
		}
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(args[0], os.Stdout)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBODIES\tFORCES\tREPORTERS\tDURATION\tINTEG")
	for _, name := range config.PresetNames() {
		cfg, err := config.Preset(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%gs\t%s\n",
			name, len(cfg.Bodies), len(cfg.Forces), len(cfg.Reporters), cfg.Duration, cfg.Integrator.Method)
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "mbsim.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg, err := config.Preset(preset)
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s (from preset %s)\n", path, preset)
	return nil
}
