package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/experiment"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/san-kum/mbsim/internal/storage"
	"github.com/san-kum/mbsim/internal/viz"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type outcome struct {
	res *stepper.Result
	err error
}

// runLive steps on a worker goroutine and draws frames as they arrive.
// Quitting the view detaches it; the run still finishes and is saved.
func runLive(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdout) {
		return errors.New("live view needs a terminal; use run instead")
	}
	cfg, err := loadModel(cmd, args)
	if err != nil {
		return err
	}
	th, ok := viz.GetTheme(theme)
	if !ok {
		return fmt.Errorf("unknown theme %q (available: %v)", theme, viz.ThemeNames())
	}

	// Console output would tear the picture.
	kept := cfg.Reporters[:0]
	hasLive := false
	for _, r := range cfg.Reporters {
		switch strings.ToLower(r.Kind) {
		case "console":
			continue
		case "live":
			hasLive = true
		}
		kept = append(kept, r)
	}
	cfg.Reporters = kept
	if !hasLive {
		cfg.Reporters = append(cfg.Reporters, config.ReporterConfig{
			Kind:     "live",
			Interval: interval,
			Params:   map[string]any{"speed": speed},
		})
	}

	// Logs go to stderr and would garble the view.
	logrus.SetLevel(logrus.ErrorLevel)

	p := tea.NewProgram(viz.NewModel(cfg.Name, cfg.Duration, th), tea.WithAltScreen())
	var live *viz.LiveReporter
	reg := experiment.NewRegistry()
	reg.RegisterReporter("live", func(env *experiment.Env, params any) (stepper.Reporter, error) {
		lp := params.(*config.LiveParams)
		live = viz.NewLiveReporter(p, env.System, viz.WithSpeed(lp.Speed))
		return live, nil
	})

	e, err := experiment.Build(cfg,
		experiment.WithRegistry(reg),
		experiment.WithDir(outDir),
		experiment.WithRecording(record),
	)
	if err != nil {
		return err
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := e.Run()
		done <- outcome{res, err}
		p.Send(viz.DoneMsg{Result: res, Err: err})
	}()

	_, viewErr := p.Run()
	live.Detach()
	out := <-done
	if viewErr != nil {
		return errors.Join(out.err, viewErr)
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return errors.Join(out.err, err)
		}
		runID, err := st.Save(e, out.res, out.err)
		if err != nil {
			return errors.Join(out.err, err)
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return out.err
}
