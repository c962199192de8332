package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/metrics"
	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/runner"
	"github.com/deixis/ohosbuild/internal/workflow"
)

// app is the wiring shared by all commands.
type app struct {
	root   string
	cfg    *config.Config
	log    *logrus.Entry
	runner *runner.Runner
	engine *workflow.Engine
	store  report.Store
}

// newApp discovers the engine root, loads its configuration and builds
// the runner, engine and run store on top of it.
func newApp(g *globalFlags) (*app, error) {
	start, err := filepath.Abs(g.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	loaded, err := config.Load(start)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	level := cfg.LogLevel()
	if g.logLevel != "" {
		level = g.logLevel
	}
	log, err := newLogger(level)
	if err != nil {
		return nil, err
	}

	r := &runner.Runner{
		Workspace: loaded.Root,
		MaxOutput: cfg.MaxOutputBytes(),
		Log:       log,
		Observe:   metrics.Observe,
	}

	return &app{
		root:   loaded.Root,
		cfg:    cfg,
		log:    log,
		runner: r,
		engine: &workflow.Engine{
			Config:  cfg,
			Runner:  r,
			Root:    loaded.Root,
			Log:     log,
			Verbose: g.verbose,
		},
		store: report.NewLRUStore(16, report.NewDiskStore(filepath.Join(loaded.Root, config.RunsDir))),
	}, nil
}

// newLogger returns a stderr logger at the named level.
func newLogger(level string) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return logrus.NewEntry(l), nil
}

// tasks loads the configured task list, or path when set.
func (a *app) tasks(path string) ([]config.Task, error) {
	if path == "" {
		path = a.cfg.TasksFile()
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.root, path)
	}
	return config.LoadTasks(path)
}

// save stores rr for inspect, logging a warning on failure.
func (a *app) save(rr *report.RunResult) {
	if err := a.store.Save(rr); err != nil {
		a.log.WithError(err).Warn("Could not store run")
	}
}
