package main

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alucardeht/amgp/internal/components"
	"github.com/alucardeht/amgp/internal/config"
	"github.com/alucardeht/amgp/internal/history"
	"github.com/alucardeht/amgp/internal/logger"
	"github.com/alucardeht/amgp/internal/plugin"
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/render"
)

var (
	cfgFile  string
	logLevel string
	cfg      config.Config
	env      = &environment{}
)

var rootCmd = &cobra.Command{
	Use:          "amgp",
	Short:        "Component registry and render time resolution",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .amgp/config.yaml, then ~/.config/amgp/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn or error (overrides log.level)")
}

func initConfig() error {
	v := viper.New()
	if f := rootCmd.PersistentFlags().Lookup("log-level"); f != nil && f.Changed {
		v.Set("log.level", logLevel)
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Log.Format
	logger.Init(logCfg)

	return cfg.EnsureDirectories()
}

// environment holds what subcommands share, opened on first use.
type environment struct {
	regOnce sync.Once
	reg     *registry.Registry
	regErr  error

	histOnce sync.Once
	hist     *history.Store
	histErr  error
}

// Registry discovers components once: the built-ins first, then the user
// plugin directory.
func (e *environment) Registry(ctx context.Context) (*registry.Registry, error) {
	e.regOnce.Do(func() {
		locations := []registry.Location{
			components.Location(),
			registry.NewDirLocation(cfg.Plugins.Dir, cfg.Plugins.Optional, plugin.Opener(cfg.Plugins.Config)),
		}
		e.reg, e.regErr = registry.Discover(ctx, locations, registry.WithPatterns(cfg.Plugins.Patterns...))
	})
	return e.reg, e.regErr
}

// History opens the plan history, or returns nil when it is disabled.
func (e *environment) History() (*history.Store, error) {
	e.histOnce.Do(func() {
		if !cfg.History.Enabled {
			return
		}
		e.hist, e.histErr = history.Open(cfg.History.DBPath)
	})
	return e.hist, e.histErr
}

// Recorder is History as a render.Recorder; nil when history is disabled.
func (e *environment) Recorder() (render.Recorder, error) {
	store, err := e.History()
	if err != nil || store == nil {
		return nil, err
	}
	return store, nil
}

func (e *environment) Planner(ctx context.Context) (*render.Planner, error) {
	reg, err := e.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return render.NewPlanner(reg, render.WithMaxSteps(cfg.Time.MaxSteps)), nil
}

// Close stops plugin processes and closes the history. It runs whether or
// not the command failed.
func (e *environment) Close() error {
	var errs []error
	if e.reg != nil {
		errs = append(errs, e.reg.Close())
	}
	if e.hist != nil {
		errs = append(errs, e.hist.Close())
	}
	return errors.Join(errs...)
}
