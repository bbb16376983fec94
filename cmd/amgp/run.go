package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alucardeht/amgp/internal/logger"
	"github.com/alucardeht/amgp/internal/preset"
	"github.com/alucardeht/amgp/internal/render"
	"github.com/alucardeht/amgp/internal/watcher"
)

var log = logger.ForComponent("cli")

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run <preset>",
	Short: "Plan a preset and emit its figure manifests",
	Long: `Plan a preset, write one JSON manifest line per figure and record the
plan in the history.

The preset is a file path or the name of a preset in presets.dir.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out, closeOut, err := openOutput(cmd)
		if err != nil {
			return err
		}
		defer closeOut()

		ps, err := loadPreset(args[0])
		if err != nil {
			return err
		}
		return execute(ctx, ps, render.NewJSONRenderer(out))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <preset>",
	Short: "Run a preset again whenever its file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path, err := preset.Find(cfg.Presets.Dir, args[0])
		if err != nil {
			return err
		}
		out, closeOut, err := openOutput(cmd)
		if err != nil {
			return err
		}
		defer closeOut()
		renderer := render.NewJSONRenderer(out)

		rerun := func() {
			if reg, err := env.Registry(ctx); err == nil {
				reg.Refresh()
			}
			ps, err := preset.Load(path, cfg.Time.DefaultPolicy)
			if err != nil {
				log.Error("preset unreadable, waiting for the next change", "path", path, "error", err)
				return
			}
			if err := execute(ctx, ps, renderer); err != nil {
				log.Error("run failed", "preset", ps.Name, "error", err)
			}
		}

		changes := make(chan struct{}, 1)
		w, err := watcher.New(cfg.Watch, func(events []watcher.FileEvent) {
			for _, e := range events {
				if e.Gone() {
					log.Warn("preset removed", "path", e.Path)
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
				return
			}
		})
		if err != nil {
			return err
		}
		if err := w.Add(path); err != nil {
			w.Stop()
			return err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return err
		}
		defer w.Stop()

		rerun()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
				log.Info("preset changed", "path", path)
				rerun()
			}
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, watchCmd} {
		c.Flags().StringVarP(&runOutput, "output", "o", "", "write manifests to this file instead of stdout")
		rootCmd.AddCommand(c)
	}
}

func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if runOutput == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.OpenFile(runOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func execute(ctx context.Context, ps *preset.Preset, renderer render.Renderer) error {
	planner, err := env.Planner(ctx)
	if err != nil {
		return err
	}
	plan, err := planner.Plan(ctx, ps)
	if err != nil {
		return err
	}
	recorder, err := env.Recorder()
	if err != nil {
		return err
	}
	return render.Execute(ctx, plan, renderer, recorder)
}
