package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alucardeht/amgp/internal/preset"
	"github.com/alucardeht/amgp/internal/temporal"
	"github.com/alucardeht/amgp/internal/timespec"
)

var (
	planTime     string
	planPolicy   string
	planTags     []string
	planQuantize string
	planIndex    int
	planPreset   string
	planExplain  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Resolve render timestamps",
	Long: `Resolve the timestamps of one time axis, or plan a whole preset.

Each --tag pools the resolution of one participating capability. The series
is quantized for --quantize, which defaults to the first tag.

Examples:
  amgp plan --time recent --tag 1h --tag 12h
  amgp plan --time "20240101-00:00:00 to 20240102-00:00:00 interval 06:00:00" --policy async --tag 6h,day1
  amgp plan --time recent --tag 3h --explain
  amgp plan --preset surface`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if planPreset != "" {
			return planFromPreset(cmd, planPreset)
		}
		return planAxis(cmd.OutOrStdout())
	},
}

func init() {
	planCmd.Flags().StringVarP(&planTime, "time", "t", "recent", "time expression")
	planCmd.Flags().StringVarP(&planPolicy, "policy", "m", "", "sync, async, nearest or raw (default time.default_policy)")
	planCmd.Flags().StringArrayVar(&planTags, "tag", nil, "pooled resolution, e.g. 6h or 6h,day1 (repeatable)")
	planCmd.Flags().StringVar(&planQuantize, "quantize", "", "resolution the series is quantized for")
	planCmd.Flags().IntVar(&planIndex, "index", -1, "only print figure n")
	planCmd.Flags().StringVarP(&planPreset, "preset", "p", "", "plan a preset file or name instead")
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "print the resolved expression and pooled tags first")
	rootCmd.AddCommand(planCmd)
}

func planAxis(w io.Writer) error {
	policy := cfg.Time.DefaultPolicy
	if planPolicy != "" {
		p, err := temporal.ParsePolicy(planPolicy)
		if err != nil {
			return err
		}
		policy = p
	}
	if len(planTags) == 0 {
		return errors.New("at least one --tag is required")
	}

	pass := temporal.NewPass(policy, temporal.WithMaxSteps(cfg.Time.MaxSteps))
	if err := pass.Parse(timespec.Spec{Expression: planTime}, time.Now().UTC()); err != nil {
		return err
	}
	if err := pass.Expand(); err != nil {
		return err
	}

	var first temporal.Resolution
	for i, tag := range planTags {
		res, err := temporal.ParseResolution(tag)
		if err != nil {
			return err
		}
		if i == 0 {
			first = res
		}
		if err := pass.Pool(fmt.Sprintf("tag-%d", i), res); err != nil {
			return err
		}
	}

	target := first
	if planQuantize != "" {
		res, err := temporal.ParseResolution(planQuantize)
		if err != nil {
			return err
		}
		target = res
	}
	if err := pass.Quantize(target); err != nil {
		return err
	}
	if planIndex >= 0 {
		if err := pass.Index(planIndex); err != nil {
			return err
		}
	}

	if planExplain {
		fmt.Fprintf(w, "# %s policy=%s pooled=%s\n", pass.Expression().Format(), pass.Policy(), temporal.Resolution(pass.Pooled()))
	}
	for _, ts := range pass.Times() {
		fmt.Fprintln(w, ts.Format(timespec.Layout))
	}
	return nil
}

func loadPreset(ref string) (*preset.Preset, error) {
	path, err := preset.Find(cfg.Presets.Dir, ref)
	if err != nil {
		return nil, err
	}
	return preset.Load(path, cfg.Time.DefaultPolicy)
}

func planFromPreset(cmd *cobra.Command, ref string) error {
	ps, err := loadPreset(ref)
	if err != nil {
		return err
	}
	planner, err := env.Planner(cmd.Context())
	if err != nil {
		return err
	}
	plan, err := planner.Plan(cmd.Context(), ps)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
