package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alucardeht/amgp/internal/preset"
)

var presetsSaveName string

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage the presets in presets.dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPresets(cmd)
	},
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List preset names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPresets(cmd)
	},
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Validate a preset file and store it in presets.dir",
	Long: `Validate a preset file and store it in presets.dir under its name, so
run, watch and plan --preset can refer to it by name.

Examples:
  amgp presets save ./surface.yaml
  amgp presets save ./draft.yaml --name surface-nightly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, err := preset.Load(args[0], cfg.Time.DefaultPolicy)
		if err != nil {
			return err
		}
		if presetsSaveName != "" {
			ps.Name = presetsSaveName
		}
		path, err := preset.Save(cfg.Presets.Dir, ps)
		if err != nil {
			return err
		}
		log.Info("preset saved", "name", ps.Name, "path", path)
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	presetsSaveCmd.Flags().StringVar(&presetsSaveName, "name", "", "store the preset under this name")
	presetsCmd.AddCommand(presetsListCmd, presetsSaveCmd)
	rootCmd.AddCommand(presetsCmd)
}

func listPresets(cmd *cobra.Command) error {
	names, err := preset.List(cfg.Presets.Dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
