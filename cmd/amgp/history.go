package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alucardeht/amgp/internal/history"
	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/timespec"
)

var (
	historyLimit     int
	historyOlderThan time.Duration
)

var errHistoryDisabled = errors.New("history is disabled (history.enabled: false)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded plans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		entries, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRESET\tANCHOR\tFIGURES\tWARNINGS")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", e.ID, e.Preset, e.Anchor.Format(timespec.Layout), e.Figures, e.Warnings)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Print a recorded plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("plan id: %w", err)
		}
		store, err := openHistory()
		if err != nil {
			return err
		}
		plan, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	},
}

var historyLayersCmd = &cobra.Command{
	Use:   "layers <uid> <capability>",
	Short: "List the timestamps a capability was resolved to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		uses, err := store.Layers(cmd.Context(), identifier.ID(args[0]), args[1], historyLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RESOLVED\tPLAN\tFIGURE\tAXIS")
		for _, u := range uses {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", u.ResolvedAt.Format(timespec.Layout), u.PlanID, u.Figure, u.Axis)
		}
		return tw.Flush()
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete plans older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		n, err := store.Prune(cmd.Context(), time.Now().Add(-historyOlderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d plans\n", n)
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "maximum rows to list")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "age of the plans to delete")
	historyCmd.AddCommand(historyShowCmd, historyLayersCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	store, err := env.History()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errHistoryDisabled
	}
	return store, nil
}
