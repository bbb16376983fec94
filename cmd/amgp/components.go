package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/plugin"
	"github.com/alucardeht/amgp/internal/registry"
)

var (
	componentsRole string
	componentsPing bool
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List discovered components by role",
	Long: `List every discovered component, grouped by role and ordered by
priority inside each role.

Examples:
  amgp components
  amgp components --role data
  amgp components --ping`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := env.Registry(cmd.Context())
		if err != nil {
			return err
		}

		roles := identifier.Roles
		if componentsRole != "" {
			role, err := identifier.ParseRole(componentsRole)
			if err != nil {
				return err
			}
			roles = []identifier.RoleClass{role}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		header := "ROLE\tID\tNAME\tLOCATION"
		if componentsPing {
			header += "\tSTATUS"
		}
		fmt.Fprintln(tw, header)
		for _, role := range roles {
			for _, rec := range reg.AllOfRole(role) {
				line := fmt.Sprintf("%s\t%s\t%s\t%s", role, rec.ID, rec.Name, rec.Location)
				if componentsPing {
					line += "\t" + ping(cmd.Context(), rec)
				}
				fmt.Fprintln(tw, line)
			}
		}
		return tw.Flush()
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities <name|uid>",
	Short: "List the capabilities of a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := env.Registry(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := reg.Resolve(args[0])
		if err != nil {
			return err
		}
		caps, err := rec.Capabilities(cmd.Context())
		if err != nil {
			return err
		}

		names := make([]string, 0, len(caps))
		for name := range caps {
			names = append(names, name)
		}
		sort.Strings(names)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTIME FORMAT\tFILL\tOPTIONS\tDESCRIPTION")
		for _, name := range names {
			c := caps[name]
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", name, c.Resolution, c.Fill, formatOptions(c.Options), c.Description)
		}
		return tw.Flush()
	},
}

func init() {
	componentsCmd.Flags().StringVarP(&componentsRole, "role", "r", "", "only list one role: utility, data or menu")
	componentsCmd.Flags().BoolVar(&componentsPing, "ping", false, "ask each component whether it is reachable")
	rootCmd.AddCommand(componentsCmd, capabilitiesCmd)
}

func ping(ctx context.Context, rec *registry.Record) string {
	p, ok := rec.Component.(registry.Pinger)
	if !ok {
		return "-"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	status, err := p.Ping(ctx)
	if err != nil {
		status = "error: " + err.Error()
	}
	if proc, ok := rec.Component.(*plugin.Process); ok {
		status += " " + describeStats(proc.Stats())
	}
	return status
}

func describeStats(s plugin.Stats) string {
	return fmt.Sprintf("(%s, breaker %s, %d requests, %d errors, up %s)",
		s.State, s.Breaker, s.RequestCount, s.ErrorCount, s.Uptime.Truncate(time.Second))
}

func formatOptions(opts map[string][]string) string {
	if len(opts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(opts[k], "|")))
	}
	return strings.Join(parts, " ")
}
