package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness and readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var health map[string]any
		if err := client.getRoot("/healthz", &health); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		var ready map[string]any
		if err := client.getRoot("/readyz", &ready); err != nil {
			return fmt.Errorf("readiness check failed: %w", err)
		}

		if structured() {
			return printOutput(cmd.OutOrStdout(), map[string]any{"health": health, "ready": ready})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Health:    %v (uptime %v)\n", health["status"], health["uptime"])
		fmt.Fprintf(out, "Readiness: %v\n", ready["status"])
		if components, ok := ready["components"].(map[string]any); ok {
			names := make([]string, 0, len(components))
			for name := range components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-10s %v\n", name+":", components[name])
			}
		}
		return nil
	},
}
