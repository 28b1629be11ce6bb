package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/resolution"
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Aliases: []string{"conflict"},
	Short:   "List, inspect and resolve detected conflicts",
}

var conflictStatus string

var conflictsListCmd = &cobra.Command{
	Use:   "list <application-id>",
	Short: "List the conflicts recorded for an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/applications/%d/conflicts", id)
		if conflictStatus != "" {
			path += "?" + url.Values{"status": {conflictStatus}}.Encode()
		}

		var resp struct {
			Conflicts []registry.Conflict `json:"conflicts"`
			TotalSize int                 `json:"totalSize"`
		}
		if err := newClient().getJSON(path, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, resp)
		}
		if len(resp.Conflicts) == 0 {
			fmt.Fprintln(out, "No conflicts found.")
			return nil
		}
		printConflicts(out, resp.Conflicts)
		return nil
	},
}

var conflictsGetCmd = &cobra.Command{
	Use:   "get <conflict-id>",
	Short: "Show one conflict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var c registry.Conflict
		if err := newClient().getJSON(fmt.Sprintf("/conflicts/%d", id), &c); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, c)
		}
		fmt.Fprintf(out, "Conflict %d: %s\n", c.ID, c.Title)
		fmt.Fprintf(out, "  Application:  %d\n", c.ApplicationID)
		fmt.Fprintf(out, "  Counterpart:  %s %d\n", c.CounterpartKind, c.CounterpartID)
		fmt.Fprintf(out, "  Type:         %s\n", c.ConflictType)
		fmt.Fprintf(out, "  Severity:     %s\n", c.Severity)
		fmt.Fprintf(out, "  Confidence:   %s\n", score(c.ConfidenceScore))
		if c.OverlapPercentage != nil {
			fmt.Fprintf(out, "  Overlap:      %s%%\n", score(*c.OverlapPercentage))
		}
		fmt.Fprintf(out, "  Status:       %s\n", c.Status)
		if c.ResolvedBy != "" {
			fmt.Fprintf(out, "  Resolved by:  %s\n", c.ResolvedBy)
		}
		if c.ResolutionNotes != "" {
			fmt.Fprintf(out, "  Notes:        %s\n", c.ResolutionNotes)
		}
		if c.Description != "" {
			fmt.Fprintf(out, "\n%s\n", c.Description)
		}
		return nil
	},
}

var resolveNotes string

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Mark a conflict as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		body := map[string]string{"notes": resolveNotes}

		var result resolution.Result
		if err := newClient().postJSON(fmt.Sprintf("/conflicts/%d/resolve", id), body, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, result)
		}
		fmt.Fprintf(out, "Conflict %d resolved (was %s).\n", result.Conflict.ID, result.PriorStatus)
		fmt.Fprintf(out, "Application %d is now %s.\n", result.Conflict.ApplicationID, result.ApplicationStatus)
		return nil
	},
}

func init() {
	conflictsListCmd.Flags().StringVar(&conflictStatus, "status", "", "Filter by status: unresolved or resolved")
	conflictsResolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "Resolution notes")

	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsGetCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
}
