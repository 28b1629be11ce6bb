package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/jobs"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// enqueued is the body of a 202 from the detect and retrain endpoints.
type enqueued struct {
	Job          jobs.JobResponse `json:"job"`
	Deduplicated bool             `json:"deduplicated"`
}

var (
	detectSync       bool
	detectDuplicates bool
)

var detectCmd = &cobra.Command{
	Use:   "detect <application-id>",
	Short: "Run conflict detection for an application",
	Long: `Run conflict detection for an application.

By default the server queues a background job and the job is printed. With
--sync the detection runs within the request and the report is printed.
--duplicates restricts the run to the exact-file, content and identity
detectors.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		q := url.Values{}
		if detectSync {
			q.Set("sync", "true")
		}
		if detectDuplicates {
			q.Set("mode", detection.ModeDuplicates)
		}
		path := fmt.Sprintf("/applications/%d/detect", id)
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		client := newClient()
		out := cmd.OutOrStdout()

		if detectSync {
			var report detection.Report
			if err := client.postJSON(path, nil, &report); err != nil {
				return err
			}
			if structured() {
				return printOutput(out, report)
			}
			printReport(out, &report)
			return nil
		}

		var resp enqueued
		if err := client.postJSON(path, nil, &resp, http.StatusAccepted); err != nil {
			return err
		}
		if structured() {
			return printOutput(out, resp)
		}
		printJob(out, &resp.Job)
		if resp.Deduplicated {
			fmt.Fprintln(out, "An identical job was already queued; no new job was created.")
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().BoolVar(&detectSync, "sync", false, "Run detection within the request and print the report")
	detectCmd.Flags().BoolVar(&detectDuplicates, "duplicates", false, "Only run the duplicate detectors")
}

func printReport(w io.Writer, r *detection.Report) {
	fmt.Fprintf(w, "Application %d (%s): %d findings, %d new, %d already recorded, %d skipped\n",
		r.ApplicationID, r.Mode, r.Total, len(r.Created), r.Existing, r.Skipped)
	fmt.Fprintf(w, "Conflict score %s, duplicate score %s, %d unresolved, status %s\n\n",
		score(r.ConflictScore), score(r.DuplicateScore), r.Unresolved, r.Status)
	if len(r.Created) > 0 {
		printConflicts(w, r.Created)
	}
}

func printConflicts(w io.Writer, conflicts []registry.Conflict) {
	rows := make([][]string, len(conflicts))
	for i, c := range conflicts {
		rows[i] = []string{
			uintString(c.ID),
			string(c.ConflictType),
			string(c.Severity),
			score(c.ConfidenceScore),
			string(c.Status),
			fmt.Sprintf("%s %d", c.CounterpartKind, c.CounterpartID),
			truncate(c.Title, 48),
		}
	}
	printTable(w, []string{"id", "type", "severity", "confidence", "status", "counterpart", "title"}, rows)
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return uint(v), nil
}
