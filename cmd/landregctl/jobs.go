package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/jobs"
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "Inspect and cancel background jobs",
}

var jobsFilter struct {
	kind, state string
	application uint
	pageSize    int
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List background jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if jobsFilter.kind != "" {
			q.Set("kind", jobsFilter.kind)
		}
		if jobsFilter.state != "" {
			q.Set("state", jobsFilter.state)
		}
		if jobsFilter.application != 0 {
			q.Set("applicationId", strconv.FormatUint(uint64(jobsFilter.application), 10))
		}
		if jobsFilter.pageSize > 0 {
			q.Set("pageSize", strconv.Itoa(jobsFilter.pageSize))
		}
		path := "/jobs/"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp struct {
			Jobs          []jobs.JobResponse `json:"jobs"`
			NextPageToken string             `json:"nextPageToken"`
			TotalSize     int                `json:"totalSize"`
		}
		if err := newClient().getJSON(path, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, resp)
		}
		rows := make([][]string, len(resp.Jobs))
		for i, j := range resp.Jobs {
			app := "-"
			if j.ApplicationID != nil {
				app = uintString(*j.ApplicationID)
			}
			rows[i] = []string{j.ID, j.Kind, app, j.State, strconv.Itoa(j.AttemptCount), j.RequestedAt, truncate(j.LastError, 40)}
		}
		printTable(out, []string{"id", "kind", "application", "state", "attempts", "requested", "last error"}, rows)
		fmt.Fprintf(out, "\n%d of %d job(s)\n", len(resp.Jobs), resp.TotalSize)
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job jobs.JobResponse
		if err := newClient().getJSON("/jobs/"+url.PathEscape(args[0]), &job); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, job)
		}
		printJob(out, &job)
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]string
		if err := newClient().postJSON("/jobs/"+url.PathEscape(args[0])+"/cancel", nil, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, resp)
		}
		fmt.Fprintf(out, "Job %s canceled.\n", args[0])
		return nil
	},
}

func init() {
	f := jobsListCmd.Flags()
	f.StringVar(&jobsFilter.kind, "kind", "", "Filter by kind: detect, duplicates, retrain")
	f.StringVar(&jobsFilter.state, "state", "", "Filter by state: queued, running, succeeded, failed, canceled")
	f.UintVar(&jobsFilter.application, "application", 0, "Filter by application ID")
	f.IntVar(&jobsFilter.pageSize, "page-size", 0, "Maximum number of jobs to return")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
}

func printJob(w io.Writer, j *jobs.JobResponse) {
	fmt.Fprintf(w, "Job %s\n", j.ID)
	fmt.Fprintf(w, "  Kind:        %s\n", j.Kind)
	if j.ApplicationID != nil {
		fmt.Fprintf(w, "  Application: %d\n", *j.ApplicationID)
	}
	fmt.Fprintf(w, "  State:       %s\n", j.State)
	fmt.Fprintf(w, "  Requested:   %s by %s\n", j.RequestedAt, j.RequestedBy)
	if j.FinishedAt != "" {
		fmt.Fprintf(w, "  Finished:    %s (%d ms)\n", j.FinishedAt, j.DurationMs)
	}
	if j.Created > 0 || j.Existing > 0 {
		fmt.Fprintf(w, "  Conflicts:   %d new, %d existing\n", j.Created, j.Existing)
	}
	if j.Message != "" {
		fmt.Fprintf(w, "  Message:     %s\n", j.Message)
	}
	if j.LastError != "" {
		fmt.Fprintf(w, "  Last error:  %s (attempt %d)\n", j.LastError, j.AttemptCount)
	}
}
