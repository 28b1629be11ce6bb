package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

type auditEvent struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Table     string         `json:"table,omitempty"`
	RecordID  string         `json:"recordId,omitempty"`
	Outcome   string         `json:"outcome"`
	RequestID string         `json:"requestId,omitempty"`
	OldValues map[string]any `json:"oldValues,omitempty"`
	NewValues map[string]any `json:"newValues,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

var auditFilter struct {
	actor, action, table, record string
	pageSize                     int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse the audit trail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for key, v := range map[string]string{
			"actor":    auditFilter.actor,
			"action":   auditFilter.action,
			"table":    auditFilter.table,
			"recordId": auditFilter.record,
		} {
			if v != "" {
				q.Set(key, v)
			}
		}
		if auditFilter.pageSize > 0 {
			q.Set("pageSize", strconv.Itoa(auditFilter.pageSize))
		}
		path := "/audit/events"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp struct {
			Events        []auditEvent `json:"events"`
			NextPageToken string       `json:"nextPageToken"`
			TotalSize     int          `json:"totalSize"`
		}
		if err := newClient().getJSON(path, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, resp)
		}
		rows := make([][]string, len(resp.Events))
		for i, e := range resp.Events {
			rows[i] = []string{e.CreatedAt, e.Actor, e.Action, e.Table, e.RecordID, e.Outcome}
		}
		printTable(out, []string{"time", "actor", "action", "table", "record", "outcome"}, rows)
		if resp.NextPageToken != "" {
			fmt.Fprintf(out, "\nMore events available (%d total).\n", resp.TotalSize)
		}
		return nil
	},
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFilter.actor, "actor", "", "Filter by actor")
	f.StringVar(&auditFilter.action, "action", "", "Filter by action")
	f.StringVar(&auditFilter.table, "table", "", "Filter by table name")
	f.StringVar(&auditFilter.record, "record", "", "Filter by record ID")
	f.IntVar(&auditFilter.pageSize, "page-size", 0, "Maximum number of events to return")
}
