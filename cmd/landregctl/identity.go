package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type identityMatch struct {
	ID              uint   `json:"id"`
	ReferenceNumber string `json:"referenceNumber"`
	ApplicantName   string `json:"applicantName"`
	NRC             string `json:"nrc"`
	TPIN            string `json:"tpin,omitempty"`
	Status          string `json:"status"`
	SubmittedAt     string `json:"submittedAt"`
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Look up applications by identity number",
}

var (
	identityNRC     string
	identityTPIN    string
	identityExclude uint
)

var identityCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Find applications that share an NRC or TPIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		if identityNRC == "" && identityTPIN == "" {
			return fmt.Errorf("at least one of --nrc or --tpin is required")
		}
		body := map[string]any{
			"nrc":       identityNRC,
			"tpin":      identityTPIN,
			"excludeId": identityExclude,
		}

		var resp struct {
			Duplicate bool            `json:"duplicate"`
			Matches   []identityMatch `json:"matches"`
		}
		if err := newClient().postJSON("/identity-check", body, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, resp)
		}
		if !resp.Duplicate {
			fmt.Fprintln(out, "No existing application uses these identifiers.")
			return nil
		}
		rows := make([][]string, len(resp.Matches))
		for i, m := range resp.Matches {
			rows[i] = []string{uintString(m.ID), m.ReferenceNumber, truncate(m.ApplicantName, 32), m.NRC, m.TPIN, m.Status}
		}
		printTable(out, []string{"id", "reference", "applicant", "nrc", "tpin", "status"}, rows)
		return nil
	},
}

func init() {
	identityCheckCmd.Flags().StringVar(&identityNRC, "nrc", "", "National registration card number")
	identityCheckCmd.Flags().StringVar(&identityTPIN, "tpin", "", "Taxpayer identification number")
	identityCheckCmd.Flags().UintVar(&identityExclude, "exclude", 0, "Application ID to leave out of the search")

	identityCmd.AddCommand(identityCheckCmd)
}
