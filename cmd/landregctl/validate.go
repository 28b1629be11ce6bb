package main

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
)

var validateFields struct {
	nrc, tpin, phone, email, passport string
	landSize, latitude, longitude     float64
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate application fields before submission",
	Long: `Validate application fields before submission.

Only the flags that are given are sent and checked. The command exits with
an error when any field is rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		body := map[string]any{"nrc": validateFields.nrc}
		for name, v := range map[string]string{
			"tpin":     validateFields.tpin,
			"phone":    validateFields.phone,
			"email":    validateFields.email,
			"passport": validateFields.passport,
		} {
			if flags.Changed(name) {
				body[name] = v
			}
		}
		for name, key := range map[string]string{"land-size": "landSize", "latitude": "latitude", "longitude": "longitude"} {
			if flags.Changed(name) {
				v, _ := flags.GetFloat64(name)
				body[key] = v
			}
		}

		var resp struct {
			Valid  bool              `json:"valid"`
			Errors map[string]string `json:"errors,omitempty"`
		}
		err := newClient().postJSON("/validate", body, &resp, http.StatusOK, http.StatusUnprocessableEntity)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			if err := printOutput(out, resp); err != nil {
				return err
			}
		} else if resp.Valid {
			fmt.Fprintln(out, "All fields are valid.")
		} else {
			fields := make([]string, 0, len(resp.Errors))
			for f := range resp.Errors {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			rows := make([][]string, len(fields))
			for i, f := range fields {
				rows[i] = []string{f, resp.Errors[f]}
			}
			printTable(out, []string{"field", "error"}, rows)
		}
		if !resp.Valid {
			return fmt.Errorf("%d field(s) rejected", len(resp.Errors))
		}
		return nil
	},
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFields.nrc, "nrc", "", "National registration card number (NNNNNN/NN/N)")
	f.StringVar(&validateFields.tpin, "tpin", "", "Taxpayer identification number")
	f.StringVar(&validateFields.phone, "phone", "", "Phone number")
	f.StringVar(&validateFields.email, "email", "", "Email address")
	f.StringVar(&validateFields.passport, "passport", "", "Passport number")
	f.Float64Var(&validateFields.landSize, "land-size", 0, "Land size in hectares")
	f.Float64Var(&validateFields.latitude, "latitude", 0, "Latitude in decimal degrees")
	f.Float64Var(&validateFields.longitude, "longitude", 0, "Longitude in decimal degrees")
}
