package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

type similarityModel struct {
	Version        int    `json:"version"`
	DocCount       int    `json:"docCount"`
	VocabularySize int    `json:"vocabularySize"`
	FittedAt       string `json:"fittedAt"`
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect and retrain the document similarity model",
}

var modelGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current similarity model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var m similarityModel
		if err := newClient().getJSON("/similarity/model", &m); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if structured() {
			return printOutput(out, m)
		}
		printModel(out, &m)
		return nil
	},
}

var retrainSync bool

var modelRetrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Refit the similarity model on all stored application documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		out := cmd.OutOrStdout()

		if retrainSync {
			var m similarityModel
			if err := client.postJSON("/similarity/retrain?sync=true", nil, &m); err != nil {
				return err
			}
			if structured() {
				return printOutput(out, m)
			}
			printModel(out, &m)
			return nil
		}

		var resp enqueued
		if err := client.postJSON("/similarity/retrain", nil, &resp, http.StatusAccepted); err != nil {
			return err
		}
		if structured() {
			return printOutput(out, resp)
		}
		printJob(out, &resp.Job)
		return nil
	},
}

func init() {
	modelRetrainCmd.Flags().BoolVar(&retrainSync, "sync", false, "Retrain within the request instead of queueing a job")

	modelCmd.AddCommand(modelGetCmd)
	modelCmd.AddCommand(modelRetrainCmd)
}

func printModel(w io.Writer, m *similarityModel) {
	fmt.Fprintf(w, "Version:    %d\n", m.Version)
	fmt.Fprintf(w, "Documents:  %d\n", m.DocCount)
	fmt.Fprintf(w, "Vocabulary: %d terms\n", m.VocabularySize)
	fmt.Fprintf(w, "Fitted at:  %s\n", m.FittedAt)
}
