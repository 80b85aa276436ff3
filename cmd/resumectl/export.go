package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gar-rock/resume-crunch/internal/services"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the scores of every resume to an xlsx workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")

		rt, err := newRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		records, err := rt.repo.FindAll(cmd.Context())
		if err != nil {
			return err
		}

		data, err := services.ExportScores(records)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d resumes to %s\n", len(records), output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "scores.xlsx", "workbook to write")
}
