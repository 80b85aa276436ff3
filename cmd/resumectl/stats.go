package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/services"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print processing statistics of the stored resumes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		details, _ := cmd.Flags().GetBool("details")

		rt, err := newRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		records, err := rt.repo.FindAll(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := printStats(out, services.ComputeStats(records)); err != nil {
			return err
		}
		if details {
			fmt.Fprintln(out)
			return printDetails(out, records)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Bool("details", false, "also list every resume")
}

func printStats(w io.Writer, st services.ProcessingStats) error {
	fmt.Fprintf(w, "Resumes:    %d (%.1f KB)\n", st.TotalResumes, float64(st.TotalSizeBytes)/1024)
	fmt.Fprintf(w, "Status:     %d pending, %d processing, %d completed, %d failed\n",
		st.Pending, st.Processing, st.Completed, st.Failed)
	if st.TimedRuns > 0 {
		fmt.Fprintf(w, "Processing: %d runs, min %.1fs, avg %.1fs, max %.1fs, total %.1fs\n",
			st.TimedRuns, st.MinSeconds, st.AvgSeconds, st.MaxSeconds, st.TotalSeconds)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSAMPLES\tMIN\tAVG\tMAX")
	for _, c := range st.Scores {
		if c.Samples == 0 {
			fmt.Fprintf(tw, "%s\t0\t-\t-\t-\n", c.Category)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\t%d\n", c.Category, c.Samples, c.Min, c.Avg, c.Max)
	}
	return tw.Flush()
}

func printDetails(w io.Writer, records []models.ResumeRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILENAME\tSTATUS\tOVERALL\tTIER\tSECONDS")
	for i := range records {
		rec := &records[i]
		overall := "-"
		if rec.ProcessingStatus == models.StatusCompleted {
			if set, ok := rec.Scores[rec.Filename]; ok {
				overall = fmt.Sprint(set.OverallScore)
			}
		}
		seconds := "-"
		if d, ok := rec.ProcessingDuration(); ok {
			seconds = fmt.Sprintf("%.1f", d.Seconds())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.Filename, rec.ProcessingStatus, overall, rec.ParseTier, seconds)
	}
	return tw.Flush()
}
