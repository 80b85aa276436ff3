package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/services"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <resume>...",
	Short: "Evaluate stored resumes against a job description and wait for the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jd, err := jobDescription(cmd)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		scorer, err := services.NewGeminiService(cmd.Context(), rt.cfg.Gemini.APIKey, services.GeminiOptions{
			Model:       rt.cfg.Gemini.Model,
			Timeout:     rt.cfg.Gemini.Timeout,
			MaxAttempts: rt.cfg.Gemini.MaxAttempts,
		}, rt.log)
		if err != nil {
			return err
		}

		evaluator := services.NewEvaluatorService(rt.repo, rt.storage, rt.extractor, scorer, rt.log)
		worker := services.NewWorker(rt.repo, evaluator, services.WorkerOptions{
			Concurrency: rt.cfg.Worker.Concurrency,
			QueueSize:   max(rt.cfg.Worker.QueueSize, len(args)),
			JobTimeout:  rt.cfg.JobTimeout(),
		}, rt.log)
		worker.Start(cmd.Context())
		defer worker.Stop()

		evaluations := services.NewEvaluationService(rt.repo, worker, rt.cfg.Evaluation.MinJobDescriptionLength, rt.log)
		outcomes, err := evaluations.RequestBatchEvaluation(cmd.Context(), models.BatchEvaluateRequest{
			ResumeNames:    args,
			JobDescription: jd,
		})
		if err != nil {
			return err
		}

		results := make([]models.ResultResponse, 0, len(outcomes))
		for _, o := range outcomes {
			if o.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.ResumeName, o.Err)
				continue
			}
			if err := o.Task.Wait(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.ResumeName, err)
			}
			rec, err := rt.repo.FindByFilename(cmd.Context(), o.ResumeName)
			if err != nil {
				return err
			}
			results = append(results, models.NewResultResponse(rec))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("job-description", "", "job description text")
	evaluateCmd.Flags().StringP("job-description-file", "f", "", "file holding the job description")
}

func jobDescription(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("job-description")
	path, _ := cmd.Flags().GetString("job-description-file")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading job description: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("a job description is required (--job-description or --job-description-file)")
	}
	return text, nil
}
