package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Register every document of a directory as a pending resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		rt, err := newRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		if err := rt.storage.EnsureUploadDir(); err != nil {
			return err
		}

		results, err := importDir(cmd.Context(), rt, args[0], description)
		if err != nil {
			return err
		}
		return printImport(cmd.OutOrStdout(), results)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("description", "", "description stored with every imported resume")
}

type importResult struct {
	Source   string
	Filename string
	Size     int64
	Backend  string
	Note     string
}

// importDir copies the regular files of dir into the upload directory and
// creates a pending record for each. Hidden files are skipped; a file that
// cannot be stored is reported and does not stop the import.
func importDir(ctx context.Context, rt *runtime, dir, description string) ([]importResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var results []importResult
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		results = append(results, importFile(ctx, rt, filepath.Join(dir, entry.Name()), description))
	}
	return results, nil
}

func importFile(ctx context.Context, rt *runtime, path, description string) importResult {
	res := importResult{Source: filepath.Base(path)}

	f, err := os.Open(path)
	if err != nil {
		res.Note = err.Error()
		return res
	}
	defer f.Close()

	staged, err := rt.storage.Stage(res.Source, f)
	if err != nil {
		res.Note = "skipped: " + err.Error()
		return res
	}
	defer staged.Discard()

	extraction := rt.extractor.Extract(ctx, services.Source{Path: staged.Path()}, staged.Name)
	res.Backend = extraction.Backend
	if !extraction.OK() {
		res.Note = extraction.String()
	}

	// the record goes first: a document under evaluation keeps its file
	if err := rt.repo.Create(ctx, models.NewResumeRecord(staged.Name, description, staged.Size, time.Now())); err != nil {
		if errors.Is(err, repositories.ErrResumeProcessing) {
			res.Note = "skipped: evaluation in progress"
		} else {
			res.Note = "failed: " + err.Error()
		}
		return res
	}
	if err := staged.Commit(); err != nil {
		res.Note = "failed: " + err.Error()
		return res
	}
	res.Filename, res.Size = staged.Name, staged.Size

	rt.log.Info("📄 Resume imported", zap.String("file", staged.Name), zap.Int64("size", staged.Size))
	return res
}

func printImport(w io.Writer, results []importResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFILENAME\tSIZE\tBACKEND\tNOTE")
	unreadable := 0
	for _, r := range results {
		if services.IsExtractionFailure(r.Note) {
			unreadable++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Source, r.Filename, r.Size, r.Backend, r.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if unreadable > 0 {
		fmt.Fprintf(w, "\n%d document(s) have no extractable text and will score zero\n", unreadable)
	}
	return nil
}
