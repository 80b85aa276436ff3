package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"gar-rock/resume-crunch/internal/services"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the text extracted from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showChain, _ := cmd.Flags().GetBool("chain")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		path := args[0]
		out := cmd.OutOrStdout()

		if showChain {
			for _, c := range rt.registry.Capabilities(filepath.Ext(path)) {
				state := "unavailable"
				if c.Available {
					state = "available"
				}
				fmt.Fprintf(out, "%s\t%s\n", c.Backend, state)
			}
			return nil
		}

		res := rt.extractor.Extract(cmd.Context(), services.Source{Path: path}, filepath.Base(path))
		if !res.OK() {
			return errors.New(res.String())
		}
		fmt.Fprintln(out, res.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("chain", false, "list the extraction backends tried for the file type instead")
}
