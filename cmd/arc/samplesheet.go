package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arcreactor/workspace/internal/samplesheet"
	"github.com/arcreactor/workspace/internal/store"
)

var errInvalidSamplesheet = errors.New("samplesheet is invalid")

func newSamplesheetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "samplesheet",
		Short: "Work with samplesheets",
	}
	cmd.AddCommand(newSamplesheetValidateCommand(a))
	return cmd
}

func newSamplesheetValidateCommand(a *app) *cobra.Command {
	var pipeline string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a samplesheet against a pipeline's columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := samplesheet.LoadFile(args[0])
			if err != nil {
				return err
			}

			workspace := store.NewWorkspaceStore()
			workspace.SetPipeline(pipeline, "")
			workspace.SetSamplesheet(text)
			result, err := workspace.ValidateSamplesheet()
			if err != nil {
				return err
			}

			if a.flags.json {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				printIssues(cmd.OutOrStdout(), result)
			}
			if !result.IsValid {
				return errInvalidSamplesheet
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "nf-core/scrnaseq", "pipeline whose columns apply")
	return cmd
}

func printIssues(w io.Writer, result samplesheet.ValidationResult) {
	for _, issue := range result.Errors {
		fmt.Fprintf(w, "error: %s\n", describe(issue))
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", describe(issue))
	}
	if result.IsValid {
		fmt.Fprintln(w, "samplesheet is valid")
	}
}

func describe(issue samplesheet.Issue) string {
	if issue.Sample != "" {
		return fmt.Sprintf("%s (%s): %s", issue.Sample, issue.Field, issue.Message)
	}
	return fmt.Sprintf("%s: %s", issue.Field, issue.Message)
}
