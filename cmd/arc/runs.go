package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/samplesheet"
)

func newRunsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List and manage pipeline runs",
	}
	cmd.AddCommand(
		newRunsListCommand(a),
		newRunsGetCommand(a),
		newRunsSubmitCommand(a),
		newRunsCancelCommand(a),
		newRunsRecoverCommand(a),
	)
	return cmd
}

func newRunsListCommand(a *app) *cobra.Command {
	var (
		filters  api.RunFilters
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.apiClient().ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			visible, pg := api.Paginate(api.FilterRuns(runs, filters), page, pageSize)
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), map[string]any{"runs": visible, "pagination": pg})
			}
			if err := printRuns(cmd.OutOrStdout(), visible); err != nil {
				return err
			}
			if pg.TotalPages > 1 {
				fmt.Fprintf(cmd.ErrOrStderr(), "page %d of %d (%d runs)\n", pg.Page, pg.TotalPages, pg.TotalItems)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&filters.Status, "status", api.All, "only runs with this status")
	f.StringVar(&filters.Pipeline, "pipeline", api.All, "only runs of this pipeline")
	f.StringVar(&filters.Search, "search", "", "match run id or pipeline, case-insensitive")
	f.StringVar(&filters.From, "from", "", "created on or after (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&filters.To, "to", "", "created on or before (RFC 3339 or YYYY-MM-DD)")
	f.IntVar(&page, "page", 1, "page number")
	f.IntVar(&pageSize, "page-size", api.DefaultPageSize, "runs per page")
	return cmd
}

func newRunsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.apiClient().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), run)
			}
			return printRun(cmd.OutOrStdout(), *run)
		},
	}
}

func newRunsSubmitCommand(a *app) *cobra.Command {
	var pipeline, version string
	cmd := &cobra.Command{
		Use:   "submit <samplesheet.csv>",
		Short: "Submit a run for a samplesheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := samplesheet.LoadFile(args[0])
			if err != nil {
				return err
			}
			result, _, err := samplesheet.ValidateText(text, samplesheet.ColumnsFor(pipeline))
			if err != nil {
				return err
			}
			if !result.IsValid {
				printIssues(cmd.ErrOrStderr(), result)
				return errInvalidSamplesheet
			}

			payload := map[string]any{
				"pipeline":        pipeline,
				"samplesheet_csv": text,
			}
			if version != "" {
				payload["pipeline_version"] = version
			}
			run, err := a.apiClient().CreateRun(cmd.Context(), payload)
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), run)
			}
			return printRun(cmd.OutOrStdout(), *run)
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "nf-core/scrnaseq", "pipeline to run")
	cmd.Flags().StringVar(&version, "version", "", "pipeline version, defaults to the latest")
	return cmd
}

func newRunsCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel an active run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.apiClient().CancelRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", run.ID, run.Status)
			return nil
		},
	}
}

func newRunsRecoverCommand(a *app) *cobra.Command {
	var opts api.RecoverOptions
	cmd := &cobra.Command{
		Use:   "recover <run-id>",
		Short: "Resubmit a finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.apiClient().RecoverRun(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recovery run %s is %s\n", run.ID, run.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes stored with the recovery run")
	cmd.Flags().StringVar(&opts.OverrideConfig, "override-config", "", "Nextflow config replacing the original")
	return cmd
}
