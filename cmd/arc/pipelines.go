package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPipelinesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines [name]",
		Short: "List pipelines, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.apiClient()
			if len(args) == 1 {
				p, err := client.GetPipeline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.json {
					return printJSON(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s\n", p.Name, p.Version, p.Description)
				return nil
			}

			pipelines, err := client.ListPipelines(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), pipelines)
			}
			tw := newTable(cmd.OutOrStdout(), "NAME", "VERSION", "DESCRIPTION")
			for _, p := range pipelines {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, orDash(p.Version), p.Description)
			}
			return tw.Flush()
		},
	}
}
