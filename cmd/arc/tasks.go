package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTasksCommand(a *app) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "tasks <run-id>",
		Short: "List the tasks of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.apiClient()
			if summary {
				s, err := client.TaskSummary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.json {
					return printJSON(cmd.OutOrStdout(), s)
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"total %d, completed %d, cached %d, running %d, submitted %d, failed %d\n",
					s.Total, s.Completed, s.Cached, s.Running, s.Submitted, s.Failed)
				return nil
			}

			tasks, err := client.ListTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			tw := newTable(cmd.OutOrStdout(), "#", "NAME", "STATUS", "EXIT", "ATTEMPT")
			for _, t := range tasks {
				exit := "-"
				if t.ExitCode != nil {
					exit = strconv.Itoa(*t.ExitCode)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", t.TaskID, t.Name, t.Status, exit, t.Attempt)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts by status")
	return cmd
}
