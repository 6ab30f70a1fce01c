package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openchord/openchord/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	var (
		dbPath   string
		jobID    string
		resource string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded jobs and changes",
		Long: `List apply jobs from the history database, or the change records
of one job with --job. Changes can be narrowed to a single resource
with --resource.`,
		Example: `  # Recent jobs
  chord history

  # Changes recorded by one job
  chord history --job 4f7c...

  # Changes a job made to one resource
  chord history --job 4f7c... --resource /site/web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("history requires a database path")
			}
			defer store.Close()

			if jobID == "" && resource == "" {
				jobs, err := store.ListJobs(ctx, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printResult(jobs)
				}
				for _, job := range jobs {
					errMsg := ""
					if job.Error != nil {
						errMsg = " error=" + *job.Error
					}
					fmt.Printf("%s  %-9s  %s  %s (%d resources)%s\n",
						job.StartedAt.Format("2006-01-02 15:04:05"),
						job.Status, job.ID, job.Manifest, job.ResourceCount, errMsg)
				}
				return nil
			}

			var jobFilter, resourceFilter *string
			if jobID != "" {
				jobFilter = &jobID
			}
			if resource != "" {
				resourceFilter = &resource
			}
			changes, err := store.ListChanges(ctx, jobFilter, resourceFilter, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printResult(changes)
			}
			for _, c := range changes {
				fmt.Printf("%s  %-6s  %s.%s%s\n",
					c.Timestamp.Format("2006-01-02 15:04:05"),
					c.Op, c.Resource, c.Attribute, changeDetail(c))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "chord.db", "history database path")
	cmd.Flags().StringVar(&jobID, "job", "", "show changes recorded by this job")
	cmd.Flags().StringVar(&resource, "resource", "", "show changes to this resource path")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")

	return cmd
}

func changeDetail(c *history.Change) string {
	switch c.Op {
	case history.ChangeOpCreate:
		if c.NewValue != nil {
			return " = " + *c.NewValue
		}
	case history.ChangeOpUpdate:
		if c.OldValue != nil && c.NewValue != nil {
			return fmt.Sprintf(" %s -> %s", *c.OldValue, *c.NewValue)
		}
	}
	return ""
}
