package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/datalens/internal/uploader"
)

func newUploadCmd() *cobra.Command {
	var (
		baseURL string
		workers int
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Submit files to a datalens server and wait for their runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			files, err := uploader.ReadFiles(args)
			if err != nil {
				return err
			}

			client := uploader.New(baseURL, uploader.WithTimeout(timeout))
			if err := client.Health(ctx); err != nil {
				return err
			}

			results, stats, err := uploader.UploadAll(ctx, client, files, workers, wait)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "FILE\tRUN\tSTATUS\tSCORE\tERROR")
			for _, r := range results {
				status := string(r.Submission.Status)
				if r.Info.Status != "" {
					status = string(r.Info.Status)
				}
				score := "-"
				if r.Info.Score != nil {
					score = fmt.Sprintf("%.1f", *r.Info.Score)
				}
				errText := ""
				if r.Err != nil {
					errText = r.Err.Error()
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Submission.ID, status, score, errText)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nsubmitted %d (duplicate %d), succeeded %d, failed %d in %s\n",
				stats.Submitted, stats.Duplicate, stats.Succeeded, stats.Failed, stats.Duration.Round(time.Millisecond))

			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", stats.Failed, len(files))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:9080", "Base URL of the service")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Concurrent uploads")
	cmd.Flags().BoolVar(&wait, "wait", true, "Poll each run until it finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")
	return cmd
}
