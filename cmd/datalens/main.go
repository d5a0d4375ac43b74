// Command datalens runs the analysis pipeline locally, uploads files to a
// datalens server and generates synthetic test data.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/datalens/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "datalens",
		Short:         "Assess, clean and summarize tabular data",
		Long:          `datalens loads delimited text, spreadsheets, JSON records or Parquet/Arrow files, scores their quality, cleans them and reports descriptive statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(newAnalyzeCmd(), newUploadCmd(), newGenerateCmd())
	return root
}
