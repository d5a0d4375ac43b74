package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/datalens/internal/uploader"
)

func newGenerateCmd() *cobra.Command {
	var (
		rows   int
		seed   uint64
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic CSV with injected quality defects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			data := uploader.GenerateCSV(rows, seed)
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o600)
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", 1000, "Number of rows")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default: current time)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
