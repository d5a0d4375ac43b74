package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/datalens/internal/domain/cleaning"
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/narrative"
	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/quality"
	"github.com/okian/datalens/internal/domain/stats"
	"github.com/okian/datalens/pkg/logger"
)

type analyzeFlags struct {
	format       string
	sheet        string
	part         string
	narrator     string
	clipOutliers bool
	threshold    float64
	topK         int
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Run the pipeline on a local file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			format, err := resolveFormat(f.format, path)
			if err != nil {
				return err
			}

			opts, err := f.pipelineOptions()
			if err != nil {
				return err
			}
			opts = append(opts, pipeline.WithLogger(logger.Named("pipeline")))

			run, err := pipeline.New(opts...).Execute(cmd.Context(), filepath.Base(path), data, format)
			if err != nil {
				return err
			}

			out, err := selectPart(run, f.part)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Input format or alias (csv, xlsx, json, parquet); derived from the extension by default")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Spreadsheet sheet name (default: first sheet)")
	cmd.Flags().StringVarP(&f.part, "part", "p", "all", "Output: all, summary, report, actions or narrative")
	cmd.Flags().StringVar(&f.narrator, "narrative", string(narrative.RuleBasedBackend), "Narrative backend: rule-based or none")
	cmd.Flags().BoolVar(&f.clipOutliers, "clip-outliers", false, "Clip numeric outliers to the Tukey fences")
	cmd.Flags().Float64Var(&f.threshold, "type-threshold", 0.3, "Numeric share above which a text column is flagged")
	cmd.Flags().IntVar(&f.topK, "top-k", 10, "Most frequent values kept per text column")
	return cmd
}

func (f analyzeFlags) pipelineOptions() ([]pipeline.Option, error) {
	narrator, err := narrative.New(narrative.Backend(f.narrator))
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithAssessOptions(quality.WithTypeInconsistencyThreshold(f.threshold)),
		pipeline.WithCleaningOptions(cleaning.WithOutlierClipping(f.clipOutliers)),
		pipeline.WithStatsOptions(stats.WithTopK(f.topK)),
	}
	if f.sheet != "" {
		opts = append(opts, pipeline.WithLoaderOptions(loader.WithSheet(f.sheet)))
	}
	if narrator != nil {
		opts = append(opts, pipeline.WithNarrator(narrator))
	}
	return opts, nil
}

func resolveFormat(flag, path string) (loader.Format, error) {
	if flag != "" {
		return loader.ParseFormat(flag)
	}
	return loader.FormatFromFilename(path)
}

func selectPart(run *pipeline.Run, part string) (any, error) {
	switch part {
	case "", "all":
		return run, nil
	case "summary":
		return run.Summary, nil
	case "report":
		return struct {
			Score  float64        `json:"score"`
			Report quality.Report `json:"report"`
		}{run.Score, run.Report}, nil
	case "actions":
		return run.Log, nil
	case "narrative":
		if run.Narrative == nil {
			return nil, fmt.Errorf("no narrative was generated")
		}
		return run.Narrative, nil
	}
	return nil, fmt.Errorf("unknown part %q", part)
}
