package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/pipeline"
)

var (
	extractSchema     string
	extractNoBackfill bool
	extractSave       bool
	extractFormat     string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract KPIs from one document",
	Long:  "Reads a PDF, XLSX, JSON or text document and prints one result per schema KPI.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := checkFormat(extractFormat); err != nil {
			return err
		}

		env, err := initPipeline(ctx, "extract", envOptions{
			SchemaPath: extractSchema,
			NoBackfill: extractNoBackfill,
			Persist:    extractSave,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.RunFile(ctx, args[0], env.Reader.Read)
		if err != nil {
			return eris.Wrap(err, "extract")
		}
		return writeReport(os.Stdout, report, extractFormat)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractSchema, "schema", "", "KPI schema file (default: built-in schema)")
	extractCmd.Flags().BoolVar(&extractNoBackfill, "no-backfill", false, "skip the LLM backfill step")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist the run to the configured store")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format: json, report or text")
	rootCmd.AddCommand(extractCmd)
}

func checkFormat(format string) error {
	switch format {
	case "json", "report", "text":
		return nil
	default:
		return eris.Errorf("unknown format %q (want json, report or text)", format)
	}
}

// writeReport renders a report. "json" writes the result list, "report"
// the full report including candidates, "text" a readable summary.
func writeReport(w io.Writer, report *model.ExtractionReport, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprint(w, pipeline.FormatReport(report))
		return err
	case "report":
		return encodeJSON(w, report)
	default:
		return encodeJSON(w, report.Results)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
