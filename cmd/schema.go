package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/kpi-cli/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect KPI schemas",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print a schema (default: the configured or built-in schema)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := cfg.Schema.Path
		if len(args) == 1 {
			path = args[0]
		}
		s, err := schema.Load(path)
		if err != nil {
			return err
		}
		out, err := schema.Marshal(s)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a schema file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		s, err := schema.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %d KPIs OK\n", args[0], s.Len())
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaValidateCmd)
	rootCmd.AddCommand(schemaCmd)
}
