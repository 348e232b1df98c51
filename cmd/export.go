package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/export"
)

var (
	exportRunID  int64
	exportFormat string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a run's leads to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		path, err := export.Run(ctx, st, cfg.Tenant, exportRunID, exportFormat, exportDir)
		if err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportRunID, "run", 0, "run id (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", export.FormatCSV, "export format: csv, json, or xlsx")
	exportCmd.Flags().StringVar(&exportDir, "dir", "exports", "output directory")
	_ = exportCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(exportCmd)
}
