package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
)

var statusRunID int64

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, statusRunID)
		if err != nil {
			return err
		}
		counts, err := st.TaskCounts(ctx, run.ID)
		if err != nil {
			return err
		}
		leads, err := st.CountLeads(ctx, run.TenantID, run.ID)
		if err != nil {
			return err
		}

		fmt.Printf("run %d: %s (started %s)\n", run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"))
		if run.CompletedAt != nil {
			fmt.Printf("completed: %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("tasks: %d pending, %d processing, %d completed, %d failed\n",
			counts[model.TaskPending], counts[model.TaskProcessing],
			counts[model.TaskCompleted], counts[model.TaskFailed])
		fmt.Printf("leads: %d\n", leads)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int64Var(&statusRunID, "run", 0, "run id (required)")
	_ = statusCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(statusCmd)
}
