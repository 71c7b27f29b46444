package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/okian/matchd/internal/scheduler"
	"github.com/okian/matchd/pkg/logger"
	"github.com/spf13/cobra"
)

func newRunJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-job <name>",
		Short: "Run one batch job now and print its result",
		Long: fmt.Sprintf(`Run a scheduler job once against the configured store and cache, then exit.
Known jobs: %s, %s, %s.`, scheduler.JobDailyRegeneration, scheduler.JobHourlyCleanup, scheduler.JobStatisticsRefresh),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			st, err := buildStack(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			run, err := st.svc.TriggerJob(ctx, args[0])
			if err != nil {
				logger.Named("main").Error(ctx, "job not run", logger.String("job", args[0]), logger.Error(err))
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(run); err != nil {
				return fmt.Errorf("encode job run: %w", err)
			}
			if !run.Success {
				return fmt.Errorf("job %s failed: %s", run.JobName, run.Summary)
			}
			return nil
		},
	}
}
