package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/internal/crawler"
	"github.com/sells-group/prospector/internal/engine"
	"github.com/sells-group/prospector/internal/provider"
	"github.com/sells-group/prospector/pkg/places"
)

var runCampaignName string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a campaign run to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaign, err := st.GetCampaign(ctx, cfg.Tenant, runCampaignName)
		if err != nil {
			return err
		}
		run, err := st.CreateRun(ctx, campaign.ID, cfg.Tenant)
		if err != nil {
			return err
		}
		zap.L().Info("run started",
			zap.Int64("run_id", run.ID),
			zap.String("campaign", campaign.Name),
		)

		placesAPI := places.NewClient(cfg.Places.APIKey,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Places.TimeoutSecs) * time.Second}),
		)
		placesConn := connector.New("places", st, connector.Config{
			QPS:   cfg.Places.QPS,
			Burst: cfg.Places.Burst,
			TTL:   time.Duration(cfg.Places.CacheTTLDays) * 24 * time.Hour,
		})

		meta := provider.CallMeta{TenantID: cfg.Tenant, RunID: run.ID}
		providers, err := provider.Build(cfg.Providers, st, meta)
		if err != nil {
			return err
		}

		maxPages := cfg.Crawl.MaxPages
		if campaign.Config.Limits.MaxPagesPerDomain > 0 {
			maxPages = campaign.Config.Limits.MaxPagesPerDomain
		}
		finder := crawler.New(st, cfg.Tenant, crawler.Config{
			MaxPages:  maxPages,
			Timeout:   time.Duration(cfg.Crawl.TimeoutSecs) * time.Second,
			UserAgent: cfg.Crawl.UserAgent,
		})

		eng := engine.New(st, placesAPI, placesConn, providers, finder, engine.Options{
			TenantID:        cfg.Tenant,
			Concurrency:     cfg.Engine.Concurrency,
			MaxTaskRetries:  cfg.Engine.MaxTaskRetries,
			PollInterval:    time.Duration(cfg.Engine.PollMillis) * time.Millisecond,
			DefaultProvider: cfg.Providers.Default,
		})
		if err := eng.Run(ctx, campaign, run); err != nil {
			return err
		}

		final, err := st.GetRun(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Printf("run %d %s: %d tasks enqueued, %d completed, %d failed, %d leads\n",
			final.ID, final.Status,
			final.Stats.TasksEnqueued, final.Stats.TasksCompleted,
			final.Stats.TasksFailed, final.Stats.LeadsCreated)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runCampaignName, "campaign", "c", "", "campaign name (required)")
	_ = runCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(runCmd)
}
