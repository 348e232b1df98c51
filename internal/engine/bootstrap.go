package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// Bootstrap expands the campaign into its (region × search term) cross
// product and enqueues one discover task per work unit. Re-running
// bootstrap for a run would enqueue duplicate work; callers invoke it once
// per run.
func (e *Engine) Bootstrap(ctx context.Context, campaign *model.Campaign, run *model.Run) error {
	terms := campaign.Config.SearchTerms()
	if len(terms) == 0 {
		return eris.New("engine: campaign has no search terms")
	}

	for _, region := range campaign.Config.Regions {
		for _, term := range terms {
			unit := model.WorkUnit{
				RunID:  run.ID,
				Query:  model.ComposeQuery(term, region),
				Term:   term,
				Region: region,
			}
			task := &model.Task{
				TenantID: e.opts.TenantID,
				RunID:    run.ID,
				Type:     model.TaskDiscover,
				Input:    model.MarshalInput(unit),
			}
			if _, err := e.store.CreateTask(ctx, task); err != nil {
				return eris.Wrapf(err, "engine: enqueue discover for %q", unit.Query)
			}
			e.enqueued.Add(1)
		}
	}

	zap.L().Info("bootstrap complete",
		zap.Int64("run_id", run.ID),
		zap.Int("regions", len(campaign.Config.Regions)),
		zap.Int("terms", len(terms)),
		zap.Int64("tasks_enqueued", e.enqueued.Load()),
	)
	return e.store.UpdateRunStats(ctx, run.ID, model.RunStats{TasksEnqueued: int(e.enqueued.Load())})
}
