// Package engine drives the pipeline: it expands a campaign into work
// units, runs the task worker pool over the fixed stage sequence, and
// applies the terminal score/filter pass.
package engine

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/internal/crawler"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/provider"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/places"
)

// ContactFinder abstracts the contact crawler for the contact_crawl stage.
type ContactFinder interface {
	Find(ctx context.Context, rawURL string) (*crawler.Result, error)
}

// Options tunes the engine.
type Options struct {
	TenantID        string
	Concurrency     int
	MaxTaskRetries  int
	PollInterval    time.Duration
	DefaultProvider string
}

func (o Options) withDefaults() Options {
	if o.TenantID == "" {
		o.TenantID = "default"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.MaxTaskRetries < 0 {
		o.MaxTaskRetries = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.DefaultProvider == "" {
		o.DefaultProvider = "cnpjws"
	}
	return o
}

// Engine owns every connector and provider instance it calls; nothing is
// ambient or global.
type Engine struct {
	store      store.Store
	placesAPI  places.Client
	placesConn *connector.Client
	providers  *provider.Registry
	finder     ContactFinder
	opts       Options

	enqueued  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	leads     atomic.Int64
}

// New creates an Engine.
func New(st store.Store, placesAPI places.Client, placesConn *connector.Client, providers *provider.Registry, finder ContactFinder, opts Options) *Engine {
	return &Engine{
		store:      st,
		placesAPI:  placesAPI,
		placesConn: placesConn,
		providers:  providers,
		finder:     finder,
		opts:       opts.withDefaults(),
	}
}

// Run executes one campaign run to completion: bootstrap, worker pool until
// the task queue drains, then score/filter. Task-level failures never fail
// the run; partial completion is a reportable outcome.
func (e *Engine) Run(ctx context.Context, campaign *model.Campaign, run *model.Run) error {
	if err := e.Bootstrap(ctx, campaign, run); err != nil {
		e.finishRun(ctx, run.ID, model.RunStatusError)
		return err
	}

	if err := e.work(ctx, campaign, run); err != nil {
		e.finishRun(ctx, run.ID, model.RunStatusError)
		return err
	}

	if err := e.ScoreRun(ctx, campaign, run); err != nil {
		e.finishRun(ctx, run.ID, model.RunStatusError)
		return err
	}

	e.finishRun(ctx, run.ID, model.RunStatusCompleted)
	zap.L().Info("run finished",
		zap.Int64("run_id", run.ID),
		zap.Int64("tasks_completed", e.completed.Load()),
		zap.Int64("tasks_failed", e.failed.Load()),
		zap.Int64("leads_created", e.leads.Load()),
	)
	return nil
}

// work drains the task queue with a bounded worker pool. Workers poll the
// store for pending tasks; the pool exits when no task is pending or
// processing.
func (e *Engine) work(ctx context.Context, campaign *model.Campaign, run *model.Run) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for range e.opts.Concurrency {
		g.Go(func() error {
			for {
				if err := gCtx.Err(); err != nil {
					return err
				}

				task, err := e.store.ClaimNextTask(gCtx, run.ID)
				if err != nil {
					return eris.Wrap(err, "engine: claim task")
				}
				if task == nil {
					drained, err := e.queueDrained(gCtx, run.ID)
					if err != nil {
						return err
					}
					if drained {
						return nil
					}
					select {
					case <-gCtx.Done():
						return gCtx.Err()
					case <-time.After(e.opts.PollInterval):
					}
					continue
				}

				e.process(gCtx, campaign, task)
			}
		})
	}

	return g.Wait()
}

// queueDrained reports whether no task remains pending or in flight.
func (e *Engine) queueDrained(ctx context.Context, runID int64) (bool, error) {
	counts, err := e.store.TaskCounts(ctx, runID)
	if err != nil {
		return false, eris.Wrap(err, "engine: task counts")
	}
	return counts[model.TaskPending] == 0 && counts[model.TaskProcessing] == 0, nil
}

// process runs one claimed task and commits its terminal state. A handler
// error marks only this task failed; siblings are unaffected.
func (e *Engine) process(ctx context.Context, campaign *model.Campaign, task *model.Task) {
	result, err := e.dispatch(ctx, campaign, task)
	if err != nil {
		zap.L().Warn("task failed",
			zap.Int64("task_id", task.ID),
			zap.String("type", string(task.Type)),
			zap.Int("retries", task.Retries),
			zap.Error(err),
		)
		if ferr := e.store.FailTask(ctx, task.ID, err.Error()); ferr != nil {
			zap.L().Error("marking task failed", zap.Int64("task_id", task.ID), zap.Error(ferr))
		}
		e.failed.Add(1)
		e.maybeRetry(ctx, task, err)
		return
	}

	if cerr := e.store.CompleteTask(ctx, task.ID, result); cerr != nil {
		zap.L().Error("marking task completed", zap.Int64("task_id", task.ID), zap.Error(cerr))
		e.failed.Add(1)
		return
	}
	e.completed.Add(1)
}

// maybeRetry enqueues a fresh task row for transient failures, up to the
// configured maximum. Terminal task rows are never reopened.
func (e *Engine) maybeRetry(ctx context.Context, task *model.Task, cause error) {
	if !resilience.IsTransient(cause) || task.Retries >= e.opts.MaxTaskRetries {
		return
	}
	retry := &model.Task{
		TenantID: task.TenantID,
		RunID:    task.RunID,
		Type:     task.Type,
		Input:    task.Input,
		Retries:  task.Retries + 1,
	}
	if _, err := e.store.CreateTask(ctx, retry); err != nil {
		zap.L().Error("enqueue retry task", zap.Int64("task_id", task.ID), zap.Error(err))
		return
	}
	e.enqueued.Add(1)
}

func (e *Engine) dispatch(ctx context.Context, campaign *model.Campaign, task *model.Task) (json.RawMessage, error) {
	switch task.Type {
	case model.TaskDiscover:
		return e.handleDiscover(ctx, campaign, task)
	case model.TaskDetail:
		return e.handleDetail(ctx, task)
	case model.TaskRegistryEnrich:
		return e.handleEnrich(ctx, task)
	case model.TaskContactCrawl:
		return e.handleCrawl(ctx, task)
	default:
		return nil, eris.Errorf("engine: unknown task type %q", task.Type)
	}
}

func (e *Engine) finishRun(ctx context.Context, runID int64, status model.RunStatus) {
	stats := model.RunStats{
		TasksEnqueued:  int(e.enqueued.Load()),
		TasksCompleted: int(e.completed.Load()),
		TasksFailed:    int(e.failed.Load()),
		LeadsCreated:   int(e.leads.Load()),
	}
	if err := e.store.UpdateRunStats(ctx, runID, stats); err != nil {
		zap.L().Error("update run stats", zap.Int64("run_id", runID), zap.Error(err))
	}
	if err := e.store.FinishRun(ctx, runID, status); err != nil {
		zap.L().Error("finish run", zap.Int64("run_id", runID), zap.Error(err))
	}
}
