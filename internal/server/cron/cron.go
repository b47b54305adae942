package cron

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/pkg/ringbuffer"
	"github.com/leadhub/leadhub/internal/pkg/xcontext"
	"github.com/leadhub/leadhub/internal/server/biz"
	"github.com/leadhub/leadhub/internal/tracing"
)

// Config holds cron expressions. An empty expression leaves that job to the
// HTTP triggers.
type Config struct {
	Export     string `json:"export" yaml:"export" conf:"export"`
	Checkpoint string `json:"checkpoint" yaml:"checkpoint" conf:"checkpoint"`

	// Timeout bounds one sweep or checkpoint. Runs are detached from the
	// caller, so a dropped HTTP trigger does not abort them.
	Timeout time.Duration `json:"timeout" yaml:"timeout" conf:"timeout"`
}

const (
	defaultRunTimeout = 30 * time.Minute
	sweepHistorySize  = 50
)

// Sweeper drains the export queue.
type Sweeper interface {
	Drain(ctx context.Context) (objects.DrainResult, error)
}

// Checkpointer folds write-ahead logs into their databases.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Worker runs the export sweep and the storage checkpoint, either on a
// schedule or on demand.
type Worker struct {
	Sweeper       Sweeper
	Checkpointers []Checkpointer
	Executor      executors.ScheduledExecutor
	Config        Config

	// History keeps the most recent sweeps.
	History *ringbuffer.RingBuffer[objects.SweepRun]

	cancels []context.CancelFunc
}

type Params struct {
	fx.In

	Config          Config
	Executor        executors.ScheduledExecutor
	ExportService   *biz.ExportService
	AccessService   *biz.AccessService
	UserListService *biz.UserListService
}

func NewWorker(params Params) *Worker {
	return &Worker{
		Sweeper:       params.ExportService,
		Checkpointers: []Checkpointer{params.AccessService, params.UserListService},
		Executor:      params.Executor,
		Config:        params.Config,
		History:       ringbuffer.New[objects.SweepRun](sweepHistorySize),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		expr string
		run  func(ctx context.Context)
	}{
		{name: "export", expr: w.Config.Export, run: w.runExport},
		{name: "checkpoint", expr: w.Config.Checkpoint, run: w.runCheckpoint},
	}

	for _, job := range jobs {
		if job.expr == "" {
			continue
		}

		cancel, err := w.Executor.ScheduleFuncAtCronRate(
			job.run,
			executors.CRONRule{Expr: job.expr},
		)
		if err != nil {
			return err
		}

		w.cancels = append(w.cancels, cancel)

		log.Info(ctx, "cron job scheduled", log.String("job", job.name), log.String("cron", job.expr))
	}

	return nil
}

// Stop cancels the schedules. The executor is shut down by its owner.
func (w *Worker) Stop(ctx context.Context) error {
	for _, cancel := range w.cancels {
		cancel()
	}

	w.cancels = nil

	return nil
}

// Export runs one sweep of the export queue.
func (w *Worker) Export(ctx context.Context) (objects.DrainResult, error) {
	ctx, cancel := w.detach(ctx)
	defer cancel()

	start := time.Now()

	result, err := w.Sweeper.Drain(ctx)
	w.record(start, result, err)

	if err != nil {
		return result, err
	}

	log.Debug(ctx, "export sweep completed",
		log.Int("processed", result.Processed),
		log.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

// Checkpoint checkpoints every store. A failing store does not stop the others.
func (w *Worker) Checkpoint(ctx context.Context) error {
	ctx, cancel := w.detach(ctx)
	defer cancel()

	var result *multierror.Error

	for _, c := range w.Checkpointers {
		if err := c.Checkpoint(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	log.Info(ctx, "storage checkpointed")

	return nil
}

func (w *Worker) record(start time.Time, result objects.DrainResult, err error) {
	if w.History == nil || errors.Is(err, biz.ErrDrainInProgress) {
		return
	}

	run := objects.SweepRun{
		StartedAt:   start,
		Elapsed:     time.Since(start).Round(time.Millisecond).String(),
		DrainResult: result,
	}

	if err != nil {
		run.Error = err.Error()
	}

	w.History.Push(run)
}

// RecentSweeps returns up to n recorded sweeps, newest first.
func (w *Worker) RecentSweeps(n int) []objects.SweepRun {
	if w.History == nil {
		return []objects.SweepRun{}
	}

	return w.History.Latest(n)
}

func (w *Worker) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := w.Config.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	return xcontext.DetachWithTimeout(ctx, timeout)
}

func (w *Worker) runExport(ctx context.Context) {
	ctx = withCronTrace(ctx, "cron.export")

	if _, err := w.Export(ctx); err != nil {
		if errors.Is(err, biz.ErrDrainInProgress) {
			log.Warn(ctx, "skipped export sweep, previous sweep still running")
			return
		}

		log.Error(ctx, "export sweep failed", log.Cause(err))
	}
}

func (w *Worker) runCheckpoint(ctx context.Context) {
	ctx = withCronTrace(ctx, "cron.checkpoint")

	if err := w.Checkpoint(ctx); err != nil {
		log.Error(ctx, "storage checkpoint failed", log.Cause(err))
	}
}

func withCronTrace(ctx context.Context, operation string) context.Context {
	ctx = tracing.WithTraceID(ctx, tracing.GenerateTraceID())

	return tracing.WithOperationName(ctx, operation)
}
