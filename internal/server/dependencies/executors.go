package dependencies

import (
	"context"
	"fmt"

	"github.com/zhenzou/executors"

	"github.com/leadhub/leadhub/internal/log"
)

// The pool only runs the scheduled export and checkpoint sweeps.
const (
	sweepWorkers       = 4
	sweepBacklogLimit  = 16
	runnableTypeLogKey = "runnable"
)

// sweepErrorHandler logs failures returned by scheduled runnables.
type sweepErrorHandler struct{}

func (sweepErrorHandler) CatchError(runnable executors.Runnable, err error) {
	log.Error(context.Background(), "scheduled sweep failed",
		log.String(runnableTypeLogKey, runnableName(runnable)),
		log.Cause(err),
	)
}

// sweepRejectionHandler drops a run when the backlog is full; the next tick
// picks the work up again.
type sweepRejectionHandler struct{}

func (sweepRejectionHandler) RejectExecution(runnable executors.Runnable, _ executors.Executor) error {
	log.Warn(context.Background(), "scheduled sweep skipped, executor backlog full",
		log.String(runnableTypeLogKey, runnableName(runnable)),
	)

	return nil
}

func runnableName(runnable any) string {
	return fmt.Sprintf("%T", runnable)
}

func NewExecutors(logger *log.Logger) executors.ScheduledExecutor {
	return executors.NewPoolScheduleExecutor(
		executors.WithMaxConcurrent(sweepWorkers),
		executors.WithMaxBlockingTasks(sweepBacklogLimit),
		executors.WithErrorHandler(sweepErrorHandler{}),
		executors.WithRejectionHandler(sweepRejectionHandler{}),
		executors.WithLogger(logger.AsSlog()),
	)
}
