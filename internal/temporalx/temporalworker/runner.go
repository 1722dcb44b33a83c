package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
	"github.com/yungbote/commercecrafted-backend/internal/temporalx"
	"github.com/yungbote/commercecrafted-backend/internal/temporalx/reportpoll"
)

// Runner hosts the report polling workflow and its activities.
type Runner struct {
	log     *logger.Logger
	cfg     temporalx.Config
	tc      temporalsdkclient.Client
	reports reportpoll.ReportChecker
}

func NewRunner(log *logger.Logger, cfg temporalx.Config, tc temporalsdkclient.Client, checker reportpoll.ReportChecker) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if checker == nil {
		return nil, fmt.Errorf("temporal worker missing report service")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{log: log.With("component", "TemporalWorker"), cfg: cfg, tc: tc, reports: checker}, nil
}

// Start begins polling the task queue and stops the worker when ctx is done. Start failures are
// retried until TEMPORAL_WORKER_START_MAX_WAIT_SECONDS elapses.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)
	backoff := time.Duration(envutil.Int("TEMPORAL_WORKER_START_BACKOFF_MS", 250)) * time.Millisecond
	backoffMax := time.Duration(envutil.Int("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000)) * time.Millisecond
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)
		time.Sleep(temporalx.Backoff(backoff, backoffMax, attempt))
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := envutil.Int("TEMPORAL_WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	Register(w, &reportpoll.Activities{Log: r.log, Reports: r.reports})
	return w
}

// Register wires the report polling workflow and activities onto a worker.
func Register(w worker.Registry, acts *reportpoll.Activities) {
	w.RegisterWorkflowWithOptions(reportpoll.Workflow, workflow.RegisterOptions{Name: reportpoll.WorkflowName})
	w.RegisterActivityWithOptions(acts.Check, activity.RegisterOptions{Name: reportpoll.ActivityCheck})
	w.RegisterActivityWithOptions(acts.MarkTimeout, activity.RegisterOptions{Name: reportpoll.ActivityTimeout})
}
