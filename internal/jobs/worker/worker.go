package worker

import (
	"context"
	"fmt"
	"time"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/jobs/runtime"
	"github.com/yungbote/commercecrafted-backend/internal/observability"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

// Queue is the niche repo surface the worker needs.
type Queue interface {
	runtime.EpochStore
	ClaimNextPending(dbc dbctx.Context) (*types.Niche, error)
	ResetStale(dbc dbctx.Context, staleAfter time.Duration) (int64, error)
}

// Handler processes one claimed niche. Handlers report status through jc.
type Handler interface {
	Run(jc *runtime.Context) error
}

type Worker struct {
	log     *logger.Logger
	queue   Queue
	handler Handler
	notify  runtime.Notifier

	concurrency  int
	pollInterval time.Duration
	staleAfter   time.Duration
}

func NewWorker(baseLog *logger.Logger, queue Queue, handler Handler, notify runtime.Notifier) *Worker {
	w := &Worker{
		log:          baseLog.With("component", "NicheWorker"),
		queue:        queue,
		handler:      handler,
		notify:       notify,
		concurrency:  envutil.Int("WORKER_CONCURRENCY", 2),
		pollInterval: time.Duration(envutil.Int("WORKER_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		staleAfter:   envutil.Seconds("NICHE_STALE_AFTER_SECONDS", 30*60),
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	return w
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting niche worker pool", "concurrency", w.concurrency, "stale_after", w.staleAfter.String())
	for i := 0; i < w.concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
	go w.reapLoop(ctx)
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil && w.RunOnce(ctx, workerID) {
			}
		}
	}
}

// RunOnce claims and processes at most one niche. It reports whether a niche was claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	niche, err := w.queue.ClaimNextPending(dbctx.Context{Ctx: ctx})
	if err != nil {
		w.log.Warn("ClaimNextPending failed", "worker_id", workerID, "error", err)
		return false
	}
	if niche == nil {
		return false
	}

	jc := runtime.NewContext(ctx, w.log, niche, w.queue, w.notify)
	start := time.Now()
	w.log.Info("niche run claimed", "worker_id", workerID, "niche_id", niche.ID, "run_epoch", niche.RunEpoch)

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("niche handler panic", "worker_id", workerID, "niche_id", niche.ID, "panic", r)
				jc.Fail("panic", fmt.Errorf("panic: unexpected error"))
			}
		}()
		if runErr := w.handler.Run(jc); runErr != nil && jc.Outcome() == runtime.OutcomeRunning {
			jc.Fail("run", runErr)
		}
	}()

	outcome := jc.Outcome()
	if outcome == runtime.OutcomeRunning {
		// Handler returned without a terminal write.
		jc.Fail("run", fmt.Errorf("run ended without a result"))
		outcome = jc.Outcome()
	}
	observability.Current().ObserveNicheRun(outcome, time.Since(start))
	w.log.Info("niche run finished", "worker_id", workerID, "niche_id", niche.ID, "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
	return true
}

func (w *Worker) reapLoop(ctx context.Context) {
	interval := w.staleAfter / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ReapStale(ctx)
		}
	}
}

// ReapStale returns runs with a lapsed heartbeat to pending under a new epoch.
func (w *Worker) ReapStale(ctx context.Context) int64 {
	n, err := w.queue.ResetStale(dbctx.Context{Ctx: ctx}, w.staleAfter)
	if err != nil {
		w.log.Warn("ResetStale failed", "error", err)
		return 0
	}
	if n > 0 {
		w.log.Warn("stale niche runs reset", "count", n)
	}
	return n
}
