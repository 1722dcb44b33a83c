package runtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

/*
Context is the execution handle for one claimed niche run.
Every write it makes to the niche row is conditioned on the run epoch captured at claim time.
Once a write is rejected the run is fenced: a reset or a newer claim owns the row and this
run's remaining writes are dropped without error.
Processing code never updates the niches table directly.
*/
type Context struct {
	Ctx    context.Context
	Niche  *types.Niche
	Repo   EpochStore
	Notify Notifier

	log      *logger.Logger
	mu       sync.Mutex
	progress niches.Progress
	fenced   bool
	outcome  string
}

// EpochStore is the slice of the niche repo a run may use.
type EpochStore interface {
	UpdateFieldsForEpoch(dbc dbctx.Context, id string, epoch int64, updates map[string]interface{}) (bool, error)
}

// Notifier receives status/progress events. Publishing is best effort.
type Notifier interface {
	Publish(ctx context.Context, ev niches.ProgressEvent) error
}

const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeFenced    = "fenced"
)

func NewContext(ctx context.Context, log *logger.Logger, niche *types.Niche, repo EpochStore, notify Notifier) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctxutil.GetTraceData(ctx) == nil && niche != nil {
		ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{NicheID: niche.ID, RunEpoch: niche.RunEpoch})
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Context{
		Ctx:     ctx,
		Niche:   niche,
		Repo:    repo,
		Notify:  notify,
		outcome: OutcomeRunning,
	}
	if niche != nil {
		c.log = log.With("niche_id", niche.ID, "run_epoch", niche.RunEpoch)
	} else {
		c.log = log
	}
	return c
}

func (c *Context) Log() *logger.Logger { return c.log }

func (c *Context) Epoch() int64 {
	if c == nil || c.Niche == nil {
		return 0
	}
	return c.Niche.RunEpoch
}

// Fenced reports whether a newer epoch has taken over the niche.
func (c *Context) Fenced() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fenced
}

func (c *Context) Outcome() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// CurrentProgress returns a copy of the last progress written by this run.
func (c *Context) CurrentProgress() niches.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	p.CompletedASINs = append([]string(nil), p.CompletedASINs...)
	p.FailedASINs = append([]string(nil), p.FailedASINs...)
	if c.progress.FailureReasons != nil {
		p.FailureReasons = make(map[string]string, len(c.progress.FailureReasons))
		for k, v := range c.progress.FailureReasons {
			p.FailureReasons[k] = v
		}
	}
	return p
}

// Update applies an epoch-guarded write. It returns false when the run is fenced.
func (c *Context) Update(updates map[string]interface{}) (bool, error) {
	return c.updateWith(dbctx.Context{Ctx: c.ctx()}, updates)
}

// Guard stamps the heartbeat inside dbc's transaction. While the transaction is open the niche
// row stays locked, so writes to other tables in the same transaction are fenced as well.
func (c *Context) Guard(dbc dbctx.Context) (bool, error) {
	if dbc.Ctx == nil {
		dbc.Ctx = c.ctx()
	}
	now := time.Now().UTC()
	return c.updateWith(dbc, map[string]interface{}{"heartbeat_at": now, "updated_at": now})
}

func (c *Context) ctx() context.Context {
	if c == nil || c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) updateWith(dbc dbctx.Context, updates map[string]interface{}) (bool, error) {
	if c == nil || c.Niche == nil || c.Repo == nil {
		return false, nil
	}
	if c.Fenced() {
		return false, nil
	}
	ok, err := c.Repo.UpdateFieldsForEpoch(dbc, c.Niche.ID, c.Niche.RunEpoch, updates)
	if err != nil {
		return false, err
	}
	if !ok {
		c.mu.Lock()
		if !c.fenced {
			c.log.Info("niche run fenced by newer epoch, dropping writes")
		}
		c.fenced = true
		c.outcome = OutcomeFenced
		c.mu.Unlock()
	}
	return ok, nil
}

// Progress records progress and refreshes the heartbeat.
func (c *Context) Progress(p niches.Progress) bool {
	if c == nil {
		return false
	}
	p.Normalize()
	raw, err := json.Marshal(p)
	if err != nil {
		c.log.Warn("progress encode failed", "error", err)
		return false
	}
	now := time.Now().UTC()
	ok, err := c.Update(map[string]interface{}{
		"processing_progress": datatypes.JSON(raw),
		"heartbeat_at":        now,
		"updated_at":          now,
	})
	if err != nil {
		c.log.Warn("progress write failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
	c.Niche.ProcessingProgress = datatypes.JSON(raw)
	c.Niche.HeartbeatAt = &now
	c.publish(niches.StatusProcessing, &p, "")
	return true
}

// Heartbeat proves liveness without changing progress.
func (c *Context) Heartbeat() bool {
	now := time.Now().UTC()
	ok, err := c.Update(map[string]interface{}{"heartbeat_at": now})
	if err != nil {
		c.log.Warn("heartbeat write failed", "error", err)
		return false
	}
	return ok
}

// Fail marks the niche failed with msg.
func (c *Context) Fail(stage string, cause error) bool {
	if c == nil {
		return false
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UTC()
	ok, err := c.Update(map[string]interface{}{
		"status":               niches.StatusFailed,
		"error_message":        msg,
		"process_completed_at": now,
		"heartbeat_at":         now,
		"updated_at":           now,
	})
	if err != nil {
		c.log.Error("fail write failed", "stage", stage, "error", err)
		return false
	}
	if !ok {
		return false
	}
	c.mu.Lock()
	c.outcome = OutcomeFailed
	c.mu.Unlock()
	c.Niche.Status = niches.StatusFailed
	c.Niche.ErrorMessage = msg
	c.Niche.ProcessCompletedAt = &now
	c.log.Warn("niche run failed", "stage", stage, "error", msg)
	c.publish(niches.StatusFailed, nil, msg)
	return true
}

// Succeed marks the niche completed and writes the final summary columns.
func (c *Context) Succeed(summary map[string]interface{}) bool {
	if c == nil {
		return false
	}
	now := time.Now().UTC()
	p := c.CurrentProgress()
	p.Stage = "completed"
	p.CurrentASIN = ""
	p.Percentage = 100
	p.Normalize()
	raw, _ := json.Marshal(p)

	updates := map[string]interface{}{
		"status":               niches.StatusCompleted,
		"error_message":        "",
		"processing_progress":  datatypes.JSON(raw),
		"process_completed_at": now,
		"heartbeat_at":         now,
		"updated_at":           now,
	}
	for k, v := range summary {
		updates[k] = v
	}
	ok, err := c.Update(updates)
	if err != nil {
		c.log.Error("complete write failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	c.mu.Lock()
	c.outcome = OutcomeCompleted
	c.progress = p
	c.mu.Unlock()
	c.Niche.Status = niches.StatusCompleted
	c.Niche.ErrorMessage = ""
	c.Niche.ProcessCompletedAt = &now
	c.publish(niches.StatusCompleted, &p, "")
	return true
}

func (c *Context) publish(status string, p *niches.Progress, msg string) {
	if c.Notify == nil || c.Niche == nil {
		return
	}
	ev := niches.ProgressEvent{
		NicheID:  c.Niche.ID,
		RunEpoch: c.Niche.RunEpoch,
		Status:   status,
		Progress: p,
		Message:  msg,
		At:       time.Now().UTC(),
	}
	if err := c.Notify.Publish(c.Ctx, ev); err != nil {
		c.log.Debug("progress publish failed", "error", err)
	}
}
