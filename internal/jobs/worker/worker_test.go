package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/jobs/runtime"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/dbctx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type fakeQueue struct {
	mu      sync.Mutex
	pending []*types.Niche
	writes  []map[string]interface{}
	reset   int64
}

func (q *fakeQueue) ClaimNextPending(dbc dbctx.Context) (*types.Niche, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	n := q.pending[0]
	q.pending = q.pending[1:]
	n.Status = niches.StatusProcessing
	n.RunEpoch++
	return n, nil
}

func (q *fakeQueue) ResetStale(dbc dbctx.Context, staleAfter time.Duration) (int64, error) {
	return q.reset, nil
}

func (q *fakeQueue) UpdateFieldsForEpoch(dbc dbctx.Context, id string, epoch int64, updates map[string]interface{}) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writes = append(q.writes, updates)
	return true, nil
}

type handlerFunc func(jc *runtime.Context) error

func (f handlerFunc) Run(jc *runtime.Context) error { return f(jc) }

func TestRunOnceEmptyQueue(t *testing.T) {
	w := NewWorker(logger.Nop(), &fakeQueue{}, handlerFunc(func(jc *runtime.Context) error {
		t.Fatalf("handler should not run")
		return nil
	}), nil)
	if w.RunOnce(context.Background(), 1) {
		t.Fatalf("RunOnce claimed from an empty queue")
	}
}

func TestRunOnceFailsOnHandlerError(t *testing.T) {
	q := &fakeQueue{pending: []*types.Niche{{ID: "n1"}}}
	w := NewWorker(logger.Nop(), q, handlerFunc(func(jc *runtime.Context) error {
		return errors.New("keepa down")
	}), nil)
	if !w.RunOnce(context.Background(), 1) {
		t.Fatalf("expected a claim")
	}
	if len(q.writes) != 1 || q.writes[0]["status"] != niches.StatusFailed || q.writes[0]["error_message"] != "keepa down" {
		t.Fatalf("writes = %v", q.writes)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	q := &fakeQueue{pending: []*types.Niche{{ID: "n1"}}}
	w := NewWorker(logger.Nop(), q, handlerFunc(func(jc *runtime.Context) error {
		panic("bad")
	}), nil)
	w.RunOnce(context.Background(), 1)
	if len(q.writes) != 1 || q.writes[0]["status"] != niches.StatusFailed {
		t.Fatalf("writes = %v", q.writes)
	}
}

func TestRunOnceKeepsHandlerSuccess(t *testing.T) {
	q := &fakeQueue{pending: []*types.Niche{{ID: "n1"}}}
	w := NewWorker(logger.Nop(), q, handlerFunc(func(jc *runtime.Context) error {
		jc.Succeed(nil)
		return nil
	}), nil)
	w.RunOnce(context.Background(), 1)
	if len(q.writes) != 1 || q.writes[0]["status"] != niches.StatusCompleted {
		t.Fatalf("writes = %v", q.writes)
	}
}

func TestReapStale(t *testing.T) {
	w := NewWorker(logger.Nop(), &fakeQueue{reset: 2}, handlerFunc(func(jc *runtime.Context) error { return nil }), nil)
	if got := w.ReapStale(context.Background()); got != 2 {
		t.Fatalf("ReapStale = %d", got)
	}
}
