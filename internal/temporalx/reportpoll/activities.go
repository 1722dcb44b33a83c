package reportpoll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/modules/reports"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const (
	ErrTypeNotFound     = "report_not_found"
	ErrTypeInvalidInput = "invalid_input"
)

// ReportChecker is the slice of the report service the activities drive.
// *reports.Service implements it.
type ReportChecker interface {
	GetReport(ctx context.Context, id uuid.UUID) (*types.AmazonReport, error)
	CheckReport(ctx context.Context, id uuid.UUID) (*types.AmazonReport, error)
	MarkTimeout(ctx context.Context, rep *types.AmazonReport) (*types.AmazonReport, error)
}

type Activities struct {
	Log     *logger.Logger
	Reports ReportChecker
}

// Check polls Amazon once for the report and stores whatever changed.
func (a *Activities) Check(ctx context.Context, reportID string) (CheckResult, error) {
	id, err := a.parse(reportID)
	if err != nil {
		return CheckResult{ReportID: reportID}, err
	}
	activity.RecordHeartbeat(ctx)
	rep, err := a.Reports.CheckReport(ctx, id)
	if err != nil {
		return CheckResult{ReportID: reportID}, a.classify(err)
	}
	return resultFor(rep), nil
}

// MarkTimeout records that the waiter gave up on the report.
func (a *Activities) MarkTimeout(ctx context.Context, reportID string) (CheckResult, error) {
	id, err := a.parse(reportID)
	if err != nil {
		return CheckResult{ReportID: reportID}, err
	}
	rep, err := a.Reports.GetReport(ctx, id)
	if err != nil {
		return CheckResult{ReportID: reportID}, a.classify(err)
	}
	rep, err = a.Reports.MarkTimeout(ctx, rep)
	if err != nil {
		return CheckResult{ReportID: reportID}, a.classify(err)
	}
	if a.Log != nil {
		a.Log.Info("report wait timed out", "report_id", reportID, "status", rep.Status)
	}
	return resultFor(rep), nil
}

func (a *Activities) parse(reportID string) (uuid.UUID, error) {
	if a == nil || a.Reports == nil {
		return uuid.Nil, fmt.Errorf("reportpoll: activities not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(reportID))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, temporal.NewNonRetryableApplicationError("reportpoll: invalid report_id", ErrTypeInvalidInput, err)
	}
	return id, nil
}

func (a *Activities) classify(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotFound, err)
	}
	return err
}

func resultFor(rep *types.AmazonReport) CheckResult {
	out := CheckResult{
		ReportID:   rep.ID.String(),
		Status:     rep.Status,
		RowCount:   rep.RowCount,
		RetryCount: rep.RetryCount,
		Error:      rep.ErrorMessage,
	}
	out.Outcome, out.Done = reports.OutcomeFor(rep.Status)
	return out
}

// Starter launches report waits on a task queue. A nil *Starter means durable polling is off.
type Starter struct {
	Client    temporalsdkclient.Client
	TaskQueue string
	Interval  time.Duration
	Budget    time.Duration
}

// Start begins a wait for the report unless one is already running for it.
func (s *Starter) Start(ctx context.Context, reportID uuid.UUID) (string, error) {
	if s == nil || s.Client == nil {
		return "", fmt.Errorf("reportpoll: temporal client is not configured")
	}
	in := Input{
		ReportID:        reportID.String(),
		IntervalSeconds: int(s.Interval / time.Second),
		BudgetSeconds:   int(s.Budget / time.Second),
	}
	run, err := s.Client.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(in.ReportID),
		TaskQueue: s.TaskQueue,
	}, WorkflowName, in)
	if err != nil {
		return "", fmt.Errorf("reportpoll: start %s: %w", in.ReportID, err)
	}
	return run.GetRunID(), nil
}
