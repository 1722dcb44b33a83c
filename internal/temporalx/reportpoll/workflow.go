package reportpoll

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/commercecrafted-backend/internal/modules/reports"
)

const (
	defaultInterval      = 30 * time.Second
	defaultBudget        = 30 * time.Minute
	continuePollLimit    = 500
	continueHistoryLimit = 10000
)

// Workflow polls one report until it is terminal or the budget runs out. Running out of budget
// is a normal result with Outcome "timeout"; the report row stays resumable.
func Workflow(ctx workflow.Context, in Input) (Result, error) {
	in.ReportID = strings.TrimSpace(in.ReportID)
	if in.ReportID == "" {
		return Result{}, temporal.NewNonRetryableApplicationError("reportpoll: missing report_id", "invalid_input", nil)
	}
	interval := time.Duration(in.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultInterval
	}
	if in.Deadline.IsZero() {
		budget := time.Duration(in.BudgetSeconds) * time.Second
		if budget <= 0 {
			budget = defaultBudget
		}
		in.Deadline = workflow.Now(ctx).Add(budget)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: []string{ErrTypeNotFound, ErrTypeInvalidInput},
		},
	})
	log := workflow.GetLogger(ctx)
	started := in.Polls

	for {
		in.Polls++
		var out CheckResult
		if err := workflow.ExecuteActivity(ctx, ActivityCheck, in.ReportID).Get(ctx, &out); err != nil {
			return Result{ReportID: in.ReportID, Polls: in.Polls}, fmt.Errorf("reportpoll: check %s: %w", in.ReportID, err)
		}
		if out.Done {
			log.Info("report finished", "report_id", in.ReportID, "outcome", out.Outcome, "polls", in.Polls)
			return Result{ReportID: in.ReportID, Outcome: out.Outcome, Status: out.Status, Polls: in.Polls, RowCount: out.RowCount}, nil
		}

		if !workflow.Now(ctx).Add(interval).Before(in.Deadline) {
			var timedOut CheckResult
			if err := workflow.ExecuteActivity(ctx, ActivityTimeout, in.ReportID).Get(ctx, &timedOut); err != nil {
				return Result{ReportID: in.ReportID, Polls: in.Polls}, fmt.Errorf("reportpoll: mark timeout %s: %w", in.ReportID, err)
			}
			log.Warn("report wait budget exhausted", "report_id", in.ReportID, "status", timedOut.Status, "polls", in.Polls)
			// A report that finished between the last check and the timeout write keeps its outcome.
			outcome := reports.OutcomeTimeout
			if timedOut.Done {
				outcome = timedOut.Outcome
			}
			return Result{ReportID: in.ReportID, Outcome: outcome, Status: timedOut.Status, Polls: in.Polls, RowCount: timedOut.RowCount}, nil
		}

		if err := workflow.Sleep(ctx, interval); err != nil {
			return Result{ReportID: in.ReportID, Polls: in.Polls}, err
		}
		if shouldContinueAsNew(ctx, in.Polls-started) {
			return Result{}, workflow.NewContinueAsNewError(ctx, Workflow, in)
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, polls int) bool {
	if polls >= continuePollLimit {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}

// WorkflowID keeps at most one wait per report.
func WorkflowID(reportID string) string {
	return "report-poll-" + strings.TrimSpace(reportID)
}
