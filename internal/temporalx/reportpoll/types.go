package reportpoll

import "time"

const (
	WorkflowName    = "report_poll"
	ActivityCheck   = "report_poll_check"
	ActivityTimeout = "report_poll_timeout"
)

// Input starts one wait on a report. Deadline is fixed on the first run and carried across
// continue-as-new so the budget stays wall-clock.
type Input struct {
	ReportID        string    `json:"report_id"`
	IntervalSeconds int       `json:"interval_seconds"`
	BudgetSeconds   int       `json:"budget_seconds"`
	Deadline        time.Time `json:"deadline,omitempty"`
	Polls           int       `json:"polls,omitempty"`
}

type CheckResult struct {
	ReportID   string `json:"report_id"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome,omitempty"`
	Done       bool   `json:"done"`
	RowCount   int    `json:"row_count,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Result struct {
	ReportID string `json:"report_id"`
	Outcome  string `json:"outcome"`
	Status   string `json:"status"`
	Polls    int    `json:"polls"`
	RowCount int    `json:"row_count,omitempty"`
}
