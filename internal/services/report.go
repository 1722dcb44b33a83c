package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/modules/reports"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const EstimatedReportTime = "5-30 minutes"

type ReportRequest struct {
	Type          string
	StartDate     string
	EndDate       string
	MarketplaceID string
	UserID        string
}

// ReportEngine is the report module surface the service drives. *reports.Service implements it.
type ReportEngine interface {
	RequestReport(ctx context.Context, in reports.RequestInput) (*types.AmazonReport, error)
	GetReport(ctx context.Context, id uuid.UUID) (*types.AmazonReport, error)
	Start(ctx context.Context) bool
	Stop() bool
	Status() reports.LoopStatus
}

// WaitStarter launches a durable wait for a report. *reportpoll.Starter implements it.
type WaitStarter interface {
	Start(ctx context.Context, reportID uuid.UUID) (string, error)
}

type ReportService interface {
	Request(ctx context.Context, in ReportRequest) (*types.AmazonReport, error)
	Get(ctx context.Context, id string) (*types.AmazonReport, error)
	StartPolling(ctx context.Context) (reports.LoopStatus, bool)
	StopPolling() (reports.LoopStatus, bool)
	PollingStatus() reports.LoopStatus
}

type reportService struct {
	log    *logger.Logger
	engine ReportEngine
	waits  WaitStarter
}

// NewReportService wires the report module. waits may be nil, in which case only the
// in-process loop polls.
func NewReportService(baseLog *logger.Logger, engine ReportEngine, waits WaitStarter) ReportService {
	return &reportService{
		log:    baseLog.With("service", "ReportService"),
		engine: engine,
		waits:  waits,
	}
}

func (s *reportService) Request(ctx context.Context, in ReportRequest) (*types.AmazonReport, error) {
	start, err := reports.ParseDate(in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("startDate: %w", err)
	}
	end, err := reports.ParseDate(in.EndDate)
	if err != nil {
		return nil, fmt.Errorf("endDate: %w", err)
	}
	rep, err := s.engine.RequestReport(ctx, reports.RequestInput{
		ReportType:    in.Type,
		StartDate:     start,
		EndDate:       end,
		MarketplaceID: in.MarketplaceID,
		UserID:        in.UserID,
	})
	if err != nil {
		return nil, err
	}
	if s.waits != nil {
		if runID, err := s.waits.Start(ctx, rep.ID); err != nil {
			// The in-process loop still picks the report up.
			s.log.Warn("durable report wait not started", "report_id", rep.ID, "error", err)
		} else {
			s.log.Info("durable report wait started", "report_id", rep.ID, "run_id", runID)
		}
	}
	return rep, nil
}

func (s *reportService) Get(ctx context.Context, id string) (*types.AmazonReport, error) {
	rid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("invalid report id %q: %w", id, apperrors.ErrNotFound)
	}
	return s.engine.GetReport(ctx, rid)
}

func (s *reportService) StartPolling(ctx context.Context) (reports.LoopStatus, bool) {
	started := s.engine.Start(ctx)
	if started {
		s.log.Info("report polling started")
	}
	return s.engine.Status(), started
}

func (s *reportService) StopPolling() (reports.LoopStatus, bool) {
	stopped := s.engine.Stop()
	if stopped {
		s.log.Info("report polling stopped")
	}
	return s.engine.Status(), stopped
}

func (s *reportService) PollingStatus() reports.LoopStatus {
	return s.engine.Status()
}
