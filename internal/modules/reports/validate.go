package reports

import (
	"fmt"
	"strings"
	"time"

	domainreports "github.com/yungbote/commercecrafted-backend/internal/domain/reports"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns midnight UTC of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required: %w", apperrors.ErrValidation)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		rt, rerr := time.Parse(time.RFC3339, s)
		if rerr != nil {
			return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, apperrors.ErrValidation)
		}
		t = rt.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ValidateWeek requires start to be a Sunday and end the Saturday six days later.
func ValidateWeek(start, end time.Time) error {
	start, end = start.UTC(), end.UTC()
	if start.Weekday() != time.Sunday {
		return fmt.Errorf("start date %s must be a Sunday: %w", start.Format(dateLayout), apperrors.ErrValidation)
	}
	if end.Weekday() != time.Saturday {
		return fmt.Errorf("end date %s must be a Saturday: %w", end.Format(dateLayout), apperrors.ErrValidation)
	}
	sy, sm, sd := start.AddDate(0, 0, 6).Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		return fmt.Errorf("end date %s must be exactly 6 days after start date %s: %w",
			end.Format(dateLayout), start.Format(dateLayout), apperrors.ErrValidation)
	}
	return nil
}

// ValidateRequest checks a report request before anything is sent to Amazon.
func ValidateRequest(reportType string, start, end time.Time) error {
	if !domainreports.ValidType(reportType) {
		return fmt.Errorf("unsupported report type %q: %w", reportType, apperrors.ErrValidation)
	}
	if end.Before(start) {
		return fmt.Errorf("end date is before start date: %w", apperrors.ErrValidation)
	}
	if reportType == domainreports.TypeSearchTerms {
		return ValidateWeek(start, end)
	}
	return nil
}
