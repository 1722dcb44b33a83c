package reports

import (
	"errors"
	"testing"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

func TestValidateWeek(t *testing.T) {
	cases := []struct {
		start, end string
		ok         bool
	}{
		{"2024-01-07", "2024-01-13", true},  // Sunday to Saturday
		{"2024-12-29", "2025-01-04", true},  // across a year boundary
		{"2024-01-08", "2024-01-14", false}, // Monday start
		{"2024-01-07", "2024-01-12", false}, // Friday end
		{"2024-01-07", "2024-01-20", false}, // Saturday 13 days later
		{"2024-01-14", "2024-01-13", false}, // Saturday before the Sunday
	}
	for _, tc := range cases {
		start, err := ParseDate(tc.start)
		if err != nil {
			t.Fatalf("ParseDate(%s): %v", tc.start, err)
		}
		end, err := ParseDate(tc.end)
		if err != nil {
			t.Fatalf("ParseDate(%s): %v", tc.end, err)
		}
		err = ValidateWeek(start, end)
		if tc.ok && err != nil {
			t.Fatalf("%s..%s: unexpected error %v", tc.start, tc.end, err)
		}
		if !tc.ok && !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("%s..%s: want validation error, got %v", tc.start, tc.end, err)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	start, _ := ParseDate("2024-01-08")
	end, _ := ParseDate("2024-01-10")
	if err := ValidateRequest("MARKET_BASKET", start, end); err != nil {
		t.Fatalf("non search-term reports take any range: %v", err)
	}
	if err := ValidateRequest("SEARCH_TERMS", start, end); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if err := ValidateRequest("SALES", start, end); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("want validation error for unknown type, got %v", err)
	}
	if err := ValidateRequest("MARKET_BASKET", end, start); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("want validation error for reversed range, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-07T18:30:00-05:00")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Format(dateLayout) != "2024-01-07" || d.Hour() != 0 {
		t.Fatalf("got %v", d)
	}
	if _, err := ParseDate("01/07/2024"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}
