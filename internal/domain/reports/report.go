package reports

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeSearchTerms    = "SEARCH_TERMS"
	TypeMarketBasket   = "MARKET_BASKET"
	TypeRepeatPurchase = "REPEAT_PURCHASE"
	TypeItemComparison = "ITEM_COMPARISON"
)

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusExpired    = "EXPIRED"
	StatusTimeout    = "TIMEOUT"
)

// ValidType reports whether t is a report type this service can request.
func ValidType(t string) bool {
	switch t {
	case TypeSearchTerms, TypeMarketBasket, TypeRepeatPurchase, TypeItemComparison:
		return true
	}
	return false
}

// Terminal reports whether no further polling happens for status.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

type AmazonReport struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AmazonReportID string     `gorm:"column:amazon_report_id;not null;uniqueIndex" json:"amazon_report_id"`
	ReportType     string     `gorm:"column:report_type;not null;index" json:"report_type"`
	Status         string     `gorm:"column:status;not null;index" json:"status"`
	MarketplaceID  string     `gorm:"column:marketplace_id;not null" json:"marketplace_id"`
	StartDate      time.Time  `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate        time.Time  `gorm:"column:end_date;type:date;not null" json:"end_date"`
	DocumentID     string     `gorm:"column:document_id" json:"document_id,omitempty"`
	RetryCount     int        `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	LastPolledAt   *time.Time `gorm:"column:last_polled_at;index" json:"last_polled_at,omitempty"`
	ErrorMessage   string     `gorm:"column:error_message" json:"error_message,omitempty"`
	RowCount       int        `gorm:"column:row_count;not null;default:0" json:"row_count"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UserID         string     `gorm:"column:user_id;index" json:"user_id,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (AmazonReport) TableName() string { return "amazon_reports" }
