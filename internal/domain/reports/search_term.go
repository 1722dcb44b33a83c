package reports

import (
	"time"

	"github.com/google/uuid"
)

type SearchTerm struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReportID            uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	SearchTerm          string    `gorm:"column:search_term;not null;index" json:"search_term"`
	SearchFrequencyRank int       `gorm:"column:search_frequency_rank" json:"search_frequency_rank"`
	ClickedASIN         string    `gorm:"column:clicked_asin;index" json:"clicked_asin"`
	ClickedTitle        string    `gorm:"column:clicked_title" json:"clicked_title,omitempty"`
	ClickShare          float64   `gorm:"column:click_share" json:"click_share"`
	ConversionShare     float64   `gorm:"column:conversion_share" json:"conversion_share"`
	RankPosition        int       `gorm:"column:rank_position" json:"rank_position"`
	WeekStart           time.Time `gorm:"column:week_start;type:date;index" json:"week_start"`
	CreatedAt           time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SearchTerm) TableName() string { return "search_terms" }
