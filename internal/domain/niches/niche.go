package niches

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Niche struct {
	ID                 string         `gorm:"column:id;primaryKey" json:"id"`
	NicheName          string         `gorm:"column:niche_name;not null" json:"niche_name"`
	Slug               string         `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	ASINs              string         `gorm:"column:asins;type:text;not null" json:"-"`
	Marketplace        string         `gorm:"column:marketplace;not null;default:'US'" json:"marketplace"`
	Status             string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	ProcessingProgress datatypes.JSON `gorm:"column:processing_progress;type:jsonb" json:"processing_progress,omitempty"`
	ErrorMessage       string         `gorm:"column:error_message" json:"error_message,omitempty"`
	RunEpoch           int64          `gorm:"column:run_epoch;not null;default:0" json:"run_epoch"`
	ProcessStartedAt   *time.Time     `gorm:"column:process_started_at" json:"process_started_at,omitempty"`
	ProcessCompletedAt *time.Time     `gorm:"column:process_completed_at" json:"process_completed_at,omitempty"`
	HeartbeatAt        *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	TotalProducts      int            `gorm:"column:total_products;not null;default:0" json:"total_products"`
	FailedProducts     int            `gorm:"column:failed_products;not null;default:0" json:"failed_products"`
	TotalKeywords      int            `gorm:"column:total_keywords;not null;default:0" json:"total_keywords"`
	TotalReviews       int            `gorm:"column:total_reviews;not null;default:0" json:"total_reviews"`
	AvgPrice           *float64       `gorm:"column:avg_price" json:"avg_price,omitempty"`
	AvgBSR             *float64       `gorm:"column:avg_bsr" json:"avg_bsr,omitempty"`
	AvgRating          *float64       `gorm:"column:avg_rating" json:"avg_rating,omitempty"`
	MarketSize         *float64       `gorm:"column:market_size" json:"market_size,omitempty"`
	CompetitionLevel   string         `gorm:"column:competition_level" json:"competition_level,omitempty"`
	CreatedBy          string         `gorm:"column:created_by;index" json:"created_by,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Niche) TableName() string { return "niches" }

// ASINList decodes the stored column. Order is preserved, blanks and repeats are dropped.
func (n *Niche) ASINList() []string {
	if n == nil {
		return nil
	}
	return ParseASINs(n.ASINs)
}

func (n *Niche) SetASINs(asins []string) {
	n.ASINs = JoinASINs(asins)
}

func ParseASINs(raw string) []string {
	return NormalizeASINs(strings.Split(raw, ","))
}

func NormalizeASINs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func JoinASINs(asins []string) string {
	return strings.Join(NormalizeASINs(asins), ",")
}

// Progress is stored in niches.processing_progress.
type Progress struct {
	Current        int               `json:"current"`
	Total          int               `json:"total"`
	Percentage     int               `json:"percentage"`
	Stage          string            `json:"stage,omitempty"`
	CurrentASIN    string            `json:"currentAsin,omitempty"`
	CompletedASINs []string          `json:"completedAsins"`
	FailedASINs    []string          `json:"failedAsins"`
	FailureReasons map[string]string `json:"failureReasons,omitempty"`
}

// Normalize keeps the JSON shape stable: lists are never null and percentage stays in 0..100.
func (p *Progress) Normalize() {
	if p.CompletedASINs == nil {
		p.CompletedASINs = []string{}
	}
	if p.FailedASINs == nil {
		p.FailedASINs = []string{}
	}
	if p.Percentage < 0 {
		p.Percentage = 0
	}
	if p.Percentage > 100 {
		p.Percentage = 100
	}
}

// Percent computes the whole-number completion for current of total.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}

// ProgressEvent is broadcast whenever a run changes a niche's status or progress.
type ProgressEvent struct {
	NicheID  string    `json:"nicheId"`
	RunEpoch int64     `json:"runEpoch"`
	Status   string    `json:"status"`
	Progress *Progress `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}
