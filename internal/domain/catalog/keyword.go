package catalog

import (
	"time"

	"github.com/google/uuid"
)

type ProductKeyword struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProductID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_keyword,priority:1" json:"product_id"`
	Keyword         string    `gorm:"column:keyword;not null;uniqueIndex:idx_product_keyword,priority:2" json:"keyword"`
	ASIN            string    `gorm:"column:asin;not null;index" json:"asin"`
	MatchType       string    `gorm:"column:match_type" json:"match_type,omitempty"`
	SuggestedBid    *float64  `gorm:"column:suggested_bid" json:"suggested_bid,omitempty"`
	EstimatedClicks int       `gorm:"column:estimated_clicks;not null;default:0" json:"estimated_clicks"`
	EstimatedOrders int       `gorm:"column:estimated_orders;not null;default:0" json:"estimated_orders"`
	State           string    `gorm:"column:state" json:"state,omitempty"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ProductKeyword) TableName() string { return "product_keywords" }
