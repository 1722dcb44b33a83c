package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ASIN               string     `gorm:"column:asin;not null;uniqueIndex" json:"asin"`
	Title              string     `gorm:"column:title" json:"title"`
	Brand              string     `gorm:"column:brand" json:"brand,omitempty"`
	Category           string     `gorm:"column:category" json:"category,omitempty"`
	Subcategory        string     `gorm:"column:subcategory" json:"subcategory,omitempty"`
	Price              *float64   `gorm:"column:price" json:"price,omitempty"`
	Rating             *float64   `gorm:"column:rating" json:"rating,omitempty"`
	ReviewCount        *int       `gorm:"column:review_count" json:"review_count,omitempty"`
	BSR                *int       `gorm:"column:bsr" json:"bsr,omitempty"`
	MonthlySold        *int       `gorm:"column:monthly_sold" json:"monthly_sold,omitempty"`
	ImageURLs          string     `gorm:"column:image_urls;type:text" json:"-"`
	LengthMM           *float64   `gorm:"column:length" json:"length,omitempty"`
	WidthMM            *float64   `gorm:"column:width" json:"width,omitempty"`
	HeightMM           *float64   `gorm:"column:height" json:"height,omitempty"`
	WeightGrams        *float64   `gorm:"column:weight" json:"weight,omitempty"`
	FirstSeenAt        *time.Time `gorm:"column:first_seen_at" json:"first_seen_at,omitempty"`
	ProductAgeMonths   *int       `gorm:"column:product_age_months" json:"product_age_months,omitempty"`
	ProductAgeCategory string     `gorm:"column:product_age_category" json:"product_age_category,omitempty"`
	FBAFees            *float64   `gorm:"column:fba_fees" json:"fba_fees,omitempty"`
	LastKeepaSync      *time.Time `gorm:"column:last_keepa_sync;index" json:"last_keepa_sync,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

func (p *Product) Images() []string {
	if p == nil || strings.TrimSpace(p.ImageURLs) == "" {
		return nil
	}
	parts := strings.Split(p.ImageURLs, ",")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func JoinImages(urls []string) string {
	clean := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	return strings.Join(clean, ",")
}

// IsStale reports whether Keepa data should be refetched.
func (p *Product) IsStale(now time.Time, maxAge time.Duration) bool {
	if p == nil || p.LastKeepaSync == nil {
		return true
	}
	return now.Sub(*p.LastKeepaSync) > maxAge
}
