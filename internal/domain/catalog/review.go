package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CustomerReview struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProductID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_review_dedupe,priority:1" json:"product_id"`
	DedupeKey        string     `gorm:"column:dedupe_key;not null;uniqueIndex:idx_review_dedupe,priority:2" json:"-"`
	ASIN             string     `gorm:"column:asin;not null;index" json:"asin"`
	ReviewerID       string     `gorm:"column:reviewer_id" json:"reviewer_id,omitempty"`
	ReviewerName     string     `gorm:"column:reviewer_name" json:"reviewer_name,omitempty"`
	Rating           int        `gorm:"column:rating;not null" json:"rating"`
	Title            string     `gorm:"column:title" json:"title,omitempty"`
	Content          string     `gorm:"column:content;type:text" json:"content"`
	VerifiedPurchase bool       `gorm:"column:verified_purchase;not null;default:false" json:"verified_purchase"`
	HelpfulVotes     int        `gorm:"column:helpful_votes;not null;default:0" json:"helpful_votes"`
	ReviewDate       *time.Time `gorm:"column:review_date" json:"review_date,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (CustomerReview) TableName() string { return "product_customer_reviews" }

// ReviewDedupeKey identifies a review within a product by reviewer and normalized content.
func ReviewDedupeKey(reviewerID, content string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(strings.TrimSpace(reviewerID) + "|" + norm))
	return hex.EncodeToString(sum[:])
}
