package niches

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Category string

const (
	CategoryCompetition        Category = "competition"
	CategoryDemand             Category = "demand"
	CategoryFinancial          Category = "financial"
	CategoryKeyword            Category = "keyword"
	CategoryLaunch             Category = "launch"
	CategoryListing            Category = "listing"
	CategoryMarketIntelligence Category = "market-intelligence"
	CategoryOverall            Category = "overall"
)

var Categories = []Category{
	CategoryCompetition,
	CategoryDemand,
	CategoryFinancial,
	CategoryKeyword,
	CategoryLaunch,
	CategoryListing,
	CategoryMarketIntelligence,
	CategoryOverall,
}

// AnalysisBase holds the columns every analysis table shares. niche_id is the upsert target.
type AnalysisBase struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	NicheID      string         `gorm:"column:niche_id;not null;uniqueIndex" json:"niche_id"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	AnalysisDate time.Time      `gorm:"column:analysis_date;not null" json:"analysis_date"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (b *AnalysisBase) Base() *AnalysisBase { return b }

// AnalysisRow is implemented by the eight per-category tables.
type AnalysisRow interface {
	TableName() string
	Base() *AnalysisBase
	SummaryColumns() []string
}

type CompetitionAnalysis struct {
	AnalysisBase     `gorm:"embedded"`
	CompetitionLevel string  `gorm:"column:competition_level" json:"competition_level"`
	CompetitionScore float64 `gorm:"column:competition_score" json:"competition_score"`
	TotalCompetitors int     `gorm:"column:total_competitors" json:"total_competitors"`
}

func (CompetitionAnalysis) TableName() string { return "niches_competition_analysis" }
func (CompetitionAnalysis) SummaryColumns() []string {
	return []string{"competition_level", "competition_score", "total_competitors"}
}

type DemandAnalysis struct {
	AnalysisBase   `gorm:"embedded"`
	MonthlyUnits   int     `gorm:"column:monthly_units" json:"monthly_units"`
	MonthlyRevenue float64 `gorm:"column:monthly_revenue" json:"monthly_revenue"`
	MarketSize     float64 `gorm:"column:market_size" json:"market_size"`
}

func (DemandAnalysis) TableName() string { return "niches_demand_analysis" }
func (DemandAnalysis) SummaryColumns() []string {
	return []string{"monthly_units", "monthly_revenue", "market_size"}
}

type FinancialAnalysis struct {
	AnalysisBase `gorm:"embedded"`
	AvgPrice     float64 `gorm:"column:avg_price" json:"avg_price"`
	AvgFBAFee    float64 `gorm:"column:avg_fba_fee" json:"avg_fba_fee"`
	AvgMarginPct float64 `gorm:"column:avg_margin_pct" json:"avg_margin_pct"`
}

func (FinancialAnalysis) TableName() string { return "niches_financial_analysis" }
func (FinancialAnalysis) SummaryColumns() []string {
	return []string{"avg_price", "avg_fba_fee", "avg_margin_pct"}
}

type KeywordAnalysis struct {
	AnalysisBase  `gorm:"embedded"`
	TotalKeywords int     `gorm:"column:total_keywords" json:"total_keywords"`
	AvgCPC        float64 `gorm:"column:avg_cpc" json:"avg_cpc"`
}

func (KeywordAnalysis) TableName() string { return "niches_keyword_analysis" }
func (KeywordAnalysis) SummaryColumns() []string {
	return []string{"total_keywords", "avg_cpc"}
}

type LaunchStrategy struct {
	AnalysisBase    `gorm:"embedded"`
	NewEntrantShare float64 `gorm:"column:new_entrant_share" json:"new_entrant_share"`
	MedianPrice     float64 `gorm:"column:median_price" json:"median_price"`
}

func (LaunchStrategy) TableName() string { return "niches_launch_strategy" }
func (LaunchStrategy) SummaryColumns() []string {
	return []string{"new_entrant_share", "median_price"}
}

type ListingOptimization struct {
	AnalysisBase   `gorm:"embedded"`
	AvgTitleLength float64 `gorm:"column:avg_title_length" json:"avg_title_length"`
	AvgImageCount  float64 `gorm:"column:avg_image_count" json:"avg_image_count"`
}

func (ListingOptimization) TableName() string { return "niches_listing_optimization" }
func (ListingOptimization) SummaryColumns() []string {
	return []string{"avg_title_length", "avg_image_count"}
}

type MarketIntelligence struct {
	AnalysisBase  `gorm:"embedded"`
	TotalReviews  int     `gorm:"column:total_reviews" json:"total_reviews"`
	AvgRating     float64 `gorm:"column:avg_rating" json:"avg_rating"`
	VerifiedShare float64 `gorm:"column:verified_share" json:"verified_share"`
}

func (MarketIntelligence) TableName() string { return "niches_market_intelligence" }
func (MarketIntelligence) SummaryColumns() []string {
	return []string{"total_reviews", "avg_rating", "verified_share"}
}

type OverallAnalysis struct {
	AnalysisBase     `gorm:"embedded"`
	OpportunityScore float64 `gorm:"column:opportunity_score" json:"opportunity_score"`
	TotalProducts    int     `gorm:"column:total_products" json:"total_products"`
	FailedProducts   int     `gorm:"column:failed_products" json:"failed_products"`
}

func (OverallAnalysis) TableName() string { return "niches_overall_analysis" }
func (OverallAnalysis) SummaryColumns() []string {
	return []string{"opportunity_score", "total_products", "failed_products"}
}

// NewAnalysisRow returns an empty row for the category's table.
func NewAnalysisRow(c Category) (AnalysisRow, error) {
	switch c {
	case CategoryCompetition:
		return &CompetitionAnalysis{}, nil
	case CategoryDemand:
		return &DemandAnalysis{}, nil
	case CategoryFinancial:
		return &FinancialAnalysis{}, nil
	case CategoryKeyword:
		return &KeywordAnalysis{}, nil
	case CategoryLaunch:
		return &LaunchStrategy{}, nil
	case CategoryListing:
		return &ListingOptimization{}, nil
	case CategoryMarketIntelligence:
		return &MarketIntelligence{}, nil
	case CategoryOverall:
		return &OverallAnalysis{}, nil
	default:
		return nil, fmt.Errorf("unknown analysis category %q", c)
	}
}

// AnalysisModels lists every analysis table for migrations.
func AnalysisModels() []interface{} {
	return []interface{}{
		&CompetitionAnalysis{},
		&DemandAnalysis{},
		&FinancialAnalysis{},
		&KeywordAnalysis{},
		&LaunchStrategy{},
		&ListingOptimization{},
		&MarketIntelligence{},
		&OverallAnalysis{},
	}
}
