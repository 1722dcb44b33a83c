package niches

// Typed payloads stored in each analysis table's payload column. Optional values are pointers
// so "no data" stays distinguishable from zero.

type BrandShare struct {
	Brand    string  `json:"brand"`
	Products int     `json:"products"`
	Share    float64 `json:"share"`
}

type PriceSpread struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

type CompetitorSummary struct {
	ASIN         string   `json:"asin"`
	Title        string   `json:"title"`
	Brand        string   `json:"brand,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewCount  int      `json:"reviewCount"`
	BSR          *int     `json:"bsr,omitempty"`
	MonthlySales int      `json:"monthlySales"`
}

type CompetitionPayload struct {
	CompetitionLevel string              `json:"competitionLevel"`
	CompetitionScore float64             `json:"competitionScore"`
	TotalCompetitors int                 `json:"totalCompetitors"`
	AvgRating        *float64            `json:"avgRating,omitempty"`
	AvgReviewCount   float64             `json:"avgReviewCount"`
	TopBrands        []BrandShare        `json:"topBrands"`
	PriceSpread      *PriceSpread        `json:"priceSpread,omitempty"`
	Competitors      []CompetitorSummary `json:"competitors"`
}

type ASINSales struct {
	ASIN           string  `json:"asin"`
	MonthlyUnits   int     `json:"monthlyUnits"`
	MonthlyRevenue float64 `json:"monthlyRevenue"`
	Estimated      bool    `json:"estimated"`
}

type DemandPayload struct {
	DemandLevel    string      `json:"demandLevel"`
	MonthlyUnits   int         `json:"monthlyUnits"`
	MonthlyRevenue float64     `json:"monthlyRevenue"`
	MarketSize     float64     `json:"marketSize"`
	AvgBSR         *float64    `json:"avgBsr,omitempty"`
	BestBSR        *int        `json:"bestBsr,omitempty"`
	SalesByASIN    []ASINSales `json:"salesByAsin"`
}

type UnitEconomics struct {
	ASIN           string  `json:"asin"`
	Price          float64 `json:"price"`
	ReferralFee    float64 `json:"referralFee"`
	FulfillmentFee float64 `json:"fulfillmentFee"`
	StorageFee     float64 `json:"storageFee"`
	TotalFees      float64 `json:"totalFees"`
	NetPerUnit     float64 `json:"netPerUnit"`
	MarginPct      float64 `json:"marginPct"`
}

type FinancialPayload struct {
	AvgPrice         float64         `json:"avgPrice"`
	MedianPrice      float64         `json:"medianPrice"`
	AvgFBAFee        float64         `json:"avgFbaFee"`
	AvgNetPerUnit    float64         `json:"avgNetPerUnit"`
	AvgMarginPct     float64         `json:"avgMarginPct"`
	ProductEconomics []UnitEconomics `json:"productEconomics"`
}

type KeywordStat struct {
	Keyword         string   `json:"keyword"`
	MatchType       string   `json:"matchType,omitempty"`
	SuggestedBid    *float64 `json:"suggestedBid,omitempty"`
	EstimatedClicks int      `json:"estimatedClicks"`
	EstimatedOrders int      `json:"estimatedOrders"`
	ProductCount    int      `json:"productCount"`
}

type KeywordPayload struct {
	TotalKeywords   int            `json:"totalKeywords"`
	AvgCPC          float64        `json:"avgCpc"`
	PrimaryKeywords []string       `json:"primaryKeywords"`
	TopKeywords     []KeywordStat  `json:"topKeywords"`
	Opportunities   []KeywordStat  `json:"opportunities"`
	MatchTypes      map[string]int `json:"matchTypes"`
}

type AgeBucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

type LaunchPayload struct {
	AgeDistribution   []AgeBucketCount `json:"ageDistribution"`
	AvgAgeMonths      *float64         `json:"avgAgeMonths,omitempty"`
	NewEntrantShare   float64          `json:"newEntrantShare"`
	MedianPrice       float64          `json:"medianPrice"`
	MedianReviewCount int              `json:"medianReviewCount"`
	ReviewTarget      int              `json:"reviewTarget"`
	Difficulty        string           `json:"difficulty"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type ListingSummary struct {
	ASIN        string `json:"asin"`
	TitleLength int    `json:"titleLength"`
	ImageCount  int    `json:"imageCount"`
}

type ListingPayload struct {
	AvgTitleLength        float64          `json:"avgTitleLength"`
	AvgImageCount         float64          `json:"avgImageCount"`
	ProductsWithoutImages int              `json:"productsWithoutImages"`
	CommonTitleTerms      []TermCount      `json:"commonTitleTerms"`
	Listings              []ListingSummary `json:"listings"`
}

type ReviewExcerpt struct {
	ASIN         string `json:"asin"`
	Rating       int    `json:"rating"`
	Title        string `json:"title,omitempty"`
	Content      string `json:"content"`
	HelpfulVotes int    `json:"helpfulVotes"`
	Verified     bool   `json:"verified"`
}

type MarketIntelligencePayload struct {
	TotalReviews    int             `json:"totalReviews"`
	AvgRating       *float64        `json:"avgRating,omitempty"`
	RatingBreakdown map[string]int  `json:"ratingBreakdown"`
	VerifiedShare   float64         `json:"verifiedShare"`
	TopPositive     []ReviewExcerpt `json:"topPositive"`
	TopNegative     []ReviewExcerpt `json:"topNegative"`
}

type OverallPayload struct {
	OpportunityScore float64  `json:"opportunityScore"`
	Summary          string   `json:"summary"`
	TotalProducts    int      `json:"totalProducts"`
	FailedProducts   int      `json:"failedProducts"`
	FailedASINs      []string `json:"failedAsins"`
	CompetitionLevel string   `json:"competitionLevel"`
	MarketSize       float64  `json:"marketSize"`
	AvgPrice         *float64 `json:"avgPrice,omitempty"`
	AvgRating        *float64 `json:"avgRating,omitempty"`
	TotalReviews     int      `json:"totalReviews"`
	TotalKeywords    int      `json:"totalKeywords"`
}
