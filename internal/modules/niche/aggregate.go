package niche

import (
	"math"
	"sort"
	"strings"
	"time"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
)

const (
	AgeBucket0To6   = "0-6 months"
	AgeBucket6To12  = "6-12 months"
	AgeBucket1To2   = "1-2 years"
	AgeBucket2To3   = "2-3 years"
	AgeBucket3Plus  = "3+ years"
	AgeBucketNoData = "No data"
)

// AgeBuckets is the display order of the launch age distribution.
var AgeBuckets = []string{AgeBucket0To6, AgeBucket6To12, AgeBucket1To2, AgeBucket2To3, AgeBucket3Plus, AgeBucketNoData}

// AgeBucket assigns months-since-first-seen to a bucket. Lower bounds are inclusive.
func AgeBucket(months *int) string {
	if months == nil || *months < 0 {
		return AgeBucketNoData
	}
	switch m := *months; {
	case m < 6:
		return AgeBucket0To6
	case m < 12:
		return AgeBucket6To12
	case m < 24:
		return AgeBucket1To2
	case m < 36:
		return AgeBucket2To3
	default:
		return AgeBucket3Plus
	}
}

const daysPerMonth = 30.44

// AgeMonths returns whole months between firstSeen and now, or nil without a date.
func AgeMonths(firstSeen *time.Time, now time.Time) *int {
	if firstSeen == nil || firstSeen.IsZero() {
		return nil
	}
	days := now.Sub(*firstSeen).Hours() / 24
	if days < 0 {
		days = 0
	}
	m := int(days / daysPerMonth)
	return &m
}

// First match wins, so "Home & Kitchen" resolves to kitchen.
var categorySalesMultiplier = []struct {
	name string
	mult float64
}{
	{"electronics", 0.8},
	{"kitchen", 1.2},
	{"sports", 1.0},
	{"books", 0.6},
	{"clothing", 1.5},
	{"home", 1.1},
	{"beauty", 0.9},
}

// EstimateMonthlySales approximates units per month from BSR when Keepa has no monthlySold.
func EstimateMonthlySales(bsr int, category string) int {
	if bsr <= 0 {
		return 0
	}
	var base float64
	switch {
	case bsr <= 100:
		base = 1000
	case bsr <= 1000:
		base = 500
	case bsr <= 10000:
		base = 100
	case bsr <= 100000:
		base = 20
	default:
		base = 5
	}
	mult := 1.0
	lc := strings.ToLower(category)
	for _, c := range categorySalesMultiplier {
		if strings.Contains(lc, c.name) {
			mult = c.mult
			break
		}
	}
	return int(math.Round(base * mult))
}

// FeeBreakdown is a simplified FBA fee estimate.
type FeeBreakdown struct {
	Referral    float64
	Fulfillment float64
	Storage     float64
}

func (f FeeBreakdown) Total() float64 { return round2(f.Referral + f.Fulfillment + f.Storage) }

const (
	referralRate = 0.15
	storageFee   = 0.75
)

// EstimateFBAFees uses a 15% referral fee and weight-tiered fulfillment.
func EstimateFBAFees(price float64, weightGrams *float64) FeeBreakdown {
	lb := 1.0
	if weightGrams != nil && *weightGrams > 0 {
		lb = *weightGrams / 453.592
	}
	fulfillment := 5.40
	switch {
	case lb <= 1:
		fulfillment = 3.22
	case lb <= 2:
		fulfillment = 4.08
	}
	return FeeBreakdown{
		Referral:    round2(price * referralRate),
		Fulfillment: fulfillment,
		Storage:     storageFee,
	}
}

// ProductScore is the per-product competition score in 0..100. Higher means easier to enter.
func ProductScore(p *types.Product) float64 {
	score := 100.0
	if p.ReviewCount != nil {
		score -= math.Min(40, float64(*p.ReviewCount)/25)
	}
	if p.Rating != nil {
		switch r := *p.Rating; {
		case r >= 4.5:
			score -= 20
		case r >= 4.0:
			score -= 10
		}
	}
	if p.BSR != nil && *p.BSR > 0 {
		switch b := *p.BSR; {
		case b <= 1000:
			score -= 20
		case b <= 10000:
			score -= 10
		case b <= 50000:
			score -= 5
		}
	}
	return clamp(score, 0, 100)
}

// CompetitionLevel maps an average competition score onto a level.
func CompetitionLevel(score float64) string {
	switch {
	case score >= 80:
		return "LOW"
	case score >= 60:
		return "MEDIUM"
	case score >= 40:
		return "HIGH"
	default:
		return "VERY_HIGH"
	}
}

func DemandLevel(monthlyUnits int) string {
	switch {
	case monthlyUnits >= 10000:
		return "VERY_HIGH"
	case monthlyUnits >= 3000:
		return "HIGH"
	case monthlyUnits >= 1000:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// LaunchDifficulty grades the review count a newcomer has to catch up with.
func LaunchDifficulty(medianReviews int) string {
	switch {
	case medianReviews < 100:
		return "EASY"
	case medianReviews < 500:
		return "MODERATE"
	case medianReviews < 2000:
		return "HARD"
	default:
		return "VERY_HARD"
	}
}

// Rollup is the niche-wide view every analysis payload is built from.
type Rollup struct {
	NicheID     string
	Products    []*types.Product
	Keywords    []*types.ProductKeyword
	Reviews     []*types.CustomerReview
	FailedASINs []string
	Now         time.Time

	AvgPrice         *float64
	AvgBSR           *float64
	AvgRating        *float64
	TotalReviews     int
	UniqueKeywords   int
	MonthlyUnits     int
	MonthlyRevenue   float64
	MarketSize       float64
	CompetitionScore float64
	CompetitionLevel string
	AgeDistribution  map[string]int
	sales            map[string]salesEstimate
}

type salesEstimate struct {
	units     int
	estimated bool
}

// BuildRollup computes the counts, averages and distributions for a niche's current products.
func BuildRollup(nicheID string, products []*types.Product, keywords []*types.ProductKeyword, reviews []*types.CustomerReview, failed []string, now time.Time) *Rollup {
	r := &Rollup{
		NicheID:         nicheID,
		Products:        products,
		Keywords:        keywords,
		Reviews:         reviews,
		FailedASINs:     failed,
		Now:             now,
		AgeDistribution: make(map[string]int, len(AgeBuckets)),
		sales:           make(map[string]salesEstimate, len(products)),
	}
	for _, b := range AgeBuckets {
		r.AgeDistribution[b] = 0
	}

	var prices, bsrs, ratings, scores []float64
	for _, p := range products {
		if p.Price != nil && *p.Price > 0 {
			prices = append(prices, *p.Price)
		}
		if p.BSR != nil && *p.BSR > 0 {
			bsrs = append(bsrs, float64(*p.BSR))
		}
		if p.Rating != nil && *p.Rating > 0 {
			ratings = append(ratings, *p.Rating)
		}
		if p.ReviewCount != nil {
			r.TotalReviews += *p.ReviewCount
		}
		scores = append(scores, ProductScore(p))
		r.AgeDistribution[AgeBucket(AgeMonths(p.FirstSeenAt, now))]++

		est := salesEstimate{}
		if p.MonthlySold != nil && *p.MonthlySold > 0 {
			est.units = *p.MonthlySold
		} else if p.BSR != nil {
			est.units = EstimateMonthlySales(*p.BSR, p.Category)
			est.estimated = true
		}
		r.sales[p.ASIN] = est
		r.MonthlyUnits += est.units
		if p.Price != nil {
			r.MonthlyRevenue += float64(est.units) * *p.Price
		}
	}
	r.AvgPrice = meanPtr(prices)
	r.AvgBSR = meanPtr(bsrs)
	r.AvgRating = meanPtr(ratings)
	r.MonthlyRevenue = round2(r.MonthlyRevenue)
	r.MarketSize = round2(r.MonthlyRevenue * 12)
	if len(scores) > 0 {
		r.CompetitionScore = round2(mean(scores))
	}
	r.CompetitionLevel = CompetitionLevel(r.CompetitionScore)

	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		seen[strings.ToLower(strings.TrimSpace(k.Keyword))] = struct{}{}
	}
	r.UniqueKeywords = len(seen)
	return r
}

// Summary returns the niche columns written when the run completes.
func (r *Rollup) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_products":    len(r.Products),
		"failed_products":   len(r.FailedASINs),
		"total_keywords":    r.UniqueKeywords,
		"total_reviews":     r.TotalReviews,
		"avg_price":         r.AvgPrice,
		"avg_bsr":           r.AvgBSR,
		"avg_rating":        r.AvgRating,
		"market_size":       r.MarketSize,
		"competition_level": r.CompetitionLevel,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func meanPtr(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := round2(mean(xs))
	return &m
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}
