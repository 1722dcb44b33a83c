package niche

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"gorm.io/datatypes"

	types "github.com/yungbote/commercecrafted-backend/internal/domain"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
)

const (
	topBrandLimit      = 10
	topKeywordLimit    = 50
	primaryKeywordMax  = 20
	opportunityBidMax  = 1.0
	titleTermLimit     = 20
	reviewExcerptLimit = 5
	newEntrantMonths   = 12
)

// BuildAnalyses assembles the eight analysis rows for a niche from its rollup.
func BuildAnalyses(r *Rollup) ([]types.AnalysisRow, error) {
	comp := competitionPayload(r)
	demand := demandPayload(r)
	fin := financialPayload(r)
	kw := keywordPayload(r)
	launch := launchPayload(r)
	listing := listingPayload(r)
	intel := marketIntelligencePayload(r)
	overall := overallPayload(r, comp, demand, fin)

	rows := []struct {
		row     types.AnalysisRow
		payload any
	}{
		{&types.CompetitionAnalysis{CompetitionLevel: comp.CompetitionLevel, CompetitionScore: comp.CompetitionScore, TotalCompetitors: comp.TotalCompetitors}, comp},
		{&types.DemandAnalysis{MonthlyUnits: demand.MonthlyUnits, MonthlyRevenue: demand.MonthlyRevenue, MarketSize: demand.MarketSize}, demand},
		{&types.FinancialAnalysis{AvgPrice: fin.AvgPrice, AvgFBAFee: fin.AvgFBAFee, AvgMarginPct: fin.AvgMarginPct}, fin},
		{&types.KeywordAnalysis{TotalKeywords: kw.TotalKeywords, AvgCPC: kw.AvgCPC}, kw},
		{&types.LaunchStrategy{NewEntrantShare: launch.NewEntrantShare, MedianPrice: launch.MedianPrice}, launch},
		{&types.ListingOptimization{AvgTitleLength: listing.AvgTitleLength, AvgImageCount: listing.AvgImageCount}, listing},
		{&types.MarketIntelligence{TotalReviews: intel.TotalReviews, AvgRating: deref(intel.AvgRating), VerifiedShare: intel.VerifiedShare}, intel},
		{&types.OverallAnalysis{OpportunityScore: overall.OpportunityScore, TotalProducts: overall.TotalProducts, FailedProducts: overall.FailedProducts}, overall},
	}

	out := make([]types.AnalysisRow, 0, len(rows))
	for _, x := range rows {
		raw, err := json.Marshal(x.payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", x.row.TableName(), err)
		}
		base := x.row.Base()
		base.NicheID = r.NicheID
		base.Payload = datatypes.JSON(raw)
		base.AnalysisDate = r.Now
		out = append(out, x.row)
	}
	return out, nil
}

func competitionPayload(r *Rollup) *niches.CompetitionPayload {
	p := &niches.CompetitionPayload{
		CompetitionLevel: r.CompetitionLevel,
		CompetitionScore: r.CompetitionScore,
		TotalCompetitors: len(r.Products),
		AvgRating:        r.AvgRating,
		TopBrands:        []niches.BrandShare{},
		Competitors:      make([]niches.CompetitorSummary, 0, len(r.Products)),
	}
	brands := map[string]int{}
	var reviews, prices []float64
	for _, prod := range r.Products {
		brand := strings.TrimSpace(prod.Brand)
		if brand == "" {
			brand = "Unknown"
		}
		brands[brand]++
		rc := 0
		if prod.ReviewCount != nil {
			rc = *prod.ReviewCount
		}
		reviews = append(reviews, float64(rc))
		if prod.Price != nil && *prod.Price > 0 {
			prices = append(prices, *prod.Price)
		}
		p.Competitors = append(p.Competitors, niches.CompetitorSummary{
			ASIN:         prod.ASIN,
			Title:        prod.Title,
			Brand:        prod.Brand,
			Price:        prod.Price,
			Rating:       prod.Rating,
			ReviewCount:  rc,
			BSR:          prod.BSR,
			MonthlySales: r.sales[prod.ASIN].units,
		})
	}
	p.AvgReviewCount = round2(mean(reviews))
	for b, n := range brands {
		p.TopBrands = append(p.TopBrands, niches.BrandShare{Brand: b, Products: n, Share: round2(float64(n) / float64(len(r.Products)))})
	}
	sort.Slice(p.TopBrands, func(i, j int) bool {
		if p.TopBrands[i].Products != p.TopBrands[j].Products {
			return p.TopBrands[i].Products > p.TopBrands[j].Products
		}
		return p.TopBrands[i].Brand < p.TopBrands[j].Brand
	})
	if len(p.TopBrands) > topBrandLimit {
		p.TopBrands = p.TopBrands[:topBrandLimit]
	}
	sort.SliceStable(p.Competitors, func(i, j int) bool {
		return p.Competitors[i].MonthlySales > p.Competitors[j].MonthlySales
	})
	if len(prices) > 0 {
		lo, hi := prices[0], prices[0]
		for _, x := range prices {
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
		p.PriceSpread = &niches.PriceSpread{Min: lo, Max: hi, Avg: round2(mean(prices)), Median: round2(median(prices))}
	}
	return p
}

func demandPayload(r *Rollup) *niches.DemandPayload {
	p := &niches.DemandPayload{
		DemandLevel:    DemandLevel(r.MonthlyUnits),
		MonthlyUnits:   r.MonthlyUnits,
		MonthlyRevenue: r.MonthlyRevenue,
		MarketSize:     r.MarketSize,
		AvgBSR:         r.AvgBSR,
		SalesByASIN:    make([]niches.ASINSales, 0, len(r.Products)),
	}
	for _, prod := range r.Products {
		if prod.BSR != nil && *prod.BSR > 0 && (p.BestBSR == nil || *prod.BSR < *p.BestBSR) {
			b := *prod.BSR
			p.BestBSR = &b
		}
		est := r.sales[prod.ASIN]
		rev := 0.0
		if prod.Price != nil {
			rev = round2(float64(est.units) * *prod.Price)
		}
		p.SalesByASIN = append(p.SalesByASIN, niches.ASINSales{
			ASIN:           prod.ASIN,
			MonthlyUnits:   est.units,
			MonthlyRevenue: rev,
			Estimated:      est.estimated,
		})
	}
	return p
}

func financialPayload(r *Rollup) *niches.FinancialPayload {
	p := &niches.FinancialPayload{ProductEconomics: []niches.UnitEconomics{}}
	var prices, fees, nets, margins []float64
	for _, prod := range r.Products {
		if prod.Price == nil || *prod.Price <= 0 {
			continue
		}
		price := *prod.Price
		fb := EstimateFBAFees(price, prod.WeightGrams)
		total := fb.Total()
		if prod.FBAFees != nil && *prod.FBAFees > 0 {
			// Keepa's pick-and-pack fee replaces the weight-tier estimate.
			fb.Fulfillment = *prod.FBAFees
			total = fb.Total()
		}
		net := round2(price - total)
		margin := round2(net / price * 100)
		prices = append(prices, price)
		fees = append(fees, total)
		nets = append(nets, net)
		margins = append(margins, margin)
		p.ProductEconomics = append(p.ProductEconomics, niches.UnitEconomics{
			ASIN:           prod.ASIN,
			Price:          price,
			ReferralFee:    fb.Referral,
			FulfillmentFee: fb.Fulfillment,
			StorageFee:     fb.Storage,
			TotalFees:      total,
			NetPerUnit:     net,
			MarginPct:      margin,
		})
	}
	p.AvgPrice = round2(mean(prices))
	p.MedianPrice = round2(median(prices))
	p.AvgFBAFee = round2(mean(fees))
	p.AvgNetPerUnit = round2(mean(nets))
	p.AvgMarginPct = round2(mean(margins))
	return p
}

func keywordPayload(r *Rollup) *niches.KeywordPayload {
	p := &niches.KeywordPayload{
		PrimaryKeywords: []string{},
		TopKeywords:     []niches.KeywordStat{},
		Opportunities:   []niches.KeywordStat{},
		MatchTypes:      map[string]int{},
	}
	stats := map[string]*niches.KeywordStat{}
	products := map[string]map[string]struct{}{}
	var bids []float64
	for _, k := range r.Keywords {
		key := strings.ToLower(strings.TrimSpace(k.Keyword))
		if key == "" {
			continue
		}
		if k.MatchType != "" {
			p.MatchTypes[k.MatchType]++
		}
		if k.SuggestedBid != nil && *k.SuggestedBid > 0 {
			bids = append(bids, *k.SuggestedBid)
		}
		s, ok := stats[key]
		if !ok {
			s = &niches.KeywordStat{Keyword: key, MatchType: k.MatchType}
			stats[key] = s
			products[key] = map[string]struct{}{}
		}
		s.EstimatedClicks += k.EstimatedClicks
		s.EstimatedOrders += k.EstimatedOrders
		if k.SuggestedBid != nil && (s.SuggestedBid == nil || *k.SuggestedBid > *s.SuggestedBid) {
			b := *k.SuggestedBid
			s.SuggestedBid = &b
		}
		products[key][k.ProductID.String()] = struct{}{}
	}
	all := make([]niches.KeywordStat, 0, len(stats))
	for key, s := range stats {
		s.ProductCount = len(products[key])
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ProductCount != all[j].ProductCount {
			return all[i].ProductCount > all[j].ProductCount
		}
		if all[i].EstimatedClicks != all[j].EstimatedClicks {
			return all[i].EstimatedClicks > all[j].EstimatedClicks
		}
		return all[i].Keyword < all[j].Keyword
	})
	p.TotalKeywords = len(all)
	p.AvgCPC = round2(mean(bids))
	for i, s := range all {
		if i < primaryKeywordMax {
			p.PrimaryKeywords = append(p.PrimaryKeywords, s.Keyword)
		}
		if i < topKeywordLimit {
			p.TopKeywords = append(p.TopKeywords, s)
		}
		if s.SuggestedBid != nil && *s.SuggestedBid < opportunityBidMax && len(p.Opportunities) < topKeywordLimit {
			p.Opportunities = append(p.Opportunities, s)
		}
	}
	return p
}

func launchPayload(r *Rollup) *niches.LaunchPayload {
	p := &niches.LaunchPayload{AgeDistribution: make([]niches.AgeBucketCount, 0, len(AgeBuckets))}
	for _, b := range AgeBuckets {
		p.AgeDistribution = append(p.AgeDistribution, niches.AgeBucketCount{Bucket: b, Count: r.AgeDistribution[b]})
	}
	var ages, prices, reviews []float64
	newEntrants := 0
	for _, prod := range r.Products {
		if m := AgeMonths(prod.FirstSeenAt, r.Now); m != nil {
			ages = append(ages, float64(*m))
			if *m < newEntrantMonths {
				newEntrants++
			}
		}
		if prod.Price != nil && *prod.Price > 0 {
			prices = append(prices, *prod.Price)
		}
		rc := 0
		if prod.ReviewCount != nil {
			rc = *prod.ReviewCount
		}
		reviews = append(reviews, float64(rc))
	}
	p.AvgAgeMonths = meanPtr(ages)
	if len(r.Products) > 0 {
		p.NewEntrantShare = round2(float64(newEntrants) / float64(len(r.Products)))
	}
	p.MedianPrice = round2(median(prices))
	p.MedianReviewCount = int(median(reviews))
	p.ReviewTarget = p.MedianReviewCount
	p.Difficulty = LaunchDifficulty(p.MedianReviewCount)
	return p
}

var titleStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "in": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "with": {}, "by": {}, "&": {}, "-": {}, "|": {},
}

func listingPayload(r *Rollup) *niches.ListingPayload {
	p := &niches.ListingPayload{
		CommonTitleTerms: []niches.TermCount{},
		Listings:         make([]niches.ListingSummary, 0, len(r.Products)),
	}
	terms := map[string]int{}
	var titleLens, imageCounts []float64
	for _, prod := range r.Products {
		imgs := len(prod.Images())
		if imgs == 0 {
			p.ProductsWithoutImages++
		}
		tl := len([]rune(prod.Title))
		titleLens = append(titleLens, float64(tl))
		imageCounts = append(imageCounts, float64(imgs))
		p.Listings = append(p.Listings, niches.ListingSummary{ASIN: prod.ASIN, TitleLength: tl, ImageCount: imgs})

		seen := map[string]struct{}{}
		for _, w := range strings.Fields(strings.ToLower(prod.Title)) {
			w = strings.Trim(w, ",.;:()[]\"'")
			if len(w) < 2 {
				continue
			}
			if _, stop := titleStopWords[w]; stop {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			terms[w]++
		}
	}
	p.AvgTitleLength = round2(mean(titleLens))
	p.AvgImageCount = round2(mean(imageCounts))
	for t, n := range terms {
		p.CommonTitleTerms = append(p.CommonTitleTerms, niches.TermCount{Term: t, Count: n})
	}
	sort.Slice(p.CommonTitleTerms, func(i, j int) bool {
		if p.CommonTitleTerms[i].Count != p.CommonTitleTerms[j].Count {
			return p.CommonTitleTerms[i].Count > p.CommonTitleTerms[j].Count
		}
		return p.CommonTitleTerms[i].Term < p.CommonTitleTerms[j].Term
	})
	if len(p.CommonTitleTerms) > titleTermLimit {
		p.CommonTitleTerms = p.CommonTitleTerms[:titleTermLimit]
	}
	return p
}

func marketIntelligencePayload(r *Rollup) *niches.MarketIntelligencePayload {
	p := &niches.MarketIntelligencePayload{
		TotalReviews:    r.TotalReviews,
		AvgRating:       r.AvgRating,
		RatingBreakdown: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
		TopPositive:     []niches.ReviewExcerpt{},
		TopNegative:     []niches.ReviewExcerpt{},
	}
	verified := 0
	var positive, negative []*types.CustomerReview
	for _, rv := range r.Reviews {
		if rv.Rating >= 1 && rv.Rating <= 5 {
			p.RatingBreakdown[fmt.Sprint(rv.Rating)]++
		}
		if rv.VerifiedPurchase {
			verified++
		}
		switch {
		case rv.Rating >= 4:
			positive = append(positive, rv)
		case rv.Rating >= 1 && rv.Rating <= 2:
			negative = append(negative, rv)
		}
	}
	if len(r.Reviews) > 0 {
		p.VerifiedShare = round2(float64(verified) / float64(len(r.Reviews)))
	}
	p.TopPositive = excerpts(positive)
	p.TopNegative = excerpts(negative)
	return p
}

func excerpts(in []*types.CustomerReview) []niches.ReviewExcerpt {
	sort.SliceStable(in, func(i, j int) bool { return in[i].HelpfulVotes > in[j].HelpfulVotes })
	out := make([]niches.ReviewExcerpt, 0, reviewExcerptLimit)
	for _, rv := range in {
		if len(out) == reviewExcerptLimit {
			break
		}
		out = append(out, niches.ReviewExcerpt{
			ASIN:         rv.ASIN,
			Rating:       rv.Rating,
			Title:        rv.Title,
			Content:      rv.Content,
			HelpfulVotes: rv.HelpfulVotes,
			Verified:     rv.VerifiedPurchase,
		})
	}
	return out
}

// Opportunity weighs ease of entry, demand per product and margin.
func overallPayload(r *Rollup, comp *niches.CompetitionPayload, demand *niches.DemandPayload, fin *niches.FinancialPayload) *niches.OverallPayload {
	failed := r.FailedASINs
	if failed == nil {
		failed = []string{}
	}
	demandScore := 0.0
	if n := len(r.Products); n > 0 {
		demandScore = math.Min(100, float64(demand.MonthlyUnits)/float64(n)/10)
	}
	marginScore := clamp(fin.AvgMarginPct*2, 0, 100)
	score := round2(0.4*comp.CompetitionScore + 0.4*demandScore + 0.2*marginScore)

	return &niches.OverallPayload{
		OpportunityScore: score,
		Summary: fmt.Sprintf("%d products analyzed, %s competition, %s demand, est. market size $%.0f/yr",
			len(r.Products), strings.ToLower(comp.CompetitionLevel), strings.ToLower(demand.DemandLevel), r.MarketSize),
		TotalProducts:    len(r.Products),
		FailedProducts:   len(r.FailedASINs),
		FailedASINs:      failed,
		CompetitionLevel: comp.CompetitionLevel,
		MarketSize:       r.MarketSize,
		AvgPrice:         r.AvgPrice,
		AvgRating:        r.AvgRating,
		TotalReviews:     r.TotalReviews,
		TotalKeywords:    r.UniqueKeywords,
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
