package keepa

import (
	"strings"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/domain/catalog"
)

// Keepa csv / stats.current indices.
const (
	idxAmazon      = 0
	idxNew         = 1
	idxSalesRank   = 3
	idxWarehouse   = 9
	idxNewFBA      = 10
	idxRating      = 16
	idxReviewCount = 17
	idxBuyBox      = 18
)

const imageBaseURL = "https://m.media-amazon.com/images/I/"

// keepaEpochMinutes is the offset between Keepa minutes and Unix minutes.
const keepaEpochMinutes = 21564000

type rawImage struct {
	L string `json:"l"`
	M string `json:"m"`
}

type rawCategory struct {
	CatID int64  `json:"catId"`
	Name  string `json:"name"`
}

type rawProduct struct {
	ASIN          string        `json:"asin"`
	Title         string        `json:"title"`
	Brand         string        `json:"brand"`
	Manufacturer  string        `json:"manufacturer"`
	CategoryTree  []rawCategory `json:"categoryTree"`
	Images        []rawImage    `json:"images"`
	ListedSince   int64         `json:"listedSince"`
	TrackingSince int64         `json:"trackingSince"`
	MonthlySold   int           `json:"monthlySold"`
	PackageLength int           `json:"packageLength"`
	PackageWidth  int           `json:"packageWidth"`
	PackageHeight int           `json:"packageHeight"`
	PackageWeight int           `json:"packageWeight"`
	ItemLength    int           `json:"itemLength"`
	ItemWidth     int           `json:"itemWidth"`
	ItemHeight    int           `json:"itemHeight"`
	ItemWeight    int           `json:"itemWeight"`
	Stats         *struct {
		Current []int64 `json:"current"`
	} `json:"stats"`
	CSV     [][]int64 `json:"csv"`
	FBAFees *struct {
		PickAndPackFee int64 `json:"pickAndPackFee"`
	} `json:"fbaFees"`
}

func (p *rawProduct) empty() bool {
	return strings.TrimSpace(p.Title) == "" && len(p.CSV) == 0 && p.Stats == nil
}

// ProductSnapshot is the normalized view of one Keepa product.
type ProductSnapshot struct {
	ASIN        string
	Title       string
	Brand       string
	Category    string
	Subcategory string
	Price       *float64
	BSR         *int
	Rating      *float64
	ReviewCount *int
	MonthlySold *int
	ImageURLs   []string
	LengthMM    *float64
	WidthMM     *float64
	HeightMM    *float64
	WeightGrams *float64
	FirstSeenAt *time.Time
	FBAFees     *float64
	TokensLeft  int
}

// Fields maps the snapshot onto product columns for a partial upsert.
func (s *ProductSnapshot) Fields(syncedAt time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"title":           s.Title,
		"brand":           s.Brand,
		"category":        s.Category,
		"subcategory":     s.Subcategory,
		"price":           s.Price,
		"rating":          s.Rating,
		"review_count":    s.ReviewCount,
		"bsr":             s.BSR,
		"monthly_sold":    s.MonthlySold,
		"image_urls":      catalog.JoinImages(s.ImageURLs),
		"length":          s.LengthMM,
		"width":           s.WidthMM,
		"height":          s.HeightMM,
		"weight":          s.WeightGrams,
		"first_seen_at":   s.FirstSeenAt,
		"fba_fees":        s.FBAFees,
		"last_keepa_sync": syncedAt.UTC(),
	}
	return fields
}

func transform(p *rawProduct) *ProductSnapshot {
	s := &ProductSnapshot{
		ASIN:  strings.ToUpper(p.ASIN),
		Title: strings.TrimSpace(p.Title),
		Brand: strings.TrimSpace(p.Brand),
	}
	if s.Brand == "" {
		s.Brand = strings.TrimSpace(p.Manufacturer)
	}
	if len(p.CategoryTree) > 0 {
		s.Category = p.CategoryTree[0].Name
		if len(p.CategoryTree) > 1 {
			s.Subcategory = p.CategoryTree[len(p.CategoryTree)-1].Name
		}
	}

	var current []int64
	if p.Stats != nil {
		current = p.Stats.Current
	}

	for _, idx := range []int{idxAmazon, idxNew, idxBuyBox} {
		if v, ok := at(current, idx); ok {
			s.Price = cents(v)
			break
		}
	}
	if s.Price == nil {
		for _, idx := range []int{idxAmazon, idxNew, idxWarehouse, idxNewFBA, idxBuyBox} {
			if v, ok := lastCSV(p.CSV, idx); ok {
				s.Price = cents(v)
				break
			}
		}
	}
	if v, ok := firstOf(current, p.CSV, idxSalesRank); ok {
		n := int(v)
		s.BSR = &n
	}
	if v, ok := firstOf(current, p.CSV, idxRating); ok {
		r := float64(v) / 10
		s.Rating = &r
	}
	if v, ok := firstOf(current, p.CSV, idxReviewCount); ok {
		n := int(v)
		s.ReviewCount = &n
	}
	if p.MonthlySold > 0 {
		n := p.MonthlySold
		s.MonthlySold = &n
	}

	for _, img := range p.Images {
		name := img.L
		if name == "" {
			name = img.M
		}
		if name != "" {
			s.ImageURLs = append(s.ImageURLs, imageBaseURL+name)
		}
	}

	s.LengthMM = dim(p.PackageLength, p.ItemLength)
	s.WidthMM = dim(p.PackageWidth, p.ItemWidth)
	s.HeightMM = dim(p.PackageHeight, p.ItemHeight)
	s.WeightGrams = dim(p.PackageWeight, p.ItemWeight)

	if t := KeepaTime(p.ListedSince); t != nil {
		s.FirstSeenAt = t
	} else {
		s.FirstSeenAt = KeepaTime(p.TrackingSince)
	}
	if p.FBAFees != nil && p.FBAFees.PickAndPackFee > 0 {
		s.FBAFees = cents(p.FBAFees.PickAndPackFee)
	}
	return s
}

// KeepaTime converts Keepa minutes to a UTC time. Zero and -1 mean unknown.
func KeepaTime(minutes int64) *time.Time {
	if minutes <= 0 {
		return nil
	}
	t := time.UnixMilli((minutes + keepaEpochMinutes) * 60000).UTC()
	return &t
}

func at(values []int64, idx int) (int64, bool) {
	if idx >= len(values) || values[idx] < 0 {
		return 0, false
	}
	return values[idx], true
}

// lastCSV returns the newest value of a [time, value, time, value, ...] series.
func lastCSV(csv [][]int64, idx int) (int64, bool) {
	if idx >= len(csv) || len(csv[idx]) < 2 {
		return 0, false
	}
	v := csv[idx][len(csv[idx])-1]
	if v <= 0 {
		return 0, false
	}
	return v, true
}

func firstOf(current []int64, csv [][]int64, idx int) (int64, bool) {
	if v, ok := at(current, idx); ok {
		return v, true
	}
	return lastCSV(csv, idx)
}

func cents(v int64) *float64 {
	f := float64(v) / 100
	return &f
}

func dim(primary, fallback int) *float64 {
	v := primary
	if v <= 0 {
		v = fallback
	}
	if v <= 0 {
		return nil
	}
	f := float64(v)
	return &f
}
