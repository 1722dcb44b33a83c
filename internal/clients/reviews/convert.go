package reviews

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

type rawReview struct {
	ReviewID        string          `json:"reviewId"`
	ASIN            string          `json:"asin"`
	UserName        string          `json:"userName"`
	ReviewerName    string          `json:"reviewerName"`
	Rating          json.RawMessage `json:"rating"`
	Title           string          `json:"title"`
	Text            string          `json:"text"`
	Date            string          `json:"date"`
	Verified        bool            `json:"verified"`
	NumberOfHelpful json.RawMessage `json:"numberOfHelpful"`
	Helpful         json.RawMessage `json:"helpful"`
	StatusCode      int             `json:"statusCode"`
}

var (
	numberRe   = regexp.MustCompile(`\d+(\.\d+)?`)
	dateTailRe = regexp.MustCompile(`on (.+)$`)
)

var reviewDateLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"2006-01-02",
	time.RFC3339,
}

func convertReviews(items []rawReview, asin string, limit int) ([]Review, error) {
	if len(items) > 0 && items[0].StatusCode == 404 {
		return nil, fmt.Errorf("reviews: asin %s: %w", asin, apperrors.ErrNotFound)
	}
	out := make([]Review, 0, len(items))
	for _, it := range items {
		if it.ASIN != "" && !strings.EqualFold(it.ASIN, asin) {
			continue
		}
		content := strings.TrimSpace(it.Text)
		if content == "" && strings.TrimSpace(it.Title) == "" {
			continue
		}
		name := strings.TrimSpace(it.UserName)
		if name == "" {
			name = strings.TrimSpace(it.ReviewerName)
		}
		if name == "" {
			name = "Anonymous"
		}
		helpful := flexNumber(it.NumberOfHelpful)
		if helpful == 0 {
			helpful = flexNumber(it.Helpful)
		}
		out = append(out, Review{
			ReviewID:     strings.TrimSpace(it.ReviewID),
			ASIN:         asin,
			ReviewerName: name,
			Rating:       clampRating(flexNumber(it.Rating)),
			Title:        strings.TrimSpace(it.Title),
			Content:      content,
			Verified:     it.Verified,
			HelpfulVotes: int(helpful),
			ReviewDate:   parseReviewDate(it.Date),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// flexNumber reads a JSON number, or the first number inside a string such as
// "4.0 out of 5 stars" or "12 people found this helpful".
func flexNumber(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "one ") {
		return 1
	}
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	f, _ = strconv.ParseFloat(m, 64)
	return f
}

func clampRating(f float64) int {
	r := int(math.Round(f))
	if r < 1 {
		return 1
	}
	if r > 5 {
		return 5
	}
	return r
}

func parseReviewDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if m := dateTailRe.FindStringSubmatch(s); len(m) == 2 {
		s = strings.TrimSpace(m[1])
	}
	for _, layout := range reviewDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
