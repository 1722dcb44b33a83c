package adsapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

type rawSuggestion struct {
	ASIN            string   `json:"asin"`
	KeywordText     string   `json:"keywordText"`
	Keyword         string   `json:"keyword"`
	MatchType       string   `json:"matchType"`
	Bid             *float64 `json:"bid"`
	SuggestedBid    *float64 `json:"suggestedBid"`
	EstimatedClicks int      `json:"estimatedClicks"`
	EstimatedOrders int      `json:"estimatedOrders"`
	State           string   `json:"state"`
}

// decodeSuggestions accepts either a flat array of suggestions or an object keyed by ASIN
// whose values carry suggestedKeywords. Suggestions may be bare strings.
func decodeSuggestions(raw []byte, asins []string) ([]Keyword, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	defaultASIN := ""
	if len(asins) > 0 {
		defaultASIN = asins[0]
	}

	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return convert(items, defaultASIN)
	}

	var byASIN map[string]struct {
		SuggestedKeywords []json.RawMessage `json:"suggestedKeywords"`
	}
	if err := json.Unmarshal(raw, &byASIN); err != nil {
		return nil, err
	}
	var out []Keyword
	for _, asin := range asins {
		entry, ok := byASIN[asin]
		if !ok {
			continue
		}
		kws, err := convert(entry.SuggestedKeywords, asin)
		if err != nil {
			return nil, err
		}
		out = append(out, kws...)
	}
	return out, nil
}

func convert(items []json.RawMessage, asin string) ([]Keyword, error) {
	out := make([]Keyword, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		if item[0] == '"' {
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				return nil, err
			}
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, Keyword{ASIN: asin, Keyword: text, MatchType: "BROAD"})
			}
			continue
		}
		var s rawSuggestion
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(s.KeywordText)
		if text == "" {
			text = strings.TrimSpace(s.Keyword)
		}
		if text == "" {
			continue
		}
		kw := Keyword{
			ASIN:            asin,
			Keyword:         text,
			MatchType:       strings.ToUpper(strings.TrimSpace(s.MatchType)),
			SuggestedBid:    s.Bid,
			EstimatedClicks: s.EstimatedClicks,
			EstimatedOrders: s.EstimatedOrders,
			State:           s.State,
		}
		if kw.SuggestedBid == nil {
			kw.SuggestedBid = s.SuggestedBid
		}
		if s.ASIN != "" {
			kw.ASIN = strings.ToUpper(s.ASIN)
		}
		if kw.MatchType == "" {
			kw.MatchType = "BROAD"
		}
		out = append(out, kw)
	}
	return out, nil
}
