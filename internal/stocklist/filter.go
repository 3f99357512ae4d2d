// Package stocklist loads and filters the stock list used for search.
package stocklist

import (
	"sort"
	"strings"

	"github.com/verte-zerg/stockle/internal/model"
)

// DefaultLimit is the number of search suggestions shown.
const DefaultLimit = 8

// FilterType selects the attribute a Filter matches.
type FilterType string

const (
	FilterSector   FilterType = "sector"
	FilterIndustry FilterType = "industry"
)

// Filter restricts a list to one sector or industry.
type Filter struct {
	Type  FilterType
	Value string
}

// Apply returns the stocks matching f. A nil filter keeps everything.
func Apply(stocks []model.Stock, f *Filter) []model.Stock {
	if f == nil || f.Value == "" {
		return stocks
	}
	out := make([]model.Stock, 0, len(stocks))
	for _, s := range stocks {
		var field string
		switch f.Type {
		case FilterSector:
			field = s.Sector
		case FilterIndustry:
			field = s.Industry
		}
		if strings.EqualFold(field, f.Value) {
			out = append(out, s)
		}
	}
	return out
}

// Search matches query against ticker and name, case-insensitively, and
// returns at most limit stocks. An empty query returns the first limit.
func Search(stocks []model.Stock, query string, limit int) []model.Stock {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Stock, 0, limit)
	for _, s := range stocks {
		if len(out) == limit {
			break
		}
		if query == "" ||
			strings.Contains(strings.ToLower(s.Ticker), query) ||
			strings.Contains(strings.ToLower(s.Name), query) {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the stock with the given ticker.
func Find(stocks []model.Stock, ticker string) (model.Stock, bool) {
	for _, s := range stocks {
		if strings.EqualFold(s.Ticker, ticker) {
			return s, true
		}
	}
	return model.Stock{}, false
}

// DeriveFilters collects the distinct sectors and industries of stocks.
func DeriveFilters(stocks []model.Stock) model.FilterOptions {
	sectors := map[string]struct{}{}
	industries := map[string]struct{}{}
	for _, s := range stocks {
		if s.Sector != "" {
			sectors[s.Sector] = struct{}{}
		}
		if s.Industry != "" {
			industries[s.Industry] = struct{}{}
		}
	}
	return model.FilterOptions{Sectors: sortedKeys(sectors), Industries: sortedKeys(industries)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
