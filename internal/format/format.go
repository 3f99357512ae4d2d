// Package format renders market data values for display.
package format

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verte-zerg/stockle/internal/model"
)

var (
	trillion = decimal.New(1, 12)
	billion  = decimal.New(1, 9)
	million  = decimal.New(1, 6)
	ten      = decimal.NewFromInt(10)
)

// MarketCap formats a market capitalisation as $1.2T, $25B, $500M or N/A.
func MarketCap(v *int64) string {
	if v == nil {
		return "N/A"
	}
	d := decimal.NewFromInt(*v)
	switch {
	case d.GreaterThanOrEqual(trillion):
		return "$" + scaled(d.Div(trillion)) + "T"
	case d.GreaterThanOrEqual(billion):
		return "$" + scaled(d.Div(billion)) + "B"
	case d.GreaterThanOrEqual(million):
		return "$" + scaled(d.Div(million)) + "M"
	default:
		return "$" + d.StringFixed(0)
	}
}

// one decimal below 10, integer at or above
func scaled(d decimal.Decimal) string {
	if d.LessThan(ten) {
		return d.StringFixed(1)
	}
	return d.StringFixed(0)
}

// Price formats a share price with two decimals.
func Price(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return "$" + decimal.NewFromFloat(*v).StringFixed(2)
}

// Ratio formats a P/E ratio with one decimal.
func Ratio(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).StringFixed(1)
}

// Percent formats a yield given in percent, such as 0.52 for 0.52%.
func Percent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + "%"
}

// Change formats a signed percentage change such as +4.25% or -1.10%.
func Change(first, last float64) string {
	if first == 0 {
		return "N/A"
	}
	d := decimal.NewFromFloat(last).Sub(decimal.NewFromFloat(first)).
		Div(decimal.NewFromFloat(first)).Mul(decimal.NewFromInt(100))
	sign := ""
	if d.IsPositive() {
		sign = "+"
	}
	return sign + d.StringFixed(2) + "%"
}

// GuessValues returns the display value of each compared attribute, in
// model.Comparisons.Ordered order. The service's own label wins; the raw
// guessed value is formatted when the label is missing.
func GuessValues(g model.GuessResult) [6]string {
	fallback := [6]string{
		g.Guess.Sector,
		g.Guess.Industry,
		MarketCap(g.Guess.MarketCap),
		Price(g.Guess.Price),
		Ratio(g.Guess.PERatio),
		Percent(g.Guess.DividendYield),
	}
	var out [6]string
	for i, c := range g.Comparisons.Ordered() {
		if v := strings.TrimSpace(c.Value); v != "" {
			out[i] = v
			continue
		}
		out[i] = fallback[i]
	}
	return out
}
