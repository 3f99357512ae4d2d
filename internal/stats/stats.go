// Package stats renders today's result distribution, the answer's price
// chart and tabular listings.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/stockle/internal/model"
)

const sparkChars = " .:-=+*#%@"

// BucketLabels name the distribution buckets.
var BucketLabels = [model.DistributionBuckets]string{"1", "2", "3", "4", "5", "6", "X"}

// Bar is one row of the distribution view.
type Bar struct {
	Label string
	Count int
	// Percent of total plays, 0..100.
	Percent float64
	// Fraction of the largest bucket, 0..1.
	Fill float64
	You  bool
}

// Bars builds the distribution rows. yourResult is 1-based; nil marks no bucket.
func Bars(agg model.StatsAggregate, yourResult *int) []Bar {
	maxCount := 1
	for _, c := range agg.Distribution {
		if c > maxCount {
			maxCount = c
		}
	}
	bars := make([]Bar, model.DistributionBuckets)
	for i := range bars {
		count := 0
		if i < len(agg.Distribution) {
			count = agg.Distribution[i]
		}
		pct := 0.0
		if agg.TotalPlays > 0 {
			pct = float64(count) / float64(agg.TotalPlays) * 100
		}
		bars[i] = Bar{
			Label:   BucketLabels[i],
			Count:   count,
			Percent: pct,
			Fill:    float64(count) / float64(maxCount),
			You:     yourResult != nil && *yourResult == i+1,
		}
	}
	return bars
}

// SummaryLine returns "N players today • Avg: x.y guesses".
func SummaryLine(agg model.StatsAggregate) string {
	noun := "players"
	if agg.TotalPlays == 1 {
		noun = "player"
	}
	return fmt.Sprintf("%d %s today • Avg: %.1f guesses", agg.TotalPlays, noun, agg.Average)
}

// BeatLine returns the percentile sentence, or "" when there is nothing to brag about.
func BeatLine(percentile *float64) string {
	if percentile == nil || *percentile <= 0 {
		return ""
	}
	return fmt.Sprintf("You beat %.0f%% of players!", *percentile)
}

// RenderDistribution prints the distribution as horizontal bars.
func RenderDistribution(w io.Writer, agg model.StatsAggregate, yourResult *int, percentile *float64, width int) error {
	if agg.TotalPlays == 0 {
		_, err := fmt.Fprintln(w, "No stats available yet.")
		return err
	}
	if width <= 0 {
		width = terminalWidth()
	}
	barWidth := width - 24
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 40 {
		barWidth = 40
	}
	if _, err := fmt.Fprintln(w, "Today's Statistics"); err != nil {
		return err
	}
	for _, bar := range Bars(agg, yourResult) {
		if _, err := fmt.Fprintln(w, FormatBar(bar, barWidth)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, SummaryLine(agg)); err != nil {
		return err
	}
	if line := BeatLine(percentile); line != "" {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// FormatBar renders one bar line at the given bar width.
func FormatBar(bar Bar, barWidth int) string {
	filled := int(math.Round(bar.Fill * float64(barWidth)))
	if bar.Count > 0 && filled == 0 {
		filled = 1
	}
	line := fmt.Sprintf("%s %s%s %3d (%2.0f%%)",
		bar.Label,
		strings.Repeat("█", filled),
		strings.Repeat(" ", barWidth-filled),
		bar.Count,
		bar.Percent,
	)
	if bar.You {
		line += " ← You"
	}
	return line
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}
