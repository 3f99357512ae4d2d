package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/stockle/internal/format"
	"github.com/verte-zerg/stockle/internal/model"
)

// Range selects the chart window.
type Range string

const (
	Range1W Range = "1W"
	Range1M Range = "1M"
	Range1Y Range = "1Y"
	Range5Y Range = "5Y"
)

// Ranges lists the selectable chart windows in display order.
var Ranges = []Range{Range1W, Range1M, Range1Y, Range5Y}

// ParseRange parses a range name such as "1m" or "5Y".
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Ranges {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown range %q (want 1W, 1M, 1Y or 5Y)", s)
}

// Next returns the range after r, wrapping around.
func (r Range) Next() Range {
	for i, known := range Ranges {
		if known == r {
			return Ranges[(i+1)%len(Ranges)]
		}
	}
	return Ranges[0]
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	colorUp             = "\x1b[32m"
	colorDown           = "\x1b[31m"
	terminalWidthBackup = 80
	axisLabelWidth      = 9
)

// FilterRange keeps the points within r of the latest point. 5Y keeps all.
// Points with unparseable times are dropped from bounded ranges.
func FilterRange(points []model.ChartPoint, r Range) []model.ChartPoint {
	if len(points) == 0 || r == Range5Y {
		return points
	}
	latest, ok := parsePointTime(points[len(points)-1].Time)
	if !ok {
		return points
	}
	var cutoff time.Time
	switch r {
	case Range1W:
		cutoff = latest.AddDate(0, 0, -7)
	case Range1M:
		cutoff = latest.AddDate(0, -1, 0)
	case Range1Y:
		cutoff = latest.AddDate(-1, 0, 0)
	default:
		return points
	}
	out := make([]model.ChartPoint, 0, len(points))
	for _, p := range points {
		t, ok := parsePointTime(p.Time)
		if ok && !t.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

func parsePointTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PercentChange returns the change from first to last value and whether it is non-negative.
func PercentChange(points []model.ChartPoint) (string, bool) {
	if len(points) < 2 {
		return format.Change(0, 0), true
	}
	first, last := points[0].Value, points[len(points)-1].Value
	return format.Change(first, last), last >= first
}

// PlotChart renders the price series as a braille line plot.
func PlotChart(w io.Writer, title string, points []model.ChartPoint, width, height int, forceColor bool) error {
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "No price history available.")
		return err
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = autoPlotWidth()
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	raw := make([]float64, len(points))
	for i, p := range points {
		raw[i] = p.Value
	}
	values := resampleSeries(raw, width)
	minVal, maxVal := seriesMinMax(values)
	lo, hi := minVal, maxVal
	if math.Abs(hi-lo) < 1e-9 {
		lo--
		hi++
	}

	cells := makeCells(height, width)
	prevX, prevY := -1, -1
	for x, v := range values {
		row := valueToRow(v, lo, hi, height*4)
		px := x * 2
		if prevX >= 0 {
			drawLine(prevX, prevY, px, row, func(dx, dy int) {
				setBrailleDot(cells, dx, dy)
			})
		} else {
			setBrailleDot(cells, px, row)
		}
		prevX, prevY = px, row
	}

	change, up := PercentChange(points)
	useColor := shouldUseColor(w, forceColor)
	color := colorUp
	if !up {
		color = colorDown
	}

	header := fmt.Sprintf("%s  %s", title, change)
	if title == "" {
		header = change
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	labels := makeAxisLabels(height, minVal, maxVal)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], axisLabelWidth))
		row.WriteString(axisSeparator)
		if useColor {
			row.WriteString(color)
		}
		for x := 0; x < width; x++ {
			row.WriteRune(brailleFromMask(cells[y][x]))
		}
		if useColor {
			row.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	footer := fmt.Sprintf("%s%s → %s", strings.Repeat(" ", axisLabelWidth+runewidth.StringWidth(axisSeparator)),
		points[0].Time, points[len(points)-1].Time)
	if _, err := fmt.Fprintln(w, footer); err != nil {
		return err
	}
	return nil
}

func autoPlotWidth() int {
	return PlotWidthFor(terminalWidth())
}

// TrendLine renders the series as a sparkline at most width characters wide.
func TrendLine(points []model.ChartPoint, width int) string {
	if len(points) < 2 || width <= 0 {
		return ""
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	if len(values) > width {
		values = resampleSeries(values, width)
	}
	return Sparkline(values)
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, minVal, maxVal float64) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = fmt.Sprintf("%.2f", maxVal)
	if height > 2 {
		labels[height/2] = fmt.Sprintf("%.2f", (minVal+maxVal)/2)
	}
	if height > 1 {
		labels[height-1] = fmt.Sprintf("%.2f", minVal)
	}
	return labels
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	if len(values) == width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := int(float64(i) * float64(len(values)) / float64(width))
			end := int(float64(i+1) * float64(len(values)) / float64(width))
			if end <= start {
				end = start + 1
			}
			if end > len(values) {
				end = len(values)
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	if width == 1 || len(values) == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(math.Floor(pos))
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

func seriesMinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
