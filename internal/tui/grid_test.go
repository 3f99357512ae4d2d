package tui

import (
	"regexp"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/stockle/internal/model"
)

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripped(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestCellTextWidthAndArrow(t *testing.T) {
	tests := []struct {
		name string
		c    model.Comparison
		want string
	}{
		{"correct", model.Comparison{Value: "Tech", Status: model.StatusCorrect}, " Tech     "},
		{"higher points down", model.Comparison{Value: "$12", Status: model.StatusHigher}, " $12     ↓"},
		{"lower points up", model.Comparison{Value: "$12", Status: model.StatusLower}, " $12     ↑"},
		{"truncated", model.Comparison{Value: "Information Technology", Status: model.StatusWrong}, " Informat…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cellText(tt.c, 10)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 10, runewidth.StringWidth(got))
		})
	}
}

func TestCellWidthForClamps(t *testing.T) {
	assert.Equal(t, minCellWidth, cellWidthFor(20))
	assert.Equal(t, maxCellWidth, cellWidthFor(400))
	assert.Equal(t, 11, cellWidthFor(tickerColWidth+72))
}

func TestRenderGridRows(t *testing.T) {
	guesses := []model.GuessResult{{
		Ticker: "AAPL",
		Comparisons: model.Comparisons{
			Sector:   model.Comparison{Value: "Tech", Status: model.StatusCorrect},
			Industry: model.Comparison{Value: "Hardware", Status: model.StatusWrong},
		},
	}}
	out := stripped(renderGrid(guesses, 100))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, model.MaxGuesses+1)
	assert.Contains(t, lines[0], "Mkt Cap")
	assert.True(t, strings.HasPrefix(lines[1], "AAPL"))
	assert.Contains(t, lines[1], "Hardware")
	assert.Contains(t, lines[2], "·")
}

func TestRenderHintsMasksTicker(t *testing.T) {
	state := model.NewSessionState("2026-01-02")
	state.HintLevel = 3
	state.Hints = model.Hints{Sector: "Technology", Industry: "Semiconductors", Ticker: "NVDA"}
	out := stripped(renderHints(state))
	assert.Contains(t, out, "Sector: Technology")
	assert.Contains(t, out, "Industry: Semiconductors")
	assert.Contains(t, out, "Ticker: N▒▒▒")
	assert.NotContains(t, out, "NVDA")
	assert.Contains(t, out, "no hints left")
}

func TestRenderHintsLocked(t *testing.T) {
	state := model.NewSessionState("2026-01-02")
	state.HintLevel = 1
	state.Hints = model.Hints{Sector: "Energy"}
	out := stripped(renderHints(state))
	assert.Contains(t, out, "Sector: Energy")
	assert.Contains(t, out, "Industry: locked")
	assert.Contains(t, out, "2 hints left")
}
