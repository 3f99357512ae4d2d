package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/stockle/internal/codec"
	"github.com/verte-zerg/stockle/internal/format"
	"github.com/verte-zerg/stockle/internal/hint"
	"github.com/verte-zerg/stockle/internal/model"
)

const (
	tickerColWidth = 7
	minCellWidth   = 5
	maxCellWidth   = 16
)

var (
	gridHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Bold(true)
	emptyCellStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	cellTextColor   = lipgloss.Color("#FFFFFF")
)

func cellWidthFor(total int) int {
	w := (total-tickerColWidth)/len(model.ComparisonLabels) - 1
	return min(max(w, minCellWidth), maxCellWidth)
}

// renderGrid draws one row per guess and placeholder rows for the rest.
func renderGrid(guesses []model.GuessResult, width int) string {
	cw := cellWidthFor(width)
	lines := make([]string, 0, model.MaxGuesses+1)
	lines = append(lines, renderGridHeader(cw))
	for i := 0; i < model.MaxGuesses; i++ {
		if i < len(guesses) {
			lines = append(lines, renderGuessRow(guesses[i], cw))
		} else {
			lines = append(lines, renderEmptyRow(cw))
		}
	}
	return strings.Join(lines, "\n")
}

func renderGridHeader(cw int) string {
	cells := []string{padCell("", tickerColWidth)}
	for _, label := range model.ComparisonLabels {
		cells = append(cells, padCell(label, cw))
	}
	return gridHeaderStyle.Render(strings.Join(cells, " "))
}

func renderGuessRow(g model.GuessResult, cw int) string {
	cells := []string{titleStyle.Render(padCell(g.Ticker, tickerColWidth))}
	values := format.GuessValues(g)
	for i, c := range g.Comparisons.Ordered() {
		c.Value = values[i]
		cells = append(cells, renderCell(c, cw))
	}
	return strings.Join(cells, " ")
}

func renderEmptyRow(cw int) string {
	cells := []string{padCell("", tickerColWidth)}
	for range model.ComparisonLabels {
		cells = append(cells, emptyCellStyle.Render(padCell(" ·", cw)))
	}
	return strings.Join(cells, " ")
}

func renderCell(c model.Comparison, cw int) string {
	bg := codec.Color(c.Status, c.Closeness)
	style := lipgloss.NewStyle().
		Background(lipgloss.Color(bg.Hex())).
		Foreground(cellTextColor)
	return style.Render(cellText(c, cw))
}

// cellText lays out a cell as " value ↑" in exactly cw columns.
func cellText(c model.Comparison, cw int) string {
	arrow := codec.ArrowFor(c.Status).String()
	room := cw - 1
	if arrow != "" {
		room -= runewidth.StringWidth(arrow) + 1
	}
	room = max(room, 1)
	text := " " + padCell(c.Value, room)
	if arrow != "" {
		text += " " + arrow
	}
	return runewidth.FillRight(text, cw)
}

func padCell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// renderHints shows the unlocked hint fields. The ticker hint is masked.
func renderHints(state model.SessionState) string {
	unlocked := map[hint.Field]bool{}
	for _, f := range hint.Unlocked(state.HintLevel) {
		unlocked[f] = true
	}
	field := func(f hint.Field, v string) string {
		switch {
		case !unlocked[f]:
			return mutedStyle.Render("locked")
		case v == "":
			return mutedStyle.Render("unavailable")
		default:
			return titleStyle.Render(v)
		}
	}
	line := fmt.Sprintf("Sector: %s  Industry: %s  Ticker: %s",
		field(hint.FieldSector, state.Hints.Sector),
		field(hint.FieldIndustry, state.Hints.Industry),
		field(hint.FieldTicker, hint.Obscure(state.Hints.Ticker)),
	)
	left := hint.Remaining(state.HintLevel)
	switch {
	case state.GameOver():
	case left == 0:
		line += mutedStyle.Render("  (no hints left)")
	case left == 1:
		line += mutedStyle.Render("  (1 hint left)")
	default:
		line += mutedStyle.Render(fmt.Sprintf("  (%d hints left)", left))
	}
	return line
}
