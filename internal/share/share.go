// Package share renders the shareable result summary.
package share

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/stockle/internal/codec"
	"github.com/verte-zerg/stockle/internal/model"
)

// Title is the game name used in the header line.
const Title = "STOCKLE"

// Render builds the share text for a finished or in-progress game.
func Render(history []model.GuessResult, gaveUp bool, hintsUsed int, won bool) string {
	var b strings.Builder
	b.WriteString(Header(len(history), gaveUp, hintsUsed, won))
	b.WriteString("\n\n")
	for i, g := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(Row(g.Comparisons))
	}
	return b.String()
}

// Header returns the first line of the share text.
func Header(guessCount int, gaveUp bool, hintsUsed int, won bool) string {
	score := "X"
	if won {
		score = fmt.Sprintf("%d", guessCount)
	}
	header := fmt.Sprintf("%s %s/%d", Title, score, model.MaxGuesses)
	switch {
	case hintsUsed == 1:
		header += " (1 hint)"
	case hintsUsed > 1:
		header += fmt.Sprintf(" (%d hints)", hintsUsed)
	}
	if gaveUp {
		header += " (gave up)"
	}
	return header
}

// Row renders the six comparison symbols of one guess.
func Row(c model.Comparisons) string {
	var b strings.Builder
	for _, comp := range c.Ordered() {
		b.WriteString(codec.Symbol(comp.Status))
	}
	return b.String()
}
