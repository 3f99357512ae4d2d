package tui

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/verte-zerg/stockle/internal/codec"
	"github.com/verte-zerg/stockle/internal/game"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/stats"
)

func resultTitle(status game.Status) string {
	switch status {
	case game.StatusWon:
		return "You got it!"
	case game.StatusGaveUp:
		return "You gave up"
	default:
		return "Out of guesses"
	}
}

func resultSummary(state model.SessionState, status game.Status) string {
	if status == game.StatusWon {
		line := fmt.Sprintf("Solved in *%d/%d*", len(state.Guesses), model.MaxGuesses)
		switch state.HintLevel {
		case 0:
		case 1:
			line += " with 1 hint"
		default:
			line += fmt.Sprintf(" with %d hints", state.HintLevel)
		}
		return line + "."
	}
	if state.Answer == nil {
		return "The answer could not be loaded."
	}
	if state.Answer.Name == "" {
		return fmt.Sprintf("The answer was *%s*.", state.Answer.Ticker)
	}
	return fmt.Sprintf("The answer was *%s* (%s).", state.Answer.Ticker, state.Answer.Name)
}

func (m *Model) renderResultDialog() string {
	width := min(max(m.width-8, 30), 64)
	status := game.StatusOf(m.state)
	parts := []string{
		titleStyle.Render(resultTitle(status)),
		"",
		wrapText(resultSummary(m.state, status), mutedStyle, width),
		"",
		m.game.ShareText(),
		"",
		renderStatsBlock(m.stats, width),
		"",
	}
	if m.errMsg != "" {
		parts = append(parts, errorStyle.Render(m.errMsg))
	} else if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	parts = append(parts, footerStyle.Render("c copy · esc close · q quit"))
	return modalStyle.Render(strings.Join(parts, "\n"))
}

// renderStatsBlock shows the aggregate, or a placeholder while the stats
// task runs. A failed task only hides the aggregate.
func renderStatsBlock(report *game.StatsReport, width int) string {
	if report == nil {
		return mutedStyle.Render("Loading today's stats…")
	}
	agg := report.Result.Aggregate
	if agg == nil {
		return mutedStyle.Render("Stats unavailable.")
	}
	var buf bytes.Buffer
	if err := stats.RenderDistribution(&buf, *agg, report.Result.YourResult, report.Result.Percentile, width); err != nil {
		return mutedStyle.Render("Stats unavailable.")
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderConfirmDialog() string {
	parts := []string{
		titleStyle.Render("Give up?"),
		"",
		wrapText("The answer will be revealed and today's game ends.", mutedStyle, 40),
		"",
		footerStyle.Render("y give up · n keep playing"),
	}
	return modalStyle.Render(strings.Join(parts, "\n"))
}

const tutorialText = `Guess the daily stock in *6 tries*. Each guess shows how close you are to the answer.
*Green* cells match exactly. *Red* cells are a different sector or industry.
Numbers fade from amber to green as they get closer. The arrow shows whether the answer is higher or lower.
Hints unlock the sector, the industry and finally the first letter of the ticker.`

// exampleGuess shows SBUX guessed against an answer of MCD.
var exampleGuess = model.GuessResult{
	Ticker: "SBUX",
	Comparisons: model.Comparisons{
		Sector:        model.Comparison{Value: "Cons. Disc.", Status: model.StatusCorrect},
		Industry:      model.Comparison{Value: "Restaurants", Status: model.StatusCorrect},
		MarketCap:     model.Comparison{Value: "$105B", Status: model.StatusLower, Closeness: ptr(0.5)},
		Price:         model.Comparison{Value: "$92.40", Status: model.StatusLower, Closeness: ptr(0.3)},
		PERatio:       model.Comparison{Value: "30.1", Status: model.StatusHigher, Closeness: ptr(0.8)},
		DividendYield: model.Comparison{Value: "2.45%", Status: model.StatusHigher},
	},
}

func renderTutorial(width int) string {
	width = max(width, 30)
	legend := strings.Join([]string{
		renderCell(model.Comparison{Value: "match", Status: model.StatusCorrect}, 9),
		renderCell(model.Comparison{Value: "far", Status: model.StatusLower, Closeness: ptr(0.0)}, 9),
		renderCell(model.Comparison{Value: "close", Status: model.StatusLower, Closeness: ptr(0.9)}, 9),
		renderCell(model.Comparison{Value: "wrong", Status: model.StatusWrong}, 9),
	}, " ")
	arrows := fmt.Sprintf("%s answer is higher   %s answer is lower", codec.ArrowUp, codec.ArrowDown)
	parts := []string{
		titleStyle.Render("How to play STOCKLE"),
		"",
		wrapText(tutorialText, mutedStyle, width),
		"",
		legend,
		mutedStyle.Render(arrows),
		"",
		mutedStyle.Render("Example (the answer is MCD):"),
		renderGuessRow(exampleGuess, cellWidthFor(width)),
		"",
		footerStyle.Render("enter guess · tab complete · ↑/↓ pick · ctrl+t hint · ctrl+g give up"),
		footerStyle.Render("esc or ? to close"),
	}
	return modalStyle.Render(strings.Join(parts, "\n"))
}

func ptr[T any](v T) *T {
	return &v
}
