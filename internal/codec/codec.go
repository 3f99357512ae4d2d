// Package codec maps attribute comparisons to colors, arrows and share symbols.
package codec

import (
	"fmt"
	"math"

	"github.com/verte-zerg/stockle/internal/model"
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var (
	// Success is used for exact matches and as the near end of the gradient.
	Success = RGB{R: 5, G: 150, B: 105}
	// Failure is used for categorical mismatches.
	Failure = RGB{R: 190, G: 18, B: 60}
	// Far is the gradient color at closeness 0.
	Far = RGB{R: 217, G: 119, B: 6}
	// Fallback is used for directional statuses without closeness.
	Fallback = RGB{R: 217, G: 119, B: 6}
)

// Arrow is the direction the guess has to move toward the answer.
type Arrow int

const (
	ArrowNone Arrow = iota
	ArrowUp
	ArrowDown
)

// String returns the arrow glyph, or an empty string for ArrowNone.
func (a Arrow) String() string {
	switch a {
	case ArrowUp:
		return "↑"
	case ArrowDown:
		return "↓"
	default:
		return ""
	}
}

// Share symbols.
const (
	SymbolGreen  = "🟩"
	SymbolYellow = "🟨"
	SymbolBlack  = "⬛"
)

// Color returns the cell color for a comparison.
func Color(status model.Status, closeness *float64) RGB {
	switch status {
	case model.StatusCorrect:
		return Success
	case model.StatusWrong:
		return Failure
	}
	if closeness == nil {
		return Fallback
	}
	t := clamp01(*closeness)
	return RGB{
		R: lerp(Far.R, Success.R, t),
		G: lerp(Far.G, Success.G, t),
		B: lerp(Far.B, Success.B, t),
	}
}

// ArrowFor returns the arrow for a status. Higher points down: the answer is below the guess.
func ArrowFor(status model.Status) Arrow {
	switch status {
	case model.StatusHigher:
		return ArrowDown
	case model.StatusLower:
		return ArrowUp
	default:
		return ArrowNone
	}
}

// Symbol returns the share glyph for a status.
func Symbol(status model.Status) string {
	switch status {
	case model.StatusCorrect:
		return SymbolGreen
	case model.StatusHigher, model.StatusLower:
		return SymbolYellow
	default:
		return SymbolBlack
	}
}

func lerp(from, to uint8, t float64) uint8 {
	v := float64(from) + (float64(to)-float64(from))*t
	return uint8(math.Round(v))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
