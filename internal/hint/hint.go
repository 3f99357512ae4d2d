// Package hint tracks the bounded hint ladder.
package hint

import (
	"errors"
	"strings"

	"github.com/verte-zerg/stockle/internal/model"
)

// MaxLevel is the highest hint level.
const MaxLevel = 3

// ErrAtMax is returned when every hint is already unlocked.
var ErrAtMax = errors.New("all hints already used")

// Field names a hint field.
type Field string

const (
	FieldSector   Field = "sector"
	FieldIndustry Field = "industry"
	FieldTicker   Field = "ticker"
)

var ladder = [MaxLevel]Field{FieldSector, FieldIndustry, FieldTicker}

// Next returns the level after current.
func Next(current int) (int, error) {
	if current >= MaxLevel {
		return current, ErrAtMax
	}
	if current < 0 {
		current = 0
	}
	return current + 1, nil
}

// Remaining returns how many hints are left at level.
func Remaining(level int) int {
	if level >= MaxLevel {
		return 0
	}
	if level < 0 {
		return MaxLevel
	}
	return MaxLevel - level
}

// Unlocked lists the fields unlocked at level, in unlock order.
func Unlocked(level int) []Field {
	if level <= 0 {
		return nil
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	out := make([]Field, level)
	copy(out, ladder[:level])
	return out
}

// Merge adds the non-empty fields of incoming to current.
// An unlocked field is never cleared by an empty value.
func Merge(current, incoming model.Hints) model.Hints {
	if v := strings.TrimSpace(incoming.Sector); v != "" {
		current.Sector = v
	}
	if v := strings.TrimSpace(incoming.Industry); v != "" {
		current.Industry = v
	}
	if v := strings.TrimSpace(incoming.Ticker); v != "" {
		current.Ticker = v
	}
	return current
}

// Obscure masks all but the first character of a ticker.
func Obscure(ticker string) string {
	runes := []rune(ticker)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[0]) + strings.Repeat("▒", len(runes)-1)
}
