// Package model defines shared data structures.
package model

import "time"

// MaxGuesses is the number of guesses allowed per day.
const MaxGuesses = 6

// DayLayout formats calendar day keys.
const DayLayout = "2006-01-02"

// DayKey returns the calendar day key for t in its own location.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// Status is the outcome of comparing one attribute of a guess with the answer.
type Status string

const (
	StatusCorrect Status = "correct"
	StatusWrong   Status = "wrong"
	// StatusHigher means the guessed value is above the answer.
	StatusHigher Status = "higher"
	// StatusLower means the guessed value is below the answer.
	StatusLower Status = "lower"
)

// Directional reports whether the status carries closeness and an arrow.
func (s Status) Directional() bool {
	return s == StatusHigher || s == StatusLower
}

// Comparison is a single attribute comparison.
type Comparison struct {
	Value     string   `json:"value"`
	Status    Status   `json:"status"`
	Closeness *float64 `json:"closeness,omitempty"`
}

// Comparisons bundles the six compared attributes.
type Comparisons struct {
	Sector        Comparison `json:"sector"`
	Industry      Comparison `json:"industry"`
	MarketCap     Comparison `json:"marketCap"`
	Price         Comparison `json:"price"`
	PERatio       Comparison `json:"peRatio"`
	DividendYield Comparison `json:"dividendYield"`
}

// Ordered returns the comparisons in display order.
func (c Comparisons) Ordered() [6]Comparison {
	return [6]Comparison{c.Sector, c.Industry, c.MarketCap, c.Price, c.PERatio, c.DividendYield}
}

// ComparisonLabels are the column headers matching Comparisons.Ordered.
var ComparisonLabels = [6]string{"Sector", "Industry", "Mkt Cap", "Price", "P/E", "Div"}

// GuessedStock describes the stock that was guessed.
type GuessedStock struct {
	Ticker        string   `json:"ticker"`
	Name          string   `json:"name"`
	Sector        string   `json:"sector"`
	Industry      string   `json:"industry"`
	MarketCap     *int64   `json:"marketCap"`
	Price         *float64 `json:"price"`
	PERatio       *float64 `json:"peRatio"`
	DividendYield *float64 `json:"dividendYield"`
}

// GuessResult is the evaluation of one submitted guess. It is never mutated.
type GuessResult struct {
	Ticker      string       `json:"ticker"`
	Correct     bool         `json:"correct"`
	Guess       GuessedStock `json:"guess"`
	Comparisons Comparisons  `json:"comparisons"`
}

// Answer identifies the hidden stock of the day.
type Answer struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Hints holds the hint fields unlocked so far.
type Hints struct {
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
}

// SessionState is the mutable record of one day's play.
type SessionState struct {
	Date      string        `json:"date"`
	Guesses   []GuessResult `json:"guesses"`
	GaveUp    bool          `json:"gaveUp"`
	Answer    *Answer       `json:"answer"`
	HintLevel int           `json:"hintLevel"`
	Hints     Hints         `json:"hints"`
}

// NewSessionState returns an empty state for the given day.
func NewSessionState(day string) SessionState {
	return SessionState{Date: day, Guesses: []GuessResult{}}
}

// Clone returns a deep copy of the state.
func (s SessionState) Clone() SessionState {
	out := s
	out.Guesses = append([]GuessResult{}, s.Guesses...)
	if s.Answer != nil {
		ans := *s.Answer
		out.Answer = &ans
	}
	return out
}

// HasWon reports whether any guess was correct.
func (s SessionState) HasWon() bool {
	for _, g := range s.Guesses {
		if g.Correct {
			return true
		}
	}
	return false
}

// HasLost reports whether all guesses are used without a win, or the player gave up.
func (s SessionState) HasLost() bool {
	return (len(s.Guesses) >= MaxGuesses && !s.HasWon()) || s.GaveUp
}

// GameOver reports whether the state is terminal.
func (s SessionState) GameOver() bool {
	return s.HasWon() || s.HasLost()
}

// StatsAggregate is today's global result distribution.
type StatsAggregate struct {
	// Distribution holds wins in 1..6 guesses at indices 0..5 and losses at index 6.
	Distribution []int   `json:"distribution"`
	TotalPlays   int     `json:"totalPlays"`
	Average      float64 `json:"average"`
}

// DistributionBuckets is the number of buckets in StatsAggregate.Distribution.
const DistributionBuckets = MaxGuesses + 1

// Stock is one entry of the stock metadata listing.
type Stock struct {
	Ticker    string `json:"ticker"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
	MarketCap *int64 `json:"marketCap"`
}

// FilterOptions lists the sectors and industries available for filtering.
type FilterOptions struct {
	Sectors    []string `json:"sectors"`
	Industries []string `json:"industries"`
}

// ChartPoint is one point of the answer's price history.
type ChartPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}
