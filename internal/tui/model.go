// Package tui provides the Bubble Tea game interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/stockle/internal/game"
	"github.com/verte-zerg/stockle/internal/hint"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/stocklist"
)

const (
	revealDelay     = 600 * time.Millisecond
	actionTimeout   = 15 * time.Second
	statsWait       = 20 * time.Second
	tickerCharLimit = 12
)

// Game is the session controller driven by the UI.
type Game interface {
	LoadOrInit(ctx context.Context) game.LoadResult
	ShareText() string
	SubmitGuess(ctx context.Context, ticker string) game.Report
	RequestHint(ctx context.Context) game.Report
	GiveUp(ctx context.Context) game.Report
	Stats(ctx context.Context) game.StatsReport
}

type dialog int

const (
	dialogNone dialog = iota
	dialogResult
	dialogConfirmGiveUp
	dialogHelp
)

type action int

const (
	actionGuess action = iota
	actionHint
	actionGiveUp
)

type loadedMsg struct {
	result game.LoadResult
}

type revealMsg struct{}

type actionMsg struct {
	kind   action
	report game.Report
}

type statsMsg struct {
	report game.StatsReport
}

type copiedMsg struct {
	err error
}

// Options configures the game UI.
type Options struct {
	Game   Game
	Stocks []model.Stock
	// Copy writes the share text to the clipboard. Defaults to clipboard.WriteAll.
	Copy   func(string) error
	Logger *zap.Logger
}

// Model implements the Bubble Tea game UI.
type Model struct {
	ctx    context.Context
	game   Game
	stocks []model.Stock
	copy   func(string) error
	log    *zap.Logger

	width  int
	height int

	loaded      bool
	state       model.SessionState
	input       textinput.Model
	suggestions []model.Stock
	selected    int

	pending map[action]bool
	dialog  dialog
	stats   *game.StatsReport
	notice  string
	errMsg  string
}

var (
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	modalStyle      = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// NewModel constructs a game UI model. ctx bounds every call into the game.
func NewModel(ctx context.Context, opts Options) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	in := textinput.New()
	in.Placeholder = "Search ticker or company"
	in.Prompt = "> "
	in.CharLimit = tickerCharLimit
	in.Focus()
	return &Model{
		ctx:     ctx,
		game:    opts.Game,
		stocks:  opts.Stocks,
		copy:    copyFn,
		log:     log.With(zap.String("component", "tui")),
		input:   in,
		pending: map[action]bool{},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	g, ctx := m.game, m.ctx
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return loadedMsg{result: g.LoadOrInit(ctx)}
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, min(40, msg.Width-4))
		return m, nil
	case loadedMsg:
		m.loaded = true
		m.state = msg.result.State
		if m.gameOver() {
			m.input.Blur()
		}
		if msg.result.RevealDialog {
			return m, tea.Tick(revealDelay, func(time.Time) tea.Msg { return revealMsg{} })
		}
		return m, nil
	case revealMsg:
		if m.dialog == dialogNone {
			return m, m.openResult()
		}
		return m, nil
	case actionMsg:
		return m, m.handleAction(msg)
	case statsMsg:
		report := msg.report
		m.stats = &report
		return m, nil
	case copiedMsg:
		if msg.err != nil {
			m.log.Warn("clipboard write failed", zap.Error(msg.err))
			m.errMsg = "Could not copy results to the clipboard."
			m.notice = ""
		} else {
			m.notice = "Copied results to clipboard."
			m.errMsg = ""
		}
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	if m.acceptsInput() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if !m.loaded {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, mutedStyle.Render("Loading…"))
	}
	var content string
	switch m.dialog {
	case dialogResult:
		content = m.renderResultDialog()
	case dialogConfirmGiveUp:
		content = renderConfirmDialog()
	case dialogHelp:
		content = renderTutorial(min(m.width-6, 72))
	default:
		content = m.renderBoard()
	}
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	switch m.dialog {
	case dialogHelp:
		switch msg.String() {
		case "esc", "?", "enter", "q":
			m.dialog = dialogNone
		}
		return nil
	case dialogConfirmGiveUp:
		switch msg.String() {
		case "y", "Y":
			m.dialog = dialogNone
			return m.startAction(actionGiveUp, "")
		case "n", "N", "esc":
			m.dialog = dialogNone
		}
		return nil
	case dialogResult:
		switch msg.String() {
		case "c":
			return m.copyShare()
		case "esc", "enter":
			m.dialog = dialogNone
		case "q":
			return tea.Quit
		}
		return nil
	}
	if !m.loaded {
		return nil
	}
	if m.gameOver() {
		switch msg.String() {
		case "q", "esc":
			return tea.Quit
		case "c":
			return m.copyShare()
		case "s", "enter":
			return m.openResult()
		case "?":
			m.dialog = dialogHelp
		}
		return nil
	}

	switch msg.String() {
	case "esc":
		return tea.Quit
	case "?":
		if m.input.Value() == "" {
			m.dialog = dialogHelp
			return nil
		}
	case "ctrl+t":
		return m.startAction(actionHint, "")
	case "ctrl+g":
		m.dialog = dialogConfirmGiveUp
		return nil
	case "up":
		if m.selected > 0 {
			m.selected--
		}
		return nil
	case "down":
		if m.selected < len(m.suggestions)-1 {
			m.selected++
		}
		return nil
	case "tab":
		if len(m.suggestions) > 0 {
			m.input.SetValue(m.suggestions[m.selected].Ticker)
			m.input.CursorEnd()
			m.refreshSuggestions()
		}
		return nil
	case "enter":
		ticker := m.resolveTicker()
		if ticker == "" {
			return nil
		}
		return m.startAction(actionGuess, ticker)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshSuggestions()
	return cmd
}

// resolveTicker returns the typed ticker when it names a known stock, and the
// highlighted suggestion otherwise.
func (m *Model) resolveTicker() string {
	typed := strings.ToUpper(strings.TrimSpace(m.input.Value()))
	if typed == "" {
		return ""
	}
	if _, ok := stocklist.Find(m.stocks, typed); ok || len(m.suggestions) == 0 {
		return typed
	}
	return m.suggestions[m.selected].Ticker
}

func (m *Model) refreshSuggestions() {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		m.suggestions = nil
		m.selected = 0
		return
	}
	m.suggestions = stocklist.Search(m.stocks, query, stocklist.DefaultLimit)
	if m.selected >= len(m.suggestions) {
		m.selected = max(0, len(m.suggestions)-1)
	}
}

func (m *Model) startAction(kind action, ticker string) tea.Cmd {
	if m.pending[kind] {
		return nil
	}
	m.pending[kind] = true
	m.errMsg = ""
	m.notice = ""
	g, parent := m.game, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		var rep game.Report
		switch kind {
		case actionGuess:
			rep = g.SubmitGuess(ctx, ticker)
		case actionHint:
			rep = g.RequestHint(ctx)
		case actionGiveUp:
			rep = g.GiveUp(ctx)
		}
		return actionMsg{kind: kind, report: rep}
	}
}

func (m *Model) handleAction(msg actionMsg) tea.Cmd {
	delete(m.pending, msg.kind)
	wasOver := m.gameOver()
	rep := msg.report
	if rep.State.Date != "" {
		m.state = rep.State
	}
	m.errMsg = describeError(msg.kind, rep)
	if msg.kind == actionGuess && rep.Outcome == game.Applied {
		m.input.SetValue("")
		m.refreshSuggestions()
	}
	if !wasOver && m.gameOver() {
		m.input.Blur()
		return m.openResult()
	}
	return nil
}

func (m *Model) openResult() tea.Cmd {
	m.dialog = dialogResult
	if m.stats != nil && m.stats.Outcome == game.Applied {
		return nil
	}
	m.stats = nil
	g, parent := m.game, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, statsWait)
		defer cancel()
		return statsMsg{report: g.Stats(ctx)}
	}
}

func (m *Model) copyShare() tea.Cmd {
	text := m.game.ShareText()
	copyFn := m.copy
	return func() tea.Msg {
		return copiedMsg{err: copyFn(text)}
	}
}

func (m *Model) gameOver() bool {
	return m.state.GameOver()
}

func (m *Model) acceptsInput() bool {
	return m.loaded && m.dialog == dialogNone && !m.gameOver()
}

func describeError(kind action, rep game.Report) string {
	switch rep.Outcome {
	case game.Busy:
		return "Still working on the previous request…"
	case game.Rejected:
		if errors.Is(rep.Err, game.ErrGameOver) {
			return "Today's game is already over."
		}
		if errors.Is(rep.Err, hint.ErrAtMax) {
			return "No hints left."
		}
		if errors.Is(rep.Err, game.ErrEmptyTicker) {
			return "Type a ticker first."
		}
	case game.Failed:
		switch kind {
		case actionGuess:
			return "Could not check that guess. Try again."
		case actionHint:
			return "Could not load a hint. Try again."
		}
	}
	if rep.Err == nil {
		return ""
	}
	if errors.Is(rep.Err, game.ErrPersist) {
		return "Progress could not be saved."
	}
	if errors.Is(rep.Err, game.ErrAnswerFetch) {
		return ""
	}
	return fmt.Sprintf("Error: %v", rep.Err)
}

func (m *Model) renderBoard() string {
	width := max(20, m.width-4)
	parts := []string{
		titleStyle.Render("STOCKLE") + "  " + mutedStyle.Render(m.state.Date),
		"",
		renderGrid(m.state.Guesses, width),
		"",
		renderHints(m.state),
	}
	if !m.gameOver() {
		parts = append(parts, "", m.input.View())
		if s := m.renderSuggestions(); s != "" {
			parts = append(parts, s)
		}
	}
	if m.errMsg != "" {
		parts = append(parts, "", errorStyle.Render(m.errMsg))
	} else if m.notice != "" {
		parts = append(parts, "", noticeStyle.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderSuggestions() string {
	if len(m.suggestions) == 0 {
		if strings.TrimSpace(m.input.Value()) != "" {
			return mutedStyle.Render("  no matching stocks")
		}
		return ""
	}
	lines := make([]string, 0, len(m.suggestions))
	for i, s := range m.suggestions {
		line := fmt.Sprintf("%-6s %s", s.Ticker, s.Name)
		if i == m.selected {
			lines = append(lines, selectedStyle.Render("› "+line))
		} else {
			lines = append(lines, suggestionStyle.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	segments := []string{fmt.Sprintf("Guess %d/%d", len(m.state.Guesses), model.MaxGuesses)}
	segments = append(segments, fmt.Sprintf("Hints %d/%d", m.state.HintLevel, hint.MaxLevel))
	status := game.StatusOf(m.state)
	segments = append(segments, status.String())
	if len(m.pending) > 0 {
		segments = append(segments, "working…")
	}
	if status.Terminal() {
		segments = append(segments, "s results · c copy · q quit")
	} else {
		segments = append(segments, "enter guess · ctrl+t hint · ctrl+g give up · ? help")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
