// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/stockle/internal/codec"
	"github.com/verte-zerg/stockle/internal/format"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/stats"
)

const (
	tabDistribution = iota
	tabChart
	tabGuesses
)

const (
	plotHeight   = 12
	fetchTimeout = 10 * time.Second
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color(codec.Success.Hex()))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(codec.Failure.Hex()))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	barStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	youBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(codec.Success.Hex())).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

type reportMsg struct {
	report stats.Report
}

type chartMsg struct {
	rng    stats.Range
	points []model.ChartPoint
	err    error
}

// Model implements the Bubble Tea stats UI.
type Model struct {
	reader  stats.StatsReader
	charts  stats.ChartSource
	session model.SessionState

	report  stats.Report
	loading bool
	rng     stats.Range
	// chartCache holds series already fetched this run, keyed by range.
	chartCache map[stats.Range][]model.ChartPoint

	tabs       []string
	activeTab  int
	viewports  []viewport.Model
	guessTable table.Model

	width  int
	height int
}

// NewModel constructs a stats UI model. session is today's state, used for
// the guesses tab; it may be empty.
func NewModel(reader stats.StatsReader, charts stats.ChartSource, session model.SessionState, rng stats.Range) *Model {
	if rng == "" {
		rng = stats.Range5Y
	}
	m := &Model{
		reader:     reader,
		charts:     charts,
		session:    session,
		rng:        rng,
		loading:    true,
		chartCache: map[stats.Range][]model.ChartPoint{},
		tabs:       []string{"Distribution", "Chart", "Guesses"},
	}
	m.initViewports()
	m.guessTable = buildGuessTable(session, 0, 1)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadReport()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case reportMsg:
		m.loading = false
		m.report = msg.report
		if msg.report.ChartErr == nil {
			m.chartCache[msg.report.Range] = msg.report.Points
		}
		m.renderTabContents()
		return m, nil
	case chartMsg:
		if msg.rng != m.rng {
			return m, nil
		}
		m.report.Range = msg.rng
		m.report.Points = msg.points
		m.report.ChartErr = msg.err
		if msg.err == nil {
			m.chartCache[msg.rng] = msg.points
		}
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.activeTab == tabGuesses {
			m.guessTable.Focus()
		} else {
			m.guessTable.Blur()
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			return m, m.setRange(m.rng.Next())
		case "1", "2", "3", "4":
			idx := int(msg.String()[0] - '1')
			return m, m.setRange(stats.Ranges[idx])
		case "R":
			m.loading = true
			m.chartCache = map[stats.Range][]model.ChartPoint{}
			m.renderTabContents()
			return m, m.loadReport()
		case "g", "home":
			if m.activeTab == tabGuesses {
				m.guessTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabGuesses {
				m.guessTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabGuesses {
				var cmd tea.Cmd
				m.guessTable, cmd = m.guessTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) loadReport() tea.Cmd {
	reader, charts, rng := m.reader, m.charts, m.rng
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return reportMsg{report: stats.BuildReport(ctx, reader, charts, rng)}
	}
}

func (m *Model) setRange(rng stats.Range) tea.Cmd {
	if rng == m.rng && !m.loading {
		return nil
	}
	m.rng = rng
	if points, ok := m.chartCache[rng]; ok {
		m.report.Range = rng
		m.report.Points = points
		m.report.ChartErr = nil
		m.renderTabContents()
		return nil
	}
	if m.charts == nil {
		return nil
	}
	charts := m.charts
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		points, err := stats.LoadChart(ctx, charts, rng)
		return chartMsg{rng: rng, points: points, err: err}
	}
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.guessTable.SetWidth(m.width)
	m.guessTable.SetHeight(max(1, vpHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabGuesses {
		m.guessTable.Focus()
	} else {
		m.guessTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	status := fmt.Sprintf("Day: %s  Range: %s", m.session.Date, m.rng)
	if m.loading {
		status += "  loading…"
	}
	return tabs + "\n" + padLines(headerStyle.Render(truncateLine(status, m.width)), m.width)
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down  Range: r or 1-4  Reload: R  Quit: q"
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderBody(height int) string {
	if m.activeTab == tabGuesses {
		if len(m.session.Guesses) == 0 {
			return fitLines("No guesses today.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.guessTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.loading {
		for i := range m.viewports {
			m.viewports[i].SetContent("Loading…")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabDistribution].SetContent(renderDistribution(m.report, width))
	m.viewports[tabChart].SetContent(renderChart(m.report, width))
}

func renderDistribution(rep stats.Report, width int) string {
	if rep.StatsErr != nil && rep.Result.Aggregate == nil {
		return errorStyle.Render("Stats unavailable: " + rep.StatsErr.Error())
	}
	agg := rep.Result.Aggregate
	if agg == nil || agg.TotalPlays == 0 {
		return "No stats available yet."
	}
	your := "-"
	if rep.Result.YourResult != nil {
		your = stats.BucketLabels[min(max(*rep.Result.YourResult, 1), model.DistributionBuckets)-1]
	}
	cards := []string{
		metricCard("Players", fmt.Sprintf("%d", agg.TotalPlays)),
		metricCard("Average", fmt.Sprintf("%.1f", agg.Average)),
		metricCard("Your result", your),
	}
	var summary string
	if width < 60 {
		summary = strings.Join(cards, "\n")
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}

	barWidth := min(max(width-24, 10), 40)
	lines := make([]string, 0, model.DistributionBuckets+3)
	for _, bar := range stats.Bars(*agg, rep.Result.YourResult) {
		style := barStyle
		if bar.You {
			style = youBarStyle
		}
		lines = append(lines, style.Render(stats.FormatBar(bar, barWidth)))
	}
	lines = append(lines, "", stats.SummaryLine(*agg))
	if beat := stats.BeatLine(rep.Result.Percentile); beat != "" {
		lines = append(lines, youBarStyle.Render(beat))
	}
	if rep.StatsErr != nil {
		lines = append(lines, errorStyle.Render("Showing cached stats: "+rep.StatsErr.Error()))
	}
	return strings.TrimRight(summary+"\n\n"+strings.Join(lines, "\n"), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderChart(rep stats.Report, width int) string {
	if rep.ChartErr != nil {
		return errorStyle.Render("Chart unavailable: " + rep.ChartErr.Error())
	}
	var buf bytes.Buffer
	title := fmt.Sprintf("Price (%s)", rep.Range)
	if err := stats.PlotChart(&buf, title, rep.Points, stats.PlotWidthFor(width), plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	out := strings.TrimRight(buf.String(), "\n")
	if trend := stats.TrendLine(rep.Points, stats.PlotWidthFor(width)); trend != "" {
		out += "\n\n" + headerStyle.Render("Trend ") + trend
	}
	return out
}

func buildGuessTable(session model.SessionState, width, height int) table.Model {
	columns := []table.Column{{Title: "#", Width: 2}, {Title: "Ticker", Width: 7}}
	for _, label := range model.ComparisonLabels {
		columns = append(columns, table.Column{Title: label, Width: 14})
	}
	rows := make([]table.Row, 0, len(session.Guesses))
	for i, g := range session.Guesses {
		row := table.Row{fmt.Sprintf("%d", i+1), g.Ticker}
		values := format.GuessValues(g)
		for j, c := range g.Comparisons.Ordered() {
			row = append(row, codec.Symbol(c.Status)+" "+values[j]+codec.ArrowFor(c.Status).String())
		}
		rows = append(rows, row)
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(max(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(guessTableStyles())
	return t
}

func guessTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
