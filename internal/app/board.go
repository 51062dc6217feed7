package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/worldboard/internal/charts"
	"github.com/verte-zerg/worldboard/internal/dashboard"
	"github.com/verte-zerg/worldboard/internal/model"
)

const (
	focusCountries = iota
	focusStartYear
	focusEndYear
	focusCharts
	focusCount
)

const (
	chartTrend = iota
	chartComparison
)

const (
	plotHeight      = 10
	maxFilterWidth  = 32
	trendTitle      = "Primary completion rate by year"
	comparisonTitle = "Average primary completion rate"
)

type optionsLoadedMsg struct {
	board *board
	sel   model.Selection
	err   error
}

type dataMsg struct {
	board *board
	res   dashboard.Result
}

// board is the dashboard screen: filter widgets bound to the controller's
// selection and a viewport showing the active chart.
type board struct {
	ctrl   *dashboard.Controller
	ctx    context.Context
	cancel context.CancelFunc

	tabs        []string
	activeChart int
	viewport    viewport.Model

	focus      int
	cursor     int
	listOffset int

	loadingOptions bool
	optionsLoaded  bool
	errMsg         string

	width  int
	height int
}

func newBoard(src dashboard.Source, cfg model.Config) *board {
	ctx, cancel := context.WithCancel(context.Background())
	return &board{
		ctrl: dashboard.New(src, dashboard.Options{
			ValidateYears: cfg.ValidateYears,
		}),
		ctx:      ctx,
		cancel:   cancel,
		tabs:     []string{"Trend", "Comparison"},
		viewport: viewport.New(0, 0),
	}
}

// close cancels every request the board still has in flight.
func (b *board) close() {
	b.cancel()
}

func (b *board) load() tea.Cmd {
	b.loadingOptions = true
	b.errMsg = ""
	b.render()
	return func() tea.Msg {
		sel, err := b.ctrl.Load(b.ctx)
		return optionsLoadedMsg{board: b, sel: sel, err: err}
	}
}

func (b *board) handleOptions(msg optionsLoadedMsg) tea.Cmd {
	b.loadingOptions = false
	if msg.err != nil {
		b.optionsLoaded = false
		b.errMsg = "Failed to load filter options. Press r to retry."
		b.render()
		return nil
	}
	b.optionsLoaded = true
	b.cursor = 0
	b.listOffset = 0
	return b.apply(b.ctrl.ApplySelection(b.ctx, msg.sel))
}

func (b *board) apply(p *dashboard.Pending, err error) tea.Cmd {
	if err != nil {
		b.errMsg = err.Error()
		b.render()
		return nil
	}
	b.errMsg = ""
	b.render()
	return func() tea.Msg {
		return dataMsg{board: b, res: p.Wait()}
	}
}

func (b *board) handleData(msg dataMsg) {
	if !b.ctrl.Commit(msg.res) {
		return
	}
	b.render()
}

func (b *board) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab:
		b.focus = (b.focus + 1) % focusCount
		return nil
	case tea.KeyShiftTab:
		b.focus = (b.focus + focusCount - 1) % focusCount
		return nil
	}
	if msg.String() == "r" {
		return b.retry()
	}
	switch b.focus {
	case focusCountries:
		return b.handleCountryKey(msg)
	case focusStartYear, focusEndYear:
		return b.handleYearKey(msg)
	default:
		return b.handleChartKey(msg)
	}
}

func (b *board) retry() tea.Cmd {
	if !b.optionsLoaded {
		return b.load()
	}
	return b.apply(b.ctrl.ApplySelection(b.ctx, b.ctrl.Selection()))
}

func (b *board) handleCountryKey(msg tea.KeyMsg) tea.Cmd {
	countries := b.ctrl.FilterOptions().Countries
	if len(countries) == 0 {
		return nil
	}
	switch msg.Type {
	case tea.KeySpace, tea.KeyEnter:
		return b.apply(b.ctrl.ToggleCountry(b.ctx, countries[b.cursor]))
	case tea.KeyUp:
		b.moveCursor(-1, len(countries))
	case tea.KeyDown:
		b.moveCursor(1, len(countries))
	case tea.KeyHome:
		b.moveCursor(-len(countries), len(countries))
	case tea.KeyEnd:
		b.moveCursor(len(countries), len(countries))
	case tea.KeyRunes:
		switch msg.String() {
		case "k":
			b.moveCursor(-1, len(countries))
		case "j":
			b.moveCursor(1, len(countries))
		}
	}
	return nil
}

func (b *board) moveCursor(delta, count int) {
	b.cursor += delta
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.cursor >= count {
		b.cursor = count - 1
	}
}

func (b *board) handleYearKey(msg tea.KeyMsg) tea.Cmd {
	delta := 0
	switch msg.Type {
	case tea.KeyLeft, tea.KeyDown:
		delta = -1
	case tea.KeyRight, tea.KeyUp:
		delta = 1
	case tea.KeyRunes:
		switch msg.String() {
		case "h", "-":
			delta = -1
		case "l", "+", "=":
			delta = 1
		}
	}
	if delta == 0 {
		return nil
	}
	years := b.ctrl.YearOptions()
	if len(years) == 0 {
		return nil
	}
	sel := b.ctrl.Selection()
	current := sel.StartYear
	if b.focus == focusEndYear {
		current = sel.EndYear
	}
	next := stepYear(years, current, delta)
	if next == current {
		return nil
	}
	if b.focus == focusStartYear {
		return b.apply(b.ctrl.SetStartYear(b.ctx, next))
	}
	return b.apply(b.ctrl.SetEndYear(b.ctx, next))
}

// stepYear moves delta positions through years, clamped to its ends. An unset
// year steps onto the nearest end.
func stepYear(years []int, current, delta int) int {
	idx := -1
	for i, y := range years {
		if y == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		if delta < 0 {
			return years[0]
		}
		return years[len(years)-1]
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(years) {
		idx = len(years) - 1
	}
	return years[idx]
}

func (b *board) handleChartKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyLeft:
		b.moveTab(-1)
		return nil
	case tea.KeyRight:
		b.moveTab(1)
		return nil
	case tea.KeyRunes:
		switch msg.String() {
		case "h":
			b.moveTab(-1)
			return nil
		case "l":
			b.moveTab(1)
			return nil
		case "g":
			b.viewport.GotoTop()
			return nil
		case "G":
			b.viewport.GotoBottom()
			return nil
		}
	}
	var cmd tea.Cmd
	b.viewport, cmd = b.viewport.Update(msg)
	return cmd
}

func (b *board) moveTab(delta int) {
	count := len(b.tabs)
	b.activeChart = (b.activeChart + delta + count) % count
	b.render()
}

func (b *board) resize(width, height int) {
	b.width = width
	b.height = height
	_, bodyHeight, _ := b.layoutHeights()
	b.viewport.Width = maxInt(1, width-b.filterWidth()-1)
	b.viewport.Height = maxInt(1, bodyHeight-lipgloss.Height(b.renderTabs()))
	b.render()
}

func (b *board) filterWidth() int {
	return maxInt(16, minInt(maxFilterWidth, b.width/3))
}

func (b *board) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = 1
	footerHeight = 1
	if b.errMsg != "" {
		footerHeight++
	}
	bodyHeight = maxInt(1, b.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (b *board) render() {
	b.viewport.SetContent(b.chartContent(b.viewport.Width))
}

func (b *board) chartContent(width int) string {
	if width <= 0 {
		width = 80
	}
	if b.loadingOptions {
		return "Loading filter options..."
	}
	if !b.optionsLoaded {
		return "No filter options available."
	}
	switch b.ctrl.State() {
	case dashboard.StateLoading:
		return "Loading data..."
	case dashboard.StateIdle:
		return "Select countries and a year range."
	case dashboard.StateEmpty:
		if b.ctrl.Err() != nil {
			return "Failed to load data. Press r to retry."
		}
		return "No data for the current selection."
	}

	c := b.ctrl.Charts()
	var buf bytes.Buffer
	var err error
	if b.activeChart == chartTrend {
		err = charts.RenderTrend(&buf, trendTitle, c, charts.PlotWidthFor(width), plotHeight, true)
	} else {
		err = charts.RenderComparison(&buf, comparisonTitle, c, width, true)
		if err == nil {
			buf.WriteString("\n")
			err = charts.RenderAverageTable(&buf, c)
		}
	}
	if err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (b *board) view() string {
	if b.width == 0 || b.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := b.layoutHeights()
	header := fitLines(b.renderHeader(), b.width, headerHeight)

	filters := fitLines(b.renderFilters(bodyHeight), b.filterWidth(), bodyHeight)
	chartsWidth := maxInt(1, b.width-b.filterWidth()-1)
	chartPane := fitLines(b.renderTabs()+"\n"+b.viewport.View(), chartsWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, filters, " ", chartPane)

	footer := fitLines(b.renderFooter(), b.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (b *board) renderHeader() string {
	sel := b.ctrl.Selection()
	summary := fmt.Sprintf("worldboard  %s  countries=%d  years=%s-%s",
		b.ctrl.State(), len(sel.Countries), yearLabel(sel.StartYear), yearLabel(sel.EndYear))
	return headerStyle.Render(truncateLine(summary, b.width))
}

func (b *board) renderTabs() string {
	parts := make([]string, 0, len(b.tabs))
	for i, tab := range b.tabs {
		if i == b.activeChart {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (b *board) renderFilters(height int) string {
	width := b.filterWidth()
	sel := b.ctrl.Selection()
	lines := []string{
		b.sectionTitle("Countries", focusCountries),
	}

	countries := b.ctrl.FilterOptions().Countries
	listHeight := maxInt(1, height-5)
	b.scrollList(listHeight, len(countries))
	end := minInt(len(countries), b.listOffset+listHeight)
	for i := b.listOffset; i < end; i++ {
		mark := "[ ]"
		if sel.Contains(countries[i]) {
			mark = "[x]"
		}
		line := truncateLine(fmt.Sprintf("%s %s", mark, countries[i]), width-2)
		if i == b.cursor && b.focus == focusCountries {
			lines = append(lines, selectedStyle.Render("> "+line))
		} else {
			lines = append(lines, "  "+line)
		}
	}
	if len(countries) == 0 {
		lines = append(lines, tableMutedStyle.Render("  (none)"))
	}

	lines = append(lines,
		"",
		b.yearLine("Start", sel.StartYear, focusStartYear),
		b.yearLine("End  ", sel.EndYear, focusEndYear),
	)
	return strings.Join(lines, "\n")
}

func (b *board) scrollList(height, count int) {
	if b.cursor < b.listOffset {
		b.listOffset = b.cursor
	}
	if b.cursor >= b.listOffset+height {
		b.listOffset = b.cursor - height + 1
	}
	if b.listOffset > maxInt(0, count-height) {
		b.listOffset = maxInt(0, count-height)
	}
}

func (b *board) sectionTitle(title string, focus int) string {
	if b.focus == focus {
		return selectedStyle.Render(title)
	}
	return cardTitleStyle.Render(title)
}

func (b *board) yearLine(label string, year, focus int) string {
	line := fmt.Sprintf("%s ◂ %s ▸", label, yearLabel(year))
	if b.focus == focus {
		return selectedStyle.Render(line)
	}
	return cardTitleStyle.Render(line)
}

func (b *board) renderFooter() string {
	help := "Focus: tab  Toggle: space  Years: left/right  Retry: r  Logout: x  Quit: q"
	if b.focus == focusCharts {
		help = "Focus: tab  Chart: left/right  Scroll: up/down/pgup/pgdn  Retry: r  Logout: x  Quit: q"
	}
	help = headerStyle.Render(truncateLine(help, b.width))
	if b.errMsg != "" {
		return help + "\n" + errorStyle.Render(truncateLine(b.errMsg, b.width))
	}
	return help
}

func yearLabel(year int) string {
	if year == 0 {
		return "----"
	}
	return fmt.Sprintf("%d", year)
}
