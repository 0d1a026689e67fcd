package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"marketsignal/internal/strategy"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)
	idleStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("245")).
			Padding(0, 1)
)

var seriesColors = []asciigraph.AnsiColor{asciigraph.Green, asciigraph.Blue, asciigraph.Yellow, asciigraph.Red}

const chartHeight = 15

// Model is the bubbletea model of the interactive results view. The
// selected strategy is highlighted and its trades are listed below the
// chart.
type Model struct {
	symbol   string
	results  []*strategy.BacktestResult
	selected int

	viewport      viewport.Model
	ready         bool
	width, height int
}

// NewModel returns a view over results for symbol.
func NewModel(symbol string, results []*strategy.BacktestResult) Model {
	return Model{symbol: symbol, results: results}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.cycle(1)
			return m, nil
		case "shift+tab":
			m.cycle(-1)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-2, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) cycle(step int) {
	n := len(m.results)
	if n == 0 {
		return
	}
	m.selected = ((m.selected+step)%n + n) % n
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := " " + ChartTitle(m.symbol, m.results) + " "
	if len(m.results) > 0 {
		r := m.results[m.selected]
		header += fmt.Sprintf("   [%s] %s ", Label(r.Strategy), SharpeLine(r.Strategy, r.SharpeRatio))
	}
	footer := " tab: next strategy  shift+tab: previous  ↑/↓: scroll  q: quit"
	return headerStyle.Render(padOrTrunc(header, m.width)) + "\n" +
		m.viewport.View() + "\n" +
		footerStyle.Render(padOrTrunc(footer, m.width))
}

func (m Model) renderContent() string {
	if len(m.results) == 0 {
		return "no results"
	}

	blocks := make([]string, len(m.results))
	for i, r := range m.results {
		style := idleStyle
		if i == m.selected {
			style = selectedStyle
		}
		blocks[i] = style.Render(strings.TrimRight(RenderStats(r.Strategy, r.Stats), "\n"))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	b.WriteString("\n\n")
	b.WriteString(m.renderChart())
	b.WriteString("\n\n")

	r := m.results[m.selected]
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s trades (%d)", Label(r.Strategy), len(r.Trades))))
	b.WriteByte('\n')
	var trades strings.Builder
	if err := WriteTrades(&trades, r.Trades); err == nil {
		b.WriteString(trades.String())
	}
	return b.String()
}

// renderChart draws every equity curve, the selected one last so it stays
// on top where curves overlap.
func (m Model) renderChart() string {
	var (
		series  [][]float64
		colors  []asciigraph.AnsiColor
		legends []string
	)
	order := make([]int, 0, len(m.results))
	for i := range m.results {
		if i != m.selected {
			order = append(order, i)
		}
	}
	order = append(order, m.selected)

	for _, i := range order {
		r := m.results[i]
		values := make([]float64, len(r.Equity))
		for j, pt := range r.Equity {
			values[j] = pt.Equity
		}
		if len(values) == 0 {
			continue
		}
		series = append(series, values)
		colors = append(colors, seriesColors[i%len(seriesColors)])
		legends = append(legends, Label(r.Strategy)+" Strategy")
	}
	if len(series) == 0 {
		return ""
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(chartHeight),
		asciigraph.Width(max(m.width-12, 20)),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Caption(ChartTitle(m.symbol, m.results)),
	)
}

// padOrTrunc pads s with spaces or truncates it to exactly width runes.
func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// RunTUI runs the interactive view until the user quits or ctx is done.
func RunTUI(ctx context.Context, symbol string, results []*strategy.BacktestResult) error {
	p := tea.NewProgram(
		NewModel(symbol, results),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
