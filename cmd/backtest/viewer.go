package main

import (
	"strings"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	selStyle   = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// outcome 过滤顺序，按 f 循环切换
var filterCycle = []domain.Outcome{"", domain.OutcomeTP1Hit, domain.OutcomeTP2Hit, domain.OutcomeTP3Hit,
	domain.OutcomeSLHit, domain.OutcomeActive, domain.OutcomeExpired, domain.OutcomeNoData}

type viewer struct {
	all     []domain.AnalysisResult
	shown   []domain.AnalysisResult
	summary evaluator.Summary

	cursor int
	offset int
	height int
	filter int
}

func newViewer(results []domain.AnalysisResult, summary evaluator.Summary) viewer {
	return viewer{all: results, shown: results, summary: summary, height: 20}
}

func (v viewer) Init() tea.Cmd { return nil }

func (v viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// 标题、汇总、帮助各占几行
		v.height = max(msg.Height-8, 3)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "up", "k":
			if v.cursor > 0 {
				v.cursor--
			}
		case "down", "j":
			if v.cursor < len(v.shown)-1 {
				v.cursor++
			}
		case "home", "g":
			v.cursor = 0
		case "end", "G":
			v.cursor = max(len(v.shown)-1, 0)
		case "f":
			v.filter = (v.filter + 1) % len(filterCycle)
			v.shown = filterOutcome(v.all, filterCycle[v.filter])
			v.cursor, v.offset = 0, 0
		}
	}
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+v.height {
		v.offset = v.cursor - v.height + 1
	}
	return v, nil
}

func (v viewer) View() string {
	var b strings.Builder
	title := "signal backtest"
	if f := filterCycle[v.filter]; f != "" {
		title += " [" + string(f) + "]"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(renderSummary(v.summary))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render(strings.Join(tableHeaders, " | ")))
	b.WriteString("\n")
	end := min(v.offset+v.height, len(v.shown))
	for i := v.offset; i < end; i++ {
		r := v.shown[i]
		cells := resultRow(r)
		cells[outcomeCol] = outcomeStyle(r.Outcome).Render(cells[outcomeCol])
		line := strings.Join(cells, " | ")
		if i == v.cursor {
			line = selStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(v.shown) == 0 {
		b.WriteString(dimStyle.Render("no results"))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move · f filter outcome · q quit"))
	return b.String()
}

func filterOutcome(results []domain.AnalysisResult, o domain.Outcome) []domain.AnalysisResult {
	if o == "" {
		return results
	}
	var out []domain.AnalysisResult
	for _, r := range results {
		if r.Outcome == o {
			out = append(out, r)
		}
	}
	return out
}
