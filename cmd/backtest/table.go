package main

import (
	"fmt"
	"strconv"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	cellStyle = lipgloss.NewStyle().Padding(0, 1)
	winStyle  = cellStyle.Foreground(lipgloss.Color("2")) // 绿色
	lossStyle = cellStyle.Foreground(lipgloss.Color("1")) // 红色
	dimStyle  = cellStyle.Foreground(lipgloss.Color("244"))

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

var tableHeaders = []string{"Asset", "Dir", "Entry", "Outcome", "Exit", "PNL %", "Entry time", "Hit time"}

// outcomeCol 结果列下标，用于着色
const outcomeCol = 3

func resultRow(r domain.AnalysisResult) []string {
	hit := "-"
	if r.HitTime != nil {
		hit = r.HitTime.UTC().Format("2006-01-02 15:04")
	}
	entry := "-"
	if !r.EntryTime.IsZero() {
		entry = r.EntryTime.UTC().Format("2006-01-02 15:04")
	}
	exit := "-"
	if r.ExitPrice != 0 {
		exit = strconv.FormatFloat(r.ExitPrice, 'f', -1, 64)
	}
	return []string{
		r.Asset,
		string(r.Direction),
		strconv.FormatFloat(r.Entry, 'f', -1, 64),
		string(r.Outcome),
		exit,
		fmt.Sprintf("%+.2f", r.PNLPercent),
		entry,
		hit,
	}
}

func outcomeStyle(o domain.Outcome) lipgloss.Style {
	switch {
	case o.IsWin():
		return winStyle
	case o == domain.OutcomeSLHit:
		return lossStyle
	case o == domain.OutcomeNoData:
		return dimStyle
	}
	return cellStyle
}

func renderTable(results []domain.AnalysisResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, resultRow(r))
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(tableHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == outcomeCol && row >= 0 && row < len(results) {
				return outcomeStyle(results[row].Outcome)
			}
			return cellStyle
		}).
		String()
}

func summaryLine(s evaluator.Summary) string {
	return fmt.Sprintf("signals %d | wins %d | losses %d | active %d | expired %d | no data %d | win rate %.1f%% | total PNL %+.2f%% | avg %+.2f%%",
		s.Total, s.Wins, s.Losses, s.Active, s.Expired, s.NoData, s.WinRate, s.TotalPNLPercent, s.AvgPNLPercent)
}

func renderSummary(s evaluator.Summary) string {
	return summaryStyle.Render(summaryLine(s))
}
