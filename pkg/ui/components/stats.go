package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Stats holds statistics for display.
type Stats struct {
	TotalOpportunities  int64
	ActiveOpportunities int
	ActiveExecutions    int64
	AverageNetProfit    decimal.Decimal
	Completed           int64
	Failed              int64
	Errors              int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the engine-provided counters, keeping locally counted ones.
func (s *StatsComponent) Update(stats Stats) {
	stats.Completed = s.stats.Completed
	stats.Failed = s.stats.Failed
	stats.Errors = s.stats.Errors
	s.stats = stats
}

// RecordExecution counts a finished execution.
func (s *StatsComponent) RecordExecution(completed bool) {
	if completed {
		s.stats.Completed++
	} else {
		s.stats.Failed++
	}
}

// RecordError counts an error shown to the operator.
func (s *StatsComponent) RecordError() { s.stats.Errors++ }

// Stats returns the current values.
func (s *StatsComponent) Stats() Stats { return s.stats }

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	failedDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	if s.stats.Failed > 0 {
		failedDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	}
	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Found: %s  │  Active: %s  │  Avg net: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.TotalOpportunities)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.ActiveOpportunities)),
			valueStyle.Render("$"+s.stats.AverageNetProfit.StringFixed(2)),
		) +
		fmt.Sprintf("Executing: %s  │  Completed: %s  │  Failed: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.ActiveExecutions)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Completed)),
			failedDisplay,
			errorsDisplay,
		)
}
