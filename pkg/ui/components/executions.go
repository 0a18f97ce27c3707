package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ExecutionRow represents one finished execution attempt.
type ExecutionRow struct {
	Time          string
	OpportunityID string
	Outcome       string
	Severity      string // none, low, high, critical
	Profit        string // empty when not observable
	Detail        string // failed phase and error, or last handle
}

// ExecutionsComponent renders recent executions, newest first.
type ExecutionsComponent struct {
	rows    []ExecutionRow
	maxRows int
}

// NewExecutionsComponent creates a new executions component.
func NewExecutionsComponent(maxRows int) *ExecutionsComponent {
	return &ExecutionsComponent{maxRows: maxRows}
}

// Add adds an execution to the top of the list.
func (e *ExecutionsComponent) Add(row ExecutionRow) {
	e.rows = append([]ExecutionRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
}

// Rows returns the rows held, newest first.
func (e *ExecutionsComponent) Rows() []ExecutionRow { return e.rows }

// Clear clears all executions.
func (e *ExecutionsComponent) Clear() { e.rows = nil }

// View renders the executions component.
func (e *ExecutionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("EXECUTIONS"))
	sb.WriteString("\n\n")

	if len(e.rows) == 0 {
		sb.WriteString(dimStyle.Render("  No executions yet..."))
		return sb.String()
	}

	for _, row := range e.rows {
		profit := row.Profit
		if profit == "" {
			profit = "n/a"
		}
		sb.WriteString(fmt.Sprintf("  %-8s %s %10s  %s\n",
			row.Time,
			SeverityStyle(row.Severity).Render(fmt.Sprintf("%-22s", row.Outcome)),
			profit,
			dimStyle.Render(truncate(row.OpportunityID, 32)),
		))
		if row.Detail != "" {
			sb.WriteString(dimStyle.Render("           "+truncate(row.Detail, 70)) + "\n")
		}
	}
	return sb.String()
}

// SeverityStyle colors an execution outcome by severity.
func SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "critical":
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#EF4444"))
	case "high":
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	case "low":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	}
}
