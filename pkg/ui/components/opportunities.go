// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	ID         string
	Time       string
	Token      string
	Route      string // "source->target", one row per route
	Bridge     string
	Spread     decimal.Decimal // percent
	NetProfit  decimal.Decimal
	Margin     decimal.Decimal // percent
	Risk       int
	Complexity string
}

// OpportunitiesComponent renders the opportunities list, newest first.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
	visible int
	offset  int
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows, visible int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:    make([]OpportunityRow, 0),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add puts row at the top, replacing an older row for the same route.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	kept := make([]OpportunityRow, 0, len(o.rows)+1)
	kept = append(kept, row)
	for _, r := range o.rows {
		if r.Route != row.Route || r.Token != row.Token {
			kept = append(kept, r)
		}
	}
	if len(kept) > o.maxRows {
		kept = kept[:o.maxRows]
	}
	o.rows = kept
	o.clampOffset()
}

// Len returns the number of rows held.
func (o *OpportunitiesComponent) Len() int { return len(o.rows) }

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = make([]OpportunityRow, 0)
	o.offset = 0
}

func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

func (o *OpportunitiesComponent) ScrollDown() {
	o.offset++
	o.clampOffset()
}

func (o *OpportunitiesComponent) clampOffset() {
	maxOffset := len(o.rows) - o.visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if o.offset > maxOffset {
		o.offset = maxOffset
	}
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (%d)", len(o.rows))))
	sb.WriteString("\n\n")

	if len(o.rows) == 0 {
		sb.WriteString(dimStyle.Render("  No opportunities detected yet..."))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-8s  %-5s  %-20s  %-9s  %8s  %10s  %7s  %-8s\n",
		"Time", "Token", "Route", "Bridge", "Spread", "Net", "Margin", "Risk"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 88)) + "\n")

	end := o.offset + o.visible
	if end > len(o.rows) {
		end = len(o.rows)
	}
	for _, row := range o.rows[o.offset:end] {
		sb.WriteString(fmt.Sprintf("  %-8s  %-5s  %-20s  %-9s  %7s%%  %s  %6s%%  %s\n",
			row.Time,
			row.Token,
			row.Route,
			row.Bridge,
			row.Spread.StringFixed(2),
			profitStyle.Render(fmt.Sprintf("%10s", "$"+row.NetProfit.StringFixed(2))),
			row.Margin.StringFixed(2),
			riskStyle(row.Risk).Render(fmt.Sprintf("%3d %s", row.Risk, row.Complexity)),
		))
	}
	if len(o.rows) > o.visible {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  rows %d-%d of %d", o.offset+1, end, len(o.rows))))
	}
	return sb.String()
}

func riskStyle(score int) lipgloss.Style {
	switch {
	case score >= 50:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	case score >= 30:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	}
}
