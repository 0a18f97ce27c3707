package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ChainStatus represents one chain's connectivity.
type ChainStatus struct {
	Name      string
	Healthy   bool
	LatencyMs int64
	Block     uint64
	GasGwei   decimal.Decimal
	Endpoint  string
	LastError string
	Seen      bool // false until the first health report
}

// ChainsComponent renders chain connectivity in a fixed order.
type ChainsComponent struct {
	chains []ChainStatus
}

// NewChainsComponent creates a component listing names as not yet seen.
func NewChainsComponent(names []string) *ChainsComponent {
	c := &ChainsComponent{chains: make([]ChainStatus, 0, len(names))}
	for _, n := range names {
		c.chains = append(c.chains, ChainStatus{Name: n})
	}
	return c
}

// Update updates a chain's status, appending unknown chains.
func (c *ChainsComponent) Update(status ChainStatus) {
	status.Seen = true
	for i, ch := range c.chains {
		if ch.Name == status.Name {
			c.chains[i] = status
			return
		}
	}
	c.chains = append(c.chains, status)
}

// Healthy returns how many chains are currently healthy.
func (c *ChainsComponent) Healthy() int {
	n := 0
	for _, ch := range c.chains {
		if ch.Healthy {
			n++
		}
	}
	return n
}

// View renders the chains component.
func (c *ChainsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	upStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("CHAINS"))
	sb.WriteString("\n\n")

	if len(c.chains) == 0 {
		sb.WriteString(dimStyle.Render("  No chains configured"))
		return sb.String()
	}

	for _, ch := range c.chains {
		var line string
		switch {
		case !ch.Seen:
			line = dimStyle.Render(fmt.Sprintf("  ○ %-10s waiting", ch.Name))
		case ch.Healthy:
			line = upStyle.Render(fmt.Sprintf("  ● %-10s", ch.Name)) +
				fmt.Sprintf(" %4dms  #%-10d %s gwei", ch.LatencyMs, ch.Block, ch.GasGwei.StringFixed(3))
		default:
			line = downStyle.Render(fmt.Sprintf("  ○ %-10s down", ch.Name))
			if ch.LastError != "" {
				line += dimStyle.Render(" " + truncate(ch.LastError, 40))
			}
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
