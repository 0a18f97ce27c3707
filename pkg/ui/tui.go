package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/internal/logger"
	"github.com/fd1az/crosschain-arb/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

func (s *StartupStep) settled() bool {
	switch s.Status {
	case "connected", "done", "failed":
		return true
	}
	return false
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

const (
	maxErrors = 3
	maxLogs   = 5
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys KeyMap
	help help.Model

	opportunities *components.OpportunitiesComponent
	executions    *components.ExecutionsComponent
	chains        *components.ChainsComponent
	stats         *components.StatsComponent

	phase        Phase
	welcomeStart time.Time
	startupTime  time.Time
	startupSteps map[string]*StartupStep
	stepOrder    []string
	onStart      func()

	ready      bool
	quitting   bool
	paused     bool
	skipped    int // opportunities dropped while paused
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry
	logs       []string

	now func() time.Time
}

// New creates a TUI model for the given chains. onStart, if set, runs in
// its own goroutine once the welcome screen is dismissed.
func New(chains []string, onStart func()) Model {
	now := time.Now()
	steps := map[string]*StartupStep{
		"config": {Name: "Loading configuration", Status: "pending"},
		"engine": {Name: "Starting engine", Status: "pending"},
	}
	order := []string{"config"}
	for _, c := range chains {
		steps[c] = &StartupStep{Name: "Connecting to " + c, Status: "pending"}
		order = append(order, c)
	}
	order = append(order, "engine")

	return Model{
		keys:          DefaultKeyMap(),
		help:          help.New(),
		opportunities: components.NewOpportunitiesComponent(50, 10),
		executions:    components.NewExecutionsComponent(6),
		chains:        components.NewChainsComponent(chains),
		stats:         components.NewStatsComponent(),
		phase:         PhaseWelcome,
		welcomeStart:  now,
		startupTime:   now,
		startupSteps:  steps,
		stepOrder:     order,
		onStart:       onStart,
		errors:        make([]ErrorEntry, 0, maxErrors),
		logs:          make([]string, 0, maxLogs),
		now:           time.Now,
	}
}

// Phase returns the current UI phase.
func (m Model) Phase() Phase { return m.phase }

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd drives animations and the welcome timeout.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) beginStartup() Model {
	m.phase = PhaseStartup
	m.startupTime = m.now()
	if m.onStart != nil {
		// Never call Send from inside Update.
		go m.onStart()
	}
	return m
}

func (m Model) maybeDashboard() Model {
	if m.phase != PhaseStartup {
		return m
	}
	for _, k := range m.stepOrder {
		if !m.startupSteps[k].settled() {
			return m
		}
	}
	m.phase = PhaseDashboard
	return m
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			return m.beginStartup(), nil
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.opportunities.Clear()
			m.executions.Clear()
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			if !m.paused {
				m.skipped = 0
			}
		case key.Matches(msg, m.keys.Up):
			m.opportunities.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.opportunities.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, maxErrors)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && m.now().Sub(m.welcomeStart) >= WelcomeDuration {
			m = m.beginStartup()
		}
		return m, tickCmd()

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m = m.addError(msg.Step + ": " + msg.Message)
		}
		m = m.maybeDashboard()

	case ChainHealthMsg:
		s := msg.Status
		m.chains.Update(components.ChainStatus{
			Name:      msg.Chain,
			Healthy:   s.IsHealthy,
			LatencyMs: s.LatencyMs,
			Block:     s.LastObservedBlock,
			GasGwei:   s.CurrentGasPrice,
			Endpoint:  s.ActiveEndpoint,
			LastError: s.LastError,
		})
		if step, ok := m.startupSteps[msg.Chain]; ok {
			if s.IsHealthy {
				step.Status = "connected"
			} else {
				step.Status = "failed"
			}
		}
		if !s.IsHealthy {
			m.logs = m.addLog("warn", msg.Chain+" unavailable")
		}
		m.lastUpdate = m.now()
		m = m.maybeDashboard()

	case OpportunityMsg:
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}
		if m.paused {
			m.skipped++
			break
		}
		m.opportunities.Add(opportunityRow(msg.Opportunity))
		m.lastUpdate = m.now()

	case ExecutionMsg:
		res := msg.Result
		m.executions.Add(executionRow(res))
		m.stats.RecordExecution(res.Outcome == domain.OutcomeCompleted)
		switch res.Outcome.Severity() {
		case "critical", "high":
			m = m.addError(fmt.Sprintf("%s %s: %s", res.OpportunityID, res.Outcome, res.ErrorMessage()))
		}
		m.lastUpdate = m.now()

	case StatsMsg:
		m.stats.Update(components.Stats{
			TotalOpportunities:  msg.TotalOpportunities,
			ActiveOpportunities: msg.ActiveOpportunities,
			ActiveExecutions:    msg.ActiveExecutions,
			AverageNetProfit:    msg.AverageNetProfit,
		})

	case ErrorMsg:
		if msg.Error != nil {
			m = m.addError(msg.Error.Error())
		}

	case LogMsg:
		m.logs = m.addLog(msg.Level, msg.Message)
	}

	return m, nil
}

func (m Model) addError(text string) Model {
	m.stats.RecordError()
	m.logs = m.addLog("error", text)
	m.errors = append(m.errors, ErrorEntry{Message: text, Timestamp: m.now()})
	if len(m.errors) > maxErrors {
		m.errors = m.errors[len(m.errors)-maxErrors:]
	}
	return m
}

// addLog appends a log line, keeping the last few.
func (m Model) addLog(level, message string) []string {
	line := fmt.Sprintf("[%s] %s: %s", m.now().Format("15:04:05"), level, message)
	logs := append(m.logs, LogLevelStyle(level).Render(line))
	if len(logs) > maxLogs {
		logs = logs[len(logs)-maxLogs:]
	}
	return logs
}

func opportunityRow(opp domain.Opportunity) components.OpportunityRow {
	return components.OpportunityRow{
		ID:         opp.ID,
		Time:       opp.CreatedAt.Format("15:04:05"),
		Token:      opp.TokenSymbol,
		Route:      opp.SourceChain + "->" + opp.TargetChain,
		Bridge:     opp.Bridge,
		Spread:     opp.SpreadPercent,
		NetProfit:  opp.Profit.NetProfit,
		Margin:     opp.Profit.MarginPercent,
		Risk:       opp.RiskScore,
		Complexity: string(opp.Complexity),
	}
}

func executionRow(res domain.ExecutionResult) components.ExecutionRow {
	row := components.ExecutionRow{
		Time:          res.StartedAt.Add(res.ExecutionTime).Format("15:04:05"),
		OpportunityID: res.OpportunityID,
		Outcome:       string(res.Outcome),
		Severity:      res.Outcome.Severity(),
	}
	if res.ActualProfit != nil {
		row.Profit = "$" + res.ActualProfit.StringFixed(2)
	}
	switch {
	case res.FailedPhase != domain.PhaseNone:
		row.Detail = fmt.Sprintf("%s on %s: %s", res.FailedPhase, res.FailedChain, res.ErrorMessage())
		if res.LastHandle != "" {
			row.Detail += " (last " + res.LastHandle + ")"
		}
	case res.LastHandle != "":
		row.Detail = "last " + res.LastHandle
	}
	return row
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Cross-Chain Arbitrage "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.chains.View() + "\n" + m.stats.View()
	rightCol := m.opportunities.View() + "\n\n" + m.executions.View()

	if m.width > 120 {
		left := BoxStyle.Width(m.width/3 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width*2/3 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		w := m.width - 4
		if w < 40 {
			w = 40
		}
		b.WriteString(BoxStyle.Width(w).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(w).Render(rightCol))
	}
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(ErrorHeaderStyle.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, e := range m.errors {
			ago := m.now().Sub(e.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", e.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		for _, l := range m.logs {
			b.WriteString("  " + l + "\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedStyle.Render(fmt.Sprintf("⏸ PAUSED (%d skipped)", m.skipped)))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := m.now().Sub(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██████╗██████╗  ██████╗ ███████╗███████╗
   ██╔════╝██╔══██╗██╔═══██╗██╔════╝██╔════╝
   ██║     ██████╔╝██║   ██║███████╗███████╗
   ██║     ██╔══██╗██║   ██║╚════██║╚════██║
   ╚██████╗██║  ██║╚██████╔╝███████║███████║
    ╚═════╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚══════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("        C H A I N   A R B I T R A G E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("     buy low here, bridge, sell high there"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("               Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("         Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Cross-Chain Arbitrage"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	spinners := []string{"◐", "◓", "◑", "◒"}
	for _, k := range m.stepOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			idx := int(m.now().Sub(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := m.now().Sub(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	healthy := m.chains.Healthy()
	chainStyle := StatusConnected
	switch {
	case healthy < 2:
		chainStyle = StatusDisconnected
	case healthy < len(m.stepOrder)-2:
		chainStyle = StatusReconnecting
	}
	parts = append(parts, chainStyle.Render(fmt.Sprintf("● %d/%d chains", healthy, len(m.stepOrder)-2)))

	st := m.stats.Stats()
	if st.ActiveExecutions > 0 {
		parts = append(parts, StatusReconnecting.Render(fmt.Sprintf("⟳ %d executing", st.ActiveExecutions)))
	}
	parts = append(parts, PositiveValue.Render(fmt.Sprintf("Opportunities: %d", m.opportunities.Len())))

	if !m.lastUpdate.IsZero() {
		ago := m.now().Sub(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Sender delivers messages to a running program.
type Sender interface {
	Send(msg tea.Msg)
}

// Program wraps the Bubble Tea program so other goroutines can send it
// messages.
type Program struct {
	p *tea.Program
}

// NewProgram creates a full-screen program for m.
func NewProgram(m Model, opts ...tea.ProgramOption) *Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Program{p: tea.NewProgram(m, opts...)}
}

// Run blocks until the program exits.
func (p *Program) Run() error {
	_, err := p.p.Run()
	return err
}

// Send sends a message to the running program. It is safe to call from
// any goroutine and blocks until the program starts.
func (p *Program) Send(msg tea.Msg) {
	p.p.Send(msg)
}

// Quit asks the program to exit.
func (p *Program) Quit() {
	p.p.Quit()
}

// LogEvents forwards warn and error log records to the TUI.
func LogEvents(s Sender) *logger.Events {
	forward := func(level string) logger.EventFunc {
		return func(_ context.Context, r logger.Record) {
			msg := r.Message
			if err, ok := r.Attrs["error"]; ok {
				msg = fmt.Sprintf("%s: %v", msg, err)
			}
			s.Send(LogMsg{Level: level, Message: msg})
		}
	}
	return &logger.Events{
		Warn:  forward("warn"),
		Error: forward("error"),
	}
}
