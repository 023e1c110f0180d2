// Package tui provides a Bubble Tea TUI for viewing session artifacts.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/auditrail/internal/baseline"
	"github.com/fakeyudi/auditrail/internal/ledger"
	"github.com/fakeyudi/auditrail/internal/session"
	"github.com/fakeyudi/auditrail/internal/summary"
)

// Report bundles everything the viewer shows about one session directory.
type Report struct {
	Dir          string
	Meta         *session.Meta
	Summary      *summary.SessionSummary
	Signal       *summary.SignalSummary
	Entries      []ledger.Entry
	SkippedLines int
	Verify       ledger.VerifyResult
}

// LoadReport reads the artifacts of a session directory. Only the
// metadata file is required; everything else degrades to empty sections
// so partially-written sessions are still viewable.
func LoadReport(dir string) (*Report, error) {
	meta, err := session.LoadMeta(dir)
	if err != nil {
		return nil, err
	}
	r := &Report{Dir: dir, Meta: meta}

	ledgerPath := filepath.Join(dir, session.LedgerFile)
	r.Entries, r.SkippedLines, err = ledger.New(ledgerPath).Read()
	if err != nil {
		return nil, err
	}
	r.Verify = ledger.Verify(ledgerPath)

	if b, err := baseline.Load(filepath.Join(dir, session.BaselineFile)); err == nil {
		if sum, err := summary.Summarize(b, ledgerPath, meta.WorkDir); err == nil {
			r.Summary = sum
			sig := summary.Classify(sum, sum.TotalEvents)
			r.Signal = &sig
		}
	}
	return r, nil
}

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Active tab: bright, underlined
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	// Inactive tab: muted
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	// Separator between tabs
	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	// Section heading inside a tab
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	// Key=value label
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	kindCreateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindModifyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	kindDeleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	kindRenameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindRawStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	hashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	// Selected row in the Changes list
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabChanges
	tabRenames
	tabHotFiles
	tabMarks
	tabIntegrity
	tabTimeline
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Changes", "Renames", "Hot Files", "Marks", "Integrity", "Timeline",
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	report    *Report
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	// Changes tab: cursor position and expanded set
	changeCursor    int
	expandedChanges map[int]bool
}

// New creates a new TUI model for the given report.
func New(r *Report) Model {
	return Model{
		report:          r,
		sortAsc:         false,
		expandedChanges: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5", "6", "7":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				m.rebuildTimelineViewport()
			}
		case "up", "k":
			if m.activeTab == tabChanges && m.changeCursor > 0 {
				m.changeCursor--
				m.rebuildChangesViewport()
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabChanges && m.changeCursor < len(m.report.Entries)-1 {
				m.changeCursor++
				m.rebuildChangesViewport()
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabChanges && len(m.report.Entries) > 0 {
				if m.expandedChanges[m.changeCursor] {
					delete(m.expandedChanges, m.changeCursor)
				} else {
					m.expandedChanges[m.changeCursor] = true
				}
				m.rebuildChangesViewport()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	chain := "✓ chain intact"
	if !m.report.Verify.OK {
		chain = "✗ chain broken"
	}
	title := titleStyle.Width(m.width).Render("  auditrail  " + m.report.Meta.ID + "   " + chain)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-7 jump  q quit"
	if m.activeTab == tabTimeline {
		dir := "newest first"
		if m.sortAsc {
			dir = "oldest first"
		}
		hint += "  s sort (" + dir + ")"
	}
	if m.activeTab == tabChanges {
		hint += "  ↑/↓ select  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuildTimelineViewport() {
	m.viewports[tabTimeline].SetContent(m.renderTab(tabTimeline))
	m.viewports[tabTimeline].GotoTop()
}

func (m *Model) rebuildChangesViewport() {
	m.viewports[tabChanges].SetContent(m.renderTab(tabChanges))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabChanges:
		return m.renderChanges()
	case tabRenames:
		return m.renderRenames()
	case tabHotFiles:
		return m.renderHotFiles()
	case tabMarks:
		return m.renderMarks()
	case tabIntegrity:
		return m.renderIntegrity()
	case tabTimeline:
		return m.renderTimeline()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func opBadge(op ledger.Op) string {
	switch op {
	case ledger.OpCreate:
		return kindCreateStyle.Render(fmt.Sprintf("%-8s", "CREATE"))
	case ledger.OpModify:
		return kindModifyStyle.Render(fmt.Sprintf("%-8s", "MODIFY"))
	case ledger.OpDelete:
		return kindDeleteStyle.Render(fmt.Sprintf("%-8s", "DELETE"))
	case ledger.OpRename:
		return kindRenameStyle.Render(fmt.Sprintf("%-8s", "RENAME"))
	default:
		return kindRawStyle.Render(fmt.Sprintf("%-8s", "EVENT"))
	}
}

func (m *Model) renderSummary() string {
	var sb strings.Builder
	sb.WriteString(heading("Session"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-16s", label)) + "  " + value + "\n")
	}
	meta := m.report.Meta
	row("Work Dir:", meta.WorkDir)
	row("Started:", meta.StartTime.Format("2006-01-02 15:04:05 MST"))
	if meta.StopTime != nil {
		row("Stopped:", meta.StopTime.Format("2006-01-02 15:04:05 MST"))
		row("Duration:", meta.StopTime.Sub(meta.StartTime).Round(time.Second).String())
	} else {
		row("Stopped:", dimStyle.Render("(still recording)"))
	}
	if meta.Operator != "" {
		row("Operator:", meta.Operator)
	}

	if m.report.Summary == nil {
		sb.WriteString("\n" + dimStyle.Render("  (no baseline; summary unavailable)") + "\n")
		return sb.String()
	}
	s := m.report.Summary
	sig := m.report.Signal

	sb.WriteString(heading("Changes"))
	row("Added:", fmt.Sprintf("%d", s.FilesAdded))
	row("Modified:", fmt.Sprintf("%d", s.FilesModified))
	row("Deleted:", fmt.Sprintf("%d", s.FilesDeleted))
	row("Renamed:", fmt.Sprintf("%d", s.FilesRenamed))
	row("Total events:", fmt.Sprintf("%d", s.TotalEvents))

	if sig != nil {
		sb.WriteString(heading("Signal"))
		sev := string(sig.Severity)
		switch sig.Severity {
		case summary.SeverityHigh:
			sev = failStyle.Render(sev)
		case summary.SeverityNone:
			sev = dimStyle.Render(sev)
		}
		row("Severity:", sev)
		row("Affected kinds:", strings.Join(sig.AffectedKinds, ", "))
		row("Files affected:", fmt.Sprintf("%d", sig.TotalFilesAffected))
	}
	return sb.String()
}

func (m *Model) renderChanges() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Ledger (%d records)", len(m.report.Entries))))
	if len(m.report.Entries) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, e := range m.report.Entries {
		ts := timeStyle.Render(e.Timestamp.Format("15:04:05"))
		text := e.Path
		if e.Op == ledger.OpRename {
			text = e.OldPath + " → " + e.Path
		}
		if e.Op == ledger.OpRaw {
			text = e.EventType
		}

		toggle := dimStyle.Render("  ▶ ")
		if m.expandedChanges[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		line := fmt.Sprintf("%s%s  %s  %s", toggle, ts, opBadge(e.Op), text)
		if i == m.changeCursor {
			line = selectedRowStyle.Width(m.width - 2).Render(line)
		}
		sb.WriteString(line + "\n")

		if m.expandedChanges[i] {
			detail := func(label, value string) {
				if value != "" {
					sb.WriteString("        " + labelStyle.Render(fmt.Sprintf("%-10s", label)) + hashStyle.Render(value) + "\n")
				}
			}
			detail("hash:", e.NewHash)
			detail("was:", e.OldHash)
			detail("line:", e.LineHash)
			detail("prev:", e.PrevHash)
			if e.Op == ledger.OpRaw && len(e.Payload) > 0 {
				for k, v := range e.Payload {
					detail(k+":", fmt.Sprintf("%v", v))
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderRenames() string {
	var sb strings.Builder
	if m.report.Summary == nil {
		sb.WriteString(heading("Renames"))
		sb.WriteString(dimStyle.Render("  (summary unavailable)") + "\n")
		return sb.String()
	}
	rn := m.report.Summary.RenamedPaths
	sb.WriteString(heading(fmt.Sprintf("Renames (%d)", len(rn))))
	if len(rn) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, r := range rn {
		sb.WriteString(bullet(r.OldPath + " → " + r.NewPath))
		if r.NewHash != "" {
			sb.WriteString("      " + hashStyle.Render(r.NewHash) + "\n")
		}
	}
	return sb.String()
}

func (m *Model) renderHotFiles() string {
	var sb strings.Builder
	if m.report.Summary == nil {
		sb.WriteString(heading("Hot Files"))
		sb.WriteString(dimStyle.Render("  (summary unavailable)") + "\n")
		return sb.String()
	}
	hot := m.report.Summary.HotFiles
	sb.WriteString(heading(fmt.Sprintf("Hot Files (top %d)", len(hot))))
	if len(hot) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, h := range hot {
		num := dimStyle.Render(fmt.Sprintf("  %3d.", i+1))
		touches := timeStyle.Render(fmt.Sprintf("%3d×", h.TouchCount))
		sb.WriteString(num + "  " + touches + "  " + h.Path + "\n")
	}
	return sb.String()
}

func (m *Model) renderMarks() string {
	var sb strings.Builder
	var marks []ledger.Entry
	for _, e := range m.report.Entries {
		if e.Op == ledger.OpRaw && e.EventType == "note" {
			marks = append(marks, e)
		}
	}
	sb.WriteString(heading(fmt.Sprintf("Marks (%d)", len(marks))))
	if len(marks) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, e := range marks {
		ts := timeStyle.Render(e.Timestamp.Format("15:04:05"))
		text, _ := e.Payload["text"].(string)
		sb.WriteString(fmt.Sprintf("  %s  %s\n\n", ts, text))
	}
	return sb.String()
}

func (m *Model) renderIntegrity() string {
	var sb strings.Builder
	sb.WriteString(heading("Chain Integrity"))

	v := m.report.Verify
	if v.OK {
		sb.WriteString("  " + okStyle.Render("✓ intact") + fmt.Sprintf("  %d record(s) verified\n", v.RecordsChecked))
	} else {
		e := v.FirstError
		sb.WriteString("  " + failStyle.Render("✗ broken") + fmt.Sprintf("  failure at line %d: %s\n", e.LineNumber, e.Reason))
		if e.Expected != "" {
			sb.WriteString("    " + labelStyle.Render("expected:") + "  " + hashStyle.Render(e.Expected) + "\n")
		}
		if e.Computed != "" {
			sb.WriteString("    " + labelStyle.Render("computed:") + "  " + hashStyle.Render(e.Computed) + "\n")
		}
		sb.WriteString(fmt.Sprintf("    %d record(s) verified before the failure\n", v.RecordsChecked))
	}

	if m.report.SkippedLines > 0 {
		sb.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  %d unparseable line(s) skipped by the tolerant reader", m.report.SkippedLines)) + "\n")
	}
	if m.report.Summary != nil && m.report.Summary.LedgerHeadHash != "" {
		sb.WriteString(heading("Head"))
		sb.WriteString("  " + hashStyle.Render(m.report.Summary.LedgerHeadHash) + "\n")
	}
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder

	dir := "newest first"
	if m.sortAsc {
		dir = "oldest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	events := make([]ledger.Entry, len(m.report.Entries))
	copy(events, m.report.Entries)
	if m.sortAsc {
		sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	} else {
		sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.After(events[j].Timestamp) })
	}

	if len(events) == 0 {
		sb.WriteString(dimStyle.Render("  (no events in this session)") + "\n")
		return sb.String()
	}

	for _, e := range events {
		ts := timeStyle.Render(e.Timestamp.Format("15:04:05"))
		text := e.Path
		if e.Op == ledger.OpRename {
			text = e.OldPath + " → " + e.Path
		}
		if e.Op == ledger.OpRaw {
			text = e.EventType
			if note, ok := e.Payload["text"].(string); ok {
				text += ": " + note
			}
		}
		sb.WriteString(ts + "  " + opBadge(e.Op) + "  " + text + "\n\n")
	}
	return sb.String()
}

// Run starts the TUI for the given report.
func Run(r *Report) error {
	p := tea.NewProgram(New(r), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
