package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netmhc/internal/listfile"
	"netmhc/internal/schema"
	"netmhc/internal/table"
)

// Colors
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	strongColor  = lipgloss.Color("#10B981") // Green
	weakColor    = lipgloss.Color("#F59E0B") // Amber
	surfaceColor = lipgloss.Color("#1F2937") // Dark gray
	textColor    = lipgloss.Color("#F3F4F6") // Light gray
	mutedColor   = lipgloss.Color("#9CA3AF") // Muted gray
	borderColor  = lipgloss.Color("#374151") // Border gray
)

// Styles
var (
	containerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(surfaceColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)

	sequenceStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(lipgloss.Color("#111827")).
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	strongStyle  = lipgloss.NewStyle().Foreground(strongColor).Bold(true)
	weakStyle    = lipgloss.NewStyle().Foreground(weakColor).Bold(true)
	noLevelStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// hitItem is one hit plus the table row it came from.
type hitItem struct {
	hit   table.Hit
	row   table.Row
	level string
}

func (i hitItem) FilterValue() string {
	return i.hit.Peptide + " " + i.hit.Allele
}

func (i hitItem) Title() string { return i.hit.Peptide }

func (i hitItem) Description() string {
	return fmt.Sprintf("%s    %s nM    %s", i.hit.Allele, i.hit.Affinity.Raw, levelStyle(i.level).Render(levelLabel(i.level)))
}

// bindLevel is the row's BindLevel token ("SB", "WB") or "" when absent.
func bindLevel(s schema.Schema, row table.Row) string {
	i := s.Index(schema.ColBindLevel)
	if i < 0 || i >= len(row) || row[i].Raw == table.NullMarker {
		return ""
	}
	return row[i].Raw
}

func levelLabel(l string) string {
	if l == "" {
		return "-"
	}
	return l
}

func levelStyle(l string) lipgloss.Style {
	switch l {
	case "SB":
		return strongStyle
	case "WB":
		return weakStyle
	}
	return noLevelStyle
}

type mode int

const (
	modeSummary mode = iota
	modeRow
	modeOrigin
)

func (m mode) String() string {
	switch m {
	case modeSummary:
		return "Summary"
	case modeRow:
		return "Row"
	case modeOrigin:
		return "Origin"
	default:
		return "Unknown"
	}
}

type model struct {
	list        list.Model
	table       *table.Table
	items       []hitItem
	threshold   float64
	currentMode mode
	showHelp    bool
	width       int
	height      int
}

// newModel lists the hits of t at or below threshold, strongest first.
func newModel(t *table.Table, threshold float64, full []string) model {
	hits := table.Hits(t, threshold, full)
	rows := hitRows(t, threshold)
	items := make([]hitItem, len(hits))
	for i := range hits {
		items[i] = hitItem{hit: hits[i], row: rows[i], level: bindLevel(t.Schema, rows[i])}
	}
	sort.SliceStable(items, func(a, b int) bool {
		x, _ := items[a].hit.Affinity.Number()
		y, _ := items[b].hit.Affinity.Number()
		return x < y
	})

	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = it
	}
	l := list.New(listItems, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("Hits ≤ %g nM", threshold)
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)

	return model{
		list:        l,
		table:       t,
		items:       items,
		threshold:   threshold,
		currentMode: modeSummary,
	}
}

// hitRows returns the rows Hits keeps, in the same order.
func hitRows(t *table.Table, threshold float64) []table.Row {
	if t == nil {
		return nil
	}
	idx := t.Schema.Index(t.Schema.AffinityColumn())
	var out []table.Row
	for _, row := range t.Rows {
		if aff, ok := row[idx].Number(); ok && aff <= threshold {
			out = append(out, row)
		}
	}
	return out
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) cycleMode() model {
	m.currentMode = (m.currentMode + 1) % 3
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetWidth(msg.Width / 3)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "h":
			m.showHelp = !m.showHelp
			return m, nil
		case "tab":
			return m.cycleMode(), nil
		case "1":
			m.currentMode = modeSummary
			return m, nil
		case "2":
			m.currentMode = modeRow
			return m, nil
		case "3":
			m.currentMode = modeOrigin
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpModal()
	}
	main := lipgloss.JoinHorizontal(lipgloss.Top, m.renderLeftPanel(), m.renderRightPanel())
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m model) renderLeftPanel() string {
	return containerStyle.
		Width(m.width/3 - 2).
		Height(m.height - 4).
		Render(m.list.View())
}

func (m model) renderRightPanel() string {
	panel := containerStyle.Width(m.width*2/3 - 2).Height(m.height - 4)
	if len(m.items) == 0 {
		return panel.Render(fmt.Sprintf("No hits at or below %g nM", m.threshold))
	}
	sel, ok := m.list.SelectedItem().(hitItem)
	if !ok {
		return panel.Render("No hit selected")
	}
	return panel.Render(strings.Join(m.buildRightLines(sel), "\n"))
}

// buildRightLines renders the detail of it for the current mode.
func (m model) buildRightLines(it hitItem) []string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s  %s", it.hit.Peptide, it.hit.Allele)),
		labelStyle.Render("Affinity: ") + it.hit.Affinity.Raw + " nM" +
			labelStyle.Render("    Score_BA: ") + it.hit.ScoreBA.Raw +
			labelStyle.Render("    Level: ") + levelStyle(it.level).Render(levelLabel(it.level)),
		"",
	}
	switch m.currentMode {
	case modeSummary:
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%d hits in a table of %d rows", len(m.items), m.table.Len())))
	case modeRow:
		for i, c := range m.table.Schema.Columns() {
			v := "-"
			if i < len(it.row) {
				v = it.row[i].Raw
			}
			lines = append(lines, labelStyle.Render(fmt.Sprintf("%-12s", c.Name))+v)
		}
	case modeOrigin:
		if !it.hit.Matched {
			lines = append(lines, labelStyle.Render("No full sequence contains this peptide"))
			break
		}
		w := m.width*2/3 - 6
		if w < 10 {
			w = 10
		}
		lines = append(lines, strings.Split(sequenceStyle.Width(w).Render(highlight(it.hit.FullSequence, it.hit.Peptide)), "\n")...)
	}
	return lines
}

// highlight marks the first occurrence of pep in seq.
func highlight(seq, pep string) string {
	i := strings.Index(seq, pep)
	if i < 0 || pep == "" {
		return seq
	}
	return seq[:i] + strongStyle.Render(pep) + seq[i+len(pep):]
}

func (m model) renderStatusBar() string {
	left := fmt.Sprintf("%d/%d hits", m.list.Index()+1, len(m.items))
	center := "Mode: " + m.currentMode.String()
	right := "Press 'h' for help • 'q' to quit"

	spacing := m.width - len(left) - len(center) - len(right) - 6
	var content string
	if spacing > 0 {
		ls := spacing / 2
		content = left + strings.Repeat(" ", ls) + center + strings.Repeat(" ", spacing-ls) + right
	} else {
		content = left + " | " + center
	}
	return statusBarStyle.Width(m.width).Render(content)
}

func (m model) renderHelpModal() string {
	helpContent := `Prediction Hits - Help

Navigation:
  ↑/↓, j/k     Navigate list
  /            Filter by peptide or allele

View Modes:
  1            Summary
  2            Full table row
  3            Originating sequence
  Tab          Next mode

General:
  h            Toggle this help
  q, Ctrl+C    Quit

Current Mode: ` + m.currentMode.String() + `
Hits: ` + fmt.Sprintf("%d", len(m.items)) + `
`
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Background(surfaceColor).
		Foreground(textColor).
		Width(60).
		Render(helpContent)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func main() {
	tablePath := flag.String("table", "", "persisted prediction table (CSV)")
	mhcFlag := flag.String("mhc", "I", "MHC class of the table: I or II")
	threshold := flag.Float64("threshold", 500, "affinity threshold in nM")
	fullFlag := flag.String("full", "", "file of full sequences, one per line, for hit origins")
	flag.Parse()

	if *tablePath == "" {
		fmt.Fprintln(os.Stderr, "-table is required")
		os.Exit(2)
	}
	class, err := schema.ParseClass(*mhcFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	t, ok, err := table.LoadFile(*tablePath, schema.For(class))
	if err != nil || !ok {
		fmt.Fprintf(os.Stderr, "cannot load %s: %v\n", *tablePath, err)
		os.Exit(1)
	}
	var full []string
	if *fullFlag != "" {
		if full, err = listfile.ReadFile(*fullFlag); err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", *fullFlag, err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(newModel(t, *threshold, full), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}
}
