// Package tui provides the live mission board dashboard
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tildaslashalef/farmboard/internal/catalog"
	"github.com/tildaslashalef/farmboard/internal/progress"
)

// Board is the part of the progress facade the dashboard reads
type Board interface {
	UserID() string
	MissionStatus(missionID string) progress.Status
	SubmissionCount(missionID string) int
	PendingCount() int
	Syncing() bool
	ManualSync(ctx context.Context) (bool, error)
}

// KeyMap defines the key bindings for the dashboard
type KeyMap struct {
	Help key.Binding
	Quit key.Binding
	Sync key.Binding
}

// ShortHelp returns keybindings to show in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sync, k.Help, k.Quit}
}

// FullHelp returns all keybindings for the help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Sync, k.Help, k.Quit}}
}

// DefaultKeyMap returns the default key map
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Sync: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sync now"),
		),
	}
}

type tickMsg time.Time

type catalogMsg struct{ catalog *catalog.Catalog }

type syncDoneMsg struct {
	online bool
	err    error
}

// Model is the dashboard state
type Model struct {
	ctx      context.Context
	board    Board
	catalog  *catalog.Catalog
	updates  <-chan *catalog.Catalog
	interval time.Duration

	keymap   KeyMap
	help     help.Model
	spinner  spinner.Model
	progress bprogress.Model
	styles   Styles

	width    int
	showHelp bool
	syncing  bool
	message  string
	errorMsg string
	now      func() time.Time
}

// NewModel creates the dashboard. updates may be nil when the catalog is
// not watched.
func NewModel(ctx context.Context, board Board, cat *catalog.Catalog, updates <-chan *catalog.Catalog, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	styles := DefaultStyles()
	s.Style = styles.Spinner

	if interval <= 0 {
		interval = 2 * time.Second
	}

	return Model{
		ctx:      ctx,
		board:    board,
		catalog:  cat,
		updates:  updates,
		interval: interval,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		progress: bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(40)),
		styles:   styles,
		now:      time.Now,
	}
}

// Init starts the refresh tick and the catalog listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick(), m.waitForCatalog())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitForCatalog() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		c, ok := <-updates
		if !ok {
			return nil
		}
		return catalogMsg{catalog: c}
	}
}

func (m Model) manualSync() tea.Cmd {
	return func() tea.Msg {
		online, err := m.board.ManualSync(m.ctx)
		return syncDoneMsg{online: online, err: err}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keymap.Sync):
			if m.syncing {
				return m, nil
			}
			m.syncing = true
			m.message = "Syncing pending progress..."
			m.errorMsg = ""
			return m, tea.Batch(m.spinner.Tick, m.manualSync())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case spinner.TickMsg:
		if m.syncing || m.board.Syncing() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case tickMsg:
		// the view reads the facade directly, a tick only forces a redraw
		cmds := []tea.Cmd{m.tick()}
		if m.board.Syncing() {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case catalogMsg:
		m.catalog = msg.catalog
		m.message = fmt.Sprintf("Catalog reloaded at %s", m.now().Format("15:04:05"))
		return m, m.waitForCatalog()

	case syncDoneMsg:
		m.syncing = false
		switch {
		case msg.err != nil:
			m.errorMsg = msg.err.Error()
			m.message = ""
		case !msg.online:
			m.message = "Remote store is offline, progress stays queued"
		case m.board.PendingCount() == 0:
			m.message = "Everything is synced"
		default:
			m.message = fmt.Sprintf("%d update(s) still pending", m.board.PendingCount())
		}
	}

	return m, nil
}

// completion returns completed and total mission counts
func (m Model) completion() (int, int) {
	if m.catalog == nil {
		return 0, 0
	}
	done := 0
	for _, n := range m.catalog.Networks {
		for _, mission := range n.Missions {
			if m.board.MissionStatus(mission.ID) == progress.StatusCompleted {
				done++
			}
		}
	}
	return done, m.catalog.MissionCount()
}

// View renders the UI
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("Farmboard"))
	sb.WriteString(" " + m.styles.Subtle.Render(m.board.UserID()))
	sb.WriteString("\n")

	if m.catalog != nil {
		for _, n := range m.catalog.Networks {
			sb.WriteString(m.styles.Network.Render(n.Label))
			sb.WriteString("\n")
			for _, mission := range n.Missions {
				status := m.board.MissionStatus(mission.ID)
				line := fmt.Sprintf(" %s %-24s %s", m.styles.statusGlyph(status), mission.ID, mission.Label)
				if count := m.board.SubmissionCount(mission.ID); count > 0 {
					line += m.styles.Subtle.Render(fmt.Sprintf(" (%d)", count))
				}
				sb.WriteString(line + "\n")
			}
		}
	}

	done, total := m.completion()
	ratio := 0.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	sb.WriteString("\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, m.progress.ViewAs(ratio), fmt.Sprintf("  %d/%d completed", done, total)))
	sb.WriteString("\n\n")

	var status string
	switch pending := m.board.PendingCount(); {
	case m.syncing || m.board.Syncing():
		status = m.spinner.View() + " syncing"
	case pending > 0:
		status = m.styles.Warning.Render(fmt.Sprintf("%d pending", pending))
	default:
		status = m.styles.Success.Render("synced")
	}
	sb.WriteString(m.styles.StatusBar.Render(status))

	if m.errorMsg != "" {
		sb.WriteString("\n" + m.styles.Error.Render("Error: "+m.errorMsg))
	} else if m.message != "" {
		sb.WriteString("\n" + m.styles.Info.Render(m.message))
	}

	if m.showHelp {
		sb.WriteString("\n\n" + m.help.View(m.keymap))
	} else {
		sb.WriteString("\n\n" + m.help.ShortHelpView(m.keymap.ShortHelp()))
	}

	return m.styles.Border.Render(sb.String())
}
