package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/dealfeed/internal/model"
)

// App is the root Bubble Tea model.
// App does not talk to the service directly; it receives feeds via messages.
type App struct {
	loadFeed func() tea.Cmd
	rebuild  func() tea.Cmd
	interval time.Duration
	now      func() time.Time

	feed    model.Feed
	stale   bool
	cursor  int
	err     error
	width   int
	height  int
	ready   bool
	loading string // "", "Loading" or "Rebuilding"
	spinner spinner.Model
}

// NewApp creates an App.
// loadFeed: returns a Cmd that fetches the current feed
// rebuild: returns a Cmd that triggers a rebuild
// interval: poll period; 0 disables polling
func NewApp(loadFeed, rebuild func() tea.Cmd, interval time.Duration) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return App{
		loadFeed: loadFeed,
		rebuild:  rebuild,
		interval: interval,
		now:      time.Now,
		spinner:  s,
	}
}

// Init loads the feed and starts polling.
func (a App) Init() tea.Cmd {
	var cmds []tea.Cmd
	if a.loadFeed != nil {
		cmds = append(cmds, a.loadFeed(), a.spinner.Tick)
	}
	if tick := a.tick(); tick != nil {
		cmds = append(cmds, tick)
	}
	return tea.Batch(cmds...)
}

func (a App) tick() tea.Cmd {
	if a.interval <= 0 {
		return nil
	}
	return tea.Tick(a.interval, func(time.Time) tea.Msg { return RefreshTick{} })
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case FeedLoaded:
		a.loading = ""
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.feed = msg.Feed
		a.stale = msg.Stale
		a.err = nil
		if a.cursor >= len(a.feed.Items) {
			a.cursor = max(len(a.feed.Items)-1, 0)
		}
		return a, nil

	case RefreshTick:
		cmds := []tea.Cmd{a.tick()}
		if a.loadFeed != nil && a.loading == "" {
			cmds = append(cmds, a.loadFeed())
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.err = nil

	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "j", "down":
		if a.cursor < len(a.feed.Items)-1 {
			a.cursor++
		}

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}

	case "g", "home":
		a.cursor = 0

	case "G", "end":
		if len(a.feed.Items) > 0 {
			a.cursor = len(a.feed.Items) - 1
		}

	case "r":
		if a.rebuild != nil && a.loading == "" {
			a.loading = "Rebuilding"
			return a, tea.Batch(a.rebuild(), a.spinner.Tick)
		}
	}

	return a, nil
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	header := Header.Render(a.headerText())
	if a.stale {
		header += StaleBadge.Render("stale")
	}

	// Header and status bar take one line each.
	listHeight := a.height - 2
	errorBar := ""
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()) + "\n"
		listHeight--
	}

	loading := ""
	if a.loading != "" {
		loading = a.spinner.View() + " " + a.loading
	}

	return header + "\n" +
		RenderFeed(a.feed.Items, a.cursor, a.width, listHeight) +
		errorBar +
		RenderStatusBar(a.cursor, len(a.feed.Items), a.width, loading)
}

func (a App) headerText() string {
	if a.feed.BuiltAt.IsZero() {
		return "DEALFEED · waiting for first build"
	}
	return fmt.Sprintf("DEALFEED · %d deals · built %s", len(a.feed.Items), humanize.RelTime(a.feed.BuiltAt, a.now(), "ago", "from now"))
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Feed returns the displayed feed (for testing).
func (a App) Feed() model.Feed {
	return a.feed
}
