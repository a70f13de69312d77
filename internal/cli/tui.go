package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadiqj/opamsnap/pkg/progress"
)

// tickMsg drives the periodic counter refresh.
type tickMsg time.Time

// runDoneMsg reports that the pipeline goroutine finished.
type runDoneMsg struct{}

// progressModel is the bubbletea model showing live harvest counters while
// a run is in flight. It polls the snapshot function rather than receiving
// events, so the pipeline stays unaware of the UI.
type progressModel struct {
	snapshot func() progress.Snapshot
	done     <-chan struct{}
	start    time.Time
	current  progress.Snapshot
	finished bool
	aborted  bool
}

func newProgressModel(snapshot func() progress.Snapshot, done <-chan struct{}) progressModel {
	return progressModel{
		snapshot: snapshot,
		done:     done,
		start:    time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitDone())
}

func (m progressModel) tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m progressModel) waitDone() tea.Cmd {
	return func() tea.Msg {
		<-m.done
		return runDoneMsg{}
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	case tickMsg:
		m.current = m.snapshot()
		return m, m.tick()
	case runDoneMsg:
		m.current = m.snapshot()
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}
	s := m.current

	var b strings.Builder
	b.WriteString(styleTitle.Render("Harvesting opam packages"))
	b.WriteString(" ")
	b.WriteString(styleDim.Render(time.Since(m.start).Round(time.Second).String()))
	b.WriteString("\n\n")

	b.WriteString(renderBar(s))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s %s   %s %s   %s %s   %s %s\n",
		styleDim.Render("resolved"), styleNumber.Render(fmt.Sprintf("%d", s.Resolved)),
		styleDim.Render("skipped"), styleNumber.Render(fmt.Sprintf("%d", s.Skipped)),
		styleDim.Render("failed"), styleWarning.Render(fmt.Sprintf("%d", s.Failed)),
		styleDim.Render("remaining"), styleValue.Render(fmt.Sprintf("%d", s.Remaining())),
	))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("  q abort"))
	b.WriteString("\n")
	return b.String()
}

// renderBar draws a fixed-width completion bar from the counters.
func renderBar(s progress.Snapshot) string {
	const width = 40
	if s.Discovered == 0 {
		return "  " + styleDim.Render(strings.Repeat("░", width))
	}
	completed := s.Resolved + s.Skipped + s.Failed
	filled := int(float64(width) * float64(completed) / float64(s.Discovered))
	if filled > width {
		filled = width
	}
	bar := styleSuccess.Render(strings.Repeat("█", filled)) + styleDim.Render(strings.Repeat("░", width-filled))
	pct := 100 * completed / s.Discovered
	return fmt.Sprintf("  %s %s", bar, styleNumber.Render(fmt.Sprintf("%3d%%", pct)))
}
