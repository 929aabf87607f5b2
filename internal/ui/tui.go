package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/output"
)

// TUIRenderer draws batch progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	tracker *tracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !output.IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tr := newTracker()
	model := newIndexModel(tr, cfg.ProjectDir)
	model.onInterrupt = cfg.OnInterrupt
	if cfg.NoColor || output.DetectNoColor() {
		model.styles = output.NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tr,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	// Inline rendering keeps the summary on screen after the program exits.
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.update(event)
	if r.program != nil {
		r.program.Send(refreshMsg{})
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.addError(event)
	if r.program != nil {
		r.program.Send(refreshMsg{})
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// Do not hang the process on an unresponsive terminal.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// kindRow is one line of the progress view.
type kindRow struct {
	label   string
	current int
	total   int
}

// tracker holds progress state shared between the renderer and the model.
type tracker struct {
	mu     sync.Mutex
	rows   []kindRow
	active int
	file   string
	errs   []ErrorEvent
}

func newTracker() *tracker {
	return &tracker{active: -1}
}

func (t *tracker) update(ev ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, row := range t.rows {
		if row.label == ev.Label {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.rows = append(t.rows, kindRow{label: ev.Label})
		idx = len(t.rows) - 1
	}
	t.rows[idx].current = ev.Current
	t.rows[idx].total = ev.Total
	t.active = idx
	t.file = ev.CurrentFile
}

func (t *tracker) addError(ev ErrorEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, ev)
}

type trackerSnapshot struct {
	rows   []kindRow
	active int
	file   string
	errs   []ErrorEvent
}

func (t *tracker) snapshot() trackerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return trackerSnapshot{
		rows:   append([]kindRow(nil), t.rows...),
		active: t.active,
		file:   t.file,
		errs:   append([]ErrorEvent(nil), t.errs...),
	}
}

// Message types for bubbletea
type refreshMsg struct{}
type completeMsg CompletionStats

// indexModel is the bubbletea model for batch progress.
type indexModel struct {
	tracker     *tracker
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	bar         progress.Model
	styles      output.Styles
	projectDir  string
	onInterrupt func()
}

func newIndexModel(tr *tracker, projectDir string) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorGreen))

	bar := progress.New(
		progress.WithSolidFill(output.ColorGreen),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &indexModel{
		tracker:    tr,
		width:      80,
		spinner:    s,
		bar:        bar,
		styles:     output.DefaultStyles(),
		projectDir: projectDir,
	}
}

// Init implements tea.Model.
func (m *indexModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-30, 20)

	case refreshMsg:
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *indexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	snap := m.tracker.snapshot()
	title := "artifact-index"
	if m.projectDir != "" {
		title += " • " + m.projectDir
	}

	lines := []string{m.styles.Header.Render(title)}
	for i, row := range snap.rows {
		lines = append(lines, m.renderRow(row, i, snap.active))
	}
	if len(snap.rows) == 0 {
		lines = append(lines, m.spinner.View()+" "+m.styles.Dim.Render("Discovering documents..."))
	}
	if snap.file != "" {
		lines = append(lines, m.styles.Dim.Render(truncateFilePath(snap.file, max(m.width-4, 20))))
	}
	lines = append(lines, m.renderStatusBar(len(snap.errs)))
	return strings.Join(lines, "\n") + "\n"
}

func (m *indexModel) renderRow(row kindRow, idx, active int) string {
	count := fmt.Sprintf("%d/%d", row.current, row.total)
	if idx != active {
		return m.styles.Success.Render("● "+row.label) + "  " + m.styles.Label.Render(count)
	}

	pct := 0.0
	if row.total > 0 {
		pct = float64(row.current) / float64(row.total)
	}
	return fmt.Sprintf("%s %s  %s  %s",
		m.spinner.View(),
		m.styles.Header.Render(row.label),
		m.bar.ViewAs(pct),
		m.styles.Label.Render(count))
}

func (m *indexModel) renderStatusBar(skipped int) string {
	hint := m.styles.Dim.Render("q to quit")
	if skipped == 0 {
		return hint
	}
	return m.styles.Warning.Render(fmt.Sprintf("⚠ %d skipped", skipped)) + m.styles.Dim.Render("  │  ") + hint
}

// renderComplete renders the summary left on screen after the run.
func (m *indexModel) renderComplete() string {
	var lines []string
	if m.stats.Err != nil {
		lines = append(lines, m.styles.Error.Render("✗ Indexing stopped: "+m.stats.Err.Error()))
	} else {
		lines = append(lines, m.styles.Success.Render("✓ Indexing complete"))
	}
	lines = append(lines, "")

	for _, k := range m.stats.Kinds {
		if k.Missing {
			lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("%s directory not found: %s", k.Title, k.Dir)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			m.styles.Label.Render(fmt.Sprintf("Indexed %d %s", k.Indexed, k.Noun)),
			m.styles.Dim.Render(fmt.Sprintf("(%d found)", k.Found))))
	}
	lines = append(lines, m.styles.Label.Render("Duration: "+formatDuration(m.stats.Duration)))

	if errs := m.tracker.snapshot().errs; len(errs) > 0 {
		lines = append(lines, "")
		for _, e := range errs {
			lines = append(lines, m.styles.Warning.Render("Skipped "+errors.Diagnostic(e.Err)))
		}
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(output.ColorDarkGray)).
		Padding(0, 1)
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}

// truncateFilePath shortens path from the left to fit maxLen, keeping the
// file name.
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	idx := strings.LastIndex(path, "/")
	filename := path[idx+1:]
	if len(filename)+4 > maxLen {
		if maxLen < 4 {
			return "..."
		}
		return "..." + filename[len(filename)-maxLen+3:]
	}

	prefix := path[:max(idx, 0)]
	remaining := maxLen - len(filename) - 4
	if remaining <= 0 {
		return ".../" + filename
	}
	return "..." + prefix[len(prefix)-remaining:] + "/" + filename
}

var _ Renderer = (*TUIRenderer)(nil)
