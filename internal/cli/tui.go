package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/netplace/pkg/observability"
	"github.com/matzehuels/netplace/pkg/pipeline"
)

// =============================================================================
// Messages
// =============================================================================

type stageStartMsg struct {
	stage string
}

type stageDoneMsg struct {
	stage         string
	before, after float64
	duration      time.Duration
	err           error
}

type roundMsg struct {
	stage string
	round int
	hpwl  float64
}

type placeDoneMsg struct {
	result *pipeline.Result
	err    error
}

type tickMsg time.Time

// =============================================================================
// PlaceModel - Live placement progress
// =============================================================================

// stage status values shown in the progress table.
const (
	statusPending = "pending"
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

type stageRow struct {
	name     string
	status   string
	round    int
	before   float64
	hpwl     float64
	duration time.Duration
}

// PlaceModel is the bubbletea model for the place --tui progress view.
type PlaceModel struct {
	Title  string
	Rows   []stageRow
	Result *pipeline.Result
	Err    error

	start  time.Time
	now    time.Time
	cancel context.CancelFunc
	done   bool
}

// NewPlaceModel creates a progress model for the given stage sequence.
// cancel is called when the user quits.
func NewPlaceModel(title string, stages []string, cancel context.CancelFunc) PlaceModel {
	rows := make([]stageRow, len(stages))
	for i, s := range stages {
		rows[i] = stageRow{name: s, status: statusPending}
	}
	now := time.Now()
	return PlaceModel{Title: title, Rows: rows, start: now, now: now, cancel: cancel}
}

func (m PlaceModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// row returns the first row for stage that is not finished. A stage may
// appear more than once in a sequence.
func (m *PlaceModel) row(stage string) *stageRow {
	for i := range m.Rows {
		r := &m.Rows[i]
		if r.name == stage && (r.status == statusPending || r.status == statusRunning) {
			return r
		}
	}
	return nil
}

func (m PlaceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()
	case stageStartMsg:
		if r := m.row(msg.stage); r != nil {
			r.status = statusRunning
		}
	case roundMsg:
		if r := m.row(msg.stage); r != nil {
			r.status = statusRunning
			r.round = msg.round
			r.hpwl = msg.hpwl
		}
	case stageDoneMsg:
		if r := m.row(msg.stage); r != nil {
			r.status = statusDone
			if msg.err != nil {
				r.status = statusFailed
			}
			r.before, r.hpwl, r.duration = msg.before, msg.after, msg.duration
		}
	case placeDoneMsg:
		m.Result, m.Err, m.done = msg.result, msg.err, true
		return m, tea.Quit
	}
	return m, nil
}

func (m PlaceModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("elapsed %s  q quit", m.now.Sub(m.start).Round(100*time.Millisecond))))
	b.WriteString("\n\n")

	t := newTable("Stage", "Status", "Round", "HPWL", "Time")
	for _, r := range m.Rows {
		round, hpwl, dur := "", "", ""
		if r.round > 0 {
			round = fmt.Sprint(r.round)
		}
		if r.status != statusPending && (r.hpwl > 0 || r.status == statusDone) {
			hpwl = formatHPWL(r.hpwl)
		}
		if r.duration > 0 {
			dur = r.duration.Round(time.Millisecond).String()
		}
		t.Row(r.name, statusText(r.status), round, hpwl, dur)
	}
	b.WriteString(t.Render())
	b.WriteString("\n")

	if m.done {
		b.WriteString("\n")
		if m.Err != nil {
			b.WriteString(styleIconError.Render(iconError) + " " + m.Err.Error())
		} else if m.Result != nil {
			b.WriteString(styleIconSuccess.Render(iconSuccess) + " " +
				fmt.Sprintf("HPWL %s → %s", formatHPWL(m.Result.Before), formatHPWL(m.Result.After)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func statusText(status string) string {
	var s lipgloss.Style
	switch status {
	case statusRunning:
		s = styleIconSpinner
	case statusDone:
		s = StyleSuccess
	case statusFailed:
		s = styleIconError
	default:
		s = StyleDim
	}
	return s.Render(status)
}

// =============================================================================
// Program Wiring
// =============================================================================

// programHooks forwards pipeline stage events to a running program.
type programHooks struct {
	observability.NoopPipelineHooks
	p *tea.Program
}

func (h programHooks) OnStageStart(_ context.Context, stage string, _ int) {
	h.p.Send(stageStartMsg{stage: stage})
}

func (h programHooks) OnStageComplete(_ context.Context, stage string, before, after float64, d time.Duration, err error) {
	h.p.Send(stageDoneMsg{stage: stage, before: before, after: after, duration: d, err: err})
}

// roundThrottle forwards round progress to a program at most once per
// interval per stage, so fast placers do not flood the event loop.
type roundThrottle struct {
	p        *tea.Program
	interval time.Duration

	mu    sync.Mutex
	stage string
	last  time.Time
}

func (t *roundThrottle) send(stage string, round int, hpwl float64) {
	t.mu.Lock()
	now := time.Now()
	if stage == t.stage && now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return
	}
	t.stage, t.last = stage, now
	t.mu.Unlock()
	t.p.Send(roundMsg{stage: stage, round: round, hpwl: hpwl})
}
