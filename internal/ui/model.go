package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
	"github.com/nao1215/magicscraper/internal/report"
)

const (
	maxBarWidth  = 80
	maxCellWidth = 40
	recentLimit  = 5
)

// EventMsg carries a pipeline progress event into the model.
type EventMsg pipeline.Event

// DoneMsg ends the run.
type DoneMsg struct {
	Batch *model.Batch
	Err   error
}

type tickMsg time.Time

// Model is the bubbletea model of a scraping run.
type Model struct {
	progress progress.Model

	modelName string
	price     float64
	fields    []string

	total     int
	processed int
	status    string
	tokens    int
	recent    []string

	started time.Time
	now     time.Time

	cancel     context.CancelFunc
	cancelling bool

	done  bool
	batch *model.Batch
	err   error
}

// NewModel creates the model for a run over total URLs. cancel is called
// when the user quits before the run is over.
func NewModel(modelName string, pricePerMillion float64, fields []string, total int, cancel context.CancelFunc) Model {
	now := time.Now()
	return Model{
		progress:  progress.New(progress.WithDefaultGradient()),
		modelName: modelName,
		price:     pricePerMillion,
		fields:    fields,
		total:     total,
		status:    "Waiting to start",
		started:   now,
		now:       now,
		cancel:    cancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the elapsed-time ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles progress events, key presses and resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.status = "Cancelling, waiting for the current URL to stop..."
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width > 4 {
			m.progress.Width = min(msg.Width-4, maxBarWidth)
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()

	case EventMsg:
		return m.handleEvent(pipeline.Event(msg)), nil

	case DoneMsg:
		m.done = true
		m.batch = msg.Batch
		m.err = msg.Err
		m.now = time.Now()
		if m.batch != nil {
			m.processed = len(m.batch.Results)
			m.tokens = m.batch.TotalTokens()
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleEvent(e pipeline.Event) Model {
	m.total = e.Total
	m.processed = e.Processed
	m.tokens = e.TotalTokens

	switch e.Kind {
	case pipeline.EventStarted:
		if !m.cancelling {
			m.status = e.Status()
		}
	case pipeline.EventCompleted:
		if e.Result != nil {
			line := fmt.Sprintf("[%s] %s (%d tokens)", e.Result.Status(), e.URL, e.Result.TokensUsed)
			m.recent = append(m.recent, line)
			if len(m.recent) > recentLimit {
				m.recent = m.recent[len(m.recent)-recentLimit:]
			}
		}
	}
	return m
}

// Done reports whether the run is over.
func (m Model) Done() bool {
	return m.done
}

// Percent returns the progress as a fraction between 0 and 1.
func (m Model) Percent() float64 {
	return float64(model.ProgressPercent(m.processed, m.total)) / 100
}

// View renders the model.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Magic Scraper"))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(fmt.Sprintf("Model: %s (%s / 1M tokens)", m.modelName, report.Cost(m.price))))
	sb.WriteString("\n\n")

	sb.WriteString(m.progress.ViewAs(m.Percent()))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Processed %d of %d URLs", m.processed, m.total))
	sb.WriteString("\n")
	if !m.done {
		sb.WriteString(infoStyle.Render(m.status))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	cost := model.EstimateCost(m.tokens, m.price)
	sb.WriteString(labelStyle.Render("Tokens used: "))
	sb.WriteString(valueStyle.Render(fmt.Sprintf("%d (%s)", m.tokens, report.Cost(cost))))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Elapsed:     "))
	sb.WriteString(valueStyle.Render(fmt.Sprintf("%.2f minutes", m.now.Sub(m.started).Minutes())))
	sb.WriteString("\n")

	if !m.done {
		if len(m.recent) > 0 {
			sb.WriteString("\n")
			for _, line := range m.recent {
				sb.WriteString(infoStyle.Render("• " + line))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
		sb.WriteString(helpStyle.Render("press q to cancel"))
		sb.WriteString("\n")
		return sb.String()
	}

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(warningStyle.Render("Run stopped: " + m.err.Error()))
		sb.WriteString("\n")
	}
	if m.batch != nil && len(m.batch.Results) > 0 {
		sb.WriteString("\n")
		sb.WriteString(resultsTable(m.batch))
		sb.WriteString("\n\n")
		sb.WriteString(fillRateTable(m.batch))
		sb.WriteString("\n")
	} else if m.err == nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("No URLs were processed."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle)
}

// resultsTable renders the result table of a finished batch.
func resultsTable(batch *model.Batch) string {
	headers := []string{"URL"}
	for _, f := range batch.Fields {
		headers = append(headers, report.FieldLabel(f))
	}

	rows := report.Rows(batch)
	for _, row := range rows {
		for i := range row {
			row[i] = shorten(row[i], maxCellWidth)
		}
	}

	return newTable().Headers(headers...).Rows(rows...).String()
}

// fillRateTable renders the per-field and overall fill rates.
func fillRateTable(batch *model.Batch) string {
	rates := batch.FillRates()
	rows := make([][]string, 0, len(rates)+1)
	for _, r := range rates {
		rows = append(rows, []string{report.FieldLabel(r.Field), fmt.Sprintf("%d/%d", r.Filled, r.Total), report.Percent(r.Percent)})
	}
	rows = append(rows, []string{"Overall", "", report.Percent(batch.OverallFillRate())})

	return newTable().Headers("Field", "Filled", "Fill Rate").Rows(rows...).String()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
