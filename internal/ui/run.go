package ui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
)

// Work runs a batch and reports progress through onEvent.
type Work func(ctx context.Context, onEvent func(pipeline.Event)) (*model.Batch, error)

// RunConfig describes the run shown by Run.
type RunConfig struct {
	Model           string
	PricePerMillion float64
	Fields          []string
	Total           int
	Input           io.Reader
	Output          io.Writer
}

// Run executes work behind the terminal UI and returns its outcome.
// Quitting the UI cancels work; Run always waits for work to return.
func Run(ctx context.Context, cfg RunConfig, work Work) (*model.Batch, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []tea.ProgramOption{}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	p := tea.NewProgram(NewModel(cfg.Model, cfg.PricePerMillion, cfg.Fields, cfg.Total, cancel), opts...)

	done := make(chan DoneMsg, 1)
	go func() {
		batch, err := work(ctx, func(e pipeline.Event) {
			p.Send(EventMsg(e))
		})
		msg := DoneMsg{Batch: batch, Err: err}
		done <- msg
		p.Send(msg)
	}()

	_, uiErr := p.Run()
	cancel()
	result := <-done

	if result.Err != nil {
		return result.Batch, result.Err
	}
	return result.Batch, uiErr
}
