package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/farmboard/internal/catalog"
)

// Run shows the dashboard until the user quits or ctx is cancelled
func Run(ctx context.Context, board Board, cat *catalog.Catalog, updates <-chan *catalog.Catalog, refresh time.Duration) error {
	model := NewModel(ctx, board, cat, updates, refresh)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}
