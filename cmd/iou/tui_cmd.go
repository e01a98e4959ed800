package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lachiem1/ioukeeper/internal/syncer"
	"github.com/lachiem1/ioukeeper/internal/tui"
)

const syncEventBuffer = 16

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	events := make(chan syncer.Event, syncEventBuffer)
	svc, err := syncer.NewDebtsService(a.db, a.client, cfg.Sync.StaleTTL, cfg.Sync.PollInterval, func(evt syncer.Event) {
		select {
		case events <- evt:
		default:
			logger.Debug("sync event dropped", zap.String("collection", evt.Collection), zap.String("type", string(evt.Type)))
		}
	})
	if err != nil {
		return fmt.Errorf("start sync engine: %w", err)
	}
	defer svc.LeaveView()

	model := tui.New(tui.Options{
		Debts:     a.debts,
		Prefs:     a.prefs,
		SyncState: a.syncState,
		Backend:   a.client,
		Sync:      svc,
		Events:    events,
		Account:   newAccount(a, openBrowser),
		Logger:    logger.Named("tui"),
	})

	logger.Info("tui starting")
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
