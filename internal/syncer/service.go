package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/lachiem1/ioukeeper/internal/storage"
)

// Service wires per-user debt syncers into one engine.
type Service struct {
	engine    *Engine
	client    DebtsFetcher
	debts     *storage.DebtsRepo
	syncState *storage.SyncStateRepo
}

func NewService(engine *Engine, client DebtsFetcher, debtsRepo *storage.DebtsRepo, syncState *storage.SyncStateRepo) *Service {
	return &Service{engine: engine, client: client, debts: debtsRepo, syncState: syncState}
}

// EnterDebtsView starts keeping userID's lists fresh, replacing whichever
// view was active.
func (s *Service) EnterDebtsView(ctx context.Context, userID int64) error {
	if userID == 0 {
		return errors.New("enter debts view: no user")
	}
	collection := DebtsCollection(userID)
	if _, err := s.engine.RegisterIfAbsent(NewDebtsSyncer(s.client, s.debts, s.syncState, userID)); err != nil {
		return fmt.Errorf("register debts syncer: %w", err)
	}
	return s.engine.EnterView(ctx, collection)
}

func (s *Service) LeaveView() {
	s.engine.LeaveView()
}

func (s *Service) RefreshDebts(userID int64) error {
	return s.engine.ManualRefresh(DebtsCollection(userID))
}

// ActiveUser returns the user whose view is open, or 0.
func (s *Service) ActiveUser() int64 {
	userID, err := ParseDebtsCollection(s.engine.ActiveCollection())
	if err != nil {
		return 0
	}
	return userID
}
