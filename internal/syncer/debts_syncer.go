package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/lachiem1/ioukeeper/internal/debts"
	"github.com/lachiem1/ioukeeper/internal/storage"
)

// DebtsFetcher is the part of the backend client the syncer reads from.
type DebtsFetcher interface {
	GetDebtList(ctx context.Context, userID int64) ([]debts.DebtEntry, error)
	GetArchiveList(ctx context.Context, userID int64) ([]debts.DebtEntry, error)
}

// DebtsSyncer mirrors one user's live and archived lists into the cache.
type DebtsSyncer struct {
	client    DebtsFetcher
	debts     *storage.DebtsRepo
	syncState *storage.SyncStateRepo
	userID    int64
}

func NewDebtsSyncer(
	client DebtsFetcher,
	debtsRepo *storage.DebtsRepo,
	syncState *storage.SyncStateRepo,
	userID int64,
) *DebtsSyncer {
	return &DebtsSyncer{
		client:    client,
		debts:     debtsRepo,
		syncState: syncState,
		userID:    userID,
	}
}

func (s *DebtsSyncer) Collection() string {
	return DebtsCollection(s.userID)
}

func (s *DebtsSyncer) HasCachedData(ctx context.Context) (bool, error) {
	return s.debts.HasAny(ctx, s.userID)
}

func (s *DebtsSyncer) LastSuccessAt(ctx context.Context) (time.Time, bool, error) {
	state, ok, err := s.syncState.Get(ctx, s.Collection())
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok || state.LastSuccess == nil {
		return time.Time{}, false, nil
	}
	return state.LastSuccess.UTC(), true, nil
}

// Sync fetches both lists concurrently and replaces both snapshots in one
// transaction. Any failure leaves the cache untouched.
func (s *DebtsSyncer) Sync(ctx context.Context) error {
	return runSyncAttempt(ctx, s.syncState, s.Collection(), func(runCtx context.Context) (time.Time, error) {
		kinds := []storage.Kind{storage.KindLive, storage.KindArchive}
		lists, err := fetchAllByKey(runCtx, kinds, len(kinds), s.fetchList)
		if err != nil {
			return time.Time{}, err
		}

		fetchedAt := time.Now().UTC()
		if err := s.debts.ReplaceSnapshots(runCtx, s.userID, lists, fetchedAt); err != nil {
			return time.Time{}, err
		}
		return fetchedAt, nil
	})
}

func (s *DebtsSyncer) fetchList(ctx context.Context, kind storage.Kind) ([]debts.DebtEntry, error) {
	var (
		list []debts.DebtEntry
		err  error
	)
	switch kind {
	case storage.KindArchive:
		list, err = s.client.GetArchiveList(ctx, s.userID)
	default:
		list, err = s.client.GetDebtList(ctx, s.userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s debts for user %d: %w", kind, s.userID, err)
	}
	return list, nil
}
