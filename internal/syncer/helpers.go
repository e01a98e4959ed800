package syncer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lachiem1/ioukeeper/internal/storage"
)

const debtsCollectionPrefix = "debts:"

// DebtsCollection names the synced debt lists of one user.
func DebtsCollection(userID int64) string {
	return debtsCollectionPrefix + strconv.FormatInt(userID, 10)
}

// ParseDebtsCollection returns the user id of a DebtsCollection name.
func ParseDebtsCollection(collection string) (int64, error) {
	raw, ok := strings.CutPrefix(collection, debtsCollectionPrefix)
	if !ok {
		return 0, fmt.Errorf("collection %q is not a debts collection", collection)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("collection %q: %w", collection, err)
	}
	return userID, nil
}

// runSyncAttempt wraps collection sync work with sync_state bookkeeping.
// The work function returns the timestamp that should be recorded as success.
func runSyncAttempt(
	ctx context.Context,
	syncState *storage.SyncStateRepo,
	collection string,
	work func(context.Context) (time.Time, error),
) error {
	attemptAt := time.Now().UTC()
	if err := syncState.RecordAttempt(ctx, collection, attemptAt); err != nil {
		return err
	}

	successAt, err := work(ctx)
	if err != nil {
		_ = syncState.RecordError(context.Background(), collection, time.Now().UTC(), err)
		return err
	}
	if successAt.IsZero() {
		successAt = time.Now().UTC()
	}
	return syncState.RecordSuccess(ctx, collection, successAt.UTC())
}
