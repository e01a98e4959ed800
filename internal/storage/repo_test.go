package storage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lachiem1/ioukeeper/internal/debts"
)

func strPtr(s string) *string { return &s }

func sampleDebts() []debts.DebtEntry {
	return []debts.DebtEntry{
		{
			ID: 3, SenderID: 7, ReceiverID: 9,
			SenderData: debts.Party{Name: "Me"}, ReceiverData: debts.Party{Name: "Alice"},
			Amount: 20, Description: "Gym", NextRecurrenceDate: strPtr("2024-01-01"), FrequencyInterval: "monthly",
		},
		{
			ID: 1, SenderID: 9, ReceiverID: 7,
			SenderData: debts.Party{Name: "Bob"}, ReceiverData: debts.Party{Name: "Me"},
			Amount: 12.5, Description: "Netflix",
		},
	}
}

func TestDebtsRepoSnapshotKeepsLoadOrder(t *testing.T) {
	repo := NewDebtsRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.ReplaceSnapshot(ctx, 7, KindLive, sampleDebts(), time.Now()))

	got, err := repo.List(ctx, 7, KindLive)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleDebts(), got); diff != "" {
		t.Fatalf("List() mismatch (-want +got):\n%s", diff)
	}

	// Snapshots are per user and kind.
	other, err := repo.List(ctx, 8, KindLive)
	require.NoError(t, err)
	assert.Empty(t, other)
	archived, err := repo.List(ctx, 7, KindArchive)
	require.NoError(t, err)
	assert.Empty(t, archived)

	require.NoError(t, repo.ReplaceSnapshot(ctx, 7, KindLive, sampleDebts()[1:], time.Now()))
	got, err = repo.List(ctx, 7, KindLive)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestDebtsRepoReplaceSnapshotsIsAllOrNothing(t *testing.T) {
	repo := NewDebtsRepo(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.ReplaceSnapshots(ctx, 7, map[Kind][]debts.DebtEntry{
		KindLive:    sampleDebts(),
		KindArchive: {{ID: 100, Description: "old archive"}},
	}, time.Now()))

	// Kinds are written in name order, so the archive is replaced before the
	// live list fails to encode.
	err := repo.ReplaceSnapshots(ctx, 7, map[Kind][]debts.DebtEntry{
		KindLive:    {sampleDebts()[1], {ID: 101, Amount: math.NaN()}},
		KindArchive: {{ID: 102, Description: "new archive"}},
	}, time.Now())
	require.Error(t, err)

	live, err := repo.List(ctx, 7, KindLive)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleDebts(), live); diff != "" {
		t.Fatalf("List(live) after failed replace (-want +got):\n%s", diff)
	}
	archived, err := repo.List(ctx, 7, KindArchive)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, int64(100), archived[0].ID)
}

func TestDebtsRepoUpsertAndDelete(t *testing.T) {
	repo := NewDebtsRepo(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.ReplaceSnapshot(ctx, 7, KindLive, sampleDebts(), time.Now()))

	updated := sampleDebts()[0]
	updated.NextRecurrenceDate = strPtr("2024-02-01")
	require.NoError(t, repo.Upsert(ctx, 7, KindLive, updated))
	require.NoError(t, repo.Upsert(ctx, 7, KindLive, debts.DebtEntry{ID: 50, Description: "new"}))

	got, err := repo.List(ctx, 7, KindLive)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 1, 50}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "2024-02-01", *got[0].NextRecurrenceDate)

	removed, err := repo.Delete(ctx, 7, KindLive, 3)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Delete(ctx, 7, KindLive, 3)
	require.NoError(t, err)
	assert.False(t, removed)

	has, err := repo.HasAny(ctx, 7)
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, repo.DeleteUser(ctx, 7))
	has, err = repo.HasAny(ctx, 7)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSyncStateRepoRecordsAttemptsAndErrors(t *testing.T) {
	repo := NewSyncStateRepo(openTestDB(t))
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "debts:7")
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordAttempt(ctx, "debts:7", first))
	require.NoError(t, repo.RecordSuccess(ctx, "debts:7", first))
	second := first.Add(time.Minute)
	require.NoError(t, repo.RecordError(ctx, "debts:7", second, errors.New("offline")))

	state, ok, err := repo.Get(ctx, "debts:7")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, state.LastSuccess)
	assert.True(t, state.LastSuccess.Equal(first))
	assert.True(t, state.LastAttempt.Equal(second))
	assert.Equal(t, "offline", state.LastErrorMsg)

	require.NoError(t, repo.Delete(ctx, "debts:7"))
	_, ok, err = repo.Get(ctx, "debts:7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppConfigSessionAndPrefs(t *testing.T) {
	repo := NewAppConfigRepo(openTestDB(t))
	ctx := context.Background()

	_, ok, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SaveSession(ctx, Session{UserID: 7, Name: "Ada"}))
	s, ok, err := repo.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Session{UserID: 7, Name: "Ada"}, s)

	require.NoError(t, repo.ClearSession(ctx))
	_, ok, err = repo.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	prefs, err := repo.LoadViewPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ViewPrefs{}, prefs)

	require.NoError(t, repo.SaveViewPrefs(ctx, ViewPrefs{Direction: debts.DirectionTo, Archive: true}))
	prefs, err = repo.LoadViewPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ViewPrefs{Direction: debts.DirectionTo, Archive: true}, prefs)

	require.NoError(t, repo.UpsertMany(ctx, map[string]string{keyViewDirection: "sideways"}))
	prefs, err = repo.LoadViewPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, debts.DirectionAll, prefs.Direction)
}
