package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lachiem1/ioukeeper/internal/debts"
	"github.com/lachiem1/ioukeeper/internal/storage"
	"github.com/lachiem1/ioukeeper/internal/syncer"
)

const viewer int64 = 7

func strPtr(s string) *string { return &s }

func sampleEntries() []debts.DebtEntry {
	return []debts.DebtEntry{
		{
			ID: 1, SenderID: viewer, ReceiverID: 9,
			SenderData: debts.Party{Name: "Me"}, ReceiverData: debts.Party{Name: "Alice"},
			Amount: 20, Description: "Rent", NextRecurrenceDate: strPtr("2024-02-01"),
		},
		{
			ID: 2, SenderID: 9, ReceiverID: viewer,
			SenderData: debts.Party{Name: "Bob"}, ReceiverData: debts.Party{Name: "Me"},
			Amount: 12.5, Description: "Netflix", NextRecurrenceDate: strPtr("2024-01-01"),
			FrequencyInterval: "monthly",
		},
		{
			ID: 3, SenderID: 11, ReceiverID: viewer,
			SenderData: debts.Party{Name: "Carol"}, ReceiverData: debts.Party{Name: "Me"},
			Amount: 300, Description: "Car repair",
		},
	}
}

type fakeBackend struct {
	mu             sync.Mutex
	completeResult *debts.DebtEntry
	completeErr    error
	archiveErr     error
	completed      []debts.CompletionRequest
	archived       []debts.ArchivalRequest
}

func (f *fakeBackend) CompleteDebt(_ context.Context, req debts.CompletionRequest) (*debts.DebtEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, req)
	return f.completeResult, f.completeErr
}

func (f *fakeBackend) SendToArchive(_ context.Context, req debts.ArchivalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, req)
	return f.archiveErr
}

type fakeSync struct {
	mu        sync.Mutex
	entered   []int64
	refreshed []int64
	leaves    int
	calls     []string
	enterErr  error
}

func (f *fakeSync) EnterDebtsView(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = append(f.entered, userID)
	f.calls = append(f.calls, fmt.Sprintf("enter:%d", userID))
	return f.enterErr
}

func (f *fakeSync) RefreshDebts(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, userID)
	return nil
}

func (f *fakeSync) LeaveView() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	f.calls = append(f.calls, "leave")
}

type fakeAccount struct {
	session storage.Session
	err     error
}

func (f fakeAccount) SignIn(context.Context) (storage.Session, error) { return f.session, f.err }
func (f fakeAccount) SignOut(context.Context) error                   { return nil }

type harness struct {
	backend *fakeBackend
	sync    *fakeSync
	repo    *storage.DebtsRepo
	prefs   *storage.AppConfigRepo
}

func newHarness(t *testing.T) (model, *harness) {
	t.Helper()
	db, err := storage.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		backend: &fakeBackend{},
		sync:    &fakeSync{},
		repo:    storage.NewDebtsRepo(db),
		prefs:   storage.NewAppConfigRepo(db),
	}
	m := newModel(Options{
		Debts:     h.repo,
		Prefs:     h.prefs,
		SyncState: storage.NewSyncStateRepo(db),
		Backend:   h.backend,
		Sync:      h.sync,
		Account:   fakeAccount{session: storage.Session{UserID: 9, Name: "Bob"}},
	})
	m.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local) }
	m.width, m.height = 120, 40
	m.session = storage.Session{UserID: viewer, Name: "Me"}
	return m, h
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func press(t *testing.T, m model, keys ...string) (model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, key := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(key))
		m = next.(model)
	}
	return m, cmd
}

func send(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

// runCmd executes cmd and any batched children, returning their messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// openLoadedBills enters the bills page and delivers a cached snapshot.
func openLoadedBills(t *testing.T, m model) model {
	t.Helper()
	m, _ = press(t, m, "2")
	require.Equal(t, screenBills, m.screen)
	m, _ = send(t, m, billsLoadedMsg{
		userID:  viewer,
		session: m.bills.session,
		live:    sampleEntries(),
		cached:  true,
	})
	require.False(t, m.bills.loading)
	return m
}

func rowIDs(m model) []int64 {
	rows := m.billsRows()
	out := make([]int64, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.ID)
	}
	return out
}

func TestEnterBillsStartsLoadingAndSync(t *testing.T) {
	m, h := newHarness(t)

	m, cmd := press(t, m, "2")
	require.NotNil(t, cmd)
	assert.True(t, m.bills.loading)
	assert.Equal(t, 1, m.bills.session)

	assert.Equal(t, []int64{viewer}, h.sync.entered)
	assert.Contains(t, m.View(), "Loading table...")
}

func TestBillsLoadDropsStaleResponses(t *testing.T) {
	m, _ := newHarness(t)
	m, _ = press(t, m, "2")

	m, _ = send(t, m, billsLoadedMsg{userID: viewer, session: m.bills.session - 1, live: sampleEntries(), cached: true})
	assert.True(t, m.bills.loading)
	assert.Empty(t, m.bills.table.Entries())

	m, _ = send(t, m, billsLoadedMsg{userID: 99, session: m.bills.session, live: sampleEntries(), cached: true})
	assert.True(t, m.bills.loading)
	assert.Empty(t, m.bills.table.Entries())

	m, _ = send(t, m, billsLoadedMsg{userID: viewer, session: m.bills.session, live: sampleEntries(), cached: true})
	assert.False(t, m.bills.loading)
	assert.Equal(t, []int64{2, 1, 3}, rowIDs(m))
}

func TestEmptyCacheWaitsForSyncThenResolvesOnFailure(t *testing.T) {
	m, _ := newHarness(t)
	m, _ = press(t, m, "2")

	m, _ = send(t, m, billsLoadedMsg{userID: viewer, session: m.bills.session})
	assert.True(t, m.bills.loading)

	m, cmd := send(t, m, syncEventMsg{event: syncer.Event{
		Type:       syncer.EventSyncFailed,
		Collection: syncer.DebtsCollection(viewer),
		Err:        errors.New("backend down"),
	}})
	assert.Nil(t, cmd)
	assert.False(t, m.bills.loading)
	assert.Empty(t, m.billsRows())
	assert.Contains(t, m.View(), "sync failed: backend down")
}

func TestSyncEventsForOtherUsersAreIgnored(t *testing.T) {
	m, _ := newHarness(t)
	m, _ = press(t, m, "2")

	m, cmd := send(t, m, syncEventMsg{event: syncer.Event{Type: syncer.EventSyncOK, Collection: syncer.DebtsCollection(99)}})
	assert.Nil(t, cmd)
	assert.True(t, m.bills.loading)
}

func TestLoadBillsCmdReadsCache(t *testing.T) {
	m, h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.ReplaceSnapshot(ctx, viewer, storage.KindLive, sampleEntries(), time.Now()))
	require.NoError(t, h.repo.ReplaceSnapshot(ctx, viewer, storage.KindArchive, []debts.DebtEntry{{ID: 100}}, time.Now()))

	m, _ = press(t, m, "2")
	msg, ok := m.loadBillsCmd()().(billsLoadedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.True(t, msg.cached)
	assert.Len(t, msg.live, 3)
	assert.Len(t, msg.archived, 1)
	assert.Equal(t, m.bills.session, msg.session)
}

func TestCompleteRemovesRowWithoutNextOccurrence(t *testing.T) {
	m, h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.ReplaceSnapshot(ctx, viewer, storage.KindLive, sampleEntries(), time.Now()))
	m = openLoadedBills(t, m)
	m, _ = press(t, m, "enter")
	selected, ok := m.bills.table.SelectedID()
	require.True(t, ok)
	require.Equal(t, int64(2), selected)

	m, cmd := press(t, m, "c")
	require.NotNil(t, cmd)
	assert.Equal(t, 2, m.bills.pending[2])

	msgs := runCmd(cmd)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		m, _ = send(t, m, msg)
	}

	assert.Equal(t, []int64{1, 3}, rowIDs(m))
	_, ok = m.bills.table.Selected()
	assert.False(t, ok)
	assert.Equal(t, debts.CompletedMessage, m.feedback)
	assert.False(t, m.feedbackErr)
	assert.Empty(t, m.bills.pending)

	require.Len(t, h.backend.archived, 1)
	require.Len(t, h.backend.completed, 1)
	assert.Equal(t, int64(2), h.backend.archived[0].OriginalID)

	cached, err := h.repo.List(ctx, viewer, storage.KindLive)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestCompleteReplacesRowWithNextOccurrence(t *testing.T) {
	m, h := newHarness(t)
	next := sampleEntries()[1]
	next.NextRecurrenceDate = strPtr("2024-02-01")
	h.backend.completeResult = &next
	m = openLoadedBills(t, m)

	m, _ = send(t, m, completeDoneMsg{userID: viewer, res: debts.CompletionResult{OriginalID: 2, Updated: &next}})

	entries := m.bills.table.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "2024-02-01", *entries[1].NextRecurrenceDate)
	assert.Equal(t, debts.CompletedMessage, m.feedback)
}

func TestArchiveFailureIsReportedWithoutTouchingRows(t *testing.T) {
	m, _ := newHarness(t)
	m = openLoadedBills(t, m)

	m, _ = send(t, m, archiveDoneMsg{userID: viewer, res: debts.ArchiveResult{OriginalID: 2, Err: errors.New("archive debt 2: boom")}})

	assert.True(t, m.feedbackErr)
	assert.Contains(t, m.feedback, "boom")
	assert.Equal(t, []int64{2, 1, 3}, rowIDs(m))
}

func TestCompletionForPreviousUserIsDropped(t *testing.T) {
	m, _ := newHarness(t)
	m = openLoadedBills(t, m)

	m, _ = send(t, m, completeDoneMsg{userID: 99, res: debts.CompletionResult{OriginalID: 2}})
	assert.Equal(t, []int64{2, 1, 3}, rowIDs(m))
	assert.Empty(t, m.feedback)
}

func TestCompleteRejectedInArchiveView(t *testing.T) {
	m, h := newHarness(t)
	m = openLoadedBills(t, m)
	m.bills.table.SetArchived([]debts.DebtEntry{{ID: 100, SenderID: viewer, ReceiverID: 9}})

	m, _ = press(t, m, "a")
	require.True(t, m.bills.table.Archive())
	m, _ = press(t, m, "c")

	assert.True(t, m.feedbackErr)
	assert.Contains(t, m.feedback, debts.ErrArchiveView.Error())
	assert.Empty(t, h.backend.completed)
	assert.Empty(t, h.backend.archived)
}

func TestDeleteArchivedIsNotSupported(t *testing.T) {
	m, _ := newHarness(t)
	m = openLoadedBills(t, m)
	archived := []debts.DebtEntry{{ID: 100, SenderID: viewer, ReceiverID: 9}}
	m.bills.table.SetArchived(archived)

	m, _ = press(t, m, "a", "d")

	assert.Equal(t, "Deleting archived debts is not supported yet.", m.feedback)
	assert.Equal(t, archived, m.bills.table.Archived())
}

func TestTabCyclesDirectionAndPersistsPrefs(t *testing.T) {
	m, h := newHarness(t)
	m = openLoadedBills(t, m)

	m, cmd := press(t, m, "tab")
	assert.Equal(t, debts.DirectionFrom, m.bills.table.Direction())
	assert.Equal(t, []int64{2, 3}, rowIDs(m))

	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	prefs, err := h.prefs.LoadViewPrefs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, debts.DirectionFrom, prefs.Direction)
}

func TestSearchFiltersAndEscClears(t *testing.T) {
	m, _ := newHarness(t)
	m = openLoadedBills(t, m)

	m, _ = press(t, m, "/", "n", "e", "t")
	assert.True(t, m.bills.searching)
	assert.Equal(t, "net", m.bills.table.Search())
	assert.Equal(t, []int64{2}, rowIDs(m))

	// "q" is text while the search box has focus.
	m, _ = press(t, m, "q")
	assert.False(t, m.quitting)
	assert.Empty(t, rowIDs(m))

	m, _ = press(t, m, "esc")
	assert.False(t, m.bills.searching)
	assert.Equal(t, "", m.bills.table.Search())
	assert.Equal(t, []int64{2, 1, 3}, rowIDs(m))
}

func TestLeavingBillsResetsTableAndStopsSync(t *testing.T) {
	m, h := newHarness(t)
	m = openLoadedBills(t, m)
	m, _ = press(t, m, "down", "enter")
	_, ok := m.bills.table.Selected()
	require.True(t, ok)
	session := m.bills.session

	m, cmd := press(t, m, "esc")
	assert.Equal(t, screenHome, m.screen)
	assert.Empty(t, m.bills.table.Entries())
	_, ok = m.bills.table.Selected()
	assert.False(t, ok)
	assert.Greater(t, m.bills.session, session)

	assert.Empty(t, runCmd(cmd))
	assert.Equal(t, 1, h.sync.leaves)
}

func TestQuickReentryKeepsSyncRunning(t *testing.T) {
	m, h := newHarness(t)

	// Pending commands are never run: the engine must already have seen
	// every enter and leave, in key order.
	m, _ = press(t, m, "2", "1", "2")
	assert.Equal(t, screenBills, m.screen)
	assert.Equal(t, []string{"enter:7", "leave", "enter:7"}, h.sync.calls)
}

func TestSyncStartFailureResolvesToEmpty(t *testing.T) {
	m, h := newHarness(t)
	h.sync.enterErr = errors.New("no syncer")

	m, _ = press(t, m, "2")
	assert.False(t, m.bills.loading)

	m, _ = send(t, m, billsLoadedMsg{userID: viewer, session: m.bills.session})
	assert.False(t, m.bills.loading)
	assert.Empty(t, m.billsRows())
	assert.Contains(t, m.View(), "sync failed: no syncer")
}

func TestSignInReentersBillsForNewUser(t *testing.T) {
	m, _ := newHarness(t)
	m = openLoadedBills(t, m)
	session := m.bills.session

	m, _ = press(t, m, "s")
	assert.Equal(t, authDialogSignOut, m.authDialog)
	m, _ = press(t, m, "esc")
	assert.Equal(t, authDialogNone, m.authDialog)

	m, _ = send(t, m, signInDoneMsg{session: storage.Session{UserID: 9, Name: "Bob"}})
	assert.Equal(t, int64(9), m.session.UserID)
	assert.Equal(t, session+1, m.bills.session)
	assert.True(t, m.bills.loading)
	assert.Empty(t, m.bills.table.Entries())
	assert.Equal(t, "Signed in as Bob.", m.feedback)
}

func TestSignedOutBillsPromptsForSignIn(t *testing.T) {
	m, _ := newHarness(t)
	m.session = storage.Session{}

	m, _ = press(t, m, "2")
	assert.False(t, m.bills.loading)
	assert.Contains(t, m.View(), "Sign in to see your bills")
	assert.Contains(t, m.View(), "not signed in")
}

func TestViewRendersTableAndDetailPane(t *testing.T) {
	m, _ := newHarness(t)
	m = openLoadedBills(t, m)
	m, _ = press(t, m, "enter")

	view := m.View()
	for _, want := range []string{"IOU Keeper", "From Bob", "Netflix", "$ 12.5", "monthly", "To Alice"} {
		assert.True(t, strings.Contains(view, want), "view missing %q", want)
	}
}

func TestSessionLoadAppliesPrefs(t *testing.T) {
	m, h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.prefs.SaveSession(ctx, storage.Session{UserID: 5, Name: "Dana"}))
	require.NoError(t, h.prefs.SaveViewPrefs(ctx, storage.ViewPrefs{Direction: debts.DirectionTo, Archive: true}))

	msg := m.loadSessionCmd()()
	m, _ = send(t, m, msg)

	assert.Equal(t, int64(5), m.session.UserID)
	assert.Equal(t, debts.DirectionTo, m.bills.table.Direction())
	assert.True(t, m.bills.table.Archive())
}

func TestScrolledWindowKeepsOffsetWhenMovingUp(t *testing.T) {
	m, _ := newHarness(t)
	m, _ = press(t, m, "2")

	visible := m.billsVisibleRows()
	n := visible + 5
	entries := make([]debts.DebtEntry, 0, n)
	for i := 1; i <= n; i++ {
		due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")
		entries = append(entries, debts.DebtEntry{
			ID: int64(i), SenderID: 9, ReceiverID: viewer,
			SenderData: debts.Party{Name: "Bob"}, ReceiverData: debts.Party{Name: "Me"},
			Amount: float64(i), Description: fmt.Sprintf("bill-%02d", i), NextRecurrenceDate: strPtr(due),
		})
	}
	m, _ = send(t, m, billsLoadedMsg{userID: viewer, session: m.bills.session, live: entries, cached: true})

	m, _ = press(t, m, "G")
	assert.Equal(t, n-1, m.bills.cursor)
	assert.Equal(t, n-visible, m.bills.offset)

	m, _ = press(t, m, "k")
	assert.Equal(t, n-2, m.bills.cursor)
	assert.Equal(t, n-visible, m.bills.offset)
	assert.Contains(t, m.View(), fmt.Sprintf("bill-%02d", n))

	m, _ = press(t, m, "g")
	assert.Equal(t, 0, m.bills.offset)
	assert.NotContains(t, m.View(), fmt.Sprintf("bill-%02d", n))
}

func TestWindowOffset(t *testing.T) {
	tests := []struct {
		name                       string
		cursor, offset, visible, n int
		want                       int
	}{
		{name: "fits", cursor: 3, offset: 2, visible: 10, n: 5, want: 0},
		{name: "cursor inside window", cursor: 6, offset: 4, visible: 5, n: 20, want: 4},
		{name: "cursor below window", cursor: 12, offset: 4, visible: 5, n: 20, want: 8},
		{name: "cursor above window", cursor: 1, offset: 4, visible: 5, n: 20, want: 1},
		{name: "shrunk list", cursor: 9, offset: 15, visible: 5, n: 10, want: 5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := windowOffset(tt.cursor, tt.offset, tt.visible, tt.n); got != tt.want {
				t.Fatalf("windowOffset() = %d, want %d", got, tt.want)
			}
		})
	}
}
