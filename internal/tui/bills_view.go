package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/lachiem1/ioukeeper/internal/debts"
	"github.com/lachiem1/ioukeeper/internal/storage"
	"github.com/lachiem1/ioukeeper/internal/syncer"
)

const (
	detailPaneWidth = 34
	billsChromeRows = 8
)

type billsState struct {
	table *debts.Table

	// session increments on every enter/leave so loads issued for an earlier
	// visit are dropped on arrival.
	session int
	loading bool

	cursor int
	offset int

	search    textinput.Model
	searching bool
	spinner   spinner.Model

	lastSync *time.Time
	syncErr  string

	// pending counts unsettled row-action tasks per debt id.
	pending map[int64]int
}

type billsLoadedMsg struct {
	userID   int64
	session  int
	live     []debts.DebtEntry
	archived []debts.DebtEntry
	cached   bool
	lastSync *time.Time
	err      error
}

type syncFailedMsg struct {
	userID int64
	err    error
}

type archiveDoneMsg struct {
	userID int64
	res    debts.ArchiveResult
}

type completeDoneMsg struct {
	userID int64
	res    debts.CompletionResult
}

func newBillsState() billsState {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name, description or amount"
	search.CharLimit = 64
	search.Width = 32

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorYellow)

	return billsState{
		table:   debts.NewTable(),
		search:  search,
		spinner: sp,
		pending: make(map[int64]int),
	}
}

func (m model) enterBillsView() (model, tea.Cmd) {
	m.screen = screenBills
	m.bills.session++
	m.bills.table.Reset()
	m.bills.cursor = 0
	m.bills.offset = 0
	m.bills.lastSync = nil
	m.bills.syncErr = ""
	m.bills.pending = make(map[int64]int)
	if !m.signedIn() {
		m.bills.loading = false
		return m, nil
	}
	m.bills.loading = true
	m = m.startSync()
	return m, tea.Batch(
		m.loadBillsCmd(),
		m.bills.spinner.Tick,
	)
}

func (m model) leaveBillsView() (model, tea.Cmd) {
	m.bills.session++
	m.bills.table.Reset()
	m.bills.loading = false
	m.bills.searching = false
	m.bills.search.Blur()
	m.bills.cursor = 0
	m.bills.offset = 0

	// Enter and leave run inline so the engine sees them in key order.
	if m.opts.Sync != nil {
		m.opts.Sync.LeaveView()
	}
	return m, nil
}

func (m model) loadBillsCmd() tea.Cmd {
	userID, session := m.session.UserID, m.bills.session
	repo, syncState := m.opts.Debts, m.opts.SyncState
	return func() tea.Msg {
		msg := billsLoadedMsg{userID: userID, session: session}
		if repo == nil {
			return msg
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		var err error
		if msg.cached, err = repo.HasAny(ctx, userID); err != nil {
			msg.err = fmt.Errorf("check cached debts: %w", err)
			return msg
		}
		if msg.live, err = repo.List(ctx, userID, storage.KindLive); err != nil {
			msg.err = err
			return msg
		}
		if msg.archived, err = repo.List(ctx, userID, storage.KindArchive); err != nil {
			msg.err = err
			return msg
		}
		if syncState != nil {
			state, ok, err := syncState.Get(ctx, syncer.DebtsCollection(userID))
			if err == nil && ok {
				msg.lastSync = state.LastSuccess
			}
		}
		return msg
	}
}

func (m model) startSync() model {
	if m.opts.Sync == nil {
		return m
	}
	// The engine derives its run context from this one; it must outlive Update.
	if err := m.opts.Sync.EnterDebtsView(context.Background(), m.session.UserID); err != nil {
		m.logger.Error("bills sync", zap.Int64("user_id", m.session.UserID), zap.Error(err))
		m.bills.syncErr = err.Error()
		m.bills.loading = false
	}
	return m
}

func (m model) refreshCmd() tea.Cmd {
	svc, userID := m.opts.Sync, m.session.UserID
	if svc == nil || userID == 0 {
		return nil
	}
	return func() tea.Msg {
		if err := svc.RefreshDebts(userID); err != nil {
			return syncFailedMsg{userID: userID, err: err}
		}
		return nil
	}
}

func (m model) savePrefsCmd() tea.Cmd {
	repo, logger := m.opts.Prefs, m.logger
	if repo == nil {
		return nil
	}
	prefs := storage.ViewPrefs{
		Direction: m.bills.table.Direction(),
		Archive:   m.bills.table.Archive(),
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := repo.SaveViewPrefs(ctx, prefs); err != nil {
			logger.Warn("save view prefs", zap.Error(err))
		}
		return nil
	}
}

func (m model) archiveCmd(entry debts.DebtEntry) tea.Cmd {
	backend, userID := m.opts.Backend, m.session.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return archiveDoneMsg{userID: userID, res: debts.ArchiveTask(ctx, backend, entry)}
	}
}

func (m model) completeCmd(entry debts.DebtEntry) tea.Cmd {
	backend, repo, userID, logger := m.opts.Backend, m.opts.Debts, m.session.UserID, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res := debts.CompletionTask(ctx, backend, entry)
		if res.Err == nil && repo != nil {
			if err := cacheCompletion(ctx, repo, userID, res); err != nil {
				logger.Warn("cache completed debt", zap.Int64("debt_id", res.OriginalID), zap.Error(err))
			}
		}
		return completeDoneMsg{userID: userID, res: res}
	}
}

// cacheCompletion mirrors ApplyCompletion onto the local live snapshot.
func cacheCompletion(ctx context.Context, repo *storage.DebtsRepo, userID int64, res debts.CompletionResult) error {
	if res.Updated == nil {
		_, err := repo.Delete(ctx, userID, storage.KindLive, res.OriginalID)
		return err
	}
	return repo.Upsert(ctx, userID, storage.KindLive, *res.Updated)
}

func (m model) handleBillsLoaded(msg billsLoadedMsg) (tea.Model, tea.Cmd) {
	if m.screen != screenBills || msg.userID != m.session.UserID || msg.session != m.bills.session {
		m.logger.Debug("dropping stale bills load",
			zap.Int64("user_id", msg.userID),
			zap.Int("session", msg.session),
		)
		return m, nil
	}
	if msg.err != nil {
		m.logger.Error("load bills", zap.Int64("user_id", msg.userID), zap.Error(msg.err))
		m.bills.loading = false
		return m, nil
	}

	m.bills.table.SetEntries(msg.live)
	m.bills.table.SetArchived(msg.archived)
	if msg.lastSync != nil {
		m.bills.lastSync = msg.lastSync
	}
	if msg.cached || msg.lastSync != nil {
		m.bills.loading = false
	}
	m.clampBillsCursor()
	return m, nil
}

func (m model) handleSyncEvent(evt syncer.Event) (tea.Model, tea.Cmd) {
	next := waitForSyncEvent(m.opts.Events)
	if m.screen != screenBills || !m.signedIn() || evt.Collection != syncer.DebtsCollection(m.session.UserID) {
		return m, next
	}
	switch evt.Type {
	case syncer.EventSyncOK:
		m.bills.syncErr = ""
		return m, tea.Batch(next, m.loadBillsCmd())
	case syncer.EventSyncFailed:
		m.logger.Warn("bills sync failed",
			zap.String("collection", evt.Collection),
			zap.Duration("retry_in", evt.RetryIn),
			zap.Error(evt.Err),
		)
		if evt.Err != nil {
			m.bills.syncErr = evt.Err.Error()
		}
		m.bills.loading = false
	}
	return m, next
}

func (m model) handleSyncFailed(msg syncFailedMsg) (tea.Model, tea.Cmd) {
	if msg.userID != m.session.UserID || m.screen != screenBills {
		return m, nil
	}
	m.logger.Error("bills sync", zap.Int64("user_id", msg.userID), zap.Error(msg.err))
	m.bills.syncErr = msg.err.Error()
	m.bills.loading = false
	return m, nil
}

func (m model) handleArchiveDone(msg archiveDoneMsg) (tea.Model, tea.Cmd) {
	if msg.userID != m.session.UserID {
		m.logger.Debug("dropping archive result for another user", zap.Int64("user_id", msg.userID))
		return m, nil
	}
	settled := m.settleRowAction(msg.res.OriginalID)
	if msg.res.Err != nil {
		next, cmd := m.withError(msg.res.Err)
		return next, tea.Batch(settled, cmd)
	}
	m.logger.Debug("debt archived", zap.Int64("original_id", msg.res.OriginalID))
	return m, settled
}

func (m model) handleCompleteDone(msg completeDoneMsg) (tea.Model, tea.Cmd) {
	if msg.userID != m.session.UserID {
		m.logger.Debug("dropping completion result for another user", zap.Int64("user_id", msg.userID))
		return m, nil
	}
	settled := m.settleRowAction(msg.res.OriginalID)
	if msg.res.Err != nil {
		next, cmd := m.withError(msg.res.Err)
		return next, tea.Batch(settled, cmd)
	}
	if outcome := m.bills.table.ApplyCompletion(msg.res); outcome == debts.OutcomeMissing {
		m.logger.Debug("completed debt is no longer listed", zap.Int64("debt_id", msg.res.OriginalID))
	}
	m.clampBillsCursor()
	next, cmd := m.withSuccess(debts.CompletedMessage)
	return next, tea.Batch(settled, cmd)
}

// settleRowAction marks one task for id as done and refreshes once the last
// one settles, so the archive list picks up the new record.
func (m model) settleRowAction(id int64) tea.Cmd {
	n, ok := m.bills.pending[id]
	if !ok {
		return nil
	}
	if n > 1 {
		m.bills.pending[id] = n - 1
		return nil
	}
	delete(m.bills.pending, id)
	if m.screen != screenBills {
		return nil
	}
	return m.refreshCmd()
}

func (m model) updateBillsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.signedIn() {
		if msg.String() == "esc" {
			return m.switchScreen(screenHome)
		}
		return m, nil
	}

	rows := m.billsRows()
	switch msg.String() {
	case "esc":
		return m.switchScreen(screenHome)
	case "up", "k":
		m.bills.cursor--
	case "down", "j":
		m.bills.cursor++
	case "home", "g":
		m.bills.cursor = 0
	case "end", "G":
		m.bills.cursor = len(rows) - 1
	case "enter", " ":
		if entry, ok := m.cursorEntry(); ok {
			m.bills.table.SetSelected(entry)
		}
	case "tab":
		m.bills.table.SetDirection(m.bills.table.Direction().Next())
		m.bills.cursor = 0
		m.clampBillsCursor()
		return m, m.savePrefsCmd()
	case "a":
		m.bills.table.SetArchive(!m.bills.table.Archive())
		m.bills.cursor = 0
		m.clampBillsCursor()
		return m, m.savePrefsCmd()
	case "/":
		m.bills.searching = true
		cmd := m.bills.search.Focus()
		return m, cmd
	case "c":
		return m.completeAtCursor()
	case "d":
		return m.deleteAtCursor()
	case "r":
		if m.opts.Sync == nil {
			return m, nil
		}
		next, cmd := m.withSuccess("Refreshing…")
		return next, tea.Batch(cmd, next.refreshCmd())
	}
	m.clampBillsCursor()
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.bills.searching = false
		m.bills.search.Blur()
		return m, nil
	case "esc":
		m.bills.searching = false
		m.bills.search.Blur()
		m.bills.search.SetValue("")
		m.bills.table.SetSearch("")
		m.clampBillsCursor()
		return m, nil
	}

	var cmd tea.Cmd
	m.bills.search, cmd = m.bills.search.Update(msg)
	if m.bills.search.Value() != m.bills.table.Search() {
		m.bills.table.SetSearch(m.bills.search.Value())
		m.bills.cursor = 0
		m.bills.offset = 0
	}
	return m, cmd
}

func (m model) completeAtCursor() (tea.Model, tea.Cmd) {
	entry, ok := m.cursorEntry()
	if !ok {
		return m, nil
	}
	if m.bills.table.Archive() {
		return m.withError(debts.ErrArchiveView)
	}
	if m.opts.Backend == nil {
		return m.withError(errors.New("not connected to the IOU Keeper API"))
	}
	if m.bills.pending[entry.ID] > 0 {
		return m, nil
	}
	m.bills.pending[entry.ID] = 2
	return m, tea.Batch(m.archiveCmd(entry), m.completeCmd(entry))
}

func (m model) deleteAtCursor() (tea.Model, tea.Cmd) {
	if !m.bills.table.Archive() {
		return m.withFeedback("Delete is only available for archived debts.", false)
	}
	entry, ok := m.cursorEntry()
	if !ok {
		return m, nil
	}
	if m.bills.table.DeleteArchived(entry) == debts.ActionNotSupported {
		m.logger.Info("archived delete requested", zap.Int64("debt_id", entry.ID))
		return m.withFeedback("Deleting archived debts is not supported yet.", true)
	}
	return m, nil
}

func (m model) billsRows() []debts.DebtEntry {
	return m.bills.table.Rows(m.session.UserID)
}

func (m model) cursorEntry() (debts.DebtEntry, bool) {
	rows := m.billsRows()
	if m.bills.cursor < 0 || m.bills.cursor >= len(rows) {
		return debts.DebtEntry{}, false
	}
	return rows[m.bills.cursor], true
}

func (m *model) clampBillsCursor() {
	n := len(m.billsRows())
	if n == 0 {
		m.bills.cursor = 0
		m.bills.offset = 0
		return
	}
	m.bills.cursor = max(0, min(m.bills.cursor, n-1))
	m.bills.offset = windowOffset(m.bills.cursor, m.bills.offset, m.billsVisibleRows(), n)
}

// billsVisibleRows is how many table rows fit on screen.
func (m model) billsVisibleRows() int {
	return max(1, m.bodyHeight()-billsChromeRows)
}

// windowOffset moves offset the least needed to keep cursor inside a window
// of visible rows over n rows.
func windowOffset(cursor, offset, visible, n int) int {
	if visible <= 0 || n <= visible {
		return 0
	}
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+visible {
		offset = cursor - visible + 1
	}
	return max(0, min(offset, n-visible))
}

func (m model) renderBillsScreen(width, height int) string {
	title := lipgloss.PlaceHorizontal(width, lipgloss.Center, renderBillsTitle())
	if !m.signedIn() {
		prompt := mutedStyle.Render("Sign in to see your bills. Press ") + keyStyle.Render("s") + mutedStyle.Render(" to continue with Google.")
		return strings.Join([]string{title, "", lipgloss.PlaceHorizontal(width, lipgloss.Center, prompt)}, "\n")
	}

	toolbar := m.renderBillsToolbar(width)
	tableWidth := width
	showPane := width >= 80
	if showPane {
		tableWidth = width - detailPaneWidth - 2
	}
	visible := max(1, height-billsChromeRows)

	var main string
	if m.bills.loading {
		main = lipgloss.NewStyle().Width(tableWidth).Padding(1, 2).Render(m.bills.spinner.View() + " Loading table...")
	} else {
		main = m.renderBillsTable(tableWidth, visible)
	}
	if showPane {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, "  ", m.renderDetailPane())
	}

	return strings.Join([]string{title, toolbar, main, m.renderBillsStatus(width)}, "\n")
}

func (m model) renderBillsToolbar(width int) string {
	active := lipgloss.NewStyle().Foreground(colorInk).Background(colorSky).Bold(true).Padding(0, 1)
	inactive := mutedStyle.Padding(0, 1)

	var dirs []string
	for _, d := range []debts.Direction{debts.DirectionAll, debts.DirectionFrom, debts.DirectionTo} {
		label := strings.ToUpper(d.String())
		if d == m.bills.table.Direction() {
			dirs = append(dirs, active.Render(label))
			continue
		}
		dirs = append(dirs, inactive.Render(label))
	}

	list := active.Render("LIVE") + inactive.Render("ARCHIVE")
	if m.bills.table.Archive() {
		list = inactive.Render("LIVE") + active.Render("ARCHIVE")
	}

	search := m.bills.search.View()
	if !m.bills.searching && m.bills.search.Value() == "" {
		search = mutedStyle.Render("/ search")
	}

	bar := strings.Join([]string{
		labelStyle.Render("show ") + strings.Join(dirs, ""),
		labelStyle.Render("list ") + list,
		search,
	}, "   ")
	return lipgloss.NewStyle().MaxWidth(width).Render(bar)
}

func (m model) renderBillsTable(width, visible int) string {
	rows := m.billsRows()
	if len(rows) == 0 {
		empty := "No debts to show."
		if m.bills.table.Search() != "" {
			empty = "No debts match \"" + m.bills.table.Search() + "\"."
		}
		return lipgloss.NewStyle().Width(width).Padding(1, 2).Render(mutedStyle.Render(empty))
	}

	offset := windowOffset(m.bills.cursor, m.bills.offset, visible, len(rows))
	end := min(len(rows), offset+visible)
	window := rows[offset:end]

	userID := m.session.UserID
	now := m.now()
	selectedID, hasSelected := m.bills.table.SelectedID()

	cells := make([][]string, 0, len(window))
	for _, entry := range window {
		marker := " "
		switch {
		case m.bills.pending[entry.ID] > 0:
			marker = "…"
		case hasSelected && entry.ID == selectedID:
			marker = "●"
		}
		due := debts.FormatDueDate(entry.NextRecurrenceDate)
		if debts.DueTone(entry.NextRecurrenceDate, now) == debts.ToneOverdue {
			due = "⚠ " + due
		}
		cells = append(cells, []string{
			marker,
			due,
			debts.CounterpartyLabel(userID, entry),
			entry.Description,
			debts.FormatAmount(entry.Amount),
		})
	}

	cursor := m.bills.cursor - offset
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorCoral)).
		Headers("", "DUE", "WHO", "DESCRIPTION", "AMOUNT").
		Rows(cells...).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Foreground(colorSky).Bold(true)
			}
			if row < 0 || row >= len(window) {
				return base
			}
			entry := window[row]
			switch {
			case debts.Faded(entry.NextRecurrenceDate):
				base = base.Foreground(colorGray).Faint(true)
			case col == 1:
				base = base.Inherit(toneStyle(debts.DueTone(entry.NextRecurrenceDate, now)))
			case col == 4:
				base = base.Inherit(toneStyle(debts.AmountTone(userID, entry))).Bold(true)
			}
			if row == cursor {
				base = base.Background(colorInk).Bold(true)
			}
			return base
		})
	return t.Render()
}

func (m model) renderDetailPane() string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorYellow).
		Padding(0, 1).
		Width(detailPaneWidth - 2)

	entry, ok := m.bills.table.Selected()
	if !ok {
		return panel.Render(strings.Join([]string{
			labelStyle.Render("Details"),
			"",
			mutedStyle.Render("Select a row with enter to see its details."),
		}, "\n"))
	}

	userID := m.session.UserID
	amount := toneStyle(debts.AmountTone(userID, entry)).Bold(true).Render(debts.FormatAmount(entry.Amount))
	due := debts.FormatDueDate(entry.NextRecurrenceDate)
	if debts.DueTone(entry.NextRecurrenceDate, m.now()) == debts.ToneOverdue {
		due = errorStyle.Render("⚠ " + due + " (overdue)")
	}
	frequency := entry.FrequencyInterval
	if strings.TrimSpace(frequency) == "" {
		frequency = "once"
	}
	description := entry.Description
	if description == "" {
		description = "–"
	}

	lines := []string{
		labelStyle.Render("Details"),
		"",
		amount,
		debts.CounterpartyLabel(userID, entry),
		"",
		mutedStyle.Render("what ") + description,
		mutedStyle.Render("due  ") + due,
		mutedStyle.Render("each ") + frequency,
		mutedStyle.Render("from ") + entry.SenderData.Name,
		mutedStyle.Render("to   ") + entry.ReceiverData.Name,
	}
	if entry.OriginalID != nil {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("archived from #%d", *entry.OriginalID)))
	} else if !m.bills.table.Archive() {
		lines = append(lines, "", keyStyle.Render("c")+mutedStyle.Render(" complete this debt"))
	}
	return panel.Render(strings.Join(lines, "\n"))
}

func (m model) renderBillsStatus(width int) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d shown", len(m.billsRows())))
	if m.bills.lastSync != nil {
		age := m.now().Sub(*m.bills.lastSync).Round(time.Second)
		parts = append(parts, "last updated "+formatAge(age)+" ago")
	}
	status := mutedStyle.Render(strings.Join(parts, "  •  "))
	if m.bills.syncErr != "" {
		status += "  " + errorStyle.Render("sync failed: "+m.bills.syncErr)
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(status)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
