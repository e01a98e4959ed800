package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/lachiem1/ioukeeper/internal/debts"
	"github.com/lachiem1/ioukeeper/internal/storage"
	"github.com/lachiem1/ioukeeper/internal/syncer"
)

type screen int

const (
	screenHome screen = iota
	screenBills
	screenAbout
)

type authDialogMode int

const (
	authDialogNone authDialogMode = iota
	authDialogSignIn
	authDialogSignOut
)

const (
	feedbackTTL   = 4 * time.Second
	storeTimeout  = 5 * time.Second
	actionTimeout = 30 * time.Second
	signInTimeout = 5 * time.Minute
)

var navTabs = []struct {
	screen screen
	key    string
	label  string
}{
	{screenHome, "1", "Home"},
	{screenBills, "2", "Bills"},
	{screenAbout, "3", "About"},
}

// SyncService keeps a user's cached debt lists fresh while the bills page is open.
type SyncService interface {
	EnterDebtsView(ctx context.Context, userID int64) error
	RefreshDebts(userID int64) error
	LeaveView()
}

// Account performs the nav bar's sign-in and sign-out. SignIn blocks until the
// browser round trip finishes and returns the backend session.
type Account interface {
	SignIn(ctx context.Context) (storage.Session, error)
	SignOut(ctx context.Context) error
}

// Options wires the TUI to storage, the backend and the sync engine. Any field
// may be nil; the matching feature is then unavailable.
type Options struct {
	Debts     *storage.DebtsRepo
	Prefs     *storage.AppConfigRepo
	SyncState *storage.SyncStateRepo
	Backend   debts.Backend
	Sync      SyncService
	Events    <-chan syncer.Event
	Account   Account
	Logger    *zap.Logger
}

type model struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	width    int
	height   int
	screen   screen
	quitting bool

	session         storage.Session
	signingIn       bool
	authDialog      authDialogMode
	showHelpOverlay bool

	feedback    string
	feedbackErr bool
	feedbackID  int

	bills billsState
}

type sessionLoadedMsg struct {
	session storage.Session
	prefs   storage.ViewPrefs
	err     error
}

type signInDoneMsg struct {
	session storage.Session
	err     error
}

type signOutDoneMsg struct {
	err error
}

type clearFeedbackMsg struct {
	id int
}

type syncEventMsg struct {
	event syncer.Event
}

// New builds the root Bubble Tea model.
func New(opts Options) tea.Model {
	return newModel(opts)
}

func newModel(opts Options) model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return model{
		opts:   opts,
		logger: logger,
		now:    time.Now,
		screen: screenHome,
		bills:  newBillsState(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadSessionCmd(), waitForSyncEvent(m.opts.Events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bills.search.Width = max(16, min(48, msg.Width/3))
		m.clampBillsCursor()
		return m, nil
	case sessionLoadedMsg:
		if msg.err != nil {
			return m.withError(fmt.Errorf("load session: %w", msg.err))
		}
		m.session = msg.session
		m.bills.table.SetDirection(msg.prefs.Direction)
		m.bills.table.SetArchive(msg.prefs.Archive)
		if m.screen == screenBills {
			next, cmd := m.enterBillsView()
			return next, cmd
		}
		return m, nil
	case signInDoneMsg:
		m.signingIn = false
		m.authDialog = authDialogNone
		if msg.err != nil {
			return m.withError(fmt.Errorf("sign in: %w", msg.err))
		}
		previous := m.session.UserID
		m.session = msg.session
		m.logger.Info("signed in", zap.Int64("user_id", msg.session.UserID))
		next, feedback := m.withSuccess("Signed in as " + m.sessionLabel() + ".")
		if next.screen == screenBills && previous != msg.session.UserID {
			next, cmd := next.enterBillsView()
			return next, tea.Batch(feedback, cmd)
		}
		return next, feedback
	case signOutDoneMsg:
		m.authDialog = authDialogNone
		if msg.err != nil {
			return m.withError(fmt.Errorf("sign out: %w", msg.err))
		}
		m.logger.Info("signed out", zap.Int64("user_id", m.session.UserID))
		m.session = storage.Session{}
		var cmds []tea.Cmd
		if m.screen == screenBills {
			var cmd tea.Cmd
			m, cmd = m.leaveBillsView()
			cmds = append(cmds, cmd)
		}
		next, feedback := m.withSuccess("Signed out.")
		return next, tea.Batch(append(cmds, feedback)...)
	case clearFeedbackMsg:
		if msg.id == m.feedbackID {
			m.feedback = ""
			m.feedbackErr = false
		}
		return m, nil
	case syncEventMsg:
		return m.handleSyncEvent(msg.event)
	case billsLoadedMsg:
		return m.handleBillsLoaded(msg)
	case syncFailedMsg:
		return m.handleSyncFailed(msg)
	case archiveDoneMsg:
		return m.handleArchiveDone(msg)
	case completeDoneMsg:
		return m.handleCompleteDone(msg)
	case spinner.TickMsg:
		if !m.bills.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.bills.spinner, cmd = m.bills.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.showHelpOverlay {
		switch msg.String() {
		case "esc", "?":
			m.showHelpOverlay = false
		case "q":
			return m.quit()
		}
		return m, nil
	}

	if m.authDialog != authDialogNone {
		switch msg.String() {
		case "esc":
			if !m.signingIn {
				m.authDialog = authDialogNone
			}
		case "enter":
			return m.confirmAuthDialog()
		}
		return m, nil
	}

	if m.screen == screenBills && m.bills.searching {
		return m.updateSearch(msg)
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "?":
		m.showHelpOverlay = true
		return m, nil
	case "s":
		if m.signedIn() {
			m.authDialog = authDialogSignOut
		} else {
			m.authDialog = authDialogSignIn
		}
		return m, nil
	}
	for _, tab := range navTabs {
		if msg.String() == tab.key {
			return m.switchScreen(tab.screen)
		}
	}

	if m.screen == screenBills {
		return m.updateBillsKey(msg)
	}
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.screen == screenBills && m.opts.Sync != nil {
		m.opts.Sync.LeaveView()
	}
	return m, tea.Quit
}

func (m model) switchScreen(target screen) (tea.Model, tea.Cmd) {
	if target == m.screen {
		return m, nil
	}
	var cmds []tea.Cmd
	if m.screen == screenBills {
		var cmd tea.Cmd
		m, cmd = m.leaveBillsView()
		cmds = append(cmds, cmd)
	}
	m.screen = target
	if target == screenBills {
		var cmd tea.Cmd
		m, cmd = m.enterBillsView()
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) confirmAuthDialog() (tea.Model, tea.Cmd) {
	if m.opts.Account == nil {
		m.authDialog = authDialogNone
		return m.withError(errors.New("sign-in is not configured"))
	}
	switch m.authDialog {
	case authDialogSignIn:
		if m.signingIn {
			return m, nil
		}
		m.signingIn = true
		return m, m.signInCmd()
	case authDialogSignOut:
		return m, m.signOutCmd()
	}
	return m, nil
}

func (m model) signedIn() bool {
	return m.session.UserID != 0
}

func (m model) sessionLabel() string {
	if name := strings.TrimSpace(m.session.Name); name != "" {
		return name
	}
	return fmt.Sprintf("user %d", m.session.UserID)
}

func (m model) withFeedback(text string, isErr bool) (model, tea.Cmd) {
	m.feedback = text
	m.feedbackErr = isErr
	m.feedbackID++
	id := m.feedbackID
	return m, tea.Tick(feedbackTTL, func(time.Time) tea.Msg {
		return clearFeedbackMsg{id: id}
	})
}

func (m model) withSuccess(text string) (model, tea.Cmd) {
	return m.withFeedback(text, false)
}

// withError is the shared error path: it logs and shows err on the feedback
// line without touching bills state.
func (m model) withError(err error) (model, tea.Cmd) {
	m.logger.Error("tui action failed", zap.Error(err))
	return m.withFeedback("Error: "+err.Error(), true)
}

func (m model) loadSessionCmd() tea.Cmd {
	repo := m.opts.Prefs
	if repo == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		session, _, err := repo.LoadSession(ctx)
		if err != nil {
			return sessionLoadedMsg{err: err}
		}
		prefs, err := repo.LoadViewPrefs(ctx)
		return sessionLoadedMsg{session: session, prefs: prefs, err: err}
	}
}

func (m model) signInCmd() tea.Cmd {
	account := m.opts.Account
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), signInTimeout)
		defer cancel()
		session, err := account.SignIn(ctx)
		return signInDoneMsg{session: session, err: err}
	}
}

func (m model) signOutCmd() tea.Cmd {
	account := m.opts.Account
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return signOutDoneMsg{err: account.SignOut(ctx)}
	}
}

func waitForSyncEvent(events <-chan syncer.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return syncEventMsg{event: evt}
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	frame, contentStyle := m.frameStyles()
	layoutWidth, layoutHeight := m.layoutSize()

	if m.showHelpOverlay {
		centered := lipgloss.Place(layoutWidth, layoutHeight, lipgloss.Center, lipgloss.Center, renderHelpOverlay(layoutWidth))
		return frame.Render(contentStyle.Render(centered))
	}
	if m.authDialog != authDialogNone {
		centered := lipgloss.Place(layoutWidth, layoutHeight, lipgloss.Center, lipgloss.Center, m.renderAuthDialog(layoutWidth))
		return frame.Render(contentStyle.Render(centered))
	}

	nav := m.renderNavBar(layoutWidth)
	footer := m.renderFeedbackLine(layoutWidth)
	bodyHeight := m.bodyHeight()

	var body string
	switch m.screen {
	case screenBills:
		body = m.renderBillsScreen(layoutWidth, bodyHeight)
	case screenAbout:
		body = renderAboutScreen(layoutWidth)
	default:
		body = m.renderHomeScreen(layoutWidth)
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	return frame.Render(contentStyle.Render(strings.Join([]string{nav, "", body, "", footer}, "\n")))
}

func (m model) frameStyles() (lipgloss.Style, lipgloss.Style) {
	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCoral).
		Padding(0, 1)
	contentStyle := lipgloss.NewStyle().Padding(0, 1)
	if m.width > 0 {
		frame = frame.Width(max(1, m.width-frame.GetHorizontalBorderSize()))
	}
	if m.height > 0 {
		frame = frame.Height(max(1, m.height-frame.GetVerticalBorderSize()))
	}
	return frame, contentStyle
}

// layoutSize is the space inside the frame.
func (m model) layoutSize() (int, int) {
	frame, contentStyle := m.frameStyles()
	width, height := 100, 30
	if m.width > 0 {
		width = max(1, m.width-frame.GetHorizontalFrameSize()-contentStyle.GetHorizontalFrameSize())
	}
	if m.height > 0 {
		height = max(1, m.height-frame.GetVerticalFrameSize()-contentStyle.GetVerticalFrameSize())
	}
	return width, height
}

// bodyHeight is the height left for the active screen under the nav bar and
// above the feedback line.
func (m model) bodyHeight() int {
	width, height := m.layoutSize()
	nav := m.renderNavBar(width)
	footer := m.renderFeedbackLine(width)
	return max(1, height-lipgloss.Height(nav)-lipgloss.Height(footer)-2)
}

func (m model) renderNavBar(width int) string {
	title := lipgloss.NewStyle().Foreground(colorCoral).Bold(true).Render("IOU Keeper")

	active := lipgloss.NewStyle().Foreground(colorInk).Background(colorYellow).Bold(true).Padding(0, 1)
	inactive := lipgloss.NewStyle().Foreground(colorSky).Padding(0, 1)
	tabs := make([]string, 0, len(navTabs))
	for _, tab := range navTabs {
		label := tab.key + " " + tab.label
		if tab.screen == m.screen {
			tabs = append(tabs, active.Render(label))
			continue
		}
		tabs = append(tabs, inactive.Render(label))
	}
	left := title + "   " + strings.Join(tabs, mutedStyle.Render("|"))

	var status string
	switch {
	case m.signingIn:
		status = keyStyle.Render("signing in…") + mutedStyle.Render(" finish in your browser")
	case m.signedIn():
		status = successStyle.Render("● "+m.sessionLabel()) + mutedStyle.Render("  s sign out")
	default:
		status = errorStyle.Render("not signed in") + mutedStyle.Render("  s sign in with Google")
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(status)
	if gap < 2 {
		return left + "\n" + status
	}
	return left + strings.Repeat(" ", gap) + status
}

func (m model) renderFeedbackLine(width int) string {
	if m.feedback != "" {
		style := successStyle
		if m.feedbackErr {
			style = errorStyle
		}
		return style.Render(truncate(m.feedback, width))
	}
	return mutedStyle.Render(truncate("? help  •  1/2/3 switch page  •  q quit", width))
}

func (m model) renderHomeScreen(width int) string {
	title := renderHomeTitle()
	if lipgloss.Width(title) > width {
		title = lipgloss.NewStyle().Foreground(colorCoral).Bold(true).Render("IOU KEEPER")
	}
	lines := []string{
		lipgloss.PlaceHorizontal(width, lipgloss.Center, title),
		"",
		lipgloss.PlaceHorizontal(width, lipgloss.Center, labelStyle.Render("Keep track of who owes whom.")),
		"",
	}
	var hint string
	if m.signedIn() {
		hint = "Welcome back, " + m.sessionLabel() + ". Press " + keyStyle.Render("2") + " to open your bills."
	} else {
		hint = "Press " + keyStyle.Render("s") + " to sign in with Google, then " + keyStyle.Render("2") + " to open your bills."
	}
	lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Center, hint))
	return strings.Join(lines, "\n")
}

func renderAboutScreen(width int) string {
	body := lipgloss.NewStyle().Width(min(width, 72)).Render(strings.Join([]string{
		"IOU Keeper tracks recurring bills and one-off debts between friends.",
		"",
		"The Bills page lists what you owe and what you are owed, soonest due first.",
		"Completing a bill archives the paid occurrence and rolls the debt on to its",
		"next due date; debts without a further date disappear from the live list.",
		"",
		"Your lists are cached locally so they show instantly, and refresh in the",
		"background while the Bills page is open.",
	}, "\n"))
	return strings.Join([]string{
		lipgloss.PlaceHorizontal(width, lipgloss.Center, renderAboutTitle()),
		"",
		lipgloss.PlaceHorizontal(width, lipgloss.Center, body),
	}, "\n")
}

type keyHelp struct {
	keys        string
	description string
}

func keyCatalog() []keyHelp {
	return []keyHelp{
		{"1 / 2 / 3", "home, bills, about"},
		{"s", "sign in or out"},
		{"↑/↓ j/k", "move the cursor"},
		{"enter", "show row details"},
		{"tab", "cycle all / from / to"},
		{"a", "toggle archive"},
		{"/", "search (enter keeps, esc clears)"},
		{"c", "complete the row"},
		{"d", "delete archived row"},
		{"r", "refresh from server"},
		{"esc", "leave bills"},
		{"q", "quit"},
	}
}

func renderHelpOverlay(maxWidth int) string {
	title := lipgloss.NewStyle().Foreground(colorBlue).Bold(true).Render("Keys")

	catalog := keyCatalog()
	rows := make([]string, 0, len(catalog))
	for _, k := range catalog {
		rows = append(rows, keyStyle.Render(fmt.Sprintf("%-10s", k.keys))+" "+k.description)
	}
	footer := lipgloss.NewStyle().Foreground(colorYellow).Bold(true).Render("Esc to close")

	content := strings.Join([]string{title, "", strings.Join(rows, "\n"), "", footer}, "\n")
	panelWidth := max(36, min(maxWidth-6, 56))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(1, 2).
		Width(panelWidth).
		Render(content)
}

func (m model) renderAuthDialog(maxWidth int) string {
	panelWidth := max(44, min(maxWidth-6, 64))
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(1, 2).
		Width(panelWidth)
	title := lipgloss.NewStyle().Foreground(colorBlue).Bold(true)

	switch {
	case m.signingIn:
		return panel.Render(strings.Join([]string{
			title.Render("Signing in with Google"),
			"",
			"Complete the sign-in in your browser.",
			mutedStyle.Render("This dialog closes when Google redirects back."),
		}, "\n"))
	case m.authDialog == authDialogSignOut:
		return panel.Render(strings.Join([]string{
			title.Render("Sign out"),
			"",
			"Signed in as " + m.sessionLabel() + ".",
			"Sign out and forget the stored API token?",
			"",
			keyStyle.Render("Enter") + " sign out   " + keyStyle.Render("Esc") + " cancel",
		}, "\n"))
	default:
		return panel.Render(strings.Join([]string{
			title.Render("Sign in"),
			"",
			"IOU Keeper signs you in with your Google account.",
			"Your browser will open the Google consent page.",
			"",
			keyStyle.Render("Enter") + " continue   " + keyStyle.Render("Esc") + " cancel",
		}, "\n"))
	}
}
