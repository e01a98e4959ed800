package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lachiem1/ioukeeper/internal/debts"
	"github.com/lachiem1/ioukeeper/internal/storage"
	"github.com/lachiem1/ioukeeper/internal/syncer"
)

var (
	listDirection string
	listSearch    string
	listArchive   bool
	listOffline   bool
)

var debtsCmd = &cobra.Command{
	Use:   "debts",
	Short: "List and complete debts",
}

var debtsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print your debts, soonest due first",
	Long: `Refreshes the local cache from the backend and prints the filtered list.
When the backend cannot be reached the cached copy is shown instead.

Examples:
  iou debts list --direction from
  iou debts list --search netflix
  iou debts list --archive --offline`,
	Args: cobra.NoArgs,
	RunE: runDebtsList,
}

var debtsCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Archive a debt and move it to its next due date",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebtsComplete,
}

func init() {
	debtsListCmd.Flags().StringVarP(&listDirection, "direction", "d", "all", "all, from (owed to you) or to (you owe)")
	debtsListCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Case-insensitive match on name, description or amount")
	debtsListCmd.Flags().BoolVar(&listArchive, "archive", false, "Show archived debts")
	debtsListCmd.Flags().BoolVar(&listOffline, "offline", false, "Only read the local cache")
}

func runDebtsList(cmd *cobra.Command, _ []string) error {
	direction, err := debts.ParseDirection(listDirection)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.API.Timeout)
	defer cancel()
	session, err := a.requireSession(ctx)
	if err != nil {
		return err
	}

	if !listOffline {
		if err := refreshCache(ctx, a, session.UserID); err != nil {
			logger.Warn("refresh debts", zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing cached debts: %v\n", err)
		}
	}

	kind := storage.KindLive
	if listArchive {
		kind = storage.KindArchive
	}
	entries, err := a.debts.List(ctx, session.UserID, kind)
	if err != nil {
		return err
	}

	rows := debts.View(entries, session.UserID, debts.ViewOptions{Direction: direction, Search: listSearch})
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No debts to show.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDebtsTable(rows, session.UserID, time.Now()))
	return nil
}

func runDebtsComplete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid debt id %q", args[0])
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.API.Timeout)
	defer cancel()
	session, err := a.requireSession(ctx)
	if err != nil {
		return err
	}

	live, err := a.client.GetDebtList(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("fetch debts: %w", err)
	}
	tbl := debts.NewTable()
	tbl.SetEntries(live)

	var entry debts.DebtEntry
	found := false
	for _, e := range live {
		if e.ID == id {
			entry, found = e, true
			break
		}
	}
	if !found {
		return fmt.Errorf("debt %d is not in your live list", id)
	}

	out := &cliReporter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	if err := debts.NewCompleter(a.client, tbl, out, out, logger).Complete(ctx, entry); err != nil {
		return err
	}

	if err := refreshCache(ctx, a, session.UserID); err != nil {
		logger.Warn("refresh debts after completion", zap.Error(err))
	}
	if out.failed() {
		return exitError{code: 1}
	}

	for _, e := range tbl.Entries() {
		if e.ID == id {
			fmt.Fprintf(cmd.OutOrStdout(), "Next due: %s\n", debts.FormatDueDate(e.NextRecurrenceDate))
			return nil
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "No further occurrence; the debt was removed from your live list.")
	return nil
}

func refreshCache(ctx context.Context, a *app, userID int64) error {
	return syncer.NewDebtsSyncer(a.client, a.debts, a.syncState, userID).Sync(ctx)
}

// cliReporter prints row-action results. The completion tasks run
// concurrently, so writes are serialised.
type cliReporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	errs   int
}

func (r *cliReporter) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, msg)
}

func (r *cliReporter) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs++
	logger.Error("debt action failed", zap.Error(err))
	fmt.Fprintf(r.errOut, "error: %v\n", err)
}

func (r *cliReporter) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs > 0
}

func renderDebtsTable(rows []debts.DebtEntry, userID int64, now time.Time) string {
	cells := make([][]string, 0, len(rows))
	for _, e := range rows {
		due := debts.FormatDueDate(e.NextRecurrenceDate)
		if debts.DueTone(e.NextRecurrenceDate, now) == debts.ToneOverdue {
			due = "! " + due
		}
		cells = append(cells, []string{
			strconv.FormatInt(e.ID, 10),
			due,
			debts.CounterpartyLabel(userID, e),
			e.Description,
			debts.FormatAmount(e.Amount),
		})
	}

	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#F15B5B"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#5CCB76"))
	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#F47A60"))).
		Headers("ID", "DUE", "WHO", "DESCRIPTION", "AMOUNT").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Foreground(lipgloss.Color("#87CEEB")).Bold(true)
			}
			if row < 0 || row >= len(rows) {
				return base
			}
			e := rows[row]
			switch {
			case debts.Faded(e.NextRecurrenceDate):
				return base.Inherit(gray)
			case col == 1 && debts.DueTone(e.NextRecurrenceDate, now) == debts.ToneOverdue:
				return base.Inherit(red)
			case col == 4 && debts.AmountTone(userID, e) == debts.ToneOwedByUser:
				return base.Inherit(red)
			case col == 4:
				return base.Inherit(green)
			}
			return base
		}).
		Render()
}
