package debts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CompletedMessage is shown once per successful completion.
const CompletedMessage = "Success: Debt archived and completed. Next due date has been updated."

// ErrArchiveView is returned when completing from the archive view.
var ErrArchiveView = errors.New("debts cannot be completed from the archive view")

// Backend is the part of the bill-tracking API the row actions need.
type Backend interface {
	CompleteDebt(ctx context.Context, req CompletionRequest) (*DebtEntry, error)
	SendToArchive(ctx context.Context, req ArchivalRequest) error
}

// Notifier surfaces success messages to the user.
type Notifier interface {
	Success(msg string)
}

// ErrorReporter is the shared error path for row actions. Implementations log
// and/or notify; they must not touch table state.
type ErrorReporter interface {
	Report(err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(error)

func (f ErrorReporterFunc) Report(err error) { f(err) }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(string)

func (f NotifierFunc) Success(msg string) { f(msg) }

// ArchiveResult is the settled archive task for one debt.
type ArchiveResult struct {
	OriginalID int64
	Err        error
}

// CompletionResult is the settled completion task for one debt. Updated is nil
// when the debt has no further occurrence.
type CompletionResult struct {
	OriginalID int64
	Updated    *DebtEntry
	Err        error
}

// CompletionOutcome describes what ApplyCompletion did to the table.
type CompletionOutcome int

const (
	OutcomeFailed CompletionOutcome = iota
	OutcomeDeleted
	OutcomeUpdated
	OutcomeMissing
)

// ArchiveTask sends the archival copy of entry.
func ArchiveTask(ctx context.Context, backend Backend, entry DebtEntry) ArchiveResult {
	err := backend.SendToArchive(ctx, NewArchivalRequest(entry))
	if err != nil {
		err = fmt.Errorf("archive debt %d: %w", entry.ID, err)
	}
	return ArchiveResult{OriginalID: entry.ID, Err: err}
}

// CompletionTask asks the backend to complete entry.
func CompletionTask(ctx context.Context, backend Backend, entry DebtEntry) CompletionResult {
	updated, err := backend.CompleteDebt(ctx, NewCompletionRequest(entry))
	if err != nil {
		return CompletionResult{OriginalID: entry.ID, Err: fmt.Errorf("complete debt %d: %w", entry.ID, err)}
	}
	return CompletionResult{OriginalID: entry.ID, Updated: updated}
}

// ApplyCompletion folds a settled completion into the table: a nil result
// deletes the original entry, a returned entry replaces the one with its id.
func (t *Table) ApplyCompletion(res CompletionResult) CompletionOutcome {
	if res.Err != nil {
		return OutcomeFailed
	}
	if res.Updated == nil {
		t.DeleteByID(res.OriginalID)
		return OutcomeDeleted
	}
	if !t.UpdateByID(res.Updated.ID, *res.Updated) {
		return OutcomeMissing
	}
	return OutcomeUpdated
}

// Completer runs the complete action against a backend and applies it to a table.
type Completer struct {
	backend Backend
	table   *Table
	notify  Notifier
	errs    ErrorReporter
	logger  *zap.Logger
}

func NewCompleter(backend Backend, table *Table, notify Notifier, errs ErrorReporter, logger *zap.Logger) *Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		backend: backend,
		table:   table,
		notify:  notify,
		errs:    errs,
		logger:  logger,
	}
}

// Complete archives entry and completes it. The two calls run independently:
// neither waits for nor cancels the other, and each failure is reported on
// its own. It returns once both have settled.
func (c *Completer) Complete(ctx context.Context, entry DebtEntry) error {
	if c.table.Archive() {
		return ErrArchiveView
	}

	var g errgroup.Group
	g.Go(func() error {
		res := ArchiveTask(ctx, c.backend, entry)
		if res.Err != nil {
			c.errs.Report(res.Err)
			return nil
		}
		c.logger.Debug("debt archived", zap.Int64("original_id", res.OriginalID))
		return nil
	})
	g.Go(func() error {
		res := CompletionTask(ctx, c.backend, entry)
		if res.Err != nil {
			c.errs.Report(res.Err)
			return nil
		}
		outcome := c.table.ApplyCompletion(res)
		if outcome == OutcomeMissing {
			c.logger.Warn("completed debt not in table", zap.Int64("id", res.Updated.ID))
		}
		c.notify.Success(CompletedMessage)
		return nil
	})
	_ = g.Wait()
	return nil
}
