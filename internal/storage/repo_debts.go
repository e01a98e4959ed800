package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/lachiem1/ioukeeper/internal/debts"
)

// Kind names one of the two lists cached per user.
type Kind string

const (
	KindLive    Kind = "live"
	KindArchive Kind = "archive"
)

// DebtsRepo caches the last fetched debt lists per user, in load order.
type DebtsRepo struct {
	db *sql.DB
}

func NewDebtsRepo(db *sql.DB) *DebtsRepo {
	return &DebtsRepo{db: db}
}

func (r *DebtsRepo) HasAny(ctx context.Context, userID int64) (bool, error) {
	var exists int
	if err := r.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM debts WHERE user_id = ? LIMIT 1)`,
		userID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check cached debts for user %d: %w", userID, err)
	}
	return exists == 1, nil
}

// ReplaceSnapshot swaps the cached list of kind for userID with entries.
func (r *DebtsRepo) ReplaceSnapshot(
	ctx context.Context,
	userID int64,
	kind Kind,
	entries []debts.DebtEntry,
	fetchedAt time.Time,
) error {
	return r.ReplaceSnapshots(ctx, userID, map[Kind][]debts.DebtEntry{kind: entries}, fetchedAt)
}

// ReplaceSnapshots swaps every list in lists for userID in one transaction,
// so either all of them are replaced or none is. Kinds missing from lists
// are left as they are.
func (r *DebtsRepo) ReplaceSnapshots(
	ctx context.Context,
	userID int64,
	lists map[Kind][]debts.DebtEntry,
	fetchedAt time.Time,
) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin debts snapshot transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	fetchedValue := fetchedAt.UTC().Format(time.RFC3339Nano)
	kinds := make([]Kind, 0, len(lists))
	for kind := range lists {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		if err = replaceKind(ctx, tx, userID, kind, lists[kind], fetchedValue); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit debts snapshot transaction: %w", err)
	}
	return nil
}

func replaceKind(ctx context.Context, tx *sql.Tx, userID int64, kind Kind, entries []debts.DebtEntry, fetchedAt string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM debts WHERE user_id = ? AND kind = ?`, userID, string(kind)); err != nil {
		return fmt.Errorf("clear %s debts for user %d: %w", kind, userID, err)
	}

	for i, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode %s debt %d: %w", kind, entry.ID, err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO debts (user_id, kind, id, position, payload, last_fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, kind, id) DO UPDATE SET
			   position = excluded.position,
			   payload = excluded.payload,
			   last_fetched_at = excluded.last_fetched_at`,
			userID,
			string(kind),
			entry.ID,
			i,
			string(payload),
			fetchedAt,
		); err != nil {
			return fmt.Errorf("insert %s debt %d: %w", kind, entry.ID, err)
		}
	}
	return nil
}

// List returns the cached list of kind for userID in load order.
func (r *DebtsRepo) List(ctx context.Context, userID int64, kind Kind) ([]debts.DebtEntry, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT payload FROM debts WHERE user_id = ? AND kind = ? ORDER BY position, id`,
		userID,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s debts for user %d: %w", kind, userID, err)
	}
	defer rows.Close()

	out := make([]debts.DebtEntry, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s debt row: %w", kind, err)
		}
		var entry debts.DebtEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("decode cached debt: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s debt rows: %w", kind, err)
	}
	return out, nil
}

// Upsert writes entry in place, or appends it when its id is not cached.
func (r *DebtsRepo) Upsert(ctx context.Context, userID int64, kind Kind, entry debts.DebtEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode debt %d: %w", entry.ID, err)
	}
	const q = `
INSERT INTO debts (user_id, kind, id, position, payload, last_fetched_at)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM debts WHERE user_id = ? AND kind = ?), ?, ?)
ON CONFLICT(user_id, kind, id) DO UPDATE SET
  payload = excluded.payload,
  last_fetched_at = excluded.last_fetched_at
`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx, q, userID, string(kind), entry.ID, userID, string(kind), string(payload), now); err != nil {
		return fmt.Errorf("upsert debt %d: %w", entry.ID, err)
	}
	return nil
}

// Delete removes one cached debt and reports whether it was present.
func (r *DebtsRepo) Delete(ctx context.Context, userID int64, kind Kind, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM debts WHERE user_id = ? AND kind = ? AND id = ?`, userID, string(kind), id)
	if err != nil {
		return false, fmt.Errorf("delete debt %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete debt %d: %w", id, err)
	}
	return n > 0, nil
}

// DeleteUser drops every cached list for userID.
func (r *DebtsRepo) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM debts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete cached debts for user %d: %w", userID, err)
	}
	return nil
}
