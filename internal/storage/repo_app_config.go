package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lachiem1/ioukeeper/internal/debts"
)

const (
	keySessionUserID = "session.user_id"
	keySessionName   = "session.name"
	keyViewDirection = "view.direction"
	keyViewArchive   = "view.archive"
)

type AppConfigRepo struct {
	db *sql.DB
}

func NewAppConfigRepo(db *sql.DB) *AppConfigRepo {
	return &AppConfigRepo{db: db}
}

func (r *AppConfigRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get app config %q: %w", key, err)
	}
	return value, true, nil
}

func (r *AppConfigRepo) UpsertMany(ctx context.Context, values map[string]string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin app config upsert transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, value := range values {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key,
			value,
			now,
		); err != nil {
			return fmt.Errorf("upsert app config %q: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit app config upsert transaction: %w", err)
	}
	return nil
}

func (r *AppConfigRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM app_config WHERE key = ?", key); err != nil {
			return fmt.Errorf("delete app config %q: %w", key, err)
		}
	}
	return nil
}

// Session is the signed-in user as last returned by the backend.
type Session struct {
	UserID int64
	Name   string
}

func (r *AppConfigRepo) LoadSession(ctx context.Context) (Session, bool, error) {
	raw, ok, err := r.Get(ctx, keySessionUserID)
	if err != nil || !ok {
		return Session{}, false, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID == 0 {
		return Session{}, false, nil
	}
	name, _, err := r.Get(ctx, keySessionName)
	if err != nil {
		return Session{}, false, err
	}
	return Session{UserID: userID, Name: name}, true, nil
}

func (r *AppConfigRepo) SaveSession(ctx context.Context, s Session) error {
	return r.UpsertMany(ctx, map[string]string{
		keySessionUserID: strconv.FormatInt(s.UserID, 10),
		keySessionName:   s.Name,
	})
}

func (r *AppConfigRepo) ClearSession(ctx context.Context) error {
	return r.Delete(ctx, keySessionUserID, keySessionName)
}

// ViewPrefs are the bills view toggles that survive restarts.
type ViewPrefs struct {
	Direction debts.Direction
	Archive   bool
}

// LoadViewPrefs returns the stored prefs, falling back to defaults for
// missing or unreadable values.
func (r *AppConfigRepo) LoadViewPrefs(ctx context.Context) (ViewPrefs, error) {
	var prefs ViewPrefs
	if raw, ok, err := r.Get(ctx, keyViewDirection); err != nil {
		return ViewPrefs{}, err
	} else if ok {
		if d, err := debts.ParseDirection(raw); err == nil {
			prefs.Direction = d
		}
	}
	if raw, ok, err := r.Get(ctx, keyViewArchive); err != nil {
		return ViewPrefs{}, err
	} else if ok {
		prefs.Archive, _ = strconv.ParseBool(raw)
	}
	return prefs, nil
}

func (r *AppConfigRepo) SaveViewPrefs(ctx context.Context, prefs ViewPrefs) error {
	return r.UpsertMany(ctx, map[string]string{
		keyViewDirection: prefs.Direction.String(),
		keyViewArchive:   strconv.FormatBool(prefs.Archive),
	})
}
