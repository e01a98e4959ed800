package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lachiem1/ioukeeper/internal/auth"
)

type Mode string

const (
	ModePlain  Mode = "plain"
	ModeSecure Mode = "secure"
)

const schemaVersion = 3

const (
	appDirName    = "ioukeeper"
	defaultDBName = "iou.db"
)

type Config struct {
	Mode Mode
	Path string
}

// keyring access for the sqlcipher key, swappable in tests.
var (
	loadDBKey = auth.LoadDBKey
	saveDBKey = auth.SaveDBKey
)

// Open opens the local cache at path (or the default location when empty)
// and brings its schema up to date. Builds tagged sqlcipher encrypt the file
// with a key kept in the OS keyring; other builds use plain SQLite.
func Open(ctx context.Context, path string) (*sql.DB, Config, error) {
	cfg, err := ResolveConfig(path)
	if err != nil {
		return nil, Config{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, Config{}, fmt.Errorf("create db directory: %w", err)
	}

	var db *sql.DB
	if cfg.Mode == ModeSecure {
		key, created, err := ensureDBKey()
		if err != nil {
			return nil, Config{}, fmt.Errorf("ensure secure db key: %w", err)
		}
		if created {
			// Files encrypted under a lost key are unreadable.
			if err := resetLocalDBFiles(cfg.Path); err != nil {
				return nil, Config{}, fmt.Errorf("reset db after key creation: %w", err)
			}
		}
		db, err = openSecureSQLite(cfg.Path, key)
		if err != nil {
			return nil, Config{}, err
		}
	} else {
		db, err = openPlainSQLite(cfg.Path)
		if err != nil {
			return nil, Config{}, err
		}
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, Config{}, err
	}
	return db, cfg, nil
}

// OpenMemory opens a migrated in-memory database. Used for tests and when
// the cache is disabled.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	db, err := openPlainSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Wipe removes local database files for the resolved DB path. It reports
// whether anything was there to remove.
func Wipe(path string) (Config, bool, error) {
	cfg, err := ResolveConfig(path)
	if err != nil {
		return Config{}, false, err
	}
	exists, err := hasLocalDBFiles(cfg.Path)
	if err != nil {
		return Config{}, false, fmt.Errorf("check local db files: %w", err)
	}
	if err := resetLocalDBFiles(cfg.Path); err != nil {
		return Config{}, false, fmt.Errorf("wipe local db files: %w", err)
	}
	return cfg, exists, nil
}

// ResolveConfig picks the storage mode for this build and the database path.
func ResolveConfig(path string) (Config, error) {
	mode := ModePlain
	if secureSQLiteSupported() {
		mode = ModeSecure
	}

	if dbPath := strings.TrimSpace(path); dbPath != "" {
		return Config{Mode: mode, Path: dbPath}, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve user config directory: %w", err)
	}
	return Config{
		Mode: mode,
		Path: filepath.Join(configDir, appDirName, defaultDBName),
	}, nil
}

func ensureDBKey() (key string, created bool, err error) {
	key, err = loadDBKey()
	if err == nil && strings.TrimSpace(key) != "" {
		return key, false, nil
	}

	newKey, err := generateRandomKey()
	if err != nil {
		return "", false, err
	}

	if err := saveDBKey(newKey); err != nil {
		return "", false, err
	}
	return newKey, true, nil
}

func generateRandomKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	const bootstrapSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  version INTEGER NOT NULL
);

INSERT OR IGNORE INTO schema_migrations (id, version) VALUES (1, 1);
`
	if _, err := db.ExecContext(ctx, bootstrapSchema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}

	var currentVersion int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE id = 1").Scan(&currentVersion); err != nil {
		return fmt.Errorf("read sqlite schema version: %w", err)
	}

	if currentVersion > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, schemaVersion)
	}

	migrations := []struct {
		version int
		schema  string
	}{
		{version: 2, schema: v2Schema},
		{version: 3, schema: v3Schema},
	}
	for _, m := range migrations {
		if currentVersion >= m.version {
			continue
		}
		if err := applyMigration(ctx, db, m.version, m.schema); err != nil {
			return err
		}
		currentVersion = m.version
	}
	return nil
}

const v2Schema = `
CREATE TABLE IF NOT EXISTS app_config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
  collection TEXT PRIMARY KEY,
  last_success_at TEXT,
  last_attempt_at TEXT,
  last_error TEXT
);
`

const v3Schema = `
CREATE TABLE IF NOT EXISTS debts (
  user_id INTEGER NOT NULL,
  kind TEXT NOT NULL CHECK (kind IN ('live', 'archive')),
  id INTEGER NOT NULL,
  position INTEGER NOT NULL,
  payload TEXT NOT NULL,
  last_fetched_at TEXT NOT NULL,
  PRIMARY KEY (user_id, kind, id)
);

CREATE INDEX IF NOT EXISTS idx_debts_user_kind_position ON debts(user_id, kind, position);
`

func applyMigration(ctx context.Context, db *sql.DB, version int, schema string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite migration v%d transaction: %w", version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite v%d migrations: %w", version, err)
	}
	if _, err = tx.ExecContext(ctx, "UPDATE schema_migrations SET version = ? WHERE id = 1", version); err != nil {
		return fmt.Errorf("update sqlite schema version to %d: %w", version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite v%d migrations: %w", version, err)
	}
	return nil
}

func localDBFiles(path string) []string {
	return []string{
		path,
		path + "-wal",
		path + "-shm",
	}
}

func hasLocalDBFiles(path string) (bool, error) {
	for _, p := range localDBFiles(path) {
		_, err := os.Stat(p)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	return false, nil
}

func resetLocalDBFiles(path string) error {
	for _, p := range localDBFiles(path) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
