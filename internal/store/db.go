package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// defaultBusyTimeoutMS is the SQLite busy_timeout in milliseconds.
// Override with CHORUS_BUSY_TIMEOUT_MS for environments with high contention.
const defaultBusyTimeoutMS = 5000

// Open initializes the database connection with SQLite + WAL mode and runs
// migrations. dsn is the DATABASE_URL value: a file path, a file: URI, or
// ":memory:" for tests.
func Open(dsn string) (*sql.DB, error) {
	// modernc.org/sqlite is strict about DSNs. Use a file: URI with mode=rwc
	// so the database can be created/written consistently across platforms.
	db, err := sql.Open("sqlite", normalizeSQLiteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer connection; SQLite serializes writers anyway and this keeps
	// the in-memory DSN visible to every request.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := defaultBusyTimeoutMS
	if v := os.Getenv("CHORUS_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			busyTimeout = parsed
		}
	}

	// busy_timeout first so subsequent pragmas (including WAL) wait on locks.
	// synchronous=NORMAL skips fsync per commit; WAL still covers committed
	// transactions on crash. foreign_keys=ON enforces the cascade chains the
	// schema relies on (project -> tasks -> locks/work log/commits).
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
	}

	for _, pragma := range pragmas {
		if err := RetryWithBackoff(func() error {
			_, err := db.ExecContext(context.Background(), pragma)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := RetryWithBackoff(func() error { return RunMigrations(db) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func normalizeSQLiteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}

	if dsn == ":memory:" {
		return "file::memory:?cache=shared"
	}

	// mode=rwc => read/write/create. Without this, some environments open read-only.
	return "file:" + dsn + "?mode=rwc"
}
