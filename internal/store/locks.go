package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chorushq/chorus/internal/models"
)

// Expiry arithmetic stays inside SQLite (datetime against CURRENT_TIMESTAMP)
// so lease comparisons never depend on the Go binding format for time.Time.

// GetLock loads the lock row for a task, or nil if none exists. The row may
// be expired; callers decide whether that matters.
func GetLock(q Querier, taskID string) (*models.TaskLock, error) {
	row := q.QueryRow(`
		SELECT id, task_id, caller_label, lock_purpose, acquired_at, last_heartbeat_at, expires_at
		FROM task_locks WHERE task_id = ?
	`, taskID)

	lock, err := scanLockRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func scanLockRow(row interface {
	Scan(dest ...any) error
}) (*models.TaskLock, error) {
	var l models.TaskLock
	var lastHeartbeat sql.NullTime
	err := row.Scan(&l.ID, &l.TaskID, &l.CallerLabel, &l.LockPurpose,
		&l.AcquiredAt, &lastHeartbeat, &l.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan lock row: %w", err)
	}
	l.LastHeartbeatAt = scanNullTime(lastHeartbeat)
	return &l, nil
}

// InsertLockTx inserts a fresh lease expiring ttlMinutes from now. The
// unique index on task_id makes concurrent acquires serialize: the loser
// fails here with a unique-constraint error.
func InsertLockTx(tx *sql.Tx, taskID, callerLabel string, purpose models.LockPurpose, ttlMinutes int) (*models.TaskLock, error) {
	id := NewID()
	_, err := tx.Exec(`
		INSERT INTO task_locks (id, task_id, caller_label, lock_purpose, acquired_at, last_heartbeat_at, expires_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, NULL, datetime(CURRENT_TIMESTAMP, '+' || ? || ' minutes'))
	`, id, taskID, callerLabel, string(purpose), ttlMinutes)
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return nil, models.LockConflict("Task is already locked")
		}
		return nil, fmt.Errorf("failed to insert lock: %w", err)
	}

	lock, err := GetLock(tx, taskID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, fmt.Errorf("lock row missing after insert for task %s", taskID)
	}
	return lock, nil
}

// ExtendLockTx refreshes the lease: last_heartbeat_at = now and
// expires_at = now + ttlMinutes.
func ExtendLockTx(tx *sql.Tx, taskID string, ttlMinutes int) (*models.TaskLock, error) {
	_, err := tx.Exec(`
		UPDATE task_locks
		SET last_heartbeat_at = CURRENT_TIMESTAMP,
		    expires_at = datetime(CURRENT_TIMESTAMP, '+' || ? || ' minutes')
		WHERE task_id = ?
	`, ttlMinutes, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to extend lock: %w", err)
	}

	lock, err := GetLock(tx, taskID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, models.NotFound("No lock found for this task")
	}
	return lock, nil
}

// IsLockExpired evaluates the lease expiry against the database clock, the
// same clock that wrote expires_at.
func IsLockExpired(q Querier, taskID string) (bool, error) {
	var expired bool
	err := q.QueryRow(`
		SELECT expires_at < CURRENT_TIMESTAMP FROM task_locks WHERE task_id = ?
	`, taskID).Scan(&expired)
	if errors.Is(err, sql.ErrNoRows) {
		return false, models.NotFound("No lock found for this task")
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lock expiry: %w", err)
	}
	return expired, nil
}

// DeleteLockTx removes the lock row for a task, if any.
func DeleteLockTx(tx *sql.Tx, taskID string) error {
	if _, err := tx.Exec(`DELETE FROM task_locks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}
	return nil
}

// DeleteExpiredLocksTx bulk-deletes every lease past its expiry.
func DeleteExpiredLocksTx(tx *sql.Tx) (int64, error) {
	result, err := tx.Exec(`DELETE FROM task_locks WHERE expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted locks: %w", err)
	}
	return n, nil
}

// ExpireLockNowTx backdates a lease so it reads as expired. Test helper.
func ExpireLockNowTx(tx *sql.Tx, taskID string) error {
	_, err := tx.Exec(`
		UPDATE task_locks SET expires_at = datetime(CURRENT_TIMESTAMP, '-1 seconds')
		WHERE task_id = ?
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to expire lock: %w", err)
	}
	return nil
}
