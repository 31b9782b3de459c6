package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/models"
)

func acquireTestLock(t *testing.T, db *sql.DB, taskID, caller string, purpose models.LockPurpose) *models.TaskLock {
	t.Helper()

	var lock *models.TaskLock
	err := Transact(db, func(tx *sql.Tx) error {
		var txErr error
		lock, txErr = InsertLockTx(tx, taskID, caller, purpose, 15)
		return txErr
	})
	require.NoError(t, err)
	return lock
}

func TestInsertLockUniquePerTask(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "t")

	acquireTestLock(t, db, task.ID, "agent-1", models.PurposeSizing)

	err := Transact(db, func(tx *sql.Tx) error {
		_, txErr := InsertLockTx(tx, task.ID, "agent-2", models.PurposeSizing, 15)
		return txErr
	})
	var apiErr *models.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.CodeLockConflict, apiErr.Code)
}

func TestLockExpiry(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "t")

	acquireTestLock(t, db, task.ID, "agent-1", models.PurposeSizing)

	expired, err := IsLockExpired(db, task.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	err = Transact(db, func(tx *sql.Tx) error {
		return ExpireLockNowTx(tx, task.ID)
	})
	require.NoError(t, err)

	expired, err = IsLockExpired(db, task.ID)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestExtendLockSetsHeartbeat(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "t")

	created := acquireTestLock(t, db, task.ID, "agent-1", models.PurposeImplementation)
	assert.Nil(t, created.LastHeartbeatAt)

	var extended *models.TaskLock
	err := Transact(db, func(tx *sql.Tx) error {
		var txErr error
		extended, txErr = ExtendLockTx(tx, task.ID, 60)
		return txErr
	})
	require.NoError(t, err)
	require.NotNil(t, extended.LastHeartbeatAt)
	assert.False(t, extended.ExpiresAt.Before(created.ExpiresAt))
}

func TestDeleteExpiredLocks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	stale := createTestTask(t, db, project.ID, "", "stale")
	fresh := createTestTask(t, db, project.ID, "", "fresh")

	acquireTestLock(t, db, stale.ID, "agent-1", models.PurposeSizing)
	acquireTestLock(t, db, fresh.ID, "agent-2", models.PurposeSizing)
	err := Transact(db, func(tx *sql.Tx) error {
		return ExpireLockNowTx(tx, stale.ID)
	})
	require.NoError(t, err)

	var deleted int64
	err = Transact(db, func(tx *sql.Tx) error {
		var txErr error
		deleted, txErr = DeleteExpiredLocksTx(tx)
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := GetLock(db, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := GetLock(db, fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "agent-2", kept.CallerLabel)
}
