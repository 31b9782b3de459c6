package actions

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	db, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err, "failed to initialize test database")

	return db, func() { _ = db.Close() }
}

func createTestProject(t *testing.T, db *sql.DB, name string) *models.Project {
	t.Helper()

	var project *models.Project
	err := store.Transact(db, func(tx *sql.Tx) error {
		var txErr error
		project, txErr = store.CreateProjectTx(tx, name, "")
		return txErr
	})
	require.NoError(t, err)
	return project
}

func createTestTask(t *testing.T, db *sql.DB, projectID, parentTaskID, name string) *models.Task {
	t.Helper()

	var task *models.Task
	err := store.Transact(db, func(tx *sql.Tx) error {
		position, txErr := store.NextPosition(tx, projectID, parentTaskID)
		if txErr != nil {
			return txErr
		}
		task, txErr = store.InsertTaskTx(tx, &models.Task{
			ProjectID:    projectID,
			ParentTaskID: parentTaskID,
			Name:         name,
			TaskType:     models.TaskTypeFeature,
			Position:     position,
		})
		return txErr
	})
	require.NoError(t, err)
	return task
}

func sizeTask(t *testing.T, db *sql.DB, taskID string, points, confidence int) {
	t.Helper()

	err := store.Transact(db, func(tx *sql.Tx) error {
		return store.ApplySizingTx(tx, taskID, points, []byte(`{}`), confidence)
	})
	require.NoError(t, err)
}

func setStatus(t *testing.T, db *sql.DB, taskID string, statuses ...models.Status) {
	t.Helper()

	for _, status := range statuses {
		err := store.Transact(db, func(tx *sql.Tx) error {
			_, txErr := UpdateTaskStatusTx(tx, taskID, status)
			return txErr
		})
		require.NoError(t, err)
	}
}

func acquireLock(t *testing.T, db *sql.DB, taskID, caller string, purpose models.LockPurpose) *models.TaskLock {
	t.Helper()

	var lock *models.TaskLock
	err := store.Transact(db, func(tx *sql.Tx) error {
		var txErr error
		lock, txErr = AcquireLockTx(tx, taskID, caller, purpose)
		return txErr
	})
	require.NoError(t, err)
	return lock
}

func expireLock(t *testing.T, db *sql.DB, taskID string) {
	t.Helper()

	err := store.Transact(db, func(tx *sql.Tx) error {
		return store.ExpireLockNowTx(tx, taskID)
	})
	require.NoError(t, err)
}

func apiError(t *testing.T, err error) *models.Error {
	t.Helper()

	var apiErr *models.Error
	require.ErrorAs(t, err, &apiErr)
	return apiErr
}
