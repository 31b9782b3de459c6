package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/models"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	db, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err, "failed to initialize test database")

	return db, func() { _ = db.Close() }
}

func createTestProject(t *testing.T, db *sql.DB, name string) *models.Project {
	t.Helper()

	var project *models.Project
	err := Transact(db, func(tx *sql.Tx) error {
		var txErr error
		project, txErr = CreateProjectTx(tx, name, "")
		return txErr
	})
	require.NoError(t, err)
	return project
}

func createTestTask(t *testing.T, db *sql.DB, projectID, parentTaskID, name string) *models.Task {
	t.Helper()

	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		position, txErr := NextPosition(tx, projectID, parentTaskID)
		if txErr != nil {
			return txErr
		}
		task, txErr = InsertTaskTx(tx, &models.Task{
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

func setTaskPoints(t *testing.T, db *sql.DB, taskID string, points int) {
	t.Helper()

	err := Transact(db, func(tx *sql.Tx) error {
		return ApplySizingTx(tx, taskID, points, []byte(`{}`), 3)
	})
	require.NoError(t, err)
}
