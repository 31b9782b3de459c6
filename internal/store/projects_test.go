package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/models"
)

func TestCreateAndGetProject(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	var created *models.Project
	err := Transact(db, func(tx *sql.Tx) error {
		var txErr error
		created, txErr = CreateProjectTx(tx, "Apollo", "moonshot")
		return txErr
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Apollo", created.Name)
	assert.Equal(t, "moonshot", created.Description)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := GetProject(db, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestGetProjectNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := GetProject(db, "missing")
	var apiErr *models.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.CodeNotFound, apiErr.Code)
}

func TestUpdateProjectPartial(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "Before")

	name := "After"
	var updated *models.Project
	err := Transact(db, func(tx *sql.Tx) error {
		var txErr error
		updated, txErr = UpdateProjectTx(tx, project.ID, &name, nil)
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, project.Description, updated.Description)
}

func TestDeleteProjectCascades(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "Doomed")
	task := createTestTask(t, db, project.ID, "", "orphan-to-be")

	err := Transact(db, func(tx *sql.Tx) error {
		return DeleteProjectTx(tx, project.ID)
	})
	require.NoError(t, err)

	_, err = GetTaskRow(db, task.ID)
	var apiErr *models.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.CodeNotFound, apiErr.Code)
}

func TestGetProjectStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "Stats")
	a := createTestTask(t, db, project.ID, "", "a")
	b := createTestTask(t, db, project.ID, "", "b")
	createTestTask(t, db, project.ID, "", "c")

	setTaskPoints(t, db, a.ID, 3)
	setTaskPoints(t, db, b.ID, 5)
	err := Transact(db, func(tx *sql.Tx) error {
		if err := SetStatusTx(tx, a.ID, models.StatusDoing); err != nil {
			return err
		}
		return SetStatusTx(tx, a.ID, models.StatusDone)
	})
	require.NoError(t, err)

	stats, err := GetProjectStats(db, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TaskCount)
	assert.Equal(t, 8, stats.PointsTotal)
	assert.Equal(t, 3, stats.PointsCompleted)
}
