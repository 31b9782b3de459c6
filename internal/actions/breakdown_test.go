package actions

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

func TestBreakdownAutoPositions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "parent")

	var result *models.Task
	err := store.Transact(db, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = BreakdownTaskTx(tx, task.ID, &BreakdownRequest{
			Subtasks: []SubtaskSpec{
				{Name: "first", TaskType: models.TaskTypeFeature},
				{Name: "second", TaskType: models.TaskTypeBug},
			},
			WorkLogContent: "split into two",
		})
		return txErr
	})
	require.NoError(t, err)

	require.Len(t, result.Children, 2)
	assert.Equal(t, "first", result.Children[0].Name)
	assert.Equal(t, 0, result.Children[0].Position)
	assert.Equal(t, "second", result.Children[1].Name)
	assert.Equal(t, 1, result.Children[1].Position)
}

func TestBreakdownExplicitPositionAndBase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "parent")
	createTestTask(t, db, project.ID, task.ID, "existing") // position 0

	five := 5
	var result *models.Task
	err := store.Transact(db, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = BreakdownTaskTx(tx, task.ID, &BreakdownRequest{
			Subtasks: []SubtaskSpec{
				{Name: "auto", TaskType: models.TaskTypeFeature},
				{Name: "pinned", TaskType: models.TaskTypeFeature, Position: &five},
			},
			WorkLogContent: "more children",
		})
		return txErr
	})
	require.NoError(t, err)

	// Base is max(position)+1 = 1; "auto" lands at base+0, "pinned" keeps 5.
	byName := map[string]int{}
	for _, child := range result.Children {
		byName[child.Name] = child.Position
	}
	assert.Equal(t, 1, byName["auto"])
	assert.Equal(t, 5, byName["pinned"])
}

func TestBreakdownUpdatesParentDescription(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "parent")

	var result *models.Task
	err := store.Transact(db, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = BreakdownTaskTx(tx, task.ID, &BreakdownRequest{
			Subtasks:                []SubtaskSpec{{Name: "child", TaskType: models.TaskTypeFeature}},
			ParentDescriptionUpdate: "now decomposed",
			WorkLogContent:          "split",
		})
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, "now decomposed", result.Description)

	entries, err := store.ListWorkLog(db, task.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OperationBreakdown, entries[0].Operation)
}

func TestBreakdownLeavesParentPointsAlone(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	task := createTestTask(t, db, project.ID, "", "parent")
	sizeTask(t, db, task.ID, 8, 4)

	var result *models.Task
	err := store.Transact(db, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = BreakdownTaskTx(tx, task.ID, &BreakdownRequest{
			Subtasks:       []SubtaskSpec{{Name: "child", TaskType: models.TaskTypeFeature}},
			WorkLogContent: "split",
		})
		return txErr
	})
	require.NoError(t, err)

	require.NotNil(t, result.Points)
	assert.Equal(t, 8, *result.Points)
	// Unsized child drives readiness back to needs_breakdown.
	assert.Equal(t, models.ReadinessNeedsBreakdown, models.ComputeReadiness(result))
}
