package actions

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

func TestBacklogFiltersToReady(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	ready := createTestTask(t, db, project.ID, "", "ready")
	sizeTask(t, db, ready.ID, 3, 4)
	createTestTask(t, db, project.ID, "", "unsized")
	doing := createTestTask(t, db, project.ID, "", "doing")
	sizeTask(t, db, doing.ID, 2, 4)
	setStatus(t, db, doing.ID, models.StatusDoing)

	tasks, err := Backlog(db, project.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, ready.ID, tasks[0].ID)
	assert.Equal(t, models.ReadinessReady, tasks[0].Readiness)
}

func TestDiscoverySortPointsAscNullsLast(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	big := createTestTask(t, db, project.ID, "", "big")
	sizeTask(t, db, big.ID, 6, 4)
	small := createTestTask(t, db, project.ID, "", "small")
	sizeTask(t, db, small.ID, 2, 4)
	unsized := createTestTask(t, db, project.ID, "", "unsized")

	for _, id := range []string{big.ID, small.ID, unsized.ID} {
		setStatus(t, db, id, models.StatusDoing)
	}

	tasks, err := InProgress(db, project.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, small.ID, tasks[0].ID)
	assert.Equal(t, big.ID, tasks[1].ID)
	assert.Equal(t, unsized.ID, tasks[2].ID)
}

func TestInProgressLockDecoration(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	locked := createTestTask(t, db, project.ID, "", "locked")
	sizeTask(t, db, locked.ID, 2, 4)
	setStatus(t, db, locked.ID, models.StatusDoing)
	acquireLock(t, db, locked.ID, "agent-1", models.PurposeImplementation)

	bare := createTestTask(t, db, project.ID, "", "bare")
	sizeTask(t, db, bare.ID, 5, 4)
	setStatus(t, db, bare.ID, models.StatusDoing)

	tasks, err := InProgress(db, project.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	byID := map[string]*TaskWithLockInfo{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	require.NotNil(t, byID[locked.ID].LockCallerLabel)
	assert.Equal(t, "agent-1", *byID[locked.ID].LockCallerLabel)
	assert.Equal(t, models.PurposeImplementation, *byID[locked.ID].LockPurpose)
	assert.Nil(t, byID[bare.ID].LockCallerLabel)
	assert.Nil(t, byID[bare.ID].LockExpiresAt)
}

func TestNeedsRefinementUnion(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	flagged := createTestTask(t, db, project.ID, "", "flagged")
	err := store.Transact(db, func(tx *sql.Tx) error {
		return store.FlagRefinementTx(tx, flagged.ID, "unclear")
	})
	require.NoError(t, err)

	shaky := createTestTask(t, db, project.ID, "", "shaky")
	sizeTask(t, db, shaky.ID, 3, 2) // confidence <= 2

	solid := createTestTask(t, db, project.ID, "", "solid")
	sizeTask(t, db, solid.ID, 3, 5)

	tasks, err := NeedsRefinement(db, project.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	ids := map[string]bool{}
	for _, task := range tasks {
		ids[task.ID] = true
	}
	assert.True(t, ids[flagged.ID])
	assert.True(t, ids[shaky.ID])
}

func TestAvailableSizing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	leaf := createTestTask(t, db, project.ID, "", "leaf")
	parent := createTestTask(t, db, project.ID, "", "parent")
	createTestTask(t, db, project.ID, parent.ID, "child")
	sized := createTestTask(t, db, project.ID, "", "sized")
	sizeTask(t, db, sized.ID, 3, 4)

	tasks, err := Available(db, "sizing", AvailableFilters{ProjectID: project.ID}, ListParams{})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, task := range tasks {
		ids[task.ID] = true
	}
	assert.True(t, ids[leaf.ID])
	// The unsized child is itself a leaf candidate; its parent is not.
	assert.False(t, ids[parent.ID])
	assert.False(t, ids[sized.ID])
}

func TestAvailableExcludesLocked(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	free := createTestTask(t, db, project.ID, "", "free")
	taken := createTestTask(t, db, project.ID, "", "taken")
	acquireLock(t, db, taken.ID, "agent-1", models.PurposeSizing)

	tasks, err := Available(db, "sizing", AvailableFilters{ProjectID: project.ID}, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, free.ID, tasks[0].ID)
}

func TestAvailableImplementationAndFilters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")

	small := createTestTask(t, db, project.ID, "", "small")
	sizeTask(t, db, small.ID, 2, 4)
	medium := createTestTask(t, db, project.ID, "", "medium")
	sizeTask(t, db, medium.ID, 5, 4)
	big := createTestTask(t, db, project.ID, "", "big")
	sizeTask(t, db, big.ID, 8, 4) // needs_breakdown, not ready

	two, five := 2, 5
	tasks, err := Available(db, "implementation",
		AvailableFilters{ProjectID: project.ID, MinPoints: &two, MaxPoints: &five}, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, small.ID, tasks[0].ID)
	assert.Equal(t, medium.ID, tasks[1].ID)

	three := 3
	tasks, err = Available(db, "implementation",
		AvailableFilters{ProjectID: project.ID, MinPoints: &three}, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, medium.ID, tasks[0].ID)
}

func TestAvailableBreakdown(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	big := createTestTask(t, db, project.ID, "", "big")
	sizeTask(t, db, big.ID, 9, 4)
	small := createTestTask(t, db, project.ID, "", "small")
	sizeTask(t, db, small.ID, 2, 4)

	tasks, err := Available(db, "breakdown", AvailableFilters{ProjectID: project.ID}, ListParams{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, big.ID, tasks[0].ID)
}

func TestAvailableUnknownOperationEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	createTestTask(t, db, project.ID, "", "t")

	tasks, err := Available(db, "deploy", AvailableFilters{ProjectID: project.ID}, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestPagination(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	project := createTestProject(t, db, "P")
	for i, points := range []int{1, 2, 3, 4} {
		task := createTestTask(t, db, project.ID, "", string(rune('a'+i)))
		sizeTask(t, db, task.ID, points, 4)
	}

	page1, err := Backlog(db, project.ID, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, 1, *page1[0].EffectivePoints)
	assert.Equal(t, 2, *page1[1].EffectivePoints)

	page2, err := Backlog(db, project.ID, ListParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, 3, *page2[0].EffectivePoints)

	empty, err := Backlog(db, project.ID, ListParams{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{}.Normalize()
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = ListParams{Limit: 1000, Offset: -5}.Normalize()
	assert.Equal(t, 200, p.Limit)
	assert.Equal(t, 0, p.Offset)
}
