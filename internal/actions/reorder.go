package actions

import (
	"database/sql"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// ReorderTaskTx moves a task to newPosition within its sibling scope by
// shifting every sibling at >= newPosition up one slot. Overlapping reorders
// on the same scope are not concurrency-safe; clients serialize them.
func ReorderTaskTx(tx *sql.Tx, taskID string, newPosition int) (*models.Task, error) {
	task, err := store.GetTaskRow(tx, taskID)
	if err != nil {
		return nil, err
	}

	if err := store.ShiftSiblingsTx(tx, task.ProjectID, task.ParentTaskID, newPosition, taskID); err != nil {
		return nil, err
	}
	if err := store.SetPositionTx(tx, taskID, newPosition); err != nil {
		return nil, err
	}

	return store.LoadTaskTree(tx, taskID)
}
