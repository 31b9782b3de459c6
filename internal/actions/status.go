package actions

import (
	"database/sql"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// checkDescendantsTerminal walks the loaded subtree below task and reports
// whether every descendant is terminal (done/wont_do) and whether at least
// one is done.
func checkDescendantsTerminal(task *models.Task) (allTerminal, anyDone bool) {
	allTerminal = true
	var walk func(t *models.Task)
	walk = func(t *models.Task) {
		for _, child := range t.Children {
			if !child.Status.IsTerminal() {
				allTerminal = false
			}
			if child.Status == models.StatusDone {
				anyDone = true
			}
			walk(child)
		}
	}
	walk(task)
	return allTerminal, anyDone
}

// UpdateTaskStatusTx applies a status transition with the state-machine
// rules: the transition table, the completion gate over the full descendant
// subtree, and single-level reopen propagation to a done parent. Further
// propagation happens naturally as each reopen triggers the next.
func UpdateTaskStatusTx(tx *sql.Tx, taskID string, newStatus models.Status) (*models.Task, error) {
	task, err := store.LoadTaskTree(tx, taskID)
	if err != nil {
		return nil, err
	}

	oldStatus := task.Status
	if newStatus == oldStatus {
		return task, nil
	}

	if !models.CanTransition(oldStatus, newStatus) {
		return nil, models.InvalidStatusTransition(oldStatus, newStatus)
	}

	if newStatus == models.StatusDone && len(task.Children) > 0 {
		allTerminal, anyDone := checkDescendantsTerminal(task)
		if !allTerminal {
			return nil, models.Validation(
				"Cannot complete: not all descendants are terminal (done/wont_do)", nil)
		}
		if !anyDone {
			return nil, models.Validation(
				"Cannot complete: at least one descendant must be done", nil)
		}
	}

	if err := store.SetStatusTx(tx, taskID, newStatus); err != nil {
		return nil, err
	}

	// Reopening a done child reopens a done parent in the same transaction.
	if oldStatus == models.StatusDone &&
		(newStatus == models.StatusTodo || newStatus == models.StatusDoing) &&
		task.ParentTaskID != "" {
		parent, err := store.GetTaskRow(tx, task.ParentTaskID)
		if err == nil && parent.Status == models.StatusDone {
			if err := store.SetStatusTx(tx, parent.ID, models.StatusTodo); err != nil {
				return nil, err
			}
		}
	}

	return store.LoadTaskTree(tx, taskID)
}
