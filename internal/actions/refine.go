package actions

import (
	"database/sql"
	"time"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// RefineRequest overwrites a task's refinement fields. Nil leaves a field
// unchanged.
type RefineRequest struct {
	Description       *string    `json:"description,omitempty"`
	Context           *string    `json:"context,omitempty"`
	ContextCapturedAt *time.Time `json:"context_captured_at,omitempty"`
	WorkLogContent    string     `json:"work_log_content" binding:"required"`
	Author            string     `json:"author,omitempty"`
}

// FlagRefinementRequest marks a task as needing refinement.
type FlagRefinementRequest struct {
	RefinementNotes string `json:"refinement_notes" binding:"required"`
}

// RefineTaskTx applies the refinement, clears the needs_refinement flag, and
// appends a refinement work-log entry.
func RefineTaskTx(tx *sql.Tx, taskID string, req *RefineRequest) (*models.Task, error) {
	if _, err := store.GetTaskRow(tx, taskID); err != nil {
		return nil, err
	}

	if err := store.ApplyRefinementTx(tx, taskID, req.Description, req.Context, req.ContextCapturedAt); err != nil {
		return nil, err
	}

	if _, err := store.InsertWorkLogTx(tx, taskID, req.Author, models.OperationRefinement, req.WorkLogContent); err != nil {
		return nil, err
	}

	return store.LoadTaskTree(tx, taskID)
}

// FlagRefinementTx raises the needs_refinement flag with notes. No work-log
// entry is written and the operation has no idempotency scope.
func FlagRefinementTx(tx *sql.Tx, taskID string, req *FlagRefinementRequest) (*models.Task, error) {
	if _, err := store.GetTaskRow(tx, taskID); err != nil {
		return nil, err
	}

	if err := store.FlagRefinementTx(tx, taskID, req.RefinementNotes); err != nil {
		return nil, err
	}

	return store.LoadTaskTree(tx, taskID)
}
