package actions

import (
	"database/sql"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// SubtaskSpec describes one child to create during breakdown.
type SubtaskSpec struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description,omitempty"`
	Context     string          `json:"context,omitempty"`
	TaskType    models.TaskType `json:"task_type" binding:"required,oneof=feature bug tech_debt"`
	Position    *int            `json:"position,omitempty"`
}

// BreakdownRequest decomposes a task into subtasks.
type BreakdownRequest struct {
	Subtasks                []SubtaskSpec `json:"subtasks" binding:"required,min=1,dive"`
	ParentDescriptionUpdate string        `json:"parent_description_update,omitempty"`
	WorkLogContent          string        `json:"work_log_content" binding:"required"`
	Author                  string        `json:"author,omitempty"`
}

// BreakdownTaskTx inserts the subtasks under the parent and appends a
// breakdown work-log entry. The parent's points are never touched: new
// unsized children drive its readiness to needs_breakdown until they are
// sized themselves.
func BreakdownTaskTx(tx *sql.Tx, taskID string, req *BreakdownRequest) (*models.Task, error) {
	task, err := store.GetTaskRow(tx, taskID)
	if err != nil {
		return nil, err
	}

	if req.ParentDescriptionUpdate != "" {
		if err := store.SetDescriptionTx(tx, taskID, req.ParentDescriptionUpdate); err != nil {
			return nil, err
		}
	}

	// Base position is computed once; subtasks without an explicit position
	// get base + their index in the request.
	base, err := store.NextPosition(tx, task.ProjectID, taskID)
	if err != nil {
		return nil, err
	}

	for i, sub := range req.Subtasks {
		position := base + i
		if sub.Position != nil {
			position = *sub.Position
		}
		child := &models.Task{
			ProjectID:    task.ProjectID,
			ParentTaskID: taskID,
			Name:         sub.Name,
			Description:  sub.Description,
			Context:      sub.Context,
			TaskType:     sub.TaskType,
			Position:     position,
		}
		if _, err := store.InsertTaskTx(tx, child); err != nil {
			return nil, err
		}
	}

	if _, err := store.InsertWorkLogTx(tx, taskID, req.Author, models.OperationBreakdown, req.WorkLogContent); err != nil {
		return nil, err
	}

	return store.LoadTaskTree(tx, taskID)
}
