package actions

import (
	"database/sql"
	"time"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// CommitSpec describes one commit to record. Hashes are validated as 40-hex
// at the transport boundary and never re-verified.
type CommitSpec struct {
	CommitHash  string    `json:"commit_hash" binding:"required,len=40,hexadecimal"`
	Message     string    `json:"message,omitempty"`
	Author      string    `json:"author,omitempty"`
	CommittedAt time.Time `json:"committed_at" binding:"required"`
}

// CompleteRequest finishes a task: work-log entry, optional commits, then
// the done transition.
type CompleteRequest struct {
	WorkLogContent string       `json:"work_log_content" binding:"required"`
	Author         string       `json:"author,omitempty"`
	Commits        []CommitSpec `json:"commits,omitempty" binding:"omitempty,dive"`
}

// CompleteTaskTx appends an implementation work-log entry, records the
// supplied commits, and transitions the task to done. Any state-machine
// failure rolls the whole transaction back, including the work log and
// commits written here.
func CompleteTaskTx(tx *sql.Tx, taskID string, req *CompleteRequest) (*models.Task, error) {
	if _, err := store.GetTaskRow(tx, taskID); err != nil {
		return nil, err
	}

	if _, err := store.InsertWorkLogTx(tx, taskID, req.Author, models.OperationImplementation, req.WorkLogContent); err != nil {
		return nil, err
	}

	for _, spec := range req.Commits {
		commit := &models.TaskCommit{
			TaskID:      taskID,
			Author:      spec.Author,
			CommitHash:  spec.CommitHash,
			Message:     spec.Message,
			CommittedAt: spec.CommittedAt,
		}
		if _, err := store.InsertCommitTx(tx, commit); err != nil {
			return nil, err
		}
	}

	return UpdateTaskStatusTx(tx, taskID, models.StatusDone)
}
