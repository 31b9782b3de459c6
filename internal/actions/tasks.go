package actions

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// CreateTaskRequest creates a task at the end of its sibling scope. The
// parent, when set, must belong to the same project; tasks are never
// reparented afterwards, which is what keeps the hierarchy acyclic.
type CreateTaskRequest struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description,omitempty"`
	Context      string          `json:"context,omitempty"`
	TaskType     models.TaskType `json:"task_type" binding:"required,oneof=feature bug tech_debt"`
	ParentTaskID string          `json:"parent_task_id,omitempty"`
}

// CreateTaskTx validates project and parent, assigns the next sibling
// position, and inserts the task with status todo.
func CreateTaskTx(tx *sql.Tx, projectID string, req *CreateTaskRequest) (*models.Task, error) {
	if _, err := store.GetProject(tx, projectID); err != nil {
		return nil, err
	}

	if req.ParentTaskID != "" {
		parent, err := store.GetTaskRow(tx, req.ParentTaskID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != projectID {
			return nil, models.Validation("Parent task belongs to a different project", nil)
		}
	}

	position, err := store.NextPosition(tx, projectID, req.ParentTaskID)
	if err != nil {
		return nil, err
	}

	return store.InsertTaskTx(tx, &models.Task{
		ProjectID:    projectID,
		ParentTaskID: req.ParentTaskID,
		Name:         req.Name,
		Description:  req.Description,
		Context:      req.Context,
		TaskType:     req.TaskType,
		Position:     position,
	})
}

// CreateSubtaskTx creates a child under parentTaskID, deriving the project
// from the parent.
func CreateSubtaskTx(tx *sql.Tx, parentTaskID string, req *CreateTaskRequest) (*models.Task, error) {
	parent, err := store.GetTaskRow(tx, parentTaskID)
	if err != nil {
		return nil, err
	}
	req.ParentTaskID = parentTaskID
	return CreateTaskTx(tx, parent.ProjectID, req)
}

// TaskContextView is the agent-facing briefing for a task: the enriched
// task, its ancestor chain, the full work log, optionally its commits, and
// whether the captured context is still trustworthy.
type TaskContextView struct {
	Task             *models.EnrichedTask   `json:"task"`
	Ancestors        []*models.Task         `json:"ancestors"`
	WorkLog          []*models.WorkLogEntry `json:"work_log"`
	Commits          []*models.TaskCommit   `json:"commits,omitempty"`
	ContextFreshness string                 `json:"context_freshness"`
	StaleReasons     []string               `json:"stale_reasons"`
}

// TaskContext assembles the context view. Context is stale when it was never
// captured, or when any ancestor was updated after the capture time.
func TaskContext(q store.Querier, taskID string, includeCommits bool) (*TaskContextView, error) {
	task, err := store.LoadTaskTree(q, taskID)
	if err != nil {
		return nil, err
	}

	chain, err := store.GetAncestry(q, taskID)
	if err != nil {
		return nil, err
	}
	ancestors := chain[:len(chain)-1] // drop the task itself

	workLog, err := store.ListWorkLog(q, taskID)
	if err != nil {
		return nil, err
	}

	view := &TaskContextView{
		Task:         models.Enrich(task, time.Now().UTC()),
		Ancestors:    ancestors,
		WorkLog:      workLog,
		StaleReasons: []string{},
	}

	if includeCommits {
		commits, err := store.ListCommits(q, taskID)
		if err != nil {
			return nil, err
		}
		view.Commits = commits
	}

	if task.ContextCapturedAt == nil {
		view.StaleReasons = append(view.StaleReasons, "Context never captured")
	} else {
		for _, ancestor := range ancestors {
			if ancestor.UpdatedAt.After(*task.ContextCapturedAt) {
				view.StaleReasons = append(view.StaleReasons,
					fmt.Sprintf("%s (updated %s)", ancestor.Name, ancestor.UpdatedAt.UTC().Format(time.RFC3339)))
			}
		}
	}

	view.ContextFreshness = "fresh"
	if len(view.StaleReasons) > 0 {
		view.ContextFreshness = "stale"
	}
	return view, nil
}

// ExportedTask is one task in a project export: the stored row with its
// work log and commits inlined. No lock, no derived fields.
type ExportedTask struct {
	models.Task
	WorkLogEntries []*models.WorkLogEntry `json:"work_log_entries"`
	Commits        []*models.TaskCommit   `json:"commits"`
}

// ProjectExport is the envelope returned by the export endpoint.
type ProjectExport struct {
	Project    *models.Project `json:"project"`
	ExportedAt time.Time       `json:"exported_at"`
	Tasks      []*ExportedTask `json:"tasks"`
}

// ExportProject snapshots a project: every task ordered by position with
// its work log and commits inlined.
func ExportProject(q store.Querier, projectID string) (*ProjectExport, error) {
	project, err := store.GetProject(q, projectID)
	if err != nil {
		return nil, err
	}

	tasks, err := store.LoadTasks(q, projectID)
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})

	export := &ProjectExport{
		Project:    project,
		ExportedAt: time.Now().UTC(),
		Tasks:      make([]*ExportedTask, 0, len(tasks)),
	}
	for _, t := range tasks {
		workLog, err := store.ListWorkLog(q, t.ID)
		if err != nil {
			return nil, err
		}
		commits, err := store.ListCommits(q, t.ID)
		if err != nil {
			return nil, err
		}
		export.Tasks = append(export.Tasks, &ExportedTask{
			Task:           *t,
			WorkLogEntries: workLog,
			Commits:        commits,
		})
	}
	return export, nil
}
