package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chorushq/chorus/internal/models"
)

// TaskUpdate carries the optional fields of a task PUT. Nil means "leave
// unchanged"; an empty string clears a nullable column.
type TaskUpdate struct {
	Name        *string
	Description *string
	Context     *string
	TaskType    *models.TaskType
}

// InsertTaskTx inserts a task and returns the stored row without relations.
// The caller is responsible for position assignment and parent validation.
func InsertTaskTx(tx *sql.Tx, t *models.Task) (*models.Task, error) {
	id := NewID()
	_, err := tx.Exec(`
		INSERT INTO tasks (id, project_id, parent_task_id, name, description, context,
			task_type, status, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'todo', ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, t.ProjectID, nullable(t.ParentTaskID), t.Name, nullable(t.Description),
		nullable(t.Context), t.TaskType, t.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	return GetTaskRow(tx, id)
}

// NextPosition returns max(position)+1 among the siblings in the given
// parent scope (parentTaskID empty means the project's root scope).
// Returns 0 when the scope is empty (-1 baseline).
func NextPosition(q Querier, projectID, parentTaskID string) (int, error) {
	var query string
	args := []any{projectID}
	if parentTaskID == "" {
		query = `SELECT COALESCE(MAX(position), -1) + 1 FROM tasks
			WHERE project_id = ? AND parent_task_id IS NULL`
	} else {
		query = `SELECT COALESCE(MAX(position), -1) + 1 FROM tasks
			WHERE project_id = ? AND parent_task_id = ?`
		args = append(args, parentTaskID)
	}

	var next int
	if err := q.QueryRow(query, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}
	return next, nil
}

// GetTaskRow loads a single task row without children or lock.
// Returns NOT_FOUND if absent.
func GetTaskRow(q Querier, taskID string) (*models.Task, error) {
	row := q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	task, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("Task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return task, nil
}

// LoadTaskTree loads the task and its full descendant subtree via a
// recursive CTE, wires Children pointers (ordered by position), and
// attaches lock rows. The returned root is safe for every derived-state
// computation including the recursive completion gate.
func LoadTaskTree(q Querier, taskID string) (*models.Task, error) {
	rows, err := q.Query(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM tasks WHERE id = ?
			UNION ALL
			SELECT t.id FROM tasks t JOIN subtree s ON t.parent_task_id = s.id
		)
		SELECT `+taskColumns+` FROM tasks WHERE id IN (SELECT id FROM subtree)
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task subtree: %w", err)
	}

	byID, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	root, ok := byID[taskID]
	if !ok {
		return nil, models.NotFound("Task not found")
	}

	wireChildren(byID)
	if err := attachLocks(q, byID); err != nil {
		return nil, err
	}
	return root, nil
}

// LoadTasks loads every task (optionally restricted to one project) with
// Children wired and locks attached. Discovery operates on this in-memory
// forest so readiness and effective points see arbitrary depth.
func LoadTasks(q Querier, projectID string) ([]*models.Task, error) {
	var rows *sql.Rows
	var err error
	if projectID == "" {
		rows, err = q.Query(`SELECT ` + taskColumns + ` FROM tasks`)
	} else {
		rows, err = q.Query(`SELECT `+taskColumns+` FROM tasks WHERE project_id = ?`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	byID, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	wireChildren(byID)
	if err := attachLocks(q, byID); err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0, len(byID))
	for _, t := range byID {
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// collectTasks drains rows into a map keyed by task ID.
func collectTasks(rows *sql.Rows) (map[string]*models.Task, error) {
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*models.Task)
	for rows.Next() {
		scanner := &taskRowScanner{}
		if err := scanner.scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		scanner.hydrate()
		task := scanner.getTask()
		byID[task.ID] = task
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return byID, nil
}

// wireChildren links loaded tasks to their loaded parents and sorts each
// child list by position for stable tree output.
func wireChildren(byID map[string]*models.Task) {
	for _, t := range byID {
		if t.ParentTaskID == "" {
			continue
		}
		if parent, ok := byID[t.ParentTaskID]; ok {
			parent.Children = append(parent.Children, t)
		}
	}
	for _, t := range byID {
		children := t.Children
		sort.Slice(children, func(i, j int) bool {
			if children[i].Position != children[j].Position {
				return children[i].Position < children[j].Position
			}
			if !children[i].CreatedAt.Equal(children[j].CreatedAt) {
				return children[i].CreatedAt.Before(children[j].CreatedAt)
			}
			return children[i].ID < children[j].ID
		})
	}
}

// attachLocks loads lock rows for the given tasks in one query. SQLite's
// default variable limit is 999, so IDs are chunked.
func attachLocks(q Querier, byID map[string]*models.Task) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	const batchSize = 999
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		placeholders := make([]byte, 0, len(batch)*2)
		for j := range batch {
			if j > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
		}
		args := make([]any, len(batch))
		for j, id := range batch {
			args[j] = id
		}

		// placeholders contains only '?' and ',' — no user input.
		query := fmt.Sprintf(`
			SELECT id, task_id, caller_label, lock_purpose, acquired_at, last_heartbeat_at, expires_at
			FROM task_locks WHERE task_id IN (%s)
		`, string(placeholders))

		if err := func() error {
			rows, err := q.Query(query, args...)
			if err != nil {
				return fmt.Errorf("failed to query task locks: %w", err)
			}
			defer func() { _ = rows.Close() }()

			for rows.Next() {
				lock, err := scanLockRow(rows)
				if err != nil {
					return err
				}
				if t, ok := byID[lock.TaskID]; ok {
					t.Lock = lock
				}
			}
			return rows.Err()
		}(); err != nil {
			return err
		}
	}
	return nil
}

// GetAncestry walks the parent chain and returns it ordered root -> target.
// A visited set guards against pathological cycles; acyclicity is otherwise
// guaranteed at creation time (tasks are never reparented).
func GetAncestry(q Querier, taskID string) ([]*models.Task, error) {
	var chain []*models.Task
	visited := make(map[string]bool)

	currentID := taskID
	for currentID != "" && !visited[currentID] {
		visited[currentID] = true
		task, err := GetTaskRow(q, currentID)
		if err != nil {
			var taxonomy *models.Error
			if errors.As(err, &taxonomy) && currentID != taskID {
				break
			}
			return nil, err
		}
		chain = append(chain, task)
		currentID = task.ParentTaskID
	}

	// Reverse in place: walked target -> root, return root -> target.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// UpdateTaskTx applies the set fields of upd and bumps updated_at.
func UpdateTaskTx(tx *sql.Tx, taskID string, upd TaskUpdate) error {
	if _, err := GetTaskRow(tx, taskID); err != nil {
		return err
	}

	set := func(query string, arg any) error {
		if _, err := tx.Exec(query, arg, taskID); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return nil
	}

	if upd.Name != nil {
		if err := set(`UPDATE tasks SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, *upd.Name); err != nil {
			return err
		}
	}
	if upd.Description != nil {
		if err := set(`UPDATE tasks SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullable(*upd.Description)); err != nil {
			return err
		}
	}
	if upd.Context != nil {
		if err := set(`UPDATE tasks SET context = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullable(*upd.Context)); err != nil {
			return err
		}
	}
	if upd.TaskType != nil {
		if err := set(`UPDATE tasks SET task_type = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(*upd.TaskType)); err != nil {
			return err
		}
	}
	return nil
}

// ApplySizingTx records the outcome of a sizing pass on a task.
func ApplySizingTx(tx *sql.Tx, taskID string, points int, breakdownJSON []byte, confidence int) error {
	_, err := tx.Exec(`
		UPDATE tasks
		SET points = ?, points_breakdown = ?, sizing_confidence = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, points, string(breakdownJSON), confidence, taskID)
	if err != nil {
		return fmt.Errorf("failed to apply sizing: %w", err)
	}
	return nil
}

// ApplyRefinementTx overwrites the optional refinement fields and clears the
// needs_refinement flag.
func ApplyRefinementTx(tx *sql.Tx, taskID string, description, context *string, contextCapturedAt *time.Time) error {
	if description != nil {
		if _, err := tx.Exec(`UPDATE tasks SET description = ? WHERE id = ?`, nullable(*description), taskID); err != nil {
			return fmt.Errorf("failed to refine description: %w", err)
		}
	}
	if context != nil {
		if _, err := tx.Exec(`UPDATE tasks SET context = ? WHERE id = ?`, nullable(*context), taskID); err != nil {
			return fmt.Errorf("failed to refine context: %w", err)
		}
	}
	if contextCapturedAt != nil {
		if _, err := tx.Exec(`UPDATE tasks SET context_captured_at = ? WHERE id = ?`, contextCapturedAt.UTC(), taskID); err != nil {
			return fmt.Errorf("failed to set context_captured_at: %w", err)
		}
	}
	_, err := tx.Exec(`
		UPDATE tasks SET needs_refinement = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to clear needs_refinement: %w", err)
	}
	return nil
}

// FlagRefinementTx marks a task as needing refinement with the given notes.
func FlagRefinementTx(tx *sql.Tx, taskID, notes string) error {
	_, err := tx.Exec(`
		UPDATE tasks
		SET needs_refinement = 1, refinement_notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, notes, taskID)
	if err != nil {
		return fmt.Errorf("failed to flag refinement: %w", err)
	}
	return nil
}

// SetStatusTx writes a task's status. Transition validation happens in the
// actions layer; this is the raw column update.
func SetStatusTx(tx *sql.Tx, taskID string, status models.Status) error {
	_, err := tx.Exec(`
		UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), taskID)
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	return nil
}

// SetDescriptionTx overwrites a task's description.
func SetDescriptionTx(tx *sql.Tx, taskID, description string) error {
	_, err := tx.Exec(`
		UPDATE tasks SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, nullable(description), taskID)
	if err != nil {
		return fmt.Errorf("failed to set task description: %w", err)
	}
	return nil
}

// ShiftSiblingsTx increments the position of every sibling in the same
// parent scope at position >= fromPosition, excluding the task itself.
// Gaps left by deletes or explicit positions are accepted, never compacted.
func ShiftSiblingsTx(tx *sql.Tx, projectID, parentTaskID string, fromPosition int, excludeID string) error {
	var query string
	args := []any{projectID, fromPosition, excludeID}
	if parentTaskID == "" {
		query = `UPDATE tasks SET position = position + 1
			WHERE project_id = ? AND parent_task_id IS NULL AND position >= ? AND id != ?`
	} else {
		query = `UPDATE tasks SET position = position + 1
			WHERE project_id = ? AND parent_task_id = ? AND position >= ? AND id != ?`
		args = []any{projectID, parentTaskID, fromPosition, excludeID}
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to shift sibling positions: %w", err)
	}
	return nil
}

// SetPositionTx writes a task's position among its siblings.
func SetPositionTx(tx *sql.Tx, taskID string, position int) error {
	_, err := tx.Exec(`
		UPDATE tasks SET position = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, position, taskID)
	if err != nil {
		return fmt.Errorf("failed to set task position: %w", err)
	}
	return nil
}

// DeleteTaskTx removes a task; the schema cascades to descendants, locks,
// work log, and commits.
func DeleteTaskTx(tx *sql.Tx, taskID string) error {
	if _, err := GetTaskRow(tx, taskID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
