package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/chorushq/chorus/internal/models"
)

// scanNullString converts sql.NullString to string (empty if NULL).
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanNullTime converts sql.NullTime to *time.Time (nil if NULL).
func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// scanNullInt converts sql.NullInt64 to *int (nil if NULL).
func scanNullInt(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

// nullable converts an empty string to a NULL bind value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// taskColumns is the canonical select list for task rows. Keep in sync with
// taskRowScanner.scan.
const taskColumns = `id, project_id, parent_task_id, name, description, context,
	task_type, status, points, points_breakdown, sizing_confidence,
	needs_refinement, refinement_notes, context_captured_at, position,
	created_at, updated_at`

// taskRowScanner encapsulates the common task row scanning logic.
type taskRowScanner struct {
	task              models.Task
	parentID          sql.NullString
	description       sql.NullString
	context           sql.NullString
	points            sql.NullInt64
	pointsBreakdown   sql.NullString
	sizingConfidence  sql.NullInt64
	refinementNotes   sql.NullString
	contextCapturedAt sql.NullTime
}

func (s *taskRowScanner) scan(row interface {
	Scan(dest ...any) error
}) error {
	return row.Scan(
		&s.task.ID,
		&s.task.ProjectID,
		&s.parentID,
		&s.task.Name,
		&s.description,
		&s.context,
		&s.task.TaskType,
		&s.task.Status,
		&s.points,
		&s.pointsBreakdown,
		&s.sizingConfidence,
		&s.task.NeedsRefinement,
		&s.refinementNotes,
		&s.contextCapturedAt,
		&s.task.Position,
		&s.task.CreatedAt,
		&s.task.UpdatedAt,
	)
}

func (s *taskRowScanner) hydrate() {
	s.task.ParentTaskID = scanNullString(s.parentID)
	s.task.Description = scanNullString(s.description)
	s.task.Context = scanNullString(s.context)
	s.task.Points = scanNullInt(s.points)
	s.task.SizingConfidence = scanNullInt(s.sizingConfidence)
	s.task.RefinementNotes = scanNullString(s.refinementNotes)
	s.task.ContextCapturedAt = scanNullTime(s.contextCapturedAt)
	if s.pointsBreakdown.Valid {
		s.task.PointsBreakdown = json.RawMessage(s.pointsBreakdown.String)
	}
}

func (s *taskRowScanner) getTask() *models.Task {
	return &s.task
}

// scanTaskRow scans and hydrates a task from a single row.
func scanTaskRow(row interface {
	Scan(dest ...any) error
}) (*models.Task, error) {
	scanner := &taskRowScanner{}
	if err := scanner.scan(row); err != nil {
		return nil, err
	}
	scanner.hydrate()
	return scanner.getTask(), nil
}
