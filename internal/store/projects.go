package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chorushq/chorus/internal/models"
)

// CreateProjectTx inserts a project and returns the stored row.
func CreateProjectTx(tx *sql.Tx, name, description string) (*models.Project, error) {
	id := NewID()
	_, err := tx.Exec(`
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, name, nullable(description))
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return getProject(tx, id)
}

// GetProject loads a project by ID. Returns NOT_FOUND if absent.
func GetProject(q Querier, projectID string) (*models.Project, error) {
	return getProject(q, projectID)
}

func getProject(q Querier, projectID string) (*models.Project, error) {
	row := q.QueryRow(`
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE id = ?
	`, projectID)

	var p models.Project
	var description sql.NullString
	err := row.Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("Project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	p.Description = scanNullString(description)
	return &p, nil
}

// ListProjects returns all projects ordered by creation time.
func ListProjects(q Querier) ([]*models.Project, error) {
	rows, err := q.Query(`
		SELECT id, name, description, created_at, updated_at
		FROM projects ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		p.Description = scanNullString(description)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// UpdateProjectTx applies the non-nil fields and returns the stored row.
func UpdateProjectTx(tx *sql.Tx, projectID string, name, description *string) (*models.Project, error) {
	if _, err := getProject(tx, projectID); err != nil {
		return nil, err
	}
	if name != nil {
		if _, err := tx.Exec(`UPDATE projects SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, *name, projectID); err != nil {
			return nil, fmt.Errorf("failed to update project name: %w", err)
		}
	}
	if description != nil {
		if _, err := tx.Exec(`UPDATE projects SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullable(*description), projectID); err != nil {
			return nil, fmt.Errorf("failed to update project description: %w", err)
		}
	}
	return getProject(tx, projectID)
}

// DeleteProjectTx removes a project; the schema cascades to its task forest,
// locks, work log, and commits.
func DeleteProjectTx(tx *sql.Tx, projectID string) error {
	if _, err := getProject(tx, projectID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// ProjectStats holds the aggregates shown on the project detail view.
type ProjectStats struct {
	TaskCount       int `json:"task_count"`
	PointsTotal     int `json:"points_total"`
	PointsCompleted int `json:"points_completed"`
}

// GetProjectStats aggregates stored (not derived) points over the project.
func GetProjectStats(q Querier, projectID string) (*ProjectStats, error) {
	row := q.QueryRow(`
		SELECT COUNT(id),
		       COALESCE(SUM(points), 0),
		       COALESCE(SUM(CASE WHEN status = 'done' THEN points END), 0)
		FROM tasks WHERE project_id = ?
	`, projectID)

	var stats ProjectStats
	if err := row.Scan(&stats.TaskCount, &stats.PointsTotal, &stats.PointsCompleted); err != nil {
		return nil, fmt.Errorf("failed to aggregate project stats: %w", err)
	}
	return &stats, nil
}
