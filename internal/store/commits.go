package store

import (
	"database/sql"
	"fmt"

	"github.com/chorushq/chorus/internal/models"
)

// InsertCommitTx attaches a commit record to a task. Records are immutable
// after creation.
func InsertCommitTx(tx *sql.Tx, c *models.TaskCommit) (*models.TaskCommit, error) {
	id := NewID()
	_, err := tx.Exec(`
		INSERT INTO task_commits (id, task_id, author, commit_hash, message, committed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, c.TaskID, nullable(c.Author), c.CommitHash, nullable(c.Message), c.CommittedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert commit: %w", err)
	}

	row := tx.QueryRow(`
		SELECT id, task_id, author, commit_hash, message, committed_at
		FROM task_commits WHERE id = ?
	`, id)
	return scanCommitRow(row)
}

// ListCommits returns a task's commits ordered by commit time.
func ListCommits(q Querier, taskID string) ([]*models.TaskCommit, error) {
	rows, err := q.Query(`
		SELECT id, task_id, author, commit_hash, message, committed_at
		FROM task_commits
		WHERE task_id = ?
		ORDER BY committed_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var commits []*models.TaskCommit
	for rows.Next() {
		commit, err := scanCommitRow(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, rows.Err()
}

func scanCommitRow(row interface {
	Scan(dest ...any) error
}) (*models.TaskCommit, error) {
	var c models.TaskCommit
	var author, message sql.NullString
	if err := row.Scan(&c.ID, &c.TaskID, &author, &c.CommitHash, &message, &c.CommittedAt); err != nil {
		return nil, fmt.Errorf("failed to scan commit row: %w", err)
	}
	c.Author = scanNullString(author)
	c.Message = scanNullString(message)
	return &c, nil
}
