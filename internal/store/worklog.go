package store

import (
	"database/sql"
	"fmt"

	"github.com/chorushq/chorus/internal/models"
)

// InsertWorkLogTx appends a work-log entry. Entries are immutable after
// creation; there is no update path.
func InsertWorkLogTx(tx *sql.Tx, taskID, author string, operation models.Operation, content string) (*models.WorkLogEntry, error) {
	id := NewID()
	_, err := tx.Exec(`
		INSERT INTO work_log_entries (id, task_id, author, operation, content, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, id, taskID, nullable(author), string(operation), content)
	if err != nil {
		return nil, fmt.Errorf("failed to insert work log entry: %w", err)
	}

	row := tx.QueryRow(`
		SELECT id, task_id, author, operation, content, created_at
		FROM work_log_entries WHERE id = ?
	`, id)
	return scanWorkLogRow(row)
}

// ListWorkLog returns a task's work log ordered by creation time.
func ListWorkLog(q Querier, taskID string) ([]*models.WorkLogEntry, error) {
	rows, err := q.Query(`
		SELECT id, task_id, author, operation, content, created_at
		FROM work_log_entries
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query work log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.WorkLogEntry
	for rows.Next() {
		entry, err := scanWorkLogRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanWorkLogRow(row interface {
	Scan(dest ...any) error
}) (*models.WorkLogEntry, error) {
	var e models.WorkLogEntry
	var author sql.NullString
	if err := row.Scan(&e.ID, &e.TaskID, &author, &e.Operation, &e.Content, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan work log row: %w", err)
	}
	e.Author = scanNullString(author)
	return &e, nil
}
