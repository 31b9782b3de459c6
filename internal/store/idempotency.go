package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chorushq/chorus/internal/models"
)

// GetIdempotencyRecord returns the unexpired record for a scoped key, or
// nil if none exists. Expired rows are ignored here and reaped separately.
func GetIdempotencyRecord(q Querier, key string) (*models.IdempotencyRecord, error) {
	row := q.QueryRow(`
		SELECT id, key, status_code, response_body, created_at, expires_at
		FROM idempotency_records
		WHERE key = ? AND expires_at >= CURRENT_TIMESTAMP
	`, key)

	var r models.IdempotencyRecord
	var body string
	err := row.Scan(&r.ID, &r.Key, &r.StatusCode, &body, &r.CreatedAt, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query idempotency record: %w", err)
	}
	r.ResponseBody = json.RawMessage(body)
	return &r, nil
}

// InsertIdempotencyTx stores a captured response under a scoped key with the
// given TTL. A unique-constraint failure means a concurrent duplicate won
// the race; callers resolve to the stored record.
func InsertIdempotencyTx(tx *sql.Tx, key string, statusCode int, responseBody []byte, ttlHours int) error {
	_, err := tx.Exec(`
		INSERT INTO idempotency_records (id, key, status_code, response_body, created_at, expires_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, datetime(CURRENT_TIMESTAMP, '+' || ? || ' hours'))
	`, NewID(), key, statusCode, string(responseBody), ttlHours)
	if err != nil {
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// DeleteExpiredIdempotencyTx bulk-deletes every record past its expiry.
func DeleteExpiredIdempotencyTx(tx *sql.Tx) (int64, error) {
	result, err := tx.Exec(`DELETE FROM idempotency_records WHERE expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted idempotency records: %w", err)
	}
	return n, nil
}
