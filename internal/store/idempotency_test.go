package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRecordRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := Transact(db, func(tx *sql.Tx) error {
		return InsertIdempotencyTx(tx, "size:k-1", 200, []byte(`{"ok":true}`), 24)
	})
	require.NoError(t, err)

	record, err := GetIdempotencyRecord(db, "size:k-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 200, record.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(record.ResponseBody))
}

func TestIdempotencyRecordMiss(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	record, err := GetIdempotencyRecord(db, "size:unknown")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestIdempotencyKeyUnique(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := Transact(db, func(tx *sql.Tx) error {
		return InsertIdempotencyTx(tx, "size:k-1", 200, []byte(`{}`), 24)
	})
	require.NoError(t, err)

	err = Transact(db, func(tx *sql.Tx) error {
		return InsertIdempotencyTx(tx, "size:k-1", 200, []byte(`{}`), 24)
	})
	require.Error(t, err)
	assert.True(t, IsUniqueConstraintErr(err))
}

func TestDeleteExpiredIdempotencyRecords(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := Transact(db, func(tx *sql.Tx) error {
		if txErr := InsertIdempotencyTx(tx, "size:fresh", 200, []byte(`{}`), 24); txErr != nil {
			return txErr
		}
		return InsertIdempotencyTx(tx, "size:stale", 200, []byte(`{}`), 24)
	})
	require.NoError(t, err)

	// Backdate one record past its expiry.
	err = Transact(db, func(tx *sql.Tx) error {
		_, txErr := tx.Exec(`
			UPDATE idempotency_records
			SET expires_at = datetime(CURRENT_TIMESTAMP, '-1 seconds')
			WHERE key = 'size:stale'
		`)
		return txErr
	})
	require.NoError(t, err)

	var deleted int64
	err = Transact(db, func(tx *sql.Tx) error {
		var txErr error
		deleted, txErr = DeleteExpiredIdempotencyTx(tx)
		return txErr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	kept, err := GetIdempotencyRecord(db, "size:fresh")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
