package actions

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chorushq/chorus/internal/store"
)

// idempotencyTTLHours is how long captured responses replay. The source
// contract requires at least one hour; 24 gives clients a comfortable
// re-drive window.
const idempotencyTTLHours = 24

// ScopedKey builds the idempotency lookup key. Scoping by operation prefix
// prevents the same client key from cross-replaying between operations with
// different side effects.
func ScopedKey(operation, clientKey string) string {
	return fmt.Sprintf("%s:%s", operation, clientKey)
}

// RunIdempotent executes fn in one transaction and captures its serialized
// response under scopedKey. If an unexpired record already exists the stored
// response replays without executing fn. An empty scopedKey (no
// Idempotency-Key header) runs fn without replay bookkeeping.
//
// A concurrent duplicate either observes the stored record up front or
// collides on the unique key — which aborts its transaction, rolling back
// fn's side effects — and then reads the winning record. Either way at most
// one execution of fn commits per key.
func RunIdempotent(db *sql.DB, scopedKey string, fn func(tx *sql.Tx) (int, any, error)) (int, json.RawMessage, error) {
	if scopedKey != "" {
		record, err := store.GetIdempotencyRecord(db, scopedKey)
		if err != nil {
			return 0, nil, err
		}
		if record != nil {
			return record.StatusCode, record.ResponseBody, nil
		}
	}

	var statusCode int
	var body json.RawMessage

	err := store.Transact(db, func(tx *sql.Tx) error {
		code, payload, err := fn(tx)
		if err != nil {
			return err
		}

		serialized, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to serialize response for replay: %w", err)
		}

		if scopedKey != "" {
			if err := store.InsertIdempotencyTx(tx, scopedKey, code, serialized, idempotencyTTLHours); err != nil {
				return err
			}
		}

		statusCode = code
		body = serialized
		return nil
	})
	if err != nil {
		if scopedKey != "" && store.IsUniqueConstraintErr(err) {
			record, readErr := store.GetIdempotencyRecord(db, scopedKey)
			if readErr == nil && record != nil {
				return record.StatusCode, record.ResponseBody, nil
			}
		}
		return 0, nil, err
	}

	return statusCode, body, nil
}
