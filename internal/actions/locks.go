package actions

import (
	"database/sql"
	"fmt"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// lockTTLMinutes maps each lease purpose to its lifetime. A heartbeat
// extends the lease by the same amount.
var lockTTLMinutes = map[models.LockPurpose]int{
	models.PurposeSizing:         15,
	models.PurposeBreakdown:      30,
	models.PurposeRefinement:     30,
	models.PurposeImplementation: 60,
}

// LockTTLMinutes returns the lease lifetime for a purpose.
func LockTTLMinutes(purpose models.LockPurpose) int {
	return lockTTLMinutes[purpose]
}

// validateLockPrecondition enforces the purpose-specific acquisition rules
// against the task's derived state.
func validateLockPrecondition(task *models.Task, purpose models.LockPurpose) error {
	switch purpose {
	case models.PurposeSizing:
		if task.Points != nil {
			return models.InvalidReadinessState("Task is already sized")
		}
	case models.PurposeBreakdown:
		if task.Points == nil && len(task.Children) == 0 {
			return models.InvalidReadinessState("Task must be sized before breakdown")
		}
		ep := models.EffectivePoints(task)
		unsized := models.UnsizedChildren(task)
		if (ep == nil || *ep <= 6) && unsized == 0 {
			return models.InvalidReadinessState(
				"Task does not need breakdown (effective_points <= 6 and no unsized children)")
		}
	case models.PurposeImplementation:
		if readiness := models.ComputeReadiness(task); readiness != models.ReadinessReady {
			return models.InvalidReadinessState(
				fmt.Sprintf("Task is not ready for implementation (readiness=%s)", readiness))
		}
	case models.PurposeRefinement:
		// No precondition.
	}
	return nil
}

// AcquireLockTx claims a lease on a task. An expired leftover row is reaped
// lazily; an active one conflicts. Serialization between concurrent acquires
// comes from the unique index on task_locks.task_id, not an app-level mutex.
func AcquireLockTx(tx *sql.Tx, taskID, callerLabel string, purpose models.LockPurpose) (*models.TaskLock, error) {
	task, err := store.LoadTaskTree(tx, taskID)
	if err != nil {
		return nil, err
	}

	existing, err := store.GetLock(tx, taskID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		expired, err := store.IsLockExpired(tx, taskID)
		if err != nil {
			return nil, err
		}
		if !expired {
			return nil, models.LockConflict("Task is already locked")
		}
		if err := store.DeleteLockTx(tx, taskID); err != nil {
			return nil, err
		}
	}

	if err := validateLockPrecondition(task, purpose); err != nil {
		return nil, err
	}

	return store.InsertLockTx(tx, taskID, callerLabel, purpose, lockTTLMinutes[purpose])
}

// HeartbeatLockTx refreshes an active lease held by callerLabel. Expired
// leases are never resurrected; the client must re-acquire.
func HeartbeatLockTx(tx *sql.Tx, taskID, callerLabel string) (*models.TaskLock, error) {
	lock, err := store.GetLock(tx, taskID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, models.NotFound("No lock found for this task")
	}

	expired, err := store.IsLockExpired(tx, taskID)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, models.LockConflict("Lock has expired")
	}

	if lock.CallerLabel != callerLabel {
		return nil, models.CallerMismatch("Caller label does not match lock holder")
	}

	return store.ExtendLockTx(tx, taskID, lockTTLMinutes[lock.LockPurpose])
}

// ReleaseLockTx deletes a lease. Without force, only the holder may release.
func ReleaseLockTx(tx *sql.Tx, taskID, callerLabel string, force bool) error {
	lock, err := store.GetLock(tx, taskID)
	if err != nil {
		return err
	}
	if lock == nil {
		return models.NotFound("No lock found for this task")
	}

	if !force && lock.CallerLabel != callerLabel {
		return models.CallerMismatch("Caller label does not match lock holder")
	}

	return store.DeleteLockTx(tx, taskID)
}
