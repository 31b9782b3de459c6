package models

import (
	"encoding/json"
	"time"
)

// ID Strategy: all entities use UUIDv4 strings generated at insert time.
// Lexicographic ordering of IDs is only used as a final sort tie-breaker,
// so monotonicity is not required.

// TaskType classifies what kind of work a task represents.
type TaskType string

// Task type constants.
const (
	TaskTypeFeature  TaskType = "feature"
	TaskTypeBug      TaskType = "bug"
	TaskTypeTechDebt TaskType = "tech_debt"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeFeature, TaskTypeBug, TaskTypeTechDebt:
		return true
	}
	return false
}

// Status represents the lifecycle state of a task.
type Status string

// Task status constants.
const (
	StatusTodo   Status = "todo"
	StatusDoing  Status = "doing"
	StatusDone   Status = "done"
	StatusWontDo Status = "wont_do"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone, StatusWontDo:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that do not block a parent's
// completion (done or wont_do).
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusWontDo
}

// LockPurpose is the kind of activity a lock lease authorizes. It drives
// both the acquisition precondition and the lease TTL.
type LockPurpose string

// Lock purpose constants.
const (
	PurposeSizing         LockPurpose = "sizing"
	PurposeBreakdown      LockPurpose = "breakdown"
	PurposeRefinement     LockPurpose = "refinement"
	PurposeImplementation LockPurpose = "implementation"
)

// Valid reports whether p is a known lock purpose.
func (p LockPurpose) Valid() bool {
	switch p {
	case PurposeSizing, PurposeBreakdown, PurposeRefinement, PurposeImplementation:
		return true
	}
	return false
}

// Operation labels a work-log entry with the activity that produced it.
type Operation string

// Work-log operation constants.
const (
	OperationSizing         Operation = "sizing"
	OperationBreakdown      Operation = "breakdown"
	OperationRefinement     Operation = "refinement"
	OperationImplementation Operation = "implementation"
	OperationNote           Operation = "note"
)

// Valid reports whether o is a known work-log operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationSizing, OperationBreakdown, OperationRefinement,
		OperationImplementation, OperationNote:
		return true
	}
	return false
}

// Readiness is the derived suitability of a task for pickup.
type Readiness string

// Readiness constants, ordered by the rule that produces them.
const (
	ReadinessNeedsRefinement   Readiness = "needs_refinement"
	ReadinessNeedsSizing       Readiness = "needs_sizing"
	ReadinessNeedsBreakdown    Readiness = "needs_breakdown"
	ReadinessBlockedByChildren Readiness = "blocked_by_children"
	ReadinessReady             Readiness = "ready"
)

// Project owns a forest of tasks. Deleting a project cascades to them.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Task is a unit of work. Children and Lock are relationship fields
// populated by the store's subtree loaders; derived fields are never
// persisted and are computed from them on read.
type Task struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id"`
	ParentTaskID      string          `json:"parent_task_id,omitempty"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Context           string          `json:"context,omitempty"`
	TaskType          TaskType        `json:"task_type"`
	Status            Status          `json:"status"`
	Points            *int            `json:"points"`
	PointsBreakdown   json.RawMessage `json:"points_breakdown,omitempty"`
	SizingConfidence  *int            `json:"sizing_confidence"`
	NeedsRefinement   bool            `json:"needs_refinement"`
	RefinementNotes   string          `json:"refinement_notes,omitempty"`
	ContextCapturedAt *time.Time      `json:"context_captured_at,omitempty"`
	Position          int             `json:"position"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Children []*Task   `json:"-"`
	Lock     *TaskLock `json:"-"`
}

// TaskLock is a time-bounded mutual-exclusion lease on a task. At most one
// row exists per task (unique index on task_id); an expired row may linger
// until it is lazily reaped on the next acquire or by the background reaper.
type TaskLock struct {
	ID              string      `json:"id"`
	TaskID          string      `json:"task_id"`
	CallerLabel     string      `json:"caller_label"`
	LockPurpose     LockPurpose `json:"lock_purpose"`
	AcquiredAt      time.Time   `json:"acquired_at"`
	LastHeartbeatAt *time.Time  `json:"last_heartbeat_at"`
	ExpiresAt       time.Time   `json:"expires_at"`
}

// Active reports whether the lease has not yet expired.
func (l *TaskLock) Active(now time.Time) bool {
	return l != nil && l.ExpiresAt.After(now)
}

// WorkLogEntry is an append-only record of activity on a task.
type WorkLogEntry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    string    `json:"author,omitempty"`
	Operation Operation `json:"operation"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskCommit records a VCS commit attached to a task. Hashes are accepted
// as 40-hex strings at the transport boundary and never re-verified.
type TaskCommit struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Author      string    `json:"author,omitempty"`
	CommitHash  string    `json:"commit_hash"`
	Message     string    `json:"message,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
}

// IdempotencyRecord captures a serialized response for replay under a
// scoped key of the form "<operation>:<client-key>".
type IdempotencyRecord struct {
	ID           string          `json:"id"`
	Key          string          `json:"key"`
	StatusCode   int             `json:"status_code"`
	ResponseBody json.RawMessage `json:"response_body"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}
