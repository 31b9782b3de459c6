package actions

import (
	"sort"
	"time"

	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// ListParams are the shared pagination knobs for discovery listings.
type ListParams struct {
	Limit  int
	Offset int
}

// Normalize clamps limit to [1,200] (default 50) and offset to >= 0.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// TaskWithLockInfo decorates an enriched task with its active lease, if any.
// The lock fields are null when no active lock exists.
type TaskWithLockInfo struct {
	models.EnrichedTask
	LockCallerLabel *string             `json:"lock_caller_label"`
	LockPurpose     *models.LockPurpose `json:"lock_purpose"`
	LockExpiresAt   *time.Time          `json:"lock_expires_at"`
}

// sortEnriched orders by (effective_points asc nulls-last, created_at asc,
// id asc) for a stable, deterministic pickup order.
func sortEnriched(tasks []*models.EnrichedTask) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].EffectivePoints, tasks[j].EffectivePoints
		switch {
		case a == nil && b != nil:
			return false
		case a != nil && b == nil:
			return true
		case a != nil && b != nil && *a != *b:
			return *a < *b
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// page applies offset-based pagination over the sorted, filtered list.
func page(tasks []*models.EnrichedTask, p ListParams) []*models.EnrichedTask {
	p = p.Normalize()
	if p.Offset >= len(tasks) {
		return []*models.EnrichedTask{}
	}
	end := p.Offset + p.Limit
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[p.Offset:end]
}

// Backlog lists the project's todo tasks whose derived readiness is ready.
func Backlog(q store.Querier, projectID string, p ListParams) ([]*models.EnrichedTask, error) {
	tasks, err := store.LoadTasks(q, projectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out []*models.EnrichedTask
	for _, t := range tasks {
		if t.Status != models.StatusTodo {
			continue
		}
		e := models.Enrich(t, now)
		if e.Readiness != models.ReadinessReady {
			continue
		}
		out = append(out, e)
	}
	sortEnriched(out)
	return page(out, p), nil
}

// InProgress lists the project's doing tasks, each decorated with its active
// lock's caller, purpose, and expiry (null fields when unlocked).
func InProgress(q store.Querier, projectID string, p ListParams) ([]*TaskWithLockInfo, error) {
	tasks, err := store.LoadTasks(q, projectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var enriched []*models.EnrichedTask
	locks := make(map[string]*models.TaskLock)
	for _, t := range tasks {
		if t.Status != models.StatusDoing {
			continue
		}
		if t.Lock.Active(now) {
			locks[t.ID] = t.Lock
		}
		enriched = append(enriched, models.Enrich(t, now))
	}
	sortEnriched(enriched)

	out := make([]*TaskWithLockInfo, 0, len(enriched))
	for _, e := range page(enriched, p) {
		info := &TaskWithLockInfo{EnrichedTask: *e}
		if lock, ok := locks[e.ID]; ok {
			info.LockCallerLabel = &lock.CallerLabel
			info.LockPurpose = &lock.LockPurpose
			info.LockExpiresAt = &lock.ExpiresAt
		}
		out = append(out, info)
	}
	return out, nil
}

// NeedsRefinement lists tasks flagged for refinement or sized with low
// confidence (<= 2).
func NeedsRefinement(q store.Querier, projectID string, p ListParams) ([]*models.EnrichedTask, error) {
	tasks, err := store.LoadTasks(q, projectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out []*models.EnrichedTask
	for _, t := range tasks {
		if !t.NeedsRefinement && (t.SizingConfidence == nil || *t.SizingConfidence > 2) {
			continue
		}
		out = append(out, models.Enrich(t, now))
	}
	sortEnriched(out)
	return page(out, p), nil
}

// AvailableFilters narrow the operation-scoped pickup view.
type AvailableFilters struct {
	ProjectID string
	TaskType  models.TaskType
	MinPoints *int
	MaxPoints *int
}

// Available is the operation-scoped pickup view. Locked tasks are always
// excluded; an unknown operation yields an empty list. Point filters compare
// against effective points (inclusive) and drop unsized tasks.
func Available(q store.Querier, operation string, f AvailableFilters, p ListParams) ([]*models.EnrichedTask, error) {
	tasks, err := store.LoadTasks(q, f.ProjectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out []*models.EnrichedTask
	for _, t := range tasks {
		var candidate bool
		switch operation {
		case "sizing":
			candidate = t.Points == nil && len(t.Children) == 0
		case "breakdown":
			candidate = t.Status == models.StatusTodo &&
				models.ComputeReadiness(t) == models.ReadinessNeedsBreakdown
		case "implementation":
			candidate = t.Status == models.StatusTodo &&
				models.ComputeReadiness(t) == models.ReadinessReady
		default:
			return []*models.EnrichedTask{}, nil
		}
		if !candidate || models.IsLocked(t, now) {
			continue
		}

		e := models.Enrich(t, now)
		if f.TaskType != "" && e.TaskType != f.TaskType {
			continue
		}
		if f.MinPoints != nil && (e.EffectivePoints == nil || *e.EffectivePoints < *f.MinPoints) {
			continue
		}
		if f.MaxPoints != nil && (e.EffectivePoints == nil || *e.EffectivePoints > *f.MaxPoints) {
			continue
		}
		out = append(out, e)
	}
	sortEnriched(out)
	return page(out, p), nil
}
