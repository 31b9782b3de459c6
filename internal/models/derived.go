package models

import "time"

// Derived task state. These functions are pure over a task whose Children
// subtree and Lock relationship have been loaded; they are recomputed on
// every read and never persisted, so consistency is by construction.

// RolledUpPoints returns the sum of EffectivePoints over children that have
// one. Nil if the task has no children or no child is sized.
func RolledUpPoints(t *Task) *int {
	if len(t.Children) == 0 {
		return nil
	}
	total := 0
	anySized := false
	for _, child := range t.Children {
		if ep := EffectivePoints(child); ep != nil {
			total += *ep
			anySized = true
		}
	}
	if !anySized {
		return nil
	}
	return &total
}

// EffectivePoints is the canonical point value to compare a task by:
// rolled-up points when any child is sized, else the task's own points.
func EffectivePoints(t *Task) *int {
	if rup := RolledUpPoints(t); rup != nil {
		return rup
	}
	return t.Points
}

// UnsizedChildren counts direct children whose points are unset.
func UnsizedChildren(t *Task) int {
	n := 0
	for _, child := range t.Children {
		if child.Points == nil {
			n++
		}
	}
	return n
}

// ComputeReadiness evaluates the ordered readiness rules; the first match
// wins. needs_refinement dominates everything else.
func ComputeReadiness(t *Task) Readiness {
	if t.NeedsRefinement {
		return ReadinessNeedsRefinement
	}
	if t.Points == nil && len(t.Children) == 0 {
		return ReadinessNeedsSizing
	}
	if len(t.Children) > 0 && UnsizedChildren(t) > 0 {
		return ReadinessNeedsBreakdown
	}
	if ep := EffectivePoints(t); ep != nil && *ep > 6 {
		return ReadinessNeedsBreakdown
	}
	if len(t.Children) > 0 {
		return ReadinessBlockedByChildren
	}
	return ReadinessReady
}

// IsLocked reports whether the task holds an active (non-expired) lease.
func IsLocked(t *Task, now time.Time) bool {
	return t.Lock.Active(now)
}

// EnrichedTask is the API view of a task: stored fields plus the derived
// fields recomputed from the loaded subtree.
type EnrichedTask struct {
	Task
	EffectivePoints *int      `json:"effective_points"`
	RolledUpPoints  *int      `json:"rolled_up_points"`
	UnsizedChildren int       `json:"unsized_children"`
	Readiness       Readiness `json:"readiness"`
	ChildrenCount   int       `json:"children_count"`
	Locked          bool      `json:"is_locked"`
}

// Enrich builds the enriched view of t at the given instant.
func Enrich(t *Task, now time.Time) *EnrichedTask {
	return &EnrichedTask{
		Task:            *t,
		EffectivePoints: EffectivePoints(t),
		RolledUpPoints:  RolledUpPoints(t),
		UnsizedChildren: UnsizedChildren(t),
		Readiness:       ComputeReadiness(t),
		ChildrenCount:   len(t.Children),
		Locked:          IsLocked(t, now),
	}
}
