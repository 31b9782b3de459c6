package models

// validTransitions is the status state machine. Any transition not listed
// here fails with INVALID_STATUS_TRANSITION; a no-op transition is allowed
// and leaves the task unchanged.
var validTransitions = map[Status][]Status{
	StatusTodo:   {StatusDoing, StatusWontDo},
	StatusDoing:  {StatusDone, StatusTodo, StatusWontDo},
	StatusDone:   {StatusTodo, StatusWontDo},
	StatusWontDo: {StatusTodo},
}

// CanTransition reports whether the state machine permits from -> to.
// A no-op (from == to) is always permitted.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
