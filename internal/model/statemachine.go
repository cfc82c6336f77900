package model

// transitions is the exhaustive set of legal status transitions. Any pair
// not present here is rejected with an IllegalTransition error (422 at the
// HTTP boundary).
var transitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusRunning:  true,
		StatusArchived: true,
	},
	StatusRunning: {
		StatusPaused:   true,
		StatusArchived: true,
	},
	StatusPaused: {
		StatusRunning:  true,
		StatusArchived: true,
	},
	StatusArchived: {},
}

// CanTransition reports whether moving an experiment from `from` to `to` is
// a legal status transition.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// ValidStatus reports whether s is one of the four recognised statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusRunning, StatusPaused, StatusArchived:
		return true
	default:
		return false
	}
}
