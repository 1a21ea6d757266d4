package store

import (
	"mealsync/internal/notify"
)

// Outcome classifies where a change ended up.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSavedToAccount
	OutcomeSavedLocally
	OutcomeRemoved
	OutcomeError
	OutcomeCached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSavedToAccount:
		return "saved to account"
	case OutcomeSavedLocally:
		return "saved locally"
	case OutcomeRemoved:
		return "removed"
	case OutcomeError:
		return "error — please retry"
	case OutcomeCached:
		return "showing cached data"
	default:
		return ""
	}
}

// Level is the severity a toast for o is shown with.
func (o Outcome) Level() notify.Level {
	switch o {
	case OutcomeError:
		return notify.LevelError
	case OutcomeSavedLocally, OutcomeCached:
		return notify.LevelWarning
	default:
		return notify.LevelInfo
	}
}

// Result reports the effect of one store operation. Err carries the remote
// failure, if any, so callers can tell an expired session (shared.KindAuth)
// from a server fault. The in-memory change stands either way.
type Result[T any] struct {
	Outcome Outcome
	Item    T
	Err     error
}
