package dependency

import "github.com/jtejido-quollio/qdic-assets/internal/eventmodel"

// untilSelf returns the prefix of actualDeps strictly before ev's own
// event type. Only this prefix can block ev; types after it (or ev's own
// type onward) never gate it.
func untilSelf(ev eventmodel.Event, actualDeps []eventmodel.EventType) []eventmodel.EventType {
	for i, dep := range actualDeps {
		if dep == ev.EventType {
			return actualDeps[:i]
		}
	}
	return nil
}

func presentInDB(dbEvents []eventmodel.Event, et eventmodel.EventType) bool {
	for _, e := range dbEvents {
		if e.EventType == et {
			return true
		}
	}
	return false
}

// AllDependenciesCompleted implements the dependency predicate: every
// event type in the dependency prefix must either be optional-and-absent,
// or present in dbEvents with a terminal, non-failed status.
func AllDependenciesCompleted(ev eventmodel.Event, actualDeps []eventmodel.EventType, dbEvents []eventmodel.Event) bool {
	prefix := untilSelf(ev, actualDeps)
	for _, dep := range prefix {
		if IsOptional(ev.Operation, dep) && !presentInDB(dbEvents, dep) {
			continue
		}

		if dep == ev.EventType {
			return true
		}

		found := false
		for _, dbEvent := range dbEvents {
			if dbEvent.EventType != dep {
				continue
			}
			found = true
			if dbEvent.Status != eventmodel.EventStatusCompleted && dbEvent.Status != eventmodel.EventStatusSkipped {
				return false
			}
		}
		if !found {
			return false
		}
	}
	return true
}
