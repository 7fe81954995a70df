package models

// CounterDelta is a signed adjustment of the session counters. Every path
// that changes a candidate's DecisionResult moves the counters through
// DeltaFor, so processed == passed + rejected + errored always holds.
type CounterDelta struct {
	Processed int
	Passed    int
	Rejected  int
	Errored   int
}

// DeltaFor returns the buckets a candidate in the given state occupies.
func DeltaFor(result DecisionResult) CounterDelta {
	switch result {
	case DecisionPass:
		return CounterDelta{Processed: 1, Passed: 1}
	case DecisionReject:
		return CounterDelta{Processed: 1, Rejected: 1}
	case DecisionErrored:
		return CounterDelta{Processed: 1, Errored: 1}
	default:
		return CounterDelta{}
	}
}

// Transition is the delta for a candidate moving from one state to another.
func Transition(from, to DecisionResult) CounterDelta {
	return DeltaFor(to).Add(DeltaFor(from).Negate())
}

func (d CounterDelta) Negate() CounterDelta {
	return CounterDelta{
		Processed: -d.Processed,
		Passed:    -d.Passed,
		Rejected:  -d.Rejected,
		Errored:   -d.Errored,
	}
}

func (d CounterDelta) Add(o CounterDelta) CounterDelta {
	return CounterDelta{
		Processed: d.Processed + o.Processed,
		Passed:    d.Passed + o.Passed,
		Rejected:  d.Rejected + o.Rejected,
		Errored:   d.Errored + o.Errored,
	}
}

func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// SessionCounters is an absolute snapshot, used by reconciliation.
type SessionCounters struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Passed    int `json:"passed"`
	Rejected  int `json:"rejected"`
	Errored   int `json:"errored"`
}

// CountersFrom recomputes counters from per-result candidate counts.
func CountersFrom(byResult map[DecisionResult]int) SessionCounters {
	var c SessionCounters
	for result, n := range byResult {
		c.Total += n
		d := DeltaFor(result)
		c.Processed += d.Processed * n
		c.Passed += d.Passed * n
		c.Rejected += d.Rejected * n
		c.Errored += d.Errored * n
	}
	return c
}

func (c SessionCounters) Consistent() bool {
	return c.Processed == c.Passed+c.Rejected+c.Errored
}
