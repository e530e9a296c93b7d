package queries

import "github.com/tschof/subscriptions/internal/lock"

// UpdatePolicy controls when a subscription emits an output.
type UpdatePolicy int

const (
	// All emits every in-range, filter-passing transformed value.
	All UpdatePolicy = iota
	// Change emits only when the transformed value differs (by ==) from
	// the previously emitted transformed value for that entry.
	Change
)

// phase is the lifecycle state of a single SubscriptionEntry.
type phase int

const (
	phaseInitializing phase = iota
	phaseCommitted
)

// Entry is the per-query state of a single subscription. Every mutable
// field is guarded by the owning entryHandle's mutex; Entry itself never
// locks.
type Entry[I any, O comparable, C comparable] struct {
	ID            int32
	Client        C
	Range         Range
	Filter        Evaluator[I, bool]
	Expression    Evaluator[I, O]
	UpdatePolicy  UpdatePolicy
	phase         phase
	previousValue O
	hasPrevious   bool
	writeLog      []SequencedValue[I]
}

// entryHandle is the shared, reference-counted wrapper around one Entry:
// shared between the all-entries slice and (while initializing) the
// initializing index, exactly as Beam's SyncSubscriptionEntry is shared
// between m_subscriptions and m_initializingSubscriptions.
type entryHandle[I any, O comparable, C comparable] struct {
	mu    lock.Mutex
	entry Entry[I, O, C]
}

func newEntryHandle[I any, O comparable, C comparable](id int32, client C, rng Range,
	filter Evaluator[I, bool], updatePolicy UpdatePolicy,
	expression Evaluator[I, O]) *entryHandle[I, O, C] {
	return &entryHandle[I, O, C]{
		entry: Entry[I, O, C]{
			ID:           id,
			Client:       client,
			Range:        rng,
			Filter:       filter,
			Expression:   expression,
			UpdatePolicy: updatePolicy,
			phase:        phaseInitializing,
		},
	}
}

// inRange reports whether value falls within the entry's Range: start ==
// PRESENT || value.Sequence >= start, and value.Sequence <= end.
func (e *Entry[I, O, C]) inRange(sequence Sequence) bool {
	return e.Range.Contains(sequence)
}

// passesFilter evaluates the entry's filter against value, treating a
// filter error as "false".
func (e *Entry[I, O, C]) passesFilter(value I) bool {
	ok, err := e.Filter.Eval(value)
	if err != nil {
		return false
	}
	return ok
}

// evaluate runs the entry's expression and, for a Change policy, applies
// change-detection against the previously emitted value. It reports
// (output, emit, ok): ok is false if the expression errored (the input
// must be silently dropped), emit is false if Change suppressed a
// duplicate.
func (e *Entry[I, O, C]) evaluate(value I) (output O, emit bool, ok bool) {
	output, err := e.Expression.Eval(value)
	if err != nil {
		return output, false, false
	}
	if e.UpdatePolicy == Change {
		if e.hasPrevious && e.previousValue == output {
			return output, false, true
		}
		e.previousValue = output
		e.hasPrevious = true
	}
	return output, true, true
}
