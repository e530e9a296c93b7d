package queries

import "math"

// Sequence is a totally ordered, monotonically increasing identifier
// attached to every published input value.
type Sequence uint64

// Present is the sentinel Sequence meaning "the current moment". As a
// Range start it means the subscription has no historical component; it
// never appears on a published value.
const Present Sequence = math.MaxUint64

// SequencedValue pairs a value with the Sequence it was published under.
type SequencedValue[T any] struct {
	Value    T
	Sequence Sequence
}

// NewSequencedValue constructs a SequencedValue.
func NewSequencedValue[T any](value T, sequence Sequence) SequencedValue[T] {
	return SequencedValue[T]{Value: value, Sequence: sequence}
}

// Range is an inclusive range over the Sequence space: a value v is in
// range iff Start == Present or v.Sequence >= Start, and v.Sequence <= End.
type Range struct {
	Start Sequence
	End   Sequence
}

// NewRange constructs a Range from a concrete start to a concrete end.
func NewRange(start, end Sequence) Range {
	return Range{Start: start, End: end}
}

// LiveOnly returns a Range with no historical component: start is Present,
// end is unbounded.
func LiveOnly() Range {
	return Range{Start: Present, End: Present}
}

// Contains reports whether sequence lies within the range: start ==
// Present || sequence >= Start, and sequence <= End (Present compares as
// the maximum Sequence, so an End of Present is unbounded).
func (r Range) Contains(sequence Sequence) bool {
	if r.Start != Present && sequence < r.Start {
		return false
	}
	if r.End != Present && sequence > r.End {
		return false
	}
	return true
}
