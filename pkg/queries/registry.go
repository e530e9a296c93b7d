// Package queries implements the streaming expression-query subscription
// engine: concurrent subscription bookkeeping, a two-phase
// initialize/commit protocol that splices a caller-supplied historical
// snapshot with events captured during initialization, and per-entry
// evaluation honoring change-detection semantics. It is the Go
// counterpart of Beam::Queries::ExpressionSubscriptions, reshaped after
// the concurrency patterns of github.com/tendermint/tendermint's
// libs/pubsub.Server.
package queries

import (
	"github.com/tschof/subscriptions/internal/lock"
	"github.com/tschof/subscriptions/internal/log"
	"github.com/tschof/subscriptions/pkg/metrics"
)

// Sender is the caller-provided sink Publish calls for each delivered
// output. Registry never invokes Sender reentrantly for the same entry
// and does not catch anything it panics with.
type Sender[O, C any] func(client C, id int32, value SequencedValue[O])

// CommitSender is the caller-provided sink Commit calls with the final
// QueryResult.
type CommitSender[O any] func(result QueryResult[SequencedValue[O]])

// Registry holds two concurrent collections — the all-entries set and an
// initializing index keyed by client then id. It is safe for concurrent
// use by multiple goroutines.
type Registry[I any, O comparable, C comparable] struct {
	logger  log.Logger
	metrics *metrics.Metrics

	subscriptionsMtx lock.RWMutex
	entries          []*entryHandle[I, O, C]

	initializingMtx lock.Mutex
	initializing    map[C]map[int32]*entryHandle[I, O, C]
}

// Option configures a Registry at construction time.
type Option[I any, O comparable, C comparable] func(*Registry[I, O, C])

// WithLogger attaches a logger.
func WithLogger[I any, O comparable, C comparable](logger log.Logger) Option[I, O, C] {
	return func(r *Registry[I, O, C]) { r.logger = logger }
}

// WithMetrics attaches a metrics.Metrics sink.
func WithMetrics[I any, O comparable, C comparable](m *metrics.Metrics) Option[I, O, C] {
	return func(r *Registry[I, O, C]) { r.metrics = m }
}

// NewRegistry constructs an empty Registry.
func NewRegistry[I any, O comparable, C comparable](opts ...Option[I, O, C]) *Registry[I, O, C] {
	r := &Registry[I, O, C]{
		logger:       log.NewNopLogger(),
		initializing: make(map[C]map[int32]*entryHandle[I, O, C]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize creates an entry in the INITIALIZING phase, inserts it into
// the initializing index keyed by (client, id), and appends it to the
// all-entries set. It returns ErrDuplicateQuery if (client, id) is
// still in the initializing index; an id whose entry has already been
// committed is not checked. The call does not block on Publish: once the entry
// is appended to the all-entries set, a concurrent Publish may observe it
// and, finding it INITIALIZING, append matching inputs to its writeLog.
func (r *Registry[I, O, C]) Initialize(client C, id int32, rng Range,
	filter Evaluator[I, bool], updatePolicy UpdatePolicy,
	expression Evaluator[I, O]) error {
	r.initializingMtx.Lock()
	byID, ok := r.initializing[client]
	if !ok {
		byID = make(map[int32]*entryHandle[I, O, C])
		r.initializing[client] = byID
	}
	if _, exists := byID[id]; exists {
		r.initializingMtx.Unlock()
		r.logger.Debug("duplicate query rejected", "client", client, "id", id)
		return ErrDuplicateQuery
	}
	handle := newEntryHandle[I, O, C](id, client, rng, filter, updatePolicy, expression)
	byID[id] = handle
	r.initializingMtx.Unlock()

	r.subscriptionsMtx.Lock()
	r.entries = append(r.entries, handle)
	r.subscriptionsMtx.Unlock()

	if r.metrics != nil {
		r.metrics.SubscriptionsActive.Inc()
	}
	r.logger.Debug("query initialized", "client", client, "id", id)
	return nil
}

// Commit splices the caller-supplied snapshot with the entry's writeLog,
// evaluates and limits the result, marks the entry COMMITTED, and invokes
// send while still holding the entry's lock: the splice and the phase
// transition happen atomically with respect to a concurrent Publish, so
// no input can be both folded into the snapshot and separately delivered
// live. result.QueryID identifies which initializing subscription to
// commit.
func (r *Registry[I, O, C]) Commit(client C, limit SnapshotLimit,
	result QueryResult[SequencedValue[O]], snapshot []SequencedValue[I],
	send CommitSender[O]) {
	r.initializingMtx.Lock()
	byID, ok := r.initializing[client]
	if !ok {
		r.initializingMtx.Unlock()
		r.logger.Debug("stale commit: unknown client", "client", client, "queryID", result.QueryID)
		return
	}
	handle, ok := byID[result.QueryID]
	if !ok {
		r.initializingMtx.Unlock()
		r.logger.Debug("stale commit: unknown query", "client", client, "queryID", result.QueryID)
		return
	}
	delete(byID, result.QueryID)
	if len(byID) == 0 {
		delete(r.initializing, client)
	}
	r.initializingMtx.Unlock()

	handle.mu.Lock()
	defer handle.mu.Unlock()

	spliced := spliceSnapshot(snapshot, handle.entry.writeLog)
	handle.entry.writeLog = nil

	outputs := evaluateSnapshot(&handle.entry, spliced, limit)
	if limit.Type == Tail {
		result.Snapshot = append(outputs, result.Snapshot...)
	} else {
		result.Snapshot = outputs
	}
	handle.entry.phase = phaseCommitted

	if r.metrics != nil {
		r.metrics.SubscriptionsCommitted.Inc()
	}
	send(result)
}

// spliceSnapshot merges a historical snapshot with the writeLog captured
// during initialization: if snapshot is empty, the writeLog becomes the
// snapshot outright. Otherwise, the first writeLog element strictly
// newer than snapshot's last element is found and everything from there
// to the end of writeLog is appended, yielding a deduplicated, ordered
// sequence with no sequence appearing twice.
func spliceSnapshot[I any](snapshot []SequencedValue[I], writeLog []SequencedValue[I]) []SequencedValue[I] {
	if len(snapshot) == 0 {
		return writeLog
	}
	last := snapshot[len(snapshot)-1].Sequence
	mergeFrom := len(writeLog)
	for i, v := range writeLog {
		if v.Sequence > last {
			mergeFrom = i
			break
		}
	}
	return append(snapshot, writeLog[mergeFrom:]...)
}

// evaluateSnapshot evaluates each spliced input through the entry's
// expression, applying change-detection and head/tail/unlimited
// truncation. The caller must hold handle's lock.
func evaluateSnapshot[I any, O comparable, C comparable](entry *Entry[I, O, C],
	spliced []SequencedValue[I], limit SnapshotLimit) []SequencedValue[O] {
	var head []SequencedValue[O]
	var tail *ringBuffer[SequencedValue[O]]
	if limit.Type == Tail {
		tail = newRingBuffer[SequencedValue[O]](limit.Size)
	}

	for _, data := range spliced {
		output, emit, ok := entry.evaluate(data.Value)
		if !ok || !emit {
			continue
		}
		sv := NewSequencedValue(output, data.Sequence)
		switch limit.Type {
		case Tail:
			tail.push(sv)
		case Head:
			if len(head) >= limit.Size {
				continue
			}
			head = append(head, sv)
		default: // Unlimited
			head = append(head, sv)
		}
	}

	if limit.Type == Tail {
		return tail.values()
	}
	return head
}

// End removes the single entry matching (client, id) from the all-entries
// set, tolerating either phase. Removing an entry still INITIALIZING also
// drops it from the initializing index, so a later Commit for the same
// (client, id) becomes a no-op. Idempotent: ending an already-removed
// query is a no-op.
func (r *Registry[I, O, C]) End(client C, id int32) {
	removed := r.removeMatching(func(e *Entry[I, O, C]) bool {
		return e.Client == client && e.ID == id
	})
	r.dropInitializing(client, &id)
	if r.metrics != nil {
		r.metrics.SubscriptionsActive.Sub(float64(removed))
	}
}

// RemoveAll removes every entry belonging to client, in either phase.
// Idempotent.
func (r *Registry[I, O, C]) RemoveAll(client C) {
	removed := r.removeMatching(func(e *Entry[I, O, C]) bool {
		return e.Client == client
	})
	r.dropInitializing(client, nil)
	if r.metrics != nil {
		r.metrics.SubscriptionsActive.Sub(float64(removed))
	}
}

func (r *Registry[I, O, C]) removeMatching(match func(*Entry[I, O, C]) bool) int {
	r.subscriptionsMtx.Lock()
	defer r.subscriptionsMtx.Unlock()
	kept := r.entries[:0]
	removed := 0
	for _, handle := range r.entries {
		var hit bool
		handle.mu.Lock()
		hit = match(&handle.entry)
		handle.mu.Unlock()
		if hit {
			removed++
			continue
		}
		kept = append(kept, handle)
	}
	r.entries = kept
	return removed
}

// dropInitializing removes client's initializing-index bookkeeping,
// either a single id (when id != nil) or the whole client entry.
func (r *Registry[I, O, C]) dropInitializing(client C, id *int32) {
	r.initializingMtx.Lock()
	defer r.initializingMtx.Unlock()
	byID, ok := r.initializing[client]
	if !ok {
		return
	}
	if id == nil {
		delete(r.initializing, client)
		return
	}
	delete(byID, *id)
	if len(byID) == 0 {
		delete(r.initializing, client)
	}
}

// Publish fans a single input value out to every matching entry. For an
// entry still INITIALIZING, the value is appended to its writeLog
// instead of being sent; Publish must not be invoked reentrantly from
// send for the same entry.
func (r *Registry[I, O, C]) Publish(value SequencedValue[I], send Sender[O, C]) {
	if r.metrics != nil {
		r.metrics.PublishedValues.Inc()
	}
	r.subscriptionsMtx.RLock()
	snapshot := make([]*entryHandle[I, O, C], len(r.entries))
	copy(snapshot, r.entries)
	r.subscriptionsMtx.RUnlock()

	for _, handle := range snapshot {
		r.publishToEntry(handle, value, send)
	}
}

func (r *Registry[I, O, C]) publishToEntry(handle *entryHandle[I, O, C],
	value SequencedValue[I], send Sender[O, C]) {
	handle.mu.Lock()
	defer handle.mu.Unlock()
	entry := &handle.entry

	if !entry.inRange(value.Sequence) || !entry.passesFilter(value.Value) {
		return
	}

	if entry.phase == phaseInitializing {
		entry.writeLog = append(entry.writeLog, value)
		return
	}

	output, emit, ok := entry.evaluate(value.Value)
	if !ok {
		if r.metrics != nil {
			r.metrics.EvaluatorFailures.Inc()
		}
		return
	}
	if !emit {
		return
	}
	send(entry.Client, entry.ID, NewSequencedValue(output, value.Sequence))
}
