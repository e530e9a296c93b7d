package queries

import "errors"

// ErrDuplicateQuery is returned by Initialize when (client, id) is already
// registered as an initializing subscription.
var ErrDuplicateQuery = errors.New("queries: query already exists")

// ErrStaleCommit names the condition of a Commit on an unknown or
// already-committed (client, id). Commit ignores that case silently and
// neither returns nor logs this value.
var ErrStaleCommit = errors.New("queries: commit for unknown or already-committed subscription")
