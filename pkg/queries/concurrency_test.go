package queries_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschof/subscriptions/pkg/queries"
)

// TestConcurrentPublishDuringInitialize publishes from a separate
// goroutine while a fresh subscription is still initializing, waits for
// that goroutine to finish, then commits, and checks that the commit
// snapshot neither loses nor duplicates any value that arrived during
// initialization. Run with -race to catch lock misuse.
func TestConcurrentPublishDuringInitialize(t *testing.T) {
	reg := queries.NewRegistry[int, int, *client]()
	c := &client{name: "C"}

	require.NoError(t, reg.Initialize(c, 1, unboundedRange(), queries.AlwaysTrue[int](), queries.All, queries.Identity[int]()))

	const n = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		noopSend := func(*client, int32, queries.SequencedValue[int]) {}
		for i := 1; i <= n; i++ {
			reg.Publish(queries.NewSequencedValue(i, queries.Sequence(i)), noopSend)
		}
	}()
	wg.Wait()

	var got []queries.SequencedValue[int]
	var mu sync.Mutex
	var result queries.QueryResult[queries.SequencedValue[int]]
	result.QueryID = 1
	reg.Commit(c, queries.NewUnlimitedSnapshot(), result, nil,
		func(r queries.QueryResult[queries.SequencedValue[int]]) {
			mu.Lock()
			got = append(got, r.Snapshot...)
			mu.Unlock()
		})

	require.Len(t, got, n)
	seen := make(map[queries.Sequence]bool, n)
	for _, v := range got {
		assert.False(t, seen[v.Sequence], "duplicate sequence %d", v.Sequence)
		seen[v.Sequence] = true
	}
}

// TestConcurrentPublishAndSubscriptionChurn runs many goroutines
// subscribing, committing, publishing, and removing concurrently to
// exercise lock ordering under -race.
func TestConcurrentPublishAndSubscriptionChurn(t *testing.T) {
	reg := queries.NewRegistry[int, int, *client]()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &client{name: "churn"}
			id := int32(i)
			if err := reg.Initialize(c, id, unboundedRange(), queries.AlwaysTrue[int](), queries.All, queries.Identity[int]()); err != nil {
				return
			}
			var result queries.QueryResult[queries.SequencedValue[int]]
			result.QueryID = id
			reg.Commit(c, queries.NewUnlimitedSnapshot(), result, nil, func(queries.QueryResult[queries.SequencedValue[int]]) {})
			reg.End(c, id)
		}()
	}

	publisher := &client{name: "publisher"}
	_ = publisher
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Publish(queries.NewSequencedValue(i, queries.Sequence(i+1)), func(*client, int32, queries.SequencedValue[int]) {})
		}()
	}

	wg.Wait()
}
