package exprquery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschof/subscriptions/pkg/exprquery"
)

func TestParseAndMatchEquality(t *testing.T) {
	q, err := exprquery.Parse(`tm.event='Tx' AND tx.height=1`)
	require.NoError(t, err)

	assert.True(t, q.Matches(map[string]string{"tm.event": "Tx", "tx.height": "1"}))
	assert.False(t, q.Matches(map[string]string{"tm.event": "Tx", "tx.height": "2"}))
	assert.False(t, q.Matches(map[string]string{"tm.event": "Tx"}))
}

func TestParseComparisonOperators(t *testing.T) {
	q := exprquery.MustParse("tx.height>=10")
	assert.True(t, q.Matches(map[string]string{"tx.height": "10"}))
	assert.True(t, q.Matches(map[string]string{"tx.height": "11"}))
	assert.False(t, q.Matches(map[string]string{"tx.height": "9"}))
}

func TestParseContains(t *testing.T) {
	q := exprquery.MustParse("transfer.sender CONTAINS 'foo'")
	assert.True(t, q.Matches(map[string]string{"transfer.sender": "foobar"}))
	assert.False(t, q.Matches(map[string]string{"transfer.sender": "baz"}))
}

func TestEmptyMatchesEverything(t *testing.T) {
	q := exprquery.Empty()
	assert.True(t, q.Matches(nil))
	assert.True(t, q.Matches(map[string]string{"x": "y"}))
}

func TestToEvaluator(t *testing.T) {
	q := exprquery.MustParse("status='active'")
	type record struct {
		status string
	}
	ev := exprquery.ToEvaluator(q, func(r record) map[string]string {
		return map[string]string{"status": r.status}
	})

	ok, err := ev.Eval(record{status: "active"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Eval(record{status: "idle"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMustParsePanicsOnBadSyntax(t *testing.T) {
	assert.Panics(t, func() {
		exprquery.MustParse("nonsense-without-operator")
	})
}
