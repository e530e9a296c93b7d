// Package exprquery implements a minimal composite query language that
// compiles to a queries.Evaluator[I, bool]. It is grounded in
// github.com/tendermint/tendermint's libs/pubsub/query package, whose
// grammar (`tm.event='Tx' AND tx.height=1 AND transfer.sender='foo'`) is
// exercised throughout that package's own tests.
package exprquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tschof/subscriptions/pkg/queries"
)

// Op is a comparison operator usable against a single attribute.
type Op string

// The operators supported by the grammar `key OP literal`.
const (
	OpEqual        Op = "="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpContains     Op = "CONTAINS"
)

// Condition is one `key OP literal` clause.
type Condition struct {
	Key     string
	Op      Op
	Literal string
}

// Query is a conjunction of Conditions: `key OP literal (AND key OP
// literal)*`.
type Query struct {
	Conditions []Condition
}

// Empty returns a Query matching every set of attributes, mirroring
// tendermint's tmquery.Empty{}.
func Empty() Query {
	return Query{}
}

// Parse compiles a query string such as
// `tm.event='Tx' AND tx.height=1` into a Query.
func Parse(s string) (Query, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty(), nil
	}
	parts := strings.Split(s, " AND ")
	q := Query{Conditions: make([]Condition, 0, len(parts))}
	for _, part := range parts {
		cond, err := parseCondition(strings.TrimSpace(part))
		if err != nil {
			return Query{}, fmt.Errorf("exprquery: %w", err)
		}
		q.Conditions = append(q.Conditions, cond)
	}
	return q, nil
}

// MustParse is like Parse but panics on error, mirroring
// tendermint's tmquery.MustParse used pervasively in tests.
func MustParse(s string) Query {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

var operatorsByLength = []Op{OpLessEqual, OpGreaterEqual, OpNotEqual, OpEqual, OpLess, OpGreater}

func parseCondition(s string) (Condition, error) {
	if strings.Contains(s, " CONTAINS ") {
		idx := strings.Index(s, " CONTAINS ")
		key := strings.TrimSpace(s[:idx])
		literal := unquote(strings.TrimSpace(s[idx+len(" CONTAINS "):]))
		if key == "" {
			return Condition{}, fmt.Errorf("empty key in condition %q", s)
		}
		return Condition{Key: key, Op: OpContains, Literal: literal}, nil
	}
	for _, op := range operatorsByLength {
		idx := strings.Index(s, string(op))
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(s[:idx])
		literal := unquote(strings.TrimSpace(s[idx+len(op):]))
		return Condition{Key: key, Op: op, Literal: literal}, nil
	}
	return Condition{}, fmt.Errorf("no operator found in condition %q", s)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// Matches reports whether attrs satisfies every Condition in q. A
// missing key never matches any operator.
func (q Query) Matches(attrs map[string]string) bool {
	for _, c := range q.Conditions {
		v, ok := attrs[c.Key]
		if !ok {
			return false
		}
		if !matchOne(c, v) {
			return false
		}
	}
	return true
}

func matchOne(c Condition, value string) bool {
	switch c.Op {
	case OpEqual:
		return value == c.Literal
	case OpNotEqual:
		return value != c.Literal
	case OpContains:
		return strings.Contains(value, c.Literal)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		lhs, err1 := strconv.ParseFloat(value, 64)
		rhs, err2 := strconv.ParseFloat(c.Literal, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		switch c.Op {
		case OpLess:
			return lhs < rhs
		case OpLessEqual:
			return lhs <= rhs
		case OpGreater:
			return lhs > rhs
		case OpGreaterEqual:
			return lhs >= rhs
		}
	}
	return false
}

// String renders q back into the grammar it was parsed from.
func (q Query) String() string {
	parts := make([]string, len(q.Conditions))
	for i, c := range q.Conditions {
		if c.Op == OpContains {
			parts[i] = fmt.Sprintf("%s %s '%s'", c.Key, c.Op, c.Literal)
			continue
		}
		parts[i] = fmt.Sprintf("%s%s'%s'", c.Key, c.Op, c.Literal)
	}
	return strings.Join(parts, " AND ")
}

// ToEvaluator compiles q into a queries.Evaluator[I, bool] using attrs to
// extract the attribute map from each input value.
func ToEvaluator[I any](q Query, attrs func(I) map[string]string) queries.Evaluator[I, bool] {
	return queries.EvaluatorFunc[I, bool](func(v I) (bool, error) {
		return q.Matches(attrs(v)), nil
	})
}
