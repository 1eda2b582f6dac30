// Package sqlfilter compiles predicates into SQL WHERE clauses for a store
// that keeps the record discriminator in one column and all remaining fields
// in a single JSONB document column.
//
// Compilation is best effort: whatever a node cannot express in SQL is
// returned as a residual predicate for in-memory re-evaluation after rows are
// decoded. For every predicate p and record r, evaluating p directly is
// equivalent to the row matching the compiled clause AND the residual
// matching the decoded record. Correctness never depends on how much of the
// predicate was pushed down.
package sqlfilter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mccolljr/flurry/eventstore"
)

var json = jsoniter.ConfigFastest

// Options configures the target schema for compilation.
type Options struct {
	// TypeColumn is the column holding the record discriminator.
	TypeColumn string

	// DataColumn is the JSONB column holding the record fields.
	DataColumn string

	// TimestampConvert is a fmt pattern with a single %s verb that wraps a
	// text expression in a SQL function converting it to timestamptz, for
	// example "my_parse_ts(%s)". When empty, comparisons against time.Time
	// values are not pushed down and stay in the residual.
	TimestampConvert string
}

// Compiled is the outcome of compiling a predicate.
//
// Clause uses ? placeholders matching Args in order. An empty Clause means
// nothing could be pushed down. A nil Residual means the clause covers the
// predicate completely.
type Compiled struct {
	Residual eventstore.Predicate
	Clause   string
	Args     []any
}

// Compile splits the predicate into a SQL clause and an in-memory residual.
// A nil predicate compiles to the empty clause with no residual.
func Compile(predicate eventstore.Predicate, opts Options) Compiled {
	if predicate == nil {
		return Compiled{}
	}

	c := compiler{opts: opts}
	residual, clause, args := c.predicate(predicate)

	return Compiled{Residual: residual, Clause: clause, Args: args}
}

type compiler struct {
	opts Options
}

// predicate returns (residual, clause, args) for one node. A nil residual
// means the clause is complete; an empty clause means nothing compiled.
func (c compiler) predicate(p eventstore.Predicate) (eventstore.Predicate, string, []any) {
	switch node := p.(type) {
	case eventstore.AndPredicate:
		return c.and(node)
	case eventstore.OrPredicate:
		return c.or(node)
	case eventstore.IsPredicate:
		return c.is(node)
	case eventstore.WherePredicate:
		return c.where(node)
	default:
		return p, "", nil
	}
}

// and pushes down every child that compiles and folds the uncompiled
// children into an And residual, so the residual covers exactly the gap.
func (c compiler) and(p eventstore.AndPredicate) (eventstore.Predicate, string, []any) {
	preds := p.Preds()
	if len(preds) == 0 {
		return p, "", nil
	}

	var (
		leftover []eventstore.Predicate
		clauses  []string
		args     []any
	)

	for _, child := range preds {
		residual, clause, childArgs := c.predicate(child)
		if residual != nil {
			leftover = append(leftover, residual)
		}

		if clause != "" {
			clauses = append(clauses, clause)
			args = append(args, childArgs...)
		}
	}

	var residual eventstore.Predicate
	if len(leftover) > 0 {
		residual = eventstore.And(leftover...)
	}

	return residual, joinClauses(clauses, " AND "), args
}

// or pushes down only when every alternative compiles. A clause covering a
// subset of the alternatives would wrongly reject rows that match an
// uncompiled one, so a partially compilable Or stays residual as a whole.
func (c compiler) or(p eventstore.OrPredicate) (eventstore.Predicate, string, []any) {
	alts := p.Alts()
	if len(alts) == 0 {
		return p, "", nil
	}

	var (
		clauses []string
		args    []any
	)

	for _, child := range alts {
		residual, clause, childArgs := c.predicate(child)
		if residual != nil {
			return p, "", nil
		}

		clauses = append(clauses, clause)
		args = append(args, childArgs...)
	}

	return nil, joinClauses(clauses, " OR "), args
}

func (c compiler) is(p eventstore.IsPredicate) (eventstore.Predicate, string, []any) {
	types := p.Types()
	if len(types) == 0 {
		return p, "", nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(types)), ", ")
	args := make([]any, len(types))
	for i, name := range types {
		args[i] = name
	}

	return nil, fmt.Sprintf("%s IN (%s)", c.opts.TypeColumn, placeholders), args
}

// where compiles all field tests or none: a partially compiled conjunction
// over fields would be hard to subtract from the residual, so the whole node
// falls back when any single field test cannot be expressed.
func (c compiler) where(p eventstore.WherePredicate) (eventstore.Predicate, string, []any) {
	fields := p.Fields()
	if len(fields) == 0 {
		return p, "", nil
	}

	var (
		clauses []string
		args    []any
	)

	for _, name := range sortedFieldNames(fields) {
		clause, fieldArgs, ok := c.fieldPredicate(name, fields[name])
		if !ok {
			return p, "", nil
		}

		clauses = append(clauses, clause)
		args = append(args, fieldArgs...)
	}

	return nil, joinClauses(clauses, " AND "), args
}

func (c compiler) fieldPredicate(field string, p eventstore.FieldPredicate) (string, []any, bool) {
	switch test := p.(type) {
	case eventstore.EqPredicate:
		return c.comparison(field, "=", test.Expect())
	case eventstore.NotEqPredicate:
		return c.comparison(field, "<>", test.Value())
	case eventstore.LessPredicate:
		return c.comparison(field, "<", test.Limit())
	case eventstore.MorePredicate:
		return c.comparison(field, ">", test.Limit())
	case eventstore.LessEqPredicate:
		return c.comparison(field, "<=", test.Limit())
	case eventstore.MoreEqPredicate:
		return c.comparison(field, ">=", test.Limit())
	case eventstore.BetweenPredicate:
		return c.between(field, test)
	case eventstore.OneOfPredicate:
		return c.oneOf(field, test)
	default:
		return "", nil, false
	}
}

// comparison emits one field comparison. Non-negated operators require the
// JSON key to be present and satisfy the comparison. The negated operator
// instead treats a missing key as satisfying the negation, via
// coalesce(..., true): "not equal to X" holds both when the field differs
// from X and when the field is absent. NotEq is therefore not the logical
// negation of Eq when the key is missing.
func (c compiler) comparison(field, operator string, value any) (string, []any, bool) {
	negated := operator == "<>"

	if ts, ok := value.(time.Time); ok {
		return c.timestampComparison(field, operator, negated, ts)
	}

	literal, ok := jsonLiteral(value)
	if !ok {
		return "", nil, false
	}

	if negated {
		clause := fmt.Sprintf("coalesce(%s->? %s ?::jsonb, true)", c.opts.DataColumn, operator)

		return clause, []any{field, literal}, true
	}

	clause := fmt.Sprintf(
		"(jsonb_exists(%s, ?) AND %s->? %s ?::jsonb)",
		c.opts.DataColumn, c.opts.DataColumn, operator,
	)

	return clause, []any{field, field, literal}, true
}

func (c compiler) timestampComparison(field, operator string, negated bool, value time.Time) (string, []any, bool) {
	if c.opts.TimestampConvert == "" {
		return "", nil, false
	}

	converted := fmt.Sprintf(c.opts.TimestampConvert, c.opts.DataColumn+"->>?")
	literal := value.Format(time.RFC3339Nano)

	if negated {
		clause := fmt.Sprintf("coalesce(%s %s ?::timestamptz, true)", converted, operator)

		return clause, []any{field, literal}, true
	}

	clause := fmt.Sprintf(
		"(jsonb_exists(%s, ?) AND %s %s ?::timestamptz)",
		c.opts.DataColumn, converted, operator,
	)

	return clause, []any{field, field, literal}, true
}

func (c compiler) between(field string, p eventstore.BetweenPredicate) (string, []any, bool) {
	lowClause, lowArgs, ok := c.comparison(field, ">=", p.Lower())
	if !ok {
		return "", nil, false
	}

	highClause, highArgs, ok := c.comparison(field, "<=", p.Upper())
	if !ok {
		return "", nil, false
	}

	return fmt.Sprintf("(%s AND %s)", lowClause, highClause), append(lowArgs, highArgs...), true
}

func (c compiler) oneOf(field string, p eventstore.OneOfPredicate) (string, []any, bool) {
	options := p.Options()
	if len(options) == 0 {
		return "", nil, false
	}

	var (
		clauses []string
		args    []any
	)

	for _, option := range options {
		clause, optionArgs, ok := c.comparison(field, "=", option)
		if !ok {
			return "", nil, false
		}

		clauses = append(clauses, clause)
		args = append(args, optionArgs...)
	}

	return fmt.Sprintf("(%s)", strings.Join(clauses, " OR ")), args, true
}

// jsonLiteral renders a scalar as a JSONB literal for the ::jsonb cast.
func jsonLiteral(value any) (string, bool) {
	switch value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		literal, err := json.MarshalToString(value)
		if err != nil {
			return "", false
		}

		return literal, true
	default:
		return "", false
	}
}

func joinClauses(clauses []string, separator string) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	default:
		return "(" + strings.Join(clauses, separator) + ")"
	}
}

func sortedFieldNames(fields map[string]eventstore.FieldPredicate) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
