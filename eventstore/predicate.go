package eventstore

// Predicate is a boolean filter expression over records. Predicates are
// structurally immutable values: they are constructed ad hoc per query, never
// mutated, and support structural equality via Equal.
//
// The algebra consists of the combinators And and Or, the type-discriminator
// membership test Is, and Where, a conjunction of per-field tests.
type Predicate interface {
	// ToMap returns the canonical nested-map wire form of the predicate.
	ToMap() map[string]any

	// Equal reports whether the other predicate has the same structure and
	// values as this one.
	Equal(other Predicate) bool

	isPredicate()
}

// FieldPredicate is a boolean test applied to a single named field of a
// record by a Where predicate.
type FieldPredicate interface {
	// ToMap returns the canonical map wire form of the field predicate.
	ToMap() map[string]any

	// Matches reports whether the given field value satisfies the test.
	// A field absent on the record is presented as nil.
	Matches(value any) bool

	// Equal reports whether the other field predicate has the same structure
	// and values as this one.
	Equal(other FieldPredicate) bool

	isFieldPredicate()
}

/***** Combinators *****/

// AndPredicate matches records that satisfy every sub-predicate.
// An empty AndPredicate matches everything.
type AndPredicate struct {
	preds []Predicate
}

// And combines predicates conjunctively.
func And(preds ...Predicate) AndPredicate {
	return AndPredicate{preds: preds}
}

// Preds returns the sub-predicates.
func (p AndPredicate) Preds() []Predicate {
	return p.preds
}

func (p AndPredicate) isPredicate() {}

// Equal reports structural equality.
func (p AndPredicate) Equal(other Predicate) bool {
	o, ok := other.(AndPredicate)

	return ok && equalPredicateSlices(p.preds, o.preds)
}

// OrPredicate matches records that satisfy at least one sub-predicate.
// An empty OrPredicate matches nothing.
type OrPredicate struct {
	alts []Predicate
}

// Or combines predicates disjunctively.
func Or(alts ...Predicate) OrPredicate {
	return OrPredicate{alts: alts}
}

// Alts returns the alternative sub-predicates.
func (p OrPredicate) Alts() []Predicate {
	return p.alts
}

func (p OrPredicate) isPredicate() {}

// Equal reports structural equality.
func (p OrPredicate) Equal(other Predicate) bool {
	o, ok := other.(OrPredicate)

	return ok && equalPredicateSlices(p.alts, o.alts)
}

// IsPredicate matches records whose discriminator is one of the given type
// names. An empty type set vacuously matches everything, mirroring "no filter".
type IsPredicate struct {
	types []string
}

// Is builds a type-discriminator membership test.
func Is(types ...string) IsPredicate {
	return IsPredicate{types: types}
}

// Types returns the accepted discriminator names.
func (p IsPredicate) Types() []string {
	return p.types
}

func (p IsPredicate) isPredicate() {}

// Equal reports structural equality.
func (p IsPredicate) Equal(other Predicate) bool {
	o, ok := other.(IsPredicate)
	if !ok || len(p.types) != len(o.types) {
		return false
	}

	for i, name := range p.types {
		if o.types[i] != name {
			return false
		}
	}

	return true
}

// WherePredicate matches records for which every named field satisfies its
// FieldPredicate. Fields are resolved through the record's declared field
// names; a field absent on the record is tested as nil.
type WherePredicate struct {
	fields map[string]FieldPredicate
}

// Where builds a conjunction of per-field tests.
func Where(fields map[string]FieldPredicate) WherePredicate {
	copied := make(map[string]FieldPredicate, len(fields))
	for name, pred := range fields {
		copied[name] = pred
	}

	return WherePredicate{fields: copied}
}

// Fields returns the per-field tests.
func (p WherePredicate) Fields() map[string]FieldPredicate {
	return p.fields
}

func (p WherePredicate) isPredicate() {}

// Equal reports structural equality.
func (p WherePredicate) Equal(other Predicate) bool {
	o, ok := other.(WherePredicate)
	if !ok || len(p.fields) != len(o.fields) {
		return false
	}

	for name, pred := range p.fields {
		otherPred, exists := o.fields[name]
		if !exists || !pred.Equal(otherPred) {
			return false
		}
	}

	return true
}

func equalPredicateSlices(a, b []Predicate) bool {
	if len(a) != len(b) {
		return false
	}

	for i, pred := range a {
		if !pred.Equal(b[i]) {
			return false
		}
	}

	return true
}

/***** Field predicates *****/

// EqPredicate matches a field equal to the expected value.
// A missing field never matches.
type EqPredicate struct {
	expect any
}

// Eq builds an equality test.
func Eq(expect any) EqPredicate {
	return EqPredicate{expect: expect}
}

// Expect returns the expected value.
func (p EqPredicate) Expect() any {
	return p.expect
}

func (p EqPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p EqPredicate) Matches(value any) bool {
	return equalValues(value, p.expect)
}

// Equal reports structural equality.
func (p EqPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(EqPredicate)

	return ok && equalValues(p.expect, o.expect)
}

// NotEqPredicate matches a field different from the given value.
//
// A missing field satisfies the negation: "not equal to X" is true both when
// the field differs from X and when the field is absent. This asymmetry with
// EqPredicate is intentional and is preserved by the SQL compiler.
type NotEqPredicate struct {
	value any
}

// NotEq builds an inequality test.
func NotEq(value any) NotEqPredicate {
	return NotEqPredicate{value: value}
}

// Value returns the rejected value.
func (p NotEqPredicate) Value() any {
	return p.value
}

func (p NotEqPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p NotEqPredicate) Matches(value any) bool {
	return !equalValues(value, p.value)
}

// Equal reports structural equality.
func (p NotEqPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(NotEqPredicate)

	return ok && equalValues(p.value, o.value)
}

// LessPredicate matches a field strictly less than the limit.
type LessPredicate struct {
	limit any
}

// Less builds a strict lower-than test.
func Less(limit any) LessPredicate {
	return LessPredicate{limit: limit}
}

// Limit returns the exclusive upper bound.
func (p LessPredicate) Limit() any {
	return p.limit
}

func (p LessPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p LessPredicate) Matches(value any) bool {
	cmp, ok := compareValues(value, p.limit)

	return ok && cmp < 0
}

// Equal reports structural equality.
func (p LessPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(LessPredicate)

	return ok && equalValues(p.limit, o.limit)
}

// MorePredicate matches a field strictly greater than the limit.
type MorePredicate struct {
	limit any
}

// More builds a strict greater-than test.
func More(limit any) MorePredicate {
	return MorePredicate{limit: limit}
}

// Limit returns the exclusive lower bound.
func (p MorePredicate) Limit() any {
	return p.limit
}

func (p MorePredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p MorePredicate) Matches(value any) bool {
	cmp, ok := compareValues(value, p.limit)

	return ok && cmp > 0
}

// Equal reports structural equality.
func (p MorePredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(MorePredicate)

	return ok && equalValues(p.limit, o.limit)
}

// LessEqPredicate matches a field less than or equal to the limit.
type LessEqPredicate struct {
	limit any
}

// LessEq builds a lower-than-or-equal test.
func LessEq(limit any) LessEqPredicate {
	return LessEqPredicate{limit: limit}
}

// Limit returns the inclusive upper bound.
func (p LessEqPredicate) Limit() any {
	return p.limit
}

func (p LessEqPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p LessEqPredicate) Matches(value any) bool {
	cmp, ok := compareValues(value, p.limit)

	return ok && cmp <= 0
}

// Equal reports structural equality.
func (p LessEqPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(LessEqPredicate)

	return ok && equalValues(p.limit, o.limit)
}

// MoreEqPredicate matches a field greater than or equal to the limit.
type MoreEqPredicate struct {
	limit any
}

// MoreEq builds a greater-than-or-equal test.
func MoreEq(limit any) MoreEqPredicate {
	return MoreEqPredicate{limit: limit}
}

// Limit returns the inclusive lower bound.
func (p MoreEqPredicate) Limit() any {
	return p.limit
}

func (p MoreEqPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p MoreEqPredicate) Matches(value any) bool {
	cmp, ok := compareValues(value, p.limit)

	return ok && cmp >= 0
}

// Equal reports structural equality.
func (p MoreEqPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(MoreEqPredicate)

	return ok && equalValues(p.limit, o.limit)
}

// BetweenPredicate matches a field within [lower, upper], inclusive on both ends.
type BetweenPredicate struct {
	lower any
	upper any
}

// Between builds an inclusive range test.
func Between(lower, upper any) BetweenPredicate {
	return BetweenPredicate{lower: lower, upper: upper}
}

// Lower returns the inclusive lower bound.
func (p BetweenPredicate) Lower() any {
	return p.lower
}

// Upper returns the inclusive upper bound.
func (p BetweenPredicate) Upper() any {
	return p.upper
}

func (p BetweenPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p BetweenPredicate) Matches(value any) bool {
	low, lowOK := compareValues(value, p.lower)
	high, highOK := compareValues(value, p.upper)

	return lowOK && highOK && low >= 0 && high <= 0
}

// Equal reports structural equality.
func (p BetweenPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(BetweenPredicate)

	return ok && equalValues(p.lower, o.lower) && equalValues(p.upper, o.upper)
}

// OneOfPredicate matches a field equal to any of the options.
// An empty option set matches nothing.
type OneOfPredicate struct {
	options []any
}

// OneOf builds a membership test.
func OneOf(options ...any) OneOfPredicate {
	return OneOfPredicate{options: options}
}

// Options returns the accepted values.
func (p OneOfPredicate) Options() []any {
	return p.options
}

func (p OneOfPredicate) isFieldPredicate() {}

// Matches implements FieldPredicate.
func (p OneOfPredicate) Matches(value any) bool {
	for _, option := range p.options {
		if equalValues(value, option) {
			return true
		}
	}

	return false
}

// Equal reports structural equality.
func (p OneOfPredicate) Equal(other FieldPredicate) bool {
	o, ok := other.(OneOfPredicate)
	if !ok || len(p.options) != len(o.options) {
		return false
	}

	for i, option := range p.options {
		if !equalValues(option, o.options[i]) {
			return false
		}
	}

	return true
}
