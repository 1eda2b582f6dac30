package eventstore

import (
	"slices"
)

// Evaluate applies a predicate directly to an in-memory record.
//
// Is tests the record's runtime discriminator against the type set; an empty
// set vacuously matches everything. And and Or short-circuit with the
// conventional identities (empty And is true, empty Or is false). Where looks
// up each named field on the record's map form and applies the corresponding
// FieldPredicate; a field absent on the record is tested as nil.
//
// A nil predicate matches everything.
func Evaluate(predicate Predicate, record Record) bool {
	switch pred := predicate.(type) {
	case nil:
		return true

	case AndPredicate:
		for _, sub := range pred.Preds() {
			if !Evaluate(sub, record) {
				return false
			}
		}
		return true

	case OrPredicate:
		for _, sub := range pred.Alts() {
			if Evaluate(sub, record) {
				return true
			}
		}
		return false

	case IsPredicate:
		if len(pred.Types()) == 0 {
			return true
		}
		return slices.Contains(pred.Types(), record.RecordType())

	case WherePredicate:
		fields := record.ToMap()
		for name, fieldPred := range pred.Fields() {
			if !fieldPred.Matches(fields[name]) {
				return false
			}
		}
		return true

	default:
		return false
	}
}
