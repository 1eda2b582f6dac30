package eventstore

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// The canonical wire form of a predicate is a single-key nested map, e.g.
//
//	{"and": [...]}
//	{"is": ["TypeA", "TypeB"]}
//	{"where": {"age": {"more_eq": 21}}}
//
// PredicateFromMap(p.ToMap()) reconstructs a predicate structurally equal to
// p for every predicate value, including the degenerate empty forms.

var (
	// ErrInvalidPredicate is returned when a map is not a valid predicate wire form.
	ErrInvalidPredicate = errors.New("value is not a valid predicate")

	// ErrInvalidFieldPredicate is returned when a map is not a valid field predicate wire form.
	ErrInvalidFieldPredicate = errors.New("value is not a valid field predicate")
)

const (
	wireAnd     = "and"
	wireOr      = "or"
	wireIs      = "is"
	wireWhere   = "where"
	wireEq      = "eq"
	wireNotEq   = "not_eq"
	wireLess    = "less"
	wireMore    = "more"
	wireLessEq  = "less_eq"
	wireMoreEq  = "more_eq"
	wireBetween = "between"
	wireOneOf   = "one_of"
)

// ToMap implements Predicate.
func (p AndPredicate) ToMap() map[string]any {
	return map[string]any{wireAnd: predicateMaps(p.preds)}
}

// ToMap implements Predicate.
func (p OrPredicate) ToMap() map[string]any {
	return map[string]any{wireOr: predicateMaps(p.alts)}
}

// ToMap implements Predicate.
func (p IsPredicate) ToMap() map[string]any {
	types := make([]any, len(p.types))
	for i, name := range p.types {
		types[i] = name
	}

	return map[string]any{wireIs: types}
}

// ToMap implements Predicate.
func (p WherePredicate) ToMap() map[string]any {
	fields := make(map[string]any, len(p.fields))
	for name, pred := range p.fields {
		fields[name] = pred.ToMap()
	}

	return map[string]any{wireWhere: fields}
}

// ToMap implements FieldPredicate.
func (p EqPredicate) ToMap() map[string]any {
	return map[string]any{wireEq: p.expect}
}

// ToMap implements FieldPredicate.
func (p NotEqPredicate) ToMap() map[string]any {
	return map[string]any{wireNotEq: p.value}
}

// ToMap implements FieldPredicate.
func (p LessPredicate) ToMap() map[string]any {
	return map[string]any{wireLess: p.limit}
}

// ToMap implements FieldPredicate.
func (p MorePredicate) ToMap() map[string]any {
	return map[string]any{wireMore: p.limit}
}

// ToMap implements FieldPredicate.
func (p LessEqPredicate) ToMap() map[string]any {
	return map[string]any{wireLessEq: p.limit}
}

// ToMap implements FieldPredicate.
func (p MoreEqPredicate) ToMap() map[string]any {
	return map[string]any{wireMoreEq: p.limit}
}

// ToMap implements FieldPredicate.
func (p BetweenPredicate) ToMap() map[string]any {
	return map[string]any{wireBetween: []any{p.lower, p.upper}}
}

// ToMap implements FieldPredicate.
func (p OneOfPredicate) ToMap() map[string]any {
	options := make([]any, len(p.options))
	copy(options, p.options)

	return map[string]any{wireOneOf: options}
}

func predicateMaps(preds []Predicate) []any {
	maps := make([]any, len(preds))
	for i, pred := range preds {
		maps[i] = pred.ToMap()
	}

	return maps
}

// PredicateFromMap reconstructs a Predicate from its canonical map wire form.
func PredicateFromMap(src map[string]any) (Predicate, error) {
	name, val, err := singleEntry(src, ErrInvalidPredicate)
	if err != nil {
		return nil, err
	}

	switch name {
	case wireAnd:
		preds, parseErr := predicateList(val)
		if parseErr != nil {
			return nil, parseErr
		}
		return And(preds...), nil

	case wireOr:
		alts, parseErr := predicateList(val)
		if parseErr != nil {
			return nil, parseErr
		}
		return Or(alts...), nil

	case wireIs:
		items, ok := asList(val)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, src)
		}
		types := make([]string, len(items))
		for i, item := range items {
			typeName, isString := item.(string)
			if !isString {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, src)
			}
			types[i] = typeName
		}
		return Is(types...), nil

	case wireWhere:
		rawFields, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, src)
		}
		fields := make(map[string]FieldPredicate, len(rawFields))
		for fieldName, rawPred := range rawFields {
			predMap, isMap := rawPred.(map[string]any)
			if !isMap {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFieldPredicate, rawPred)
			}
			fieldPred, parseErr := FieldPredicateFromMap(predMap)
			if parseErr != nil {
				return nil, parseErr
			}
			fields[fieldName] = fieldPred
		}
		return Where(fields), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, src)
	}
}

// FieldPredicateFromMap reconstructs a FieldPredicate from its canonical map wire form.
func FieldPredicateFromMap(src map[string]any) (FieldPredicate, error) {
	name, val, err := singleEntry(src, ErrInvalidFieldPredicate)
	if err != nil {
		return nil, err
	}

	switch name {
	case wireEq:
		decoded, decodeErr := decodeValue(val)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return Eq(decoded), nil

	case wireNotEq:
		decoded, decodeErr := decodeValue(val)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return NotEq(decoded), nil

	case wireLess:
		decoded, decodeErr := decodeValue(val)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return Less(decoded), nil

	case wireMore:
		decoded, decodeErr := decodeValue(val)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return More(decoded), nil

	case wireLessEq:
		decoded, decodeErr := decodeValue(val)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return LessEq(decoded), nil

	case wireMoreEq:
		decoded, decodeErr := decodeValue(val)
		if decodeErr != nil {
			return nil, decodeErr
		}
		return MoreEq(decoded), nil

	case wireBetween:
		bounds, ok := asList(val)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFieldPredicate, src)
		}
		lower, lowerErr := decodeValue(bounds[0])
		if lowerErr != nil {
			return nil, lowerErr
		}
		upper, upperErr := decodeValue(bounds[1])
		if upperErr != nil {
			return nil, upperErr
		}
		return Between(lower, upper), nil

	case wireOneOf:
		items, ok := asList(val)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFieldPredicate, src)
		}
		options := make([]any, len(items))
		for i, item := range items {
			decoded, decodeErr := decodeValue(item)
			if decodeErr != nil {
				return nil, decodeErr
			}
			options[i] = decoded
		}
		return OneOf(options...), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidFieldPredicate, src)
	}
}

// PredicateFromJSON decodes a predicate from its JSON wire form.
func PredicateFromJSON(data []byte) (Predicate, error) {
	var src map[string]any
	if err := jsoniter.ConfigFastest.Unmarshal(data, &src); err != nil {
		return nil, errors.Join(ErrInvalidPredicate, err)
	}

	return PredicateFromMap(src)
}

// PredicateToJSON encodes a predicate to its JSON wire form.
func PredicateToJSON(predicate Predicate) ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(predicate.ToMap())
}

func singleEntry(src map[string]any, sentinel error) (string, any, error) {
	if len(src) != 1 {
		return "", nil, fmt.Errorf("%w: %v", sentinel, src)
	}

	for name, val := range src {
		return name, val, nil
	}

	return "", nil, fmt.Errorf("%w: %v", sentinel, src)
}

func predicateList(val any) ([]Predicate, error) {
	items, ok := asList(val)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, val)
	}

	preds := make([]Predicate, len(items))
	for i, item := range items {
		src, isMap := item.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, item)
		}

		pred, err := PredicateFromMap(src)
		if err != nil {
			return nil, err
		}

		preds[i] = pred
	}

	return preds, nil
}

func asList(val any) ([]any, bool) {
	items, ok := val.([]any)

	return items, ok
}

// decodeValue accepts the scalar kinds a field predicate may compare against:
// null, strings, booleans, numbers and timestamps.
func decodeValue(val any) (any, error) {
	switch val.(type) {
	case nil, string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, nil
	default:
		return nil, fmt.Errorf("%w: value %v", ErrInvalidFieldPredicate, val)
	}
}
