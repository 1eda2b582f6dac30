package eventstore

import (
	"reflect"
	"time"
)

// equalValues compares two field values. Numeric values compare across
// integer and float representations so that records decoded from JSON
// (where every number is a float64) compare equal to freshly constructed
// predicates holding Go integers. Values of uncomparable kinds (slices,
// maps) never compare equal.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if aNum, aOK := asFloat(a); aOK {
		bNum, bOK := asFloat(b)
		return bOK && aNum == bNum
	}

	if aTime, aOK := a.(time.Time); aOK {
		bTime, bOK := b.(time.Time)
		return bOK && aTime.Equal(bTime)
	}

	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}

	return a == b
}

// compareValues orders two field values, returning -1, 0 or 1 and whether the
// values are comparable at all. Strings order lexicographically, numbers
// numerically across representations, timestamps chronologically. Booleans,
// nulls and mixed kinds are not ordered.
func compareValues(a, b any) (int, bool) {
	if aNum, aOK := asFloat(a); aOK {
		bNum, bOK := asFloat(b)
		if !bOK {
			return 0, false
		}

		switch {
		case aNum < bNum:
			return -1, true
		case aNum > bNum:
			return 1, true
		default:
			return 0, true
		}
	}

	if aStr, aOK := a.(string); aOK {
		bStr, bOK := b.(string)
		if !bOK {
			return 0, false
		}

		switch {
		case aStr < bStr:
			return -1, true
		case aStr > bStr:
			return 1, true
		default:
			return 0, true
		}
	}

	if aTime, aOK := a.(time.Time); aOK {
		bTime, bOK := b.(time.Time)
		if !bOK {
			return 0, false
		}

		return aTime.Compare(bTime), true
	}

	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
