package eventstore

// Record is the minimal surface the engine needs from user-defined event and
// aggregate types. The typed-record/field system that declares shapes, handles
// nullability, defaults and value conversion lives outside this module; the
// engine only ever sees a discriminator and a plain nested map.
type Record interface {
	// RecordType returns the discriminator string identifying the concrete
	// type, used for polymorphic storage and dispatch.
	RecordType() string

	// ToMap returns the record's fields keyed by their declared field names.
	// A field that is absent from the map is treated as null by predicate
	// evaluation.
	ToMap() map[string]any
}

// Records is an alias type for a slice of Record.
type Records = []Record

// DecodeFunc decodes a plain nested map into a concrete Record, applying the
// field conversion rules of the declaring type.
type DecodeFunc func(data map[string]any) (Record, error)
