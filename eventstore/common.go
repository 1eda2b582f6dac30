package eventstore

import (
	"errors"
)

// Definition errors are fatal at registration time; they indicate a
// misconfigured aggregate or event declaration and are never recovered.
var (
	// ErrDuplicateDefinition is returned when a discriminator name is registered twice.
	ErrDuplicateDefinition = errors.New("duplicate definition for type name")

	// ErrMissingIdentifierField is returned when an aggregate is defined without an identifier field.
	ErrMissingIdentifierField = errors.New("aggregate must specify an identifier field")

	// ErrMissingCreationEvent is returned when an aggregate is defined without a creation event type.
	ErrMissingCreationEvent = errors.New("aggregate must specify a creation event type")

	// ErrMissingCreationHandler is returned when no handler is registered for the aggregate's creation event.
	ErrMissingCreationHandler = errors.New("aggregate must register a handler for its creation event")

	// ErrMissingDecoder is returned when an aggregate is defined without a snapshot decoder.
	ErrMissingDecoder = errors.New("aggregate must specify a decoder")
)

var (
	// ErrUnknownType is returned when a discriminator names a type that was never registered.
	ErrUnknownType = errors.New("no definition registered for type name")

	// ErrNoHandlerForEvent is returned when an aggregate is asked to apply an
	// event it has no handler for. This indicates a data/definition mismatch
	// and is never silently dropped.
	ErrNoHandlerForEvent = errors.New("no handler registered for event type")

	// ErrEmptyEventSequence is returned when reconstructing an aggregate from zero events.
	ErrEmptyEventSequence = errors.New("cannot reconstruct aggregate from an empty event sequence")

	// ErrInvalidCreationEvent is returned when the first event of a sequence
	// is not of the aggregate's declared creation event type.
	ErrInvalidCreationEvent = errors.New("first event must be the aggregate's creation event")

	// ErrNotFound is returned by Load when no events exist for the given identifier.
	ErrNotFound = errors.New("no aggregate found with the given identifier")
)
