package eventstore

import (
	"context"
	"fmt"
	"slices"
)

// AggregateType describes how instances of one aggregate are reconstructed
// from their events: the identifier field, the distinguished creation event
// type, and a handler per event type.
//
// Definitions are built fluently and validated by Register:
//
//	todoType := eventstore.DefineAggregate("Todo", func() *Todo { return &Todo{} }).
//		WithIdentifier("todo_id").
//		CreatedBy("TodoCreated").
//		On("TodoCreated", applyCreated).
//		On("TodoCompleted", applyCompleted).
//		DecodedBy(decodeTodo)
//	if err := todoType.Register(registry); err != nil { ... }
//
// Shared traits (fields and handlers contributed to several aggregates) are
// plain struct embedding plus shared handler functions; only concrete,
// validated definitions are registered.
type AggregateType[A Record] struct {
	name          string
	idField       string
	creationEvent string
	newFn         func() A
	decode        func(data map[string]any) (A, error)
	handlers      map[string]func(agg A, event Record)
}

// DefineAggregate starts an aggregate type definition. newFn must allocate a
// fresh, field-uninitialized entity; the creation event handler is responsible
// for populating it.
func DefineAggregate[A Record](name string, newFn func() A) *AggregateType[A] {
	return &AggregateType[A]{
		name:     name,
		newFn:    newFn,
		handlers: make(map[string]func(agg A, event Record)),
	}
}

// WithIdentifier sets the name of the field that identifies one aggregate instance.
func (t *AggregateType[A]) WithIdentifier(field string) *AggregateType[A] {
	t.idField = field
	return t
}

// CreatedBy sets the creation event type. The first event of any instance's
// sequence must be of this type.
func (t *AggregateType[A]) CreatedBy(eventType string) *AggregateType[A] {
	t.creationEvent = eventType
	return t
}

// On registers the handler applied when an event of the given type is folded
// onto the aggregate.
func (t *AggregateType[A]) On(eventType string, apply func(agg A, event Record)) *AggregateType[A] {
	t.handlers[eventType] = apply
	return t
}

// DecodedBy sets the decoder used to rehydrate snapshots of this aggregate.
func (t *AggregateType[A]) DecodedBy(decode func(data map[string]any) (A, error)) *AggregateType[A] {
	t.decode = decode
	return t
}

// Name returns the aggregate's discriminator name.
func (t *AggregateType[A]) Name() string {
	return t.name
}

// IdentifierField returns the name of the identifier field.
func (t *AggregateType[A]) IdentifierField() string {
	return t.idField
}

// Register validates the definition and registers it with the registry.
// Validation failures are definition errors: fatal, surfaced immediately,
// never recovered.
func (t *AggregateType[A]) Register(registry *Registry) error {
	if t.idField == "" {
		return fmt.Errorf("%w: %s", ErrMissingIdentifierField, t.name)
	}

	if t.creationEvent == "" {
		return fmt.Errorf("%w: %s", ErrMissingCreationEvent, t.name)
	}

	if _, hasHandler := t.handlers[t.creationEvent]; !hasHandler {
		return fmt.Errorf("%w: %s has no handler for %s", ErrMissingCreationHandler, t.name, t.creationEvent)
	}

	if t.decode == nil {
		return fmt.Errorf("%w: %s", ErrMissingDecoder, t.name)
	}

	return registry.registerAggregateType(t.name, t.idField, func(data map[string]any) (Record, error) {
		return t.decode(data)
	})
}

// ApplyEvent folds one event onto the aggregate by dispatching to the handler
// registered for the event's exact runtime type. A missing handler is a fatal
// ErrNoHandlerForEvent, never silently ignored.
func (t *AggregateType[A]) ApplyEvent(agg A, event Record) error {
	apply, exists := t.handlers[event.RecordType()]
	if !exists {
		return fmt.Errorf("%w: %s cannot apply %s", ErrNoHandlerForEvent, t.name, event.RecordType())
	}

	apply(agg, event)

	return nil
}

// FromEvents reconstructs an aggregate by folding the ordered event sequence
// onto a freshly allocated entity.
func (t *AggregateType[A]) FromEvents(events Records) (A, error) {
	var zero A

	if len(events) == 0 {
		return zero, fmt.Errorf("%w: %s", ErrEmptyEventSequence, t.name)
	}

	if events[0].RecordType() != t.creationEvent {
		return zero, fmt.Errorf(
			"%w: %s expects %s, got %s",
			ErrInvalidCreationEvent, t.name, t.creationEvent, events[0].RecordType())
	}

	agg := t.newFn()
	for _, event := range events {
		if err := t.ApplyEvent(agg, event); err != nil {
			return zero, err
		}
	}

	return agg, nil
}

// Load reconstructs the aggregate with the given identifier from its events.
// Fails with ErrNotFound if no events exist for the identifier.
func (t *AggregateType[A]) Load(ctx context.Context, store Storage, id string) (A, error) {
	var zero A

	loaded, err := t.LoadAll(ctx, store, []string{id})
	if err != nil {
		return zero, err
	}

	if len(loaded) == 0 {
		return zero, fmt.Errorf("%w: no %s with id %s", ErrNotFound, t.name, id)
	}

	return loaded[0], nil
}

// LoadAll reconstructs multiple aggregates in a single store round trip,
// grouping the returned events by identifier before folding each group
// independently. Identifiers with no events are omitted from the result.
func (t *AggregateType[A]) LoadAll(ctx context.Context, store Storage, ids []string) ([]A, error) {
	events, err := store.LoadEvents(ctx, t.eventsQuery(ids))
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]Records)
	order := make([]string, 0, len(ids))

	for _, event := range events {
		id := fmt.Sprint(event.ToMap()[t.idField])
		if _, seen := grouped[id]; !seen {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], event)
	}

	loaded := make([]A, 0, len(order))
	for _, id := range order {
		agg, foldErr := t.FromEvents(grouped[id])
		if foldErr != nil {
			return nil, foldErr
		}
		loaded = append(loaded, agg)
	}

	return loaded, nil
}

// SyncSnapshots reconstructs the given aggregates and refreshes their
// snapshots. This is the only mechanism by which the snapshot cache is
// updated: callers that append new events are responsible for invoking it
// afterward, or snapshot readers will observe stale data indefinitely.
func (t *AggregateType[A]) SyncSnapshots(ctx context.Context, store Storage, ids []string) error {
	loaded, err := t.LoadAll(ctx, store, ids)
	if err != nil {
		return err
	}

	snapshots := make(Records, len(loaded))
	for i, agg := range loaded {
		snapshots[i] = agg
	}

	return store.SaveSnapshots(ctx, snapshots)
}

// eventsQuery filters the log down to this aggregate's event types for the
// given identifiers, batched into one predicate.
func (t *AggregateType[A]) eventsQuery(ids []string) Predicate {
	eventTypes := make([]string, 0, len(t.handlers))
	for eventType := range t.handlers {
		eventTypes = append(eventTypes, eventType)
	}
	slices.Sort(eventTypes)

	idOptions := make([]any, len(ids))
	for i, id := range ids {
		idOptions[i] = id
	}

	return And(
		Is(eventTypes...),
		Where(map[string]FieldPredicate{t.idField: OneOf(idOptions...)}),
	)
}
