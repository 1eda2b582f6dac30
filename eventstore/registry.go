package eventstore

import (
	"fmt"
	"sync"
)

// Registry maps discriminator strings to concrete event and aggregate
// definitions. It is used exclusively to rehydrate polymorphic records read
// back from storage.
//
// Registration happens during process startup, before the first storage
// access; the registry is still guarded by a mutex so that concurrent
// registration from multiple goroutines cannot corrupt it.
type Registry struct {
	mu         sync.RWMutex
	events     map[string]DecodeFunc
	aggregates map[string]aggregateEntry
}

type aggregateEntry struct {
	decode  DecodeFunc
	idField string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		events:     make(map[string]DecodeFunc),
		aggregates: make(map[string]aggregateEntry),
	}
}

// RegisterEventType registers a decoder for the given event discriminator.
// Registering the same name twice fails with ErrDuplicateDefinition.
func (r *Registry) RegisterEventType(name string, decode DecodeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[name]; exists {
		return fmt.Errorf("%w: event %s", ErrDuplicateDefinition, name)
	}

	r.events[name] = decode

	return nil
}

// registerAggregateType is called by AggregateType.Register once the
// definition has been validated.
func (r *Registry) registerAggregateType(name string, idField string, decode DecodeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.aggregates[name]; exists {
		return fmt.Errorf("%w: aggregate %s", ErrDuplicateDefinition, name)
	}

	r.aggregates[name] = aggregateEntry{decode: decode, idField: idField}

	return nil
}

// ConstructEvent decodes data into an instance of the event type registered
// under name. Fails with ErrUnknownType if name was never registered.
func (r *Registry) ConstructEvent(name string, data map[string]any) (Record, error) {
	r.mu.RLock()
	decode, exists := r.events[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: event %s", ErrUnknownType, name)
	}

	return decode(data)
}

// ConstructAggregate decodes data into an instance of the aggregate type
// registered under name. Fails with ErrUnknownType if name was never registered.
func (r *Registry) ConstructAggregate(name string, data map[string]any) (Record, error) {
	r.mu.RLock()
	entry, exists := r.aggregates[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: aggregate %s", ErrUnknownType, name)
	}

	return entry.decode(data)
}

// AggregateIDField returns the identifier field name of the aggregate type
// registered under name, used by storage engines to key snapshots.
func (r *Registry) AggregateIDField(name string) (string, error) {
	r.mu.RLock()
	entry, exists := r.aggregates[name]
	r.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("%w: aggregate %s", ErrUnknownType, name)
	}

	return entry.idField, nil
}
