// Package memoryengine implements the storage contract entirely in process
// memory. It is the reference backend: no predicate compilation, every query
// is answered by evaluating the predicate directly against each record. It is
// meant for tests and examples, not for durability.
package memoryengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/mccolljr/flurry/eventstore"
)

// Engine is an in-memory Storage implementation. Events are held in append
// order; snapshots are a map keyed by (type, identifier) with last write
// winning. Safe for concurrent use.
type Engine struct {
	registry *eventstore.Registry

	mu            sync.RWMutex
	closed        bool
	events        eventstore.Records
	snapshots     map[snapshotKey]eventstore.Record
	snapshotOrder []snapshotKey
}

type snapshotKey struct {
	recordType string
	identifier string
}

// NewEngine creates an empty in-memory store. The registry supplies the
// identifier field of each aggregate type so snapshots can be keyed.
func NewEngine(registry *eventstore.Registry) *Engine {
	return &Engine{
		registry:  registry,
		snapshots: make(map[snapshotKey]eventstore.Record),
	}
}

// SaveEvents implements eventstore.Storage.
func (e *Engine) SaveEvents(_ context.Context, events eventstore.Records) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return eventstore.ErrStorageClosed
	}

	e.events = append(e.events, events...)

	return nil
}

// LoadEvents implements eventstore.Storage.
func (e *Engine) LoadEvents(_ context.Context, query eventstore.Predicate) (eventstore.Records, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, eventstore.ErrStorageClosed
	}

	var matched eventstore.Records
	for _, event := range e.events {
		if eventstore.Evaluate(query, event) {
			matched = append(matched, event)
		}
	}

	return matched, nil
}

// SaveSnapshots implements eventstore.Storage. Each snapshot replaces any
// previous snapshot stored under the same (type, identifier) key.
func (e *Engine) SaveSnapshots(_ context.Context, snapshots eventstore.Records) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return eventstore.ErrStorageClosed
	}

	for _, snapshot := range snapshots {
		key, err := e.snapshotKeyFor(snapshot)
		if err != nil {
			return err
		}

		if _, exists := e.snapshots[key]; !exists {
			e.snapshotOrder = append(e.snapshotOrder, key)
		}
		e.snapshots[key] = snapshot
	}

	return nil
}

// LoadSnapshots implements eventstore.Storage. Snapshots are returned in the
// order their keys were first stored.
func (e *Engine) LoadSnapshots(_ context.Context, query eventstore.Predicate) (eventstore.Records, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, eventstore.ErrStorageClosed
	}

	var matched eventstore.Records
	for _, key := range e.snapshotOrder {
		snapshot := e.snapshots[key]
		if eventstore.Evaluate(query, snapshot) {
			matched = append(matched, snapshot)
		}
	}

	return matched, nil
}

// Close implements eventstore.Storage. It is idempotent; any later operation
// fails with eventstore.ErrStorageClosed.
func (e *Engine) Close(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

func (e *Engine) snapshotKeyFor(snapshot eventstore.Record) (snapshotKey, error) {
	recordType := snapshot.RecordType()

	idField, err := e.registry.AggregateIDField(recordType)
	if err != nil {
		return snapshotKey{}, err
	}

	identifier := fmt.Sprint(snapshot.ToMap()[idField])

	return snapshotKey{recordType: recordType, identifier: identifier}, nil
}
