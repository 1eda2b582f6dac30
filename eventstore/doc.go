// Package eventstore provides the core abstractions of an embedded
// event-sourcing persistence engine: an append-only log of immutable events,
// a derived snapshot cache of reconstructed aggregates, and a boolean
// predicate algebra for filtering either collection.
//
// Events and aggregates reach the engine through the Record interface and are
// rehydrated from storage through a Registry that maps a discriminator string
// to a decoder. Aggregate shapes are declared with DefineAggregate, which
// validates the definition at registration time and provides the pure
// reconstruction operations (ApplyEvent, FromEvents) as well as the
// storage-backed ones (Load, LoadAll, SyncSnapshots).
//
// Predicates are immutable expression trees:
//
//	query := eventstore.And(
//		eventstore.Is("TodoCreated", "TodoCompleted"),
//		eventstore.Where(map[string]eventstore.FieldPredicate{
//			"todo_id": eventstore.OneOf("1", "2"),
//		}),
//	)
//	events, err := store.LoadEvents(ctx, query)
//
// They evaluate directly against in-memory records (Evaluate), serialize to a
// canonical nested-map wire form (ToMap / PredicateFromMap), and compile
// partially to SQL in the sqlfilter subpackage.
//
// Two Storage implementations ship with this module: memoryengine (reference,
// test-friendly) and postgresengine (JSONB-columnar, lazily initialized).
package eventstore
