package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccolljr/flurry/eventstore"
	"github.com/mccolljr/flurry/eventstore/memoryengine"
	"github.com/mccolljr/flurry/testutil/fixtures"
)

func Test_AggregateType_Register_ValidatesTheDefinition(t *testing.T) {
	newTodo := func() *fixtures.Todo { return &fixtures.Todo{} }
	apply := func(*fixtures.Todo, eventstore.Record) {}
	decode := func(map[string]any) (*fixtures.Todo, error) { return &fixtures.Todo{}, nil }

	tests := []struct {
		name        string
		build       func() *eventstore.AggregateType[*fixtures.Todo]
		expectedErr error
	}{
		{
			name: "missing_identifier_field",
			build: func() *eventstore.AggregateType[*fixtures.Todo] {
				return eventstore.DefineAggregate("Todo", newTodo).
					CreatedBy(fixtures.TodoCreatedEventType).
					On(fixtures.TodoCreatedEventType, apply).
					DecodedBy(decode)
			},
			expectedErr: eventstore.ErrMissingIdentifierField,
		},
		{
			name: "missing_creation_event",
			build: func() *eventstore.AggregateType[*fixtures.Todo] {
				return eventstore.DefineAggregate("Todo", newTodo).
					WithIdentifier("todo_id").
					On(fixtures.TodoCreatedEventType, apply).
					DecodedBy(decode)
			},
			expectedErr: eventstore.ErrMissingCreationEvent,
		},
		{
			name: "missing_creation_handler",
			build: func() *eventstore.AggregateType[*fixtures.Todo] {
				return eventstore.DefineAggregate("Todo", newTodo).
					WithIdentifier("todo_id").
					CreatedBy(fixtures.TodoCreatedEventType).
					On(fixtures.TodoCompletedEventType, apply).
					DecodedBy(decode)
			},
			expectedErr: eventstore.ErrMissingCreationHandler,
		},
		{
			name: "missing_decoder",
			build: func() *eventstore.AggregateType[*fixtures.Todo] {
				return eventstore.DefineAggregate("Todo", newTodo).
					WithIdentifier("todo_id").
					CreatedBy(fixtures.TodoCreatedEventType).
					On(fixtures.TodoCreatedEventType, apply)
			},
			expectedErr: eventstore.ErrMissingDecoder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Register(eventstore.NewRegistry())
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_AggregateType_FromEvents(t *testing.T) {
	todoType := fixtures.TodoType()
	id := fixtures.GivenUniqueID()

	t.Run("folds_events_in_order", func(t *testing.T) {
		todo, err := todoType.FromEvents(eventstore.Records{
			fixtures.BuildTodoCreatedWithPriority(id, "buy groceries", 2),
			fixtures.BuildTodoCompleted(id),
		})
		require.NoError(t, err)

		assert.Equal(t, id.String(), todo.TodoID)
		assert.Equal(t, "buy groceries", todo.Title)
		assert.Equal(t, 2, todo.Priority)
		assert.True(t, todo.Done)
	})

	t.Run("rejects_an_empty_sequence", func(t *testing.T) {
		_, err := todoType.FromEvents(eventstore.Records{})
		assert.ErrorIs(t, err, eventstore.ErrEmptyEventSequence)
	})

	t.Run("rejects_a_sequence_not_starting_with_the_creation_event", func(t *testing.T) {
		_, err := todoType.FromEvents(eventstore.Records{
			fixtures.BuildTodoCompleted(id),
		})
		assert.ErrorIs(t, err, eventstore.ErrInvalidCreationEvent)
	})

	t.Run("fails_on_an_event_without_a_handler", func(t *testing.T) {
		_, err := todoType.FromEvents(eventstore.Records{
			fixtures.BuildTodoCreated(id, "buy groceries"),
			flatRecord{recordType: "SomethingElse", data: map[string]any{}},
		})
		assert.ErrorIs(t, err, eventstore.ErrNoHandlerForEvent)
	})
}

func Test_AggregateType_Load(t *testing.T) {
	ctx := context.Background()

	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	store := memoryengine.NewEngine(registry)
	todoType := fixtures.TodoType()

	groceries := fixtures.GivenUniqueID()
	laundry := fixtures.GivenUniqueID()

	require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreated(groceries, "buy groceries"),
		fixtures.BuildTodoCreated(laundry, "do the laundry"),
		fixtures.BuildTodoCompleted(groceries),
	}))

	t.Run("load_reconstructs_one_aggregate", func(t *testing.T) {
		todo, loadErr := todoType.Load(ctx, store, groceries.String())
		require.NoError(t, loadErr)

		assert.Equal(t, "buy groceries", todo.Title)
		assert.True(t, todo.Done)
	})

	t.Run("load_fails_for_an_unknown_id", func(t *testing.T) {
		_, loadErr := todoType.Load(ctx, store, "no-such-id")
		assert.ErrorIs(t, loadErr, eventstore.ErrNotFound)
	})

	t.Run("load_all_reconstructs_each_id_independently", func(t *testing.T) {
		todos, loadErr := todoType.LoadAll(ctx, store, []string{groceries.String(), laundry.String()})
		require.NoError(t, loadErr)
		require.Len(t, todos, 2)

		assert.True(t, todos[0].Done)
		assert.False(t, todos[1].Done)
	})

	t.Run("load_all_omits_ids_without_events", func(t *testing.T) {
		todos, loadErr := todoType.LoadAll(ctx, store, []string{laundry.String(), "no-such-id"})
		require.NoError(t, loadErr)
		require.Len(t, todos, 1)
		assert.Equal(t, "do the laundry", todos[0].Title)
	})
}

func Test_AggregateType_SyncSnapshots(t *testing.T) {
	ctx := context.Background()

	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	store := memoryengine.NewEngine(registry)
	todoType := fixtures.TodoType()

	id := fixtures.GivenUniqueID()

	require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreated(id, "buy groceries"),
	}))
	require.NoError(t, todoType.SyncSnapshots(ctx, store, []string{id.String()}))

	loadSnapshot := func(t *testing.T) *fixtures.Todo {
		t.Helper()

		snapshots, loadErr := store.LoadSnapshots(ctx, eventstore.Is(fixtures.TodoAggregateName))
		require.NoError(t, loadErr)
		require.Len(t, snapshots, 1)

		todo, ok := snapshots[0].(*fixtures.Todo)
		require.True(t, ok)

		return todo
	}

	assert.False(t, loadSnapshot(t).Done)

	// appending alone must not touch the snapshot cache
	require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCompleted(id),
	}))
	assert.False(t, loadSnapshot(t).Done, "snapshot must stay stale until the next sync")

	require.NoError(t, todoType.SyncSnapshots(ctx, store, []string{id.String()}))
	assert.True(t, loadSnapshot(t).Done)
}
