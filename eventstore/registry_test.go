package eventstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccolljr/flurry/eventstore"
	"github.com/mccolljr/flurry/testutil/fixtures"
)

func Test_Registry_RegisterEventType_RejectsDuplicates(t *testing.T) {
	registry := eventstore.NewRegistry()

	decode := func(data map[string]any) (eventstore.Record, error) {
		return fixtures.DecodeTodoCreated(data)
	}

	require.NoError(t, registry.RegisterEventType(fixtures.TodoCreatedEventType, decode))

	err := registry.RegisterEventType(fixtures.TodoCreatedEventType, decode)
	assert.ErrorIs(t, err, eventstore.ErrDuplicateDefinition)
}

func Test_Registry_ConstructEvent(t *testing.T) {
	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	t.Run("decodes_a_registered_event", func(t *testing.T) {
		record, constructErr := registry.ConstructEvent(fixtures.TodoCreatedEventType, map[string]any{
			"todo_id": "t-1",
			"title":   "buy groceries",
		})
		require.NoError(t, constructErr)

		created, ok := record.(fixtures.TodoCreated)
		require.True(t, ok)
		assert.Equal(t, "t-1", created.TodoID)
		assert.Equal(t, "buy groceries", created.Title)
	})

	t.Run("fails_for_an_unknown_type", func(t *testing.T) {
		_, constructErr := registry.ConstructEvent("NeverRegistered", map[string]any{})
		assert.ErrorIs(t, constructErr, eventstore.ErrUnknownType)
	})
}

func Test_Registry_ConstructAggregate(t *testing.T) {
	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	record, constructErr := registry.ConstructAggregate(fixtures.TodoAggregateName, map[string]any{
		"todo_id":  "t-1",
		"title":    "buy groceries",
		"priority": float64(2),
		"done":     true,
	})
	require.NoError(t, constructErr)

	todo, ok := record.(*fixtures.Todo)
	require.True(t, ok)
	assert.Equal(t, "t-1", todo.TodoID)
	assert.Equal(t, 2, todo.Priority)
	assert.True(t, todo.Done)
}

func Test_Registry_AggregateIDField(t *testing.T) {
	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	idField, err := registry.AggregateIDField(fixtures.TodoAggregateName)
	require.NoError(t, err)
	assert.Equal(t, "todo_id", idField)

	_, err = registry.AggregateIDField("NeverRegistered")
	assert.ErrorIs(t, err, eventstore.ErrUnknownType)
}
