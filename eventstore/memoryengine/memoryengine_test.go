package memoryengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccolljr/flurry/eventstore"
	"github.com/mccolljr/flurry/eventstore/memoryengine"
	"github.com/mccolljr/flurry/testutil/fixtures"
)

func newEngine(t *testing.T) *memoryengine.Engine {
	t.Helper()

	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	return memoryengine.NewEngine(registry)
}

func Test_Engine_SaveAndLoadEvents_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	first := fixtures.GivenUniqueID()
	second := fixtures.GivenUniqueID()

	require.NoError(t, engine.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreated(first, "one"),
		fixtures.BuildTodoCreated(second, "two"),
	}))
	require.NoError(t, engine.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCompleted(first),
	}))

	events, err := engine.LoadEvents(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, fixtures.TodoCreatedEventType, events[0].RecordType())
	assert.Equal(t, fixtures.TodoCreatedEventType, events[1].RecordType())
	assert.Equal(t, fixtures.TodoCompletedEventType, events[2].RecordType())
}

func Test_Engine_LoadEvents_AppliesThePredicateDirectly(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	urgent := fixtures.GivenUniqueID()
	casual := fixtures.GivenUniqueID()

	require.NoError(t, engine.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreatedWithPriority(urgent, "file taxes", 5),
		fixtures.BuildTodoCreated(casual, "water plants"),
		fixtures.BuildTodoCompleted(casual),
	}))

	t.Run("filter_by_type", func(t *testing.T) {
		events, err := engine.LoadEvents(ctx, eventstore.Is(fixtures.TodoCompletedEventType))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, fixtures.TodoCompletedEventType, events[0].RecordType())
	})

	t.Run("filter_by_field", func(t *testing.T) {
		events, err := engine.LoadEvents(ctx, eventstore.Where(map[string]eventstore.FieldPredicate{
			"priority": eventstore.MoreEq(5),
		}))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "file taxes", events[0].ToMap()["title"])
	})

	t.Run("not_eq_matches_events_without_the_field", func(t *testing.T) {
		events, err := engine.LoadEvents(ctx, eventstore.Where(map[string]eventstore.FieldPredicate{
			"priority": eventstore.NotEq(5),
		}))
		require.NoError(t, err)
		require.Len(t, events, 2)
	})
}

func Test_Engine_LoadEvents_OneOfSelectsInSequenceOrder(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreated(fixtures.GivenUniqueID(), "no priority"),
		fixtures.BuildTodoCreatedWithPriority(fixtures.GivenUniqueID(), "low", 100),
		fixtures.BuildTodoCreatedWithPriority(fixtures.GivenUniqueID(), "mid", 1000),
		fixtures.BuildTodoCreatedWithPriority(fixtures.GivenUniqueID(), "high", 2000),
	}))

	events, err := engine.LoadEvents(ctx, eventstore.Where(map[string]eventstore.FieldPredicate{
		"priority": eventstore.OneOf(100, 1000),
	}))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "low", events[0].ToMap()["title"])
	assert.Equal(t, "mid", events[1].ToMap()["title"])
}

func Test_Engine_Snapshots_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	id := fixtures.GivenUniqueID()

	require.NoError(t, engine.SaveSnapshots(ctx, eventstore.Records{
		&fixtures.Todo{TodoID: id.String(), Title: "stale", Done: false},
	}))
	require.NoError(t, engine.SaveSnapshots(ctx, eventstore.Records{
		&fixtures.Todo{TodoID: id.String(), Title: "fresh", Done: true},
	}))

	snapshots, err := engine.LoadSnapshots(ctx, nil)
	require.NoError(t, err)
	require.Len(t, snapshots, 1, "same identifier must replace, not accumulate")

	todo, ok := snapshots[0].(*fixtures.Todo)
	require.True(t, ok)
	assert.Equal(t, "fresh", todo.Title)
	assert.True(t, todo.Done)
}

func Test_Engine_SaveSnapshots_FailsForUnregisteredTypes(t *testing.T) {
	ctx := context.Background()
	engine := memoryengine.NewEngine(eventstore.NewRegistry())

	err := engine.SaveSnapshots(ctx, eventstore.Records{
		&fixtures.Todo{TodoID: "t-1"},
	})
	assert.ErrorIs(t, err, eventstore.ErrUnknownType)
}

func Test_Engine_Close_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.Close(ctx))
	require.NoError(t, engine.Close(ctx))

	_, err := engine.LoadEvents(ctx, nil)
	assert.ErrorIs(t, err, eventstore.ErrStorageClosed)

	err = engine.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreated(fixtures.GivenUniqueID(), "late"),
	})
	assert.ErrorIs(t, err, eventstore.ErrStorageClosed)
}
