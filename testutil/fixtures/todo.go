package fixtures

import (
	"github.com/google/uuid"

	"github.com/mccolljr/flurry/eventstore"
)

// TodoAggregateName is the aggregate type identifier.
const TodoAggregateName = "Todo"

// Todo is the aggregate reconstructed from the todo events.
type Todo struct {
	TodoID   string
	Title    string
	Priority int
	Done     bool
}

// RecordType returns the aggregate type identifier.
func (t *Todo) RecordType() string {
	return TodoAggregateName
}

// ToMap returns the storable form of the aggregate, used for snapshots.
func (t *Todo) ToMap() map[string]any {
	return map[string]any{
		"todo_id":  t.TodoID,
		"title":    t.Title,
		"priority": t.Priority,
		"done":     t.Done,
	}
}

// TodoType builds a fresh aggregate type definition for Todo.
func TodoType() *eventstore.AggregateType[*Todo] {
	return eventstore.DefineAggregate(TodoAggregateName, func() *Todo { return &Todo{} }).
		WithIdentifier("todo_id").
		CreatedBy(TodoCreatedEventType).
		On(TodoCreatedEventType, applyTodoCreated).
		On(TodoCompletedEventType, applyTodoCompleted).
		DecodedBy(decodeTodo)
}

// NewTodoRegistry creates a registry with the todo events and aggregate registered.
func NewTodoRegistry() (*eventstore.Registry, error) {
	registry := eventstore.NewRegistry()

	err := registry.RegisterEventType(TodoCreatedEventType, func(data map[string]any) (eventstore.Record, error) {
		return DecodeTodoCreated(data)
	})
	if err != nil {
		return nil, err
	}

	err = registry.RegisterEventType(TodoCompletedEventType, func(data map[string]any) (eventstore.Record, error) {
		return DecodeTodoCompleted(data)
	})
	if err != nil {
		return nil, err
	}

	if err = TodoType().Register(registry); err != nil {
		return nil, err
	}

	return registry, nil
}

// GivenUniqueID generates a unique identifier for test aggregates.
func GivenUniqueID() uuid.UUID {
	return uuid.New()
}

func applyTodoCreated(todo *Todo, event eventstore.Record) {
	created := event.(TodoCreated)
	todo.TodoID = created.TodoID
	todo.Title = created.Title
	todo.Priority = created.Priority
}

func applyTodoCompleted(todo *Todo, _ eventstore.Record) {
	todo.Done = true
}

func decodeTodo(data map[string]any) (*Todo, error) {
	return &Todo{
		TodoID:   asString(data["todo_id"]),
		Title:    asString(data["title"]),
		Priority: asInt(data["priority"]),
		Done:     asBool(data["done"]),
	}, nil
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asBool(value any) bool {
	b, _ := value.(bool)
	return b
}

// asInt accepts both live int values and float64 from a JSON round trip.
func asInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
