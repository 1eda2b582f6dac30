package fixtures

import (
	"github.com/google/uuid"
)

// TodoCreatedEventType is the event type identifier.
const TodoCreatedEventType = "TodoCreated"

// TodoCreated represents when a new todo item was added to the list.
// Priority is optional; zero means unset and the field is omitted from the
// stored document entirely, which the tests rely on for missing-field
// predicate behavior.
type TodoCreated struct {
	TodoID   string
	Title    string
	Priority int
}

// BuildTodoCreated creates a new TodoCreated event without a priority.
func BuildTodoCreated(todoID uuid.UUID, title string) TodoCreated {
	return TodoCreated{
		TodoID: todoID.String(),
		Title:  title,
	}
}

// BuildTodoCreatedWithPriority creates a new TodoCreated event carrying a priority.
func BuildTodoCreatedWithPriority(todoID uuid.UUID, title string, priority int) TodoCreated {
	return TodoCreated{
		TodoID:   todoID.String(),
		Title:    title,
		Priority: priority,
	}
}

// RecordType returns the event type identifier.
func (e TodoCreated) RecordType() string {
	return TodoCreatedEventType
}

// ToMap returns the storable form of the event.
func (e TodoCreated) ToMap() map[string]any {
	data := map[string]any{
		"todo_id": e.TodoID,
		"title":   e.Title,
	}

	if e.Priority != 0 {
		data["priority"] = e.Priority
	}

	return data
}

// DecodeTodoCreated rehydrates a TodoCreated event from its stored form.
func DecodeTodoCreated(data map[string]any) (TodoCreated, error) {
	return TodoCreated{
		TodoID:   asString(data["todo_id"]),
		Title:    asString(data["title"]),
		Priority: asInt(data["priority"]),
	}, nil
}
