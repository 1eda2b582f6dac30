package fixtures

import (
	"github.com/google/uuid"
)

// TodoCompletedEventType is the event type identifier.
const TodoCompletedEventType = "TodoCompleted"

// TodoCompleted represents when a todo item was checked off.
type TodoCompleted struct {
	TodoID string
}

// BuildTodoCompleted creates a new TodoCompleted event.
func BuildTodoCompleted(todoID uuid.UUID) TodoCompleted {
	return TodoCompleted{TodoID: todoID.String()}
}

// RecordType returns the event type identifier.
func (e TodoCompleted) RecordType() string {
	return TodoCompletedEventType
}

// ToMap returns the storable form of the event.
func (e TodoCompleted) ToMap() map[string]any {
	return map[string]any{
		"todo_id": e.TodoID,
	}
}

// DecodeTodoCompleted rehydrates a TodoCompleted event from its stored form.
func DecodeTodoCompleted(data map[string]any) (TodoCompleted, error) {
	return TodoCompleted{TodoID: asString(data["todo_id"])}, nil
}
