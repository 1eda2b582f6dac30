// A minimal todo list on top of the in-memory storage engine, showing event
// appends, predicate queries, aggregate reconstruction and snapshot refresh.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/mccolljr/flurry/eventstore"
	"github.com/mccolljr/flurry/eventstore/memoryengine"
	"github.com/mccolljr/flurry/testutil/fixtures"
)

func main() {
	ctx := context.Background()

	registry, err := fixtures.NewTodoRegistry()
	if err != nil {
		log.Fatal(err)
	}

	store := memoryengine.NewEngine(registry)
	defer store.Close(ctx)

	todoType := fixtures.TodoType()

	groceries := fixtures.GivenUniqueID()
	laundry := fixtures.GivenUniqueID()

	err = store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreatedWithPriority(groceries, "buy groceries", 2),
		fixtures.BuildTodoCreated(laundry, "do the laundry"),
		fixtures.BuildTodoCompleted(groceries),
	})
	if err != nil {
		log.Fatal(err)
	}

	todos, err := todoType.LoadAll(ctx, store, []string{groceries.String(), laundry.String()})
	if err != nil {
		log.Fatal(err)
	}

	for _, todo := range todos {
		status := "open"
		if todo.Done {
			status = "done"
		}
		fmt.Printf("%-16s %s\n", status, todo.Title)
	}

	// refresh the snapshot cache and read it back through a predicate
	if err = todoType.SyncSnapshots(ctx, store, []string{groceries.String(), laundry.String()}); err != nil {
		log.Fatal(err)
	}

	open, err := store.LoadSnapshots(ctx, eventstore.And(
		eventstore.Is(fixtures.TodoAggregateName),
		eventstore.Where(map[string]eventstore.FieldPredicate{"done": eventstore.Eq(false)}),
	))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%d todo(s) still open\n", len(open))
}
