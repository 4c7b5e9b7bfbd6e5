package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
	"github.com/google/uuid"
)

// runStoreSuite checks the ownership and lifecycle rules every Store
// implementation must follow. newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		store := newStore(t)
		due := models.NewDate(2024, time.January, 1)
		created, err := store.Create(ctx, "user-a", models.NewTodo{Task: "buy milk", DueDate: &due})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID == "" || created.UserID != "user-a" || created.Completed {
			t.Errorf("created = %+v", created)
		}

		todos, err := store.List(ctx, "user-a")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(todos) != 1 {
			t.Fatalf("List returned %d todos, want 1", len(todos))
		}
		got := todos[0]
		if got.ID != created.ID || got.Task != "buy milk" || got.Completed {
			t.Errorf("listed = %+v", got)
		}
		if got.Date == nil || got.Date.String() != "2024-01-01" {
			t.Errorf("date = %v, want 2024-01-01", got.Date)
		}
	})

	t.Run("list is newest first and scoped", func(t *testing.T) {
		store := newStore(t)
		for _, task := range []string{"first", "second", "third"} {
			if _, err := store.Create(ctx, "user-a", models.NewTodo{Task: task}); err != nil {
				t.Fatalf("Create: %v", err)
			}
			time.Sleep(2 * time.Millisecond)
		}
		if _, err := store.Create(ctx, "user-b", models.NewTodo{Task: "not yours"}); err != nil {
			t.Fatalf("Create: %v", err)
		}

		todos, err := store.List(ctx, "user-a")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var tasks []string
		for _, todo := range todos {
			tasks = append(tasks, todo.Task)
		}
		if len(tasks) != 3 || tasks[0] != "third" || tasks[2] != "first" {
			t.Errorf("tasks = %v, want [third second first]", tasks)
		}

		empty, err := store.List(ctx, "user-c")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("List for a new user = %#v, want empty non-nil slice", empty)
		}
	})

	t.Run("toggle twice restores", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, "user-a", models.NewTodo{Task: "walk"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		toggled, err := store.Update(ctx, "user-a", created.ID, models.TodoUpdate{Task: "walk", Completed: !created.Completed})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		back, err := store.Update(ctx, "user-a", created.ID, models.TodoUpdate{Task: "walk", Completed: !toggled.Completed})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if back.Completed != created.Completed {
			t.Errorf("completed = %v after two toggles, want %v", back.Completed, created.Completed)
		}
	})

	t.Run("update clears date when omitted", func(t *testing.T) {
		store := newStore(t)
		due := models.NewDate(2024, time.March, 5)
		created, err := store.Create(ctx, "user-a", models.NewTodo{Task: "dentist", DueDate: &due})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		updated, err := store.Update(ctx, "user-a", created.ID, models.TodoUpdate{Task: "dentist at 9"})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Task != "dentist at 9" || updated.Date != nil {
			t.Errorf("updated = %+v", updated)
		}
	})

	t.Run("other users rows are invisible", func(t *testing.T) {
		store := newStore(t)
		owned, err := store.Create(ctx, "user-b", models.NewTodo{Task: "b's secret"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if _, err := store.Update(ctx, "user-a", owned.ID, models.TodoUpdate{Task: "hijacked", Completed: true}); !errors.Is(err, ErrNotFound) {
			t.Errorf("cross-user Update error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, "user-a", owned.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("cross-user Delete error = %v, want ErrNotFound", err)
		}

		todos, err := store.List(ctx, "user-b")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(todos) != 1 || todos[0].Task != "b's secret" || todos[0].Completed {
			t.Errorf("user-b rows changed: %+v", todos)
		}
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
			if err := store.Delete(ctx, "user-a", id); !errors.Is(err, ErrNotFound) {
				t.Errorf("Delete(%q) error = %v, want ErrNotFound", id, err)
			}
			if _, err := store.Update(ctx, "user-a", id, models.TodoUpdate{Task: "x"}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update(%q) error = %v, want ErrNotFound", id, err)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, "user-a", models.NewTodo{Task: "once"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := store.Delete(ctx, "user-a", created.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := store.Delete(ctx, "user-a", created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete all is scoped", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 3; i++ {
			if _, err := store.Create(ctx, "user-a", models.NewTodo{Task: "a"}); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}
		if _, err := store.Create(ctx, "user-b", models.NewTodo{Task: "b"}); err != nil {
			t.Fatalf("Create: %v", err)
		}

		n, err := store.DeleteAll(ctx, "user-a")
		if err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		if n != 3 {
			t.Errorf("DeleteAll removed %d, want 3", n)
		}
		if todos, _ := store.List(ctx, "user-a"); len(todos) != 0 {
			t.Errorf("user-a still has %d todos", len(todos))
		}
		if todos, _ := store.List(ctx, "user-b"); len(todos) != 1 {
			t.Errorf("user-b has %d todos, want 1", len(todos))
		}
	})
}
