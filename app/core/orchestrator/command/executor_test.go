package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"todochat/app/core/interpreter"
	"todochat/app/core/orchestrator/db"
	"todochat/app/core/orchestrator/task"
)

var execNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func newTestExecutor(t *testing.T) (*Executor, *task.Store) {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := task.NewStore(database)
	return NewExecutor(store), store
}

func run(t *testing.T, e *Executor, userID, text string) Result {
	t.Helper()
	res := interpreter.Interpret(text, execNow)
	out, err := e.Execute(context.Background(), userID, res.Command)
	if err != nil {
		t.Fatalf("execute %q: %v", text, err)
	}
	return out
}

func TestExecuteAdd(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := run(t, e, "u1", "Add a task to buy groceries tomorrow")
	if out.Intent != interpreter.IntentAddTask {
		t.Fatalf("unexpected intent %s", out.Intent)
	}
	if out.Todo == nil {
		t.Fatal("expected the created todo in the result")
	}
	if out.Todo.Description != "buy groceries" {
		t.Fatalf("unexpected description %q", out.Todo.Description)
	}
	if out.Todo.DueDate != "2026-01-08" {
		t.Fatalf("unexpected due date %q", out.Todo.DueDate)
	}
	if !strings.Contains(out.Text, "Added task #1") || !strings.Contains(out.Text, "due 2026-01-08") {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestExecuteAddAppendsDetails(t *testing.T) {
	e, _ := newTestExecutor(t)

	cmd := interpreter.Normalize(interpreter.IntentAddTask, interpreter.Slots{
		Description: "call mom",
		Details:     map[string]string{interpreter.SlotContactDetails: "her cell"},
	}, "remind me to call mom", execNow)

	out, err := e.Execute(context.Background(), "u1", cmd)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.Todo.Description, "call mom") || !strings.Contains(out.Todo.Description, "her cell") {
		t.Fatalf("details should be appended to the description, got %q", out.Todo.Description)
	}
}

func TestExecuteList(t *testing.T) {
	e, store := newTestExecutor(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, "u1", "write report", "", "high", "work")
	if _, err := store.Create(ctx, "u1", "buy milk", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Complete(ctx, "u1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	all := run(t, e, "u1", "show me all my tasks")
	if len(all.Todos) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all.Todos))
	}
	if !strings.Contains(all.Text, "You have 2 tasks:") {
		t.Fatalf("unexpected header in %q", all.Text)
	}

	pending := run(t, e, "u1", "Show me my pending tasks")
	if len(pending.Todos) != 1 || pending.Todos[0].Description != "buy milk" {
		t.Fatalf("unexpected pending list %+v", pending.Todos)
	}
	if !strings.Contains(pending.Text, "[ ] buy milk") {
		t.Fatalf("unexpected text %q", pending.Text)
	}

	completed := run(t, e, "u1", "list my completed tasks")
	if len(completed.Todos) != 1 || completed.Todos[0].ID != a.ID {
		t.Fatalf("unexpected completed list %+v", completed.Todos)
	}
	if !strings.Contains(completed.Text, "[x] write report") {
		t.Fatalf("unexpected text %q", completed.Text)
	}
}

func TestExecuteListEmpty(t *testing.T) {
	e, _ := newTestExecutor(t)
	out := run(t, e, "u1", "Show me my pending tasks")
	if out.Text != "You have no pending tasks. Nice work!" {
		t.Fatalf("unexpected text %q", out.Text)
	}
	if len(out.Todos) != 0 {
		t.Fatalf("expected no todos, got %d", len(out.Todos))
	}
}

func TestExecuteCompleteByID(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "laundry", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	out := run(t, e, "u1", "mark #1 as done")
	if out.Todo == nil || out.Todo.Status != task.StatusCompleted {
		t.Fatalf("expected completed todo, got %+v", out.Todo)
	}
	if !strings.Contains(out.Text, "Marked task #1 as completed") {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestExecuteCompleteByDescription(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "fold the laundry", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	out := run(t, e, "u1", "I finished the laundry")
	if out.Todo == nil || out.Todo.Status != task.StatusCompleted {
		t.Fatalf("expected completed todo, got %+v", out.Todo)
	}
}

func TestExecuteCompleteNotFound(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := run(t, e, "u1", "mark #42 as done")
	if !strings.Contains(out.Text, "couldn't find task #42") {
		t.Fatalf("unexpected text %q", out.Text)
	}
	if out.Todo != nil {
		t.Fatal("a miss must not return a todo")
	}
}

func TestExecuteInferredIDFallsBackToDescription(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "report 12 review", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	// the inferred id 12 does not exist; the description search should
	// still find the task
	out := run(t, e, "u1", "finish the report 12 review")
	if out.Todo == nil || out.Todo.Status != task.StatusCompleted {
		t.Fatalf("expected fallback resolution, got %+v text=%q", out.Todo, out.Text)
	}
}

func TestExecuteUpdate(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "draft email", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	out := run(t, e, "u1", "change task 1 priority to high and due date to tomorrow")
	if out.Todo == nil {
		t.Fatalf("expected updated todo, text=%q", out.Text)
	}
	if out.Todo.Priority != "high" || out.Todo.DueDate != "2026-01-08" {
		t.Fatalf("update not applied: %+v", out.Todo)
	}
	if !strings.Contains(out.Text, "Updated due date, priority on task #1") {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestExecuteUpdateWithoutFieldsAsksBack(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "draft email", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	cmd := interpreter.Normalize(interpreter.IntentUpdateTask, interpreter.Slots{TaskID: "1"}, "update task 1", execNow)
	out, err := e.Execute(context.Background(), "u1", cmd)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.Text, "What would you like to change") {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestExecuteDelete(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "old chore", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	out := run(t, e, "u1", "delete task 1")
	if !strings.Contains(out.Text, "Deleted task #1") {
		t.Fatalf("unexpected text %q", out.Text)
	}

	left, err := store.List(context.Background(), "u1", task.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no tasks left, got %d", len(left))
	}
}

func TestExecuteUnknown(t *testing.T) {
	e, _ := newTestExecutor(t)
	out := run(t, e, "u1", "What's the weather like?")
	if out.Intent != interpreter.IntentUnknown {
		t.Fatalf("unexpected intent %s", out.Intent)
	}
	if !strings.Contains(out.Text, "add, list, update, complete or delete") {
		t.Fatalf("unexpected text %q", out.Text)
	}
}

func TestExecuteScopesUsers(t *testing.T) {
	e, store := newTestExecutor(t)
	if _, err := store.Create(context.Background(), "u1", "private task", "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	out := run(t, e, "u2", "mark #1 as done")
	if out.Todo != nil {
		t.Fatal("a foreign user must not resolve the task")
	}
	if !strings.Contains(out.Text, "couldn't find task #1") {
		t.Fatalf("unexpected text %q", out.Text)
	}
}
