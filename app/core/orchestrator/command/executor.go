// Package command executes canonical interpreter commands against the
// task store and renders a plain-text result the responder can phrase.
package command

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"todochat/app/core/interpreter"
	"todochat/app/core/orchestrator/task"
	"todochat/app/pkg/logger"
)

type Executor struct {
	taskStore *task.Store
}

func NewExecutor(taskStore *task.Store) *Executor {
	return &Executor{taskStore: taskStore}
}

// Result carries the structured outcome of one command execution.
type Result struct {
	Text   string
	Intent interpreter.Intent
	Todo   *task.Todo
	Todos  []task.Todo
}

// Execute runs a normalized command for the given user. Interpretation
// misses are not errors: unknown intent renders a rephrase hint. Errors
// are reserved for store failures.
func (e *Executor) Execute(ctx context.Context, userID string, cmd interpreter.Command) (Result, error) {
	if e.taskStore == nil {
		return Result{}, fmt.Errorf("task store is not available")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}

	switch cmd.Intent {
	case interpreter.IntentAddTask:
		return e.executeAdd(ctx, userID, cmd)
	case interpreter.IntentListAll, interpreter.IntentListPending, interpreter.IntentListCompleted:
		return e.executeList(ctx, userID, cmd)
	case interpreter.IntentUpdateTask:
		return e.executeUpdate(ctx, userID, cmd)
	case interpreter.IntentCompleteTask:
		return e.executeComplete(ctx, userID, cmd)
	case interpreter.IntentDeleteTask:
		return e.executeDelete(ctx, userID, cmd)
	default:
		return Result{
			Intent: interpreter.IntentUnknown,
			Text:   "I didn't catch what you'd like to do with your tasks. You can ask me to add, list, update, complete or delete a task.",
		}, nil
	}
}

func (e *Executor) executeAdd(ctx context.Context, userID string, cmd interpreter.Command) (Result, error) {
	description := cmd.Slots.Description
	if extra := formatDetails(cmd.Slots.Details); extra != "" {
		description = description + " " + extra
	}
	created, err := e.taskStore.Create(ctx, userID, description, cmd.Slots.DueDate, cmd.Slots.Priority, cmd.Slots.Category)
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Added task #%d: %s", created.ID, created.Description))
	if created.DueDate != "" {
		b.WriteString(fmt.Sprintf(" (due %s)", created.DueDate))
	}
	if created.Priority != "medium" {
		b.WriteString(fmt.Sprintf(" [%s priority]", created.Priority))
	}
	return Result{Text: b.String(), Intent: cmd.Intent, Todo: &created}, nil
}

func (e *Executor) executeList(ctx context.Context, userID string, cmd interpreter.Command) (Result, error) {
	filter := task.Filter{
		Category:  cmd.Slots.Category,
		Priority:  cmd.Slots.Priority,
		Search:    cmd.Slots.SearchTerm,
		SortBy:    cmd.Slots.SortBy,
		SortOrder: cmd.Slots.SortOrder,
		Limit:     cmd.Slots.Limit,
	}
	switch cmd.Intent {
	case interpreter.IntentListPending:
		filter.Status = task.StatusPending
	case interpreter.IntentListCompleted:
		filter.Status = task.StatusCompleted
	}

	items, err := e.taskStore.List(ctx, userID, filter)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return Result{Text: emptyListText(cmd.Intent), Intent: cmd.Intent}, nil
	}

	var b strings.Builder
	b.WriteString(listHeader(cmd.Intent, len(items)))
	for _, t := range items {
		b.WriteString(fmt.Sprintf("\n  #%d %s %s", t.ID, statusMark(t.Status), t.Description))
		if t.DueDate != "" {
			b.WriteString(fmt.Sprintf(" (due %s)", t.DueDate))
		}
		if t.Priority != "medium" {
			b.WriteString(fmt.Sprintf(" [%s]", t.Priority))
		}
	}
	return Result{Text: b.String(), Intent: cmd.Intent, Todos: items}, nil
}

func (e *Executor) executeUpdate(ctx context.Context, userID string, cmd interpreter.Command) (Result, error) {
	target, err := e.resolveTask(ctx, userID, cmd.Slots)
	if err != nil {
		if err == sql.ErrNoRows {
			return Result{Text: notFoundText(cmd.Slots), Intent: cmd.Intent}, nil
		}
		return Result{}, err
	}

	updates := map[string]string{}
	for field, value := range cmd.Slots.Updates {
		if field == "general" {
			// unstructured update text falls back to a description change
			updates["description"] = value
			continue
		}
		updates[field] = value
	}
	if len(updates) == 0 {
		return Result{
			Text:   fmt.Sprintf("What would you like to change about task #%d (%s)?", target.ID, target.Description),
			Intent: cmd.Intent,
			Todo:   &target,
		}, nil
	}

	updated, err := e.taskStore.Update(ctx, userID, target.ID, updates)
	if err != nil {
		if err == sql.ErrNoRows {
			return Result{Text: notFoundText(cmd.Slots), Intent: cmd.Intent}, nil
		}
		return Result{}, err
	}

	fields := make([]string, 0, len(updates))
	for f := range updates {
		fields = append(fields, strings.ReplaceAll(f, "_", " "))
	}
	sort.Strings(fields)
	text := fmt.Sprintf("Updated %s on task #%d: %s", strings.Join(fields, ", "), updated.ID, updated.Description)
	return Result{Text: text, Intent: cmd.Intent, Todo: &updated}, nil
}

func (e *Executor) executeComplete(ctx context.Context, userID string, cmd interpreter.Command) (Result, error) {
	target, err := e.resolveTask(ctx, userID, cmd.Slots)
	if err != nil {
		if err == sql.ErrNoRows {
			return Result{Text: notFoundText(cmd.Slots), Intent: cmd.Intent}, nil
		}
		return Result{}, err
	}
	completed, err := e.taskStore.Complete(ctx, userID, target.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return Result{Text: notFoundText(cmd.Slots), Intent: cmd.Intent}, nil
		}
		return Result{}, err
	}
	return Result{
		Text:   fmt.Sprintf("Marked task #%d as completed: %s", completed.ID, completed.Description),
		Intent: cmd.Intent,
		Todo:   &completed,
	}, nil
}

func (e *Executor) executeDelete(ctx context.Context, userID string, cmd interpreter.Command) (Result, error) {
	target, err := e.resolveTask(ctx, userID, cmd.Slots)
	if err != nil {
		if err == sql.ErrNoRows {
			return Result{Text: notFoundText(cmd.Slots), Intent: cmd.Intent}, nil
		}
		return Result{}, err
	}
	if err := e.taskStore.Delete(ctx, userID, target.ID); err != nil {
		if err == sql.ErrNoRows {
			return Result{Text: notFoundText(cmd.Slots), Intent: cmd.Intent}, nil
		}
		return Result{}, err
	}
	return Result{
		Text:   fmt.Sprintf("Deleted task #%d: %s", target.ID, target.Description),
		Intent: cmd.Intent,
		Todo:   &target,
	}, nil
}

// resolveTask finds the task a command refers to: numeric id first, then
// the description used as a search term among the user's own tasks.
func (e *Executor) resolveTask(ctx context.Context, userID string, slots interpreter.Slots) (task.Todo, error) {
	if slots.TaskID != "" {
		id, err := strconv.ParseInt(slots.TaskID, 10, 64)
		if err == nil {
			t, getErr := e.taskStore.Get(ctx, userID, id)
			if getErr == nil {
				if slots.TaskIDInferred {
					logger.Info("Resolved task %d for user %s from low-confidence inferred id", t.ID, userID)
				}
				return t, nil
			}
			if getErr != sql.ErrNoRows {
				return task.Todo{}, getErr
			}
			// an inferred id that points nowhere falls through to the
			// description search; an explicit one is a real miss
			if !slots.TaskIDInferred {
				return task.Todo{}, sql.ErrNoRows
			}
		}
	}
	desc := slots.Description
	if desc == "" || desc == interpreter.PlaceholderUnspecified || desc == interpreter.PlaceholderUntitled {
		return task.Todo{}, sql.ErrNoRows
	}
	return e.taskStore.FindByDescription(ctx, userID, desc)
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), details[k]))
	}
	return "(" + strings.Join(parts, "; ") + ")"
}

func listHeader(intent interpreter.Intent, n int) string {
	noun := "task"
	if n != 1 {
		noun = "tasks"
	}
	switch intent {
	case interpreter.IntentListPending:
		return fmt.Sprintf("You have %d pending %s:", n, noun)
	case interpreter.IntentListCompleted:
		return fmt.Sprintf("You have %d completed %s:", n, noun)
	default:
		return fmt.Sprintf("You have %d %s:", n, noun)
	}
}

func emptyListText(intent interpreter.Intent) string {
	switch intent {
	case interpreter.IntentListPending:
		return "You have no pending tasks. Nice work!"
	case interpreter.IntentListCompleted:
		return "You haven't completed any tasks yet."
	default:
		return "Your task list is empty."
	}
}

func statusMark(status string) string {
	if status == task.StatusCompleted {
		return "[x]"
	}
	return "[ ]"
}

func notFoundText(slots interpreter.Slots) string {
	if slots.TaskID != "" && !slots.TaskIDInferred {
		return fmt.Sprintf("I couldn't find task #%s in your list.", slots.TaskID)
	}
	ref := slots.Description
	if ref == "" || ref == interpreter.PlaceholderUnspecified {
		return "I couldn't tell which task you meant. Try referring to it by number, e.g. \"task #3\"."
	}
	return fmt.Sprintf("I couldn't find a task matching %q in your list.", ref)
}
