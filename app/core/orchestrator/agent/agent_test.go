package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"todochat/app/core/orchestrator/command"
	"todochat/app/core/orchestrator/db"
	"todochat/app/core/orchestrator/task"
	"todochat/app/core/session"
	"todochat/app/pkg/types"
)

var agentNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func newTestAgent(t *testing.T) (*DefaultAgent, *task.Store) {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := task.NewStore(database)
	sessions := session.NewStore(0)
	a := NewAgent("TodoChat", command.NewExecutor(store), sessions, nil)
	a.SetClock(func() time.Time { return agentNow })
	sessions.SetClock(func() time.Time { return agentNow })
	return a, store
}

func say(t *testing.T, a *DefaultAgent, userID, text string) types.Message {
	t.Helper()
	reply, err := a.Process(context.Background(), types.Message{
		ID:             "msg-1",
		Content:        text,
		Role:           types.MessageRoleUser,
		ChannelID:      "cli",
		UserID:         userID,
		ConversationID: userID,
	})
	if err != nil {
		t.Fatalf("process %q: %v", text, err)
	}
	return reply
}

func TestProcessAddAndList(t *testing.T) {
	a, _ := newTestAgent(t)

	reply := say(t, a, "u1", "Add a task to buy groceries tomorrow")
	if !strings.Contains(reply.Content, "Added task #1") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if reply.Role != types.MessageRoleAssistant {
		t.Fatalf("unexpected role %q", reply.Role)
	}
	if reply.Meta["intent"] != "add_task" {
		t.Fatalf("unexpected intent meta %v", reply.Meta["intent"])
	}
	if reply.Meta["task_id"] != "1" {
		t.Fatalf("unexpected task_id meta %v", reply.Meta["task_id"])
	}

	reply = say(t, a, "u1", "Show me my pending tasks")
	if !strings.Contains(reply.Content, "buy groceries") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
}

func TestProcessSlotFillingFlow(t *testing.T) {
	a, store := newTestAgent(t)

	reply := say(t, a, "u1", "remind me to buy milk")
	if reply.Meta["session"] != "awaiting_slot" {
		t.Fatalf("expected a slot prompt, got %q meta=%v", reply.Content, reply.Meta)
	}
	if !strings.Contains(reply.Content, "When would you like") {
		t.Fatalf("unexpected prompt %q", reply.Content)
	}

	reply = say(t, a, "u1", "tomorrow")
	if !strings.Contains(reply.Content, "Added task #1") {
		t.Fatalf("expected the task to be created, got %q", reply.Content)
	}

	todos, err := store.List(context.Background(), "u1", task.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 1 || todos[0].DueDate != "2026-01-08" {
		t.Fatalf("expected the merged due date, got %+v", todos)
	}
}

func TestProcessSessionCancel(t *testing.T) {
	a, store := newTestAgent(t)

	say(t, a, "u1", "remind me to buy milk")
	reply := say(t, a, "u1", "never mind")
	if reply.Meta["session"] != "cancelled" {
		t.Fatalf("expected cancellation, got %q meta=%v", reply.Content, reply.Meta)
	}

	todos, err := store.List(context.Background(), "u1", task.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 0 {
		t.Fatalf("cancelled session must not create a task, got %+v", todos)
	}

	// the next utterance starts fresh
	reply = say(t, a, "u1", "Show me my pending tasks")
	if !strings.Contains(reply.Content, "no pending tasks") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
}

func TestProcessSessionsAreConversationScoped(t *testing.T) {
	a, _ := newTestAgent(t)

	say(t, a, "u1", "remind me to buy milk")

	// a different user's "tomorrow" is not an answer to u1's session
	reply := say(t, a, "u2", "tomorrow")
	if reply.Meta["session"] == "awaiting_slot" {
		t.Fatalf("u2 must not join u1's session: %q", reply.Content)
	}
	if reply.Meta["intent"] != "unknown" {
		t.Fatalf("expected unknown intent for bare 'tomorrow', got %v", reply.Meta["intent"])
	}
}

func TestProcessEmptyContent(t *testing.T) {
	a, _ := newTestAgent(t)
	reply := say(t, a, "u1", "   ")
	if reply.Content != "" {
		t.Fatalf("expected empty reply, got %q", reply.Content)
	}
}

func TestProcessUnknown(t *testing.T) {
	a, _ := newTestAgent(t)
	reply := say(t, a, "u1", "What's the weather like?")
	if reply.Meta["intent"] != "unknown" {
		t.Fatalf("unexpected meta %v", reply.Meta)
	}
	if !strings.Contains(reply.Content, "add, list, update, complete or delete") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
}

func TestProcessFillsReplyRouting(t *testing.T) {
	a, _ := newTestAgent(t)
	reply, err := a.Process(context.Background(), types.Message{
		ID:             "msg-9",
		Content:        "Show me my pending tasks",
		ChannelID:      "http",
		UserID:         "u1",
		ConversationID: "conv-7",
		RequestID:      "req-42",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if reply.ChannelID != "http" || reply.UserID != "u1" || reply.ConversationID != "conv-7" || reply.RequestID != "req-42" {
		t.Fatalf("reply must carry the request routing fields: %+v", reply)
	}
	if reply.ID == "" || reply.ID == "msg-9" {
		t.Fatalf("reply needs its own id, got %q", reply.ID)
	}
}
