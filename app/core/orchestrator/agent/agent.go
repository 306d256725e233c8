package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"todochat/app/core/interpreter"
	"todochat/app/core/orchestrator/command"
	"todochat/app/core/session"
	"todochat/app/pkg/logger"
	"todochat/app/pkg/types"
)

// Phraser words a structured result conversationally. Satisfied by
// responder.Client; nil disables phrasing.
type Phraser interface {
	Phrase(ctx context.Context, userText, structured string) string
	Enabled() bool
}

var cancelPattern = regexp.MustCompile(`^\s*(?:cancel|never\s*mind|nevermind|forget\s+(?:it|that)|stop)\s*[.!]?\s*$`)

// DefaultAgent drives one conversation turn: active slot-filling sessions
// first, then fresh interpretation, then command execution and phrasing.
type DefaultAgent struct {
	name     string
	executor *command.Executor
	sessions *session.Store
	phraser  Phraser
	now      func() time.Time

	mu sync.RWMutex
}

func NewAgent(name string, executor *command.Executor, sessions *session.Store, phraser Phraser) *DefaultAgent {
	if strings.TrimSpace(name) == "" {
		name = "TodoChat"
	}
	return &DefaultAgent{
		name:     name,
		executor: executor,
		sessions: sessions,
		phraser:  phraser,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook only.
func (a *DefaultAgent) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

func (a *DefaultAgent) Process(ctx context.Context, msg types.Message) (types.Message, error) {
	channelID := strings.TrimSpace(msg.ChannelID)
	if channelID == "" {
		channelID = "unknown"
	}
	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		userID = "anonymous"
	}
	conversationID := strings.TrimSpace(msg.ConversationID)
	if conversationID == "" {
		conversationID = channelID
	}
	trimmed := strings.TrimSpace(msg.Content)
	if trimmed == "" {
		return a.newReply(msg, "", nil), nil
	}

	msg.ChannelID = channelID
	msg.UserID = userID
	msg.ConversationID = conversationID
	msg.Content = trimmed

	// a live slot-filling session owns the turn
	if a.sessions != nil && a.sessions.Active(userID, conversationID) {
		return a.continueSession(ctx, msg), nil
	}

	return a.handleUtterance(ctx, msg), nil
}

func (a *DefaultAgent) continueSession(ctx context.Context, msg types.Message) types.Message {
	if cancelPattern.MatchString(strings.ToLower(msg.Content)) {
		a.sessions.Cancel(msg.UserID, msg.ConversationID)
		return a.newReply(msg, "Okay, I've dropped that. What else can I do for you?", map[string]interface{}{
			"session": "cancelled",
		})
	}

	merge, ok := a.sessions.Merge(msg.UserID, msg.ConversationID, msg.Content)
	if !ok {
		// expired between turns: treat as a fresh utterance
		return a.handleUtterance(ctx, msg)
	}
	if !merge.Complete {
		return a.newReply(msg, merge.NextPrompt, map[string]interface{}{
			"session":      "awaiting_slot",
			"missing_slot": merge.NextSlot,
		})
	}
	return a.executeCommand(ctx, msg, merge.Command)
}

func (a *DefaultAgent) handleUtterance(ctx context.Context, msg types.Message) types.Message {
	res := interpreter.Interpret(msg.Content, a.now())

	if res.NeedsMoreInfo && a.sessions != nil {
		prompt := a.sessions.Begin(msg.UserID, msg.ConversationID, res)
		if prompt != "" {
			logger.Info("Started slot-filling session user=%s conversation=%s missing=%v", msg.UserID, msg.ConversationID, res.MissingSlots)
			return a.newReply(msg, prompt, map[string]interface{}{
				"session":      "awaiting_slot",
				"missing_slot": res.MissingSlots[0],
				"intent":       res.Command.Intent.String(),
			})
		}
	}

	return a.executeCommand(ctx, msg, res.Command)
}

func (a *DefaultAgent) executeCommand(ctx context.Context, msg types.Message, cmd interpreter.Command) types.Message {
	result, err := a.executor.Execute(ctx, msg.UserID, cmd)
	if err != nil {
		logger.Error("Command execution failed user=%s intent=%s: %v", msg.UserID, cmd.Intent, err)
		return a.newReply(msg, "Sorry, something went wrong while handling your tasks. Please try again.", map[string]interface{}{
			"intent":        cmd.Intent.String(),
			"command_error": true,
		})
	}

	text := result.Text
	if a.phraser != nil && a.phraser.Enabled() && result.Intent != interpreter.IntentUnknown {
		text = a.phraser.Phrase(ctx, msg.Content, result.Text)
	}

	meta := map[string]interface{}{
		"intent": result.Intent.String(),
	}
	if result.Todo != nil {
		meta["task_id"] = fmt.Sprintf("%d", result.Todo.ID)
	}
	return a.newReply(msg, text, meta)
}

func (a *DefaultAgent) newReply(msg types.Message, content string, meta map[string]interface{}) types.Message {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	for k, v := range msg.Meta {
		if _, exists := meta[k]; !exists {
			meta[k] = v
		}
	}
	return types.Message{
		ID:             "asst-" + uuid.NewString(),
		Content:        content,
		Role:           types.MessageRoleAssistant,
		ChannelID:      msg.ChannelID,
		UserID:         msg.UserID,
		ConversationID: msg.ConversationID,
		RequestID:      msg.RequestID,
		Meta:           meta,
	}
}

func (a *DefaultAgent) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

func (a *DefaultAgent) SetName(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.name = name
}
