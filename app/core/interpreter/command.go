package interpreter

import "time"

// Command is the canonical, fully-defaulted record handed to the
// task-operation executor. Slots never carries an empty value for a field
// that has a stated default once Normalize has run.
type Command struct {
	Intent      Intent    `json:"intent"`
	Slots       Slots     `json:"slots"`
	RawText     string    `json:"raw_command"`
	ProcessedAt time.Time `json:"processed_at"`
}

const (
	DefaultSortBy    = "created"
	DefaultSortOrder = "asc"
)

// Normalize merges raw extraction output with the defaults table for the
// given intent, stamps the processing time and retains the original text
// for audit. Pure function; no I/O.
func Normalize(intent Intent, slots Slots, rawText string, now time.Time) Command {
	switch intent {
	case IntentAddTask:
		if slots.Description == "" {
			slots.Description = PlaceholderUntitled
		}
		if slots.Priority == "" {
			slots.Priority = PriorityMedium
		}
		if slots.Category == "" {
			slots.Category = DefaultCategory
		}
	case IntentListAll, IntentListPending, IntentListCompleted:
		if slots.SortBy == "" {
			slots.SortBy = DefaultSortBy
		}
		if slots.SortOrder == "" {
			slots.SortOrder = DefaultSortOrder
		}
	case IntentUpdateTask:
		if slots.Description == "" && slots.TaskID == "" {
			slots.Description = PlaceholderUnspecified
		}
		if slots.Updates == nil {
			slots.Updates = map[string]string{}
		}
	case IntentCompleteTask, IntentDeleteTask:
		if slots.Description == "" && slots.TaskID == "" {
			slots.Description = PlaceholderUnspecified
		}
	}
	return Command{
		Intent:      intent,
		Slots:       slots,
		RawText:     rawText,
		ProcessedAt: now,
	}
}
