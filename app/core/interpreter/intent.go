package interpreter

import (
	"regexp"
	"strings"
)

// Intent is the closed-set classification of what a user utterance requests.
type Intent string

const (
	IntentAddTask       Intent = "add_task"
	IntentListAll       Intent = "list_all"
	IntentListPending   Intent = "list_pending"
	IntentListCompleted Intent = "list_completed"
	IntentUpdateTask    Intent = "update_task"
	IntentCompleteTask  Intent = "complete_task"
	IntentDeleteTask    Intent = "delete_task"
	IntentUnknown       Intent = "unknown"
)

func (i Intent) String() string {
	return string(i)
}

// IsList reports whether the intent is one of the listing variants.
func (i Intent) IsList() bool {
	return i == IntentListAll || i == IntentListPending || i == IntentListCompleted
}

type intentRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// intentRules is evaluated top to bottom; the first intent whose first
// matching pattern fires wins, regardless of where the match sits in the
// text. Earlier intents therefore shadow later ones on ambiguous input.
var intentRules = []intentRule{
	{
		intent: IntentAddTask,
		patterns: compileAll(
			`\b(?:add|create|make)\b.*\b(?:task|todo|reminder|item)\b`,
			`\bnew\s+(?:task|todo|reminder)\b`,
			`\bremind\s+me\s+to\b`,
			`\bi\s+(?:need|have|want)\s+to\b`,
			`\bdon'?t\s+forget\s+to\b`,
			`\bput\b.*\bon\s+(?:my\s+)?(?:list|todo)\b`,
		),
	},
	{
		intent: IntentListAll,
		patterns: compileAll(
			`\b(?:show|list|view|display|see|get)\b.*\ball\b.*\b(?:tasks?|todos?)\b`,
			`\b(?:show|list|view|display|see|get)\s+(?:me\s+)?(?:my\s+)?(?:tasks?|todos?|list)\s*[.!?]?$`,
			`\bwhat(?:'s|\s+is|\s+are)?\s+(?:on\s+)?my\s+(?:list|tasks?|todos?)\b`,
			`\beverything\b.*\b(?:list|tasks?|todos?)\b`,
		),
	},
	{
		intent: IntentListPending,
		patterns: compileAll(
			`\b(?:pending|incomplete|unfinished|outstanding|open|remaining|active)\b.*\b(?:tasks?|todos?|items?)\b`,
			`\b(?:tasks?|todos?)\b.*\b(?:pending|incomplete|unfinished|outstanding|left|remaining)\b`,
			`\bwhat\s+do\s+i\s+(?:still\s+)?(?:need|have)\s+to\s+do\b`,
			`\bstill\s+to\s+do\b`,
		),
	},
	{
		intent: IntentListCompleted,
		patterns: compileAll(
			`\b(?:completed|finished|done)\b.*\b(?:tasks?|todos?|items?)\b`,
			`\b(?:tasks?|todos?)\b.*\b(?:completed|finished|done)\b`,
			`\bwhat\s+(?:have\s+i|did\s+i)\s+(?:finished?|completed?|done)\b`,
		),
	},
	{
		intent: IntentUpdateTask,
		patterns: compileAll(
			`\b(?:update|change|modify|edit|revise)\b`,
			`\breschedule\b`,
			`\brename\b`,
			`\bmove\b.*\bto\b`,
			`\bset\b.*\b(?:priority|due|deadline|status|category)\b`,
		),
	},
	{
		intent: IntentCompleteTask,
		patterns: compileAll(
			`\bmark\b.*\b(?:done|complete|completed|finished)\b`,
			`\b(?:complete|finish)\b`,
			`\b(?:i\s+)?(?:finished|completed|did)\b`,
			`\bcheck\s+off\b`,
			`\bdone\s+with\b`,
			`\bcross\b.*\boff\b`,
		),
	},
	{
		intent: IntentDeleteTask,
		patterns: compileAll(
			`\b(?:delete|remove|cancel|discard|drop|erase)\b`,
			`\bget\s+rid\s+of\b`,
			`\bclear\b.*\b(?:task|todo|item)\b`,
			`\btake\b.*\boff\b.*\b(?:list|todo)\b`,
		),
	},
}

// Classify maps free text onto an intent using the ordered rule cascade.
// It is a pure function: no state, no errors. Anything that matches no
// rule, including the empty string, classifies as IntentUnknown and the
// caller is expected to ask the user to rephrase.
func Classify(text string) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return IntentUnknown
	}
	for _, rule := range intentRules {
		for _, p := range rule.patterns {
			if p.MatchString(t) {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}
