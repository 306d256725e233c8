package interpreter

import (
	"regexp"
	"strings"
	"time"
)

// Slot categories a multi-turn session can request.
const (
	SlotTimeframe      = "timeframe"
	SlotLocation       = "location"
	SlotContactDetails = "contact_details"
	SlotDetails        = "details"
)

// Result is the outcome of running the full pipeline on one utterance.
// When NeedsMoreInfo is set the command is structurally complete but
// semantically underspecified; MissingSlots lists the slot categories a
// follow-up conversation should collect, in prompting order.
type Result struct {
	Command       Command
	NeedsMoreInfo bool
	MissingSlots  []string
	Prompt        string
}

// elaborationVerbs maps action verbs that structurally imply more
// information onto the slot categories they require.
var elaborationVerbs = []struct {
	pattern  *regexp.Regexp
	required []string
}{
	{regexp.MustCompile(`\b(?:buy|purchase|get|pick\s+up|order)\b`), []string{SlotTimeframe}},
	{regexp.MustCompile(`\b(?:call|phone|ring)\b`), []string{SlotContactDetails, SlotTimeframe}},
	{regexp.MustCompile(`\b(?:email|text|message)\b`), []string{SlotContactDetails}},
	{regexp.MustCompile(`\b(?:visit|meet|see)\b`), []string{SlotLocation, SlotTimeframe}},
	{regexp.MustCompile(`\b(?:book|schedule|reserve)\b`), []string{SlotTimeframe}},
}

var slotPrompts = map[string]string{
	SlotTimeframe:      "When would you like to do this?",
	SlotLocation:       "Where will this take place?",
	SlotContactDetails: "Who should be contacted, and how can they be reached?",
	SlotDetails:        "Could you share a bit more detail?",
}

// PromptFor returns the single-slot question for a missing slot category.
func PromptFor(slot string) string {
	if p, ok := slotPrompts[slot]; ok {
		return p
	}
	return slotPrompts[SlotDetails]
}

// Interpret runs classify -> extract -> normalize on one utterance and
// decides whether a slot-filling conversation is needed. Pure function of
// the text and reference time; safe for concurrent use.
func Interpret(text string, now time.Time) Result {
	intent := Classify(text)
	if intent == IntentUnknown {
		return Result{Command: Normalize(IntentUnknown, Slots{}, text, now)}
	}

	slots := Extract(intent, text, now)
	cmd := Normalize(intent, slots, text, now)

	missing := missingSlotCategories(cmd)
	if len(missing) == 0 {
		return Result{Command: cmd}
	}
	return Result{
		Command:       cmd,
		NeedsMoreInfo: true,
		MissingSlots:  missing,
		Prompt:        PromptFor(missing[0]),
	}
}

// missingSlotCategories applies the needs-elaboration heuristic: only add
// commands qualify, and only when the description carries one of the
// elaboration verbs whose required slots are not already filled.
func missingSlotCategories(cmd Command) []string {
	if cmd.Intent != IntentAddTask {
		return nil
	}
	desc := strings.ToLower(cmd.Slots.Description)
	if desc == "" || desc == strings.ToLower(PlaceholderUntitled) {
		return nil
	}

	var missing []string
	seen := map[string]struct{}{}
	for _, v := range elaborationVerbs {
		if !v.pattern.MatchString(desc) {
			continue
		}
		for _, slot := range v.required {
			if _, dup := seen[slot]; dup {
				continue
			}
			if slot == SlotTimeframe && cmd.Slots.DueDate != "" {
				continue
			}
			if cmd.Slots.Details[slot] != "" {
				continue
			}
			seen[slot] = struct{}{}
			missing = append(missing, slot)
		}
	}
	return missing
}
