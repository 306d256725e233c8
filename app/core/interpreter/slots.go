package interpreter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Slots carries every field an intent's operation may need. It is a plain
// value type: absent slots hold their zero value until Normalize fills in
// intent defaults, so callers never deal with nil-vs-missing distinctions.
type Slots struct {
	Description    string            `json:"description,omitempty"`
	TaskID         string            `json:"task_id,omitempty"`
	TaskIDInferred bool              `json:"task_id_inferred,omitempty"`
	DueDate        string            `json:"due_date,omitempty"` // ISO-8601 date
	Priority       string            `json:"priority,omitempty"`
	Category       string            `json:"category,omitempty"`
	SortBy         string            `json:"sort_by,omitempty"`
	SortOrder      string            `json:"sort_order,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	SearchTerm     string            `json:"search_term,omitempty"`
	Updates        map[string]string `json:"updates,omitempty"`
	Details        map[string]string `json:"details,omitempty"` // filled by multi-turn follow-ups
}

const (
	PlaceholderUntitled    = "Untitled task"
	PlaceholderUnspecified = "Unspecified task"
)

// descriptionRules holds the ordered capture templates per intent. Each is
// tried in order against the lowercased text; the first capture wins.
var descriptionRules = map[Intent][]*regexp.Regexp{
	IntentAddTask: compileAll(
		`\b(?:add|create|make)\s+(?:a\s+)?(?:new\s+)?(?:task|todo|reminder|item)\s+(?:to|for|called|titled|:)?\s*(.+)`,
		`\b(?:add|create|make)\s+(?:a\s+)?(?:new\s+)?(?:task|todo|reminder|item)\s+(.+)`,
		`\bremind\s+me\s+to\s+(.+)`,
		`\bi\s+(?:need|have|want)\s+to\s+(.+)`,
		`\bdon'?t\s+forget\s+to\s+(.+)`,
		`\bput\s+(.+?)\s+on\s+(?:my\s+)?(?:list|todo)\b`,
		`\b(?:add|create)\s+(.+)`,
	),
	IntentUpdateTask: compileAll(
		`\b(?:update|change|modify|edit|reschedule|rename)\s+(?:the\s+)?(?:task\s+)?(?:called|named|for)?\s*"([^"]+)"`,
		`\b(?:update|change|modify|edit|reschedule|rename)\s+(?:the\s+)?(?:task\s+)?(.+?)(?:\s+(?:to|as)\s+.+)?$`,
	),
	IntentCompleteTask: compileAll(
		`\bmark\s+(?:the\s+)?(?:task\s+)?(.+?)\s+as\s+(?:done|complete|completed|finished)\b`,
		`\bmark\s+(?:the\s+)?(?:task\s+)?(.+?)\s+(?:done|complete|completed|finished)\b`,
		`\b(?:complete|finish)\s+(?:the\s+)?(?:task\s+)?(.+)`,
		`\bi\s+(?:finished|completed|did)\s+(?:the\s+)?(?:task\s+)?(.+)`,
		`\bcheck\s+off\s+(.+)`,
		`\bdone\s+with\s+(.+)`,
	),
	IntentDeleteTask: compileAll(
		`\b(?:delete|remove|cancel|discard|drop|erase)\s+(?:the\s+)?(?:task\s+)?(?:called|named|for)?\s*(.+)`,
		`\bget\s+rid\s+of\s+(.+)`,
		`\btake\s+(.+?)\s+off\b`,
	),
}

// fallback stop words stripped when no template matched: command verbs,
// task nouns and connective filler.
var stopWords = map[string]struct{}{
	"add": {}, "create": {}, "make": {}, "new": {}, "task": {}, "todo": {},
	"reminder": {}, "item": {}, "a": {}, "an": {}, "the": {}, "to": {},
	"please": {}, "my": {}, "me": {}, "i": {}, "remind": {}, "need": {},
	"want": {}, "have": {}, "for": {}, "list": {}, "update": {}, "change": {},
	"modify": {}, "edit": {}, "delete": {}, "remove": {}, "cancel": {},
	"complete": {}, "finish": {}, "mark": {}, "done": {}, "as": {},
}

var (
	taskRefPatterns = compileAll(
		`#(\d+)`,
		`\btask\s+(\d+)\b`,
		`\bnumber\s+(\d+)\b`,
	)
	bareNumberPattern    = regexp.MustCompile(`\b(\d+)\b`)
	bareReferencePattern = regexp.MustCompile(`^#?(\d+)$`)

	trailingPriorityPattern = regexp.MustCompile(`\s*(?:with\s+|at\s+)?(?:high|low|medium|urgent|important|critical|top|minor|trivial|bottom|normal)(?:\s+priority)?\s*$`)
	trailingDatePattern     = regexp.MustCompile(`\s*(?:\b(?:by|on|at|before|until|due)\s+)?` + datePhrasePattern.String() + `\s*$`)

	updateFieldPattern = regexp.MustCompile(`\b(due\s+date|due|deadline|priority|status|category|description|title)\s+(?:to|as|is)\s+(.+?)(?:\s*,\s*|\s+and\s+|$)`)
	updateCatchAll     = regexp.MustCompile(`\b(?:update|change|modify|edit)\b\s+(?:task\s+\d+\s+)?(.+)`)

	sortByPattern    = regexp.MustCompile(`\bsort(?:ed)?\s+by\s+(due\s+date|due|priority|created|title|description)\b`)
	sortOrderPattern = regexp.MustCompile(`\b(descending|desc|ascending|asc|newest|latest|oldest)\b`)
	limitPattern     = regexp.MustCompile(`\b(?:top|first|last|limit)\s+(\d+)\b`)
	searchPattern    = regexp.MustCompile(`\b(?:containing|matching|about|mentioning)\s+(.+)`)
)

// Extract re-scans text with the rule set for an already-classified intent
// and returns the operation-specific slots. It never fails: every missing
// value resolves to a zero slot that Normalize later replaces with the
// intent's default or placeholder.
func Extract(intent Intent, text string, now time.Time) Slots {
	switch intent {
	case IntentAddTask:
		return extractAdd(text, now)
	case IntentListAll, IntentListPending, IntentListCompleted:
		return extractList(text)
	case IntentUpdateTask:
		return extractUpdate(text, now)
	case IntentCompleteTask:
		return extractReference(IntentCompleteTask, text)
	case IntentDeleteTask:
		return extractReference(IntentDeleteTask, text)
	default:
		return Slots{}
	}
}

func extractAdd(text string, now time.Time) Slots {
	var s Slots
	if due, _, ok := FindDate(text, now); ok {
		s.DueDate = FormatDate(due)
	}
	if p, ok := ExtractPriority(text); ok {
		s.Priority = p
	}
	if c, ok := ExtractCategory(text); ok {
		s.Category = c
	}
	s.Description = extractDescription(IntentAddTask, text)
	return s
}

func extractList(text string) Slots {
	var s Slots
	lower := strings.ToLower(text)
	if m := sortByPattern.FindStringSubmatch(lower); m != nil {
		s.SortBy = normalizeSortField(m[1])
	}
	if m := sortOrderPattern.FindStringSubmatch(lower); m != nil {
		s.SortOrder = normalizeSortOrder(m[1])
	}
	if m := limitPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			s.Limit = n
		}
	}
	if c, ok := ExtractCategory(text); ok {
		s.Category = c
	}
	if m := priorityWordPattern.FindStringSubmatch(lower); m != nil {
		s.Priority = NormalizePriority(m[1])
	}
	if m := searchPattern.FindStringSubmatch(lower); m != nil {
		s.SearchTerm = strings.TrimSpace(strings.Trim(m[1], `."?!`))
	}
	return s
}

func extractUpdate(text string, now time.Time) Slots {
	s := extractReference(IntentUpdateTask, text)
	s.Updates = map[string]string{}
	lower := strings.ToLower(text)
	for _, m := range updateFieldPattern.FindAllStringSubmatch(lower, -1) {
		field := normalizeUpdateField(m[1])
		value := strings.TrimSpace(strings.Trim(m[2], `."?!`))
		if value == "" {
			continue
		}
		if field == "due_date" {
			if due, ok := ResolveDate(value, now); ok {
				value = FormatDate(due)
			}
		}
		if field == "priority" {
			value = NormalizePriority(value)
		}
		s.Updates[field] = value
	}
	if len(s.Updates) == 0 {
		if m := updateCatchAll.FindStringSubmatch(lower); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				s.Updates["general"] = v
			}
		}
	}
	return s
}

// extractReference pulls a task id and/or description used to identify an
// existing task. At least one of the two always ends up non-empty thanks
// to the placeholder policy.
func extractReference(intent Intent, text string) Slots {
	var s Slots
	s.Description = extractDescription(intent, text)
	for _, p := range taskRefPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			s.TaskID = m[1]
			break
		}
	}
	if s.TaskID == "" && s.Description != "" && !isPlaceholder(s.Description) {
		if id, ok := inferNearbyTaskID(text, s.Description); ok {
			s.TaskID = id
			s.TaskIDInferred = true
		}
	}
	// a description that is only a numeric reference reads better as
	// "Task #N" downstream
	if m := bareReferencePattern.FindStringSubmatch(s.Description); m != nil {
		s.TaskID = m[1]
		s.Description = "Task #" + m[1]
	}
	return s
}

func extractDescription(intent Intent, text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range descriptionRules[intent] {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if d := cleanDescription(m[1]); d != "" && !allStopWords(d) {
			return d
		}
	}
	if d := cleanDescription(stripStopWords(lower)); d != "" {
		return d
	}
	if intent == IntentAddTask {
		return PlaceholderUntitled
	}
	return PlaceholderUnspecified
}

// cleanDescription trims filler from a captured description: trailing
// date and priority phrases, punctuation and surrounding whitespace.
func cleanDescription(raw string) string {
	d := strings.TrimSpace(raw)
	for {
		next := trailingDatePattern.ReplaceAllString(d, "")
		next = trailingPriorityPattern.ReplaceAllString(next, "")
		next = strings.TrimSpace(strings.TrimRight(next, `.,!?;:"`))
		if next == d {
			break
		}
		d = next
	}
	return d
}

// allStopWords reports whether a captured description is pure filler,
// in which case the capture is treated as empty.
func allStopWords(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if _, drop := stopWords[strings.Trim(w, `.,!?;:"`)]; !drop {
			return false
		}
	}
	return true
}

func stripStopWords(lower string) string {
	words := strings.Fields(lower)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, drop := stopWords[strings.Trim(w, `.,!?;:"`)]; drop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// inferNearbyTaskID looks for a number within a ten-character window
// around the description's position in the text. Best-effort only: the
// number might belong to the description itself, so callers treat the
// inferred id as low-confidence.
func inferNearbyTaskID(text, description string) (string, bool) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(description))
	if idx < 0 {
		return "", false
	}
	start := idx - 10
	if start < 0 {
		start = 0
	}
	end := idx + len(description) + 10
	if end > len(lower) {
		end = len(lower)
	}
	matches := bareNumberPattern.FindAllStringSubmatch(lower[start:end], -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}

func isPlaceholder(description string) bool {
	return description == PlaceholderUntitled || description == PlaceholderUnspecified
}

func normalizeSortField(field string) string {
	switch strings.TrimSpace(field) {
	case "due date", "due":
		return "due_date"
	case "priority":
		return "priority"
	case "title", "description":
		return "description"
	default:
		return "created"
	}
}

func normalizeSortOrder(order string) string {
	switch strings.TrimSpace(order) {
	case "desc", "descending", "newest", "latest":
		return "desc"
	default:
		return "asc"
	}
}

func normalizeUpdateField(field string) string {
	switch strings.Join(strings.Fields(field), " ") {
	case "due date", "due", "deadline":
		return "due_date"
	case "title", "description":
		return "description"
	default:
		return field
	}
}
