package interpreter

import (
	"regexp"
	"strings"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	DefaultCategory = "general"
)

// priorityVocabulary maps urgency words onto the closed priority set.
// Anything outside the vocabulary normalizes to medium.
var priorityVocabulary = map[string]string{
	"high":      PriorityHigh,
	"urgent":    PriorityHigh,
	"important": PriorityHigh,
	"critical":  PriorityHigh,
	"top":       PriorityHigh,
	"asap":      PriorityHigh,
	"low":       PriorityLow,
	"minor":     PriorityLow,
	"trivial":   PriorityLow,
	"bottom":    PriorityLow,
	"whenever":  PriorityLow,
	"medium":    PriorityMedium,
	"normal":    PriorityMedium,
}

// categoryVocabulary is the closed set of category tokens the original
// bot recognized; everything else lands in "general".
var categoryVocabulary = map[string]string{
	"work":     "work",
	"office":   "work",
	"job":      "work",
	"home":     "home",
	"house":    "home",
	"chores":   "home",
	"personal": "personal",
	"shopping": "shopping",
	"grocery":  "shopping",
	"errand":   "errands",
	"errands":  "errands",
	"health":   "health",
	"fitness":  "health",
	"doctor":   "health",
	"finance":  "finance",
	"money":    "finance",
	"bills":    "finance",
	"family":   "family",
	"school":   "school",
	"study":    "school",
}

var (
	priorityWordPattern   = regexp.MustCompile(`\b(high|urgent|important|critical|top|asap|low|minor|trivial|bottom|medium|normal)\b(?:\s+priority)?`)
	categoryPhrasePattern = regexp.MustCompile(`\bcategory\s+([a-z]+)\b|\b([a-z]+)\s+category\b`)
	categoryWordPattern   = regexp.MustCompile(`\b(work|office|job|home|house|chores|personal|shopping|grocery|errands?|health|fitness|doctor|finance|money|bills|family|school|study)\b`)
)

// NormalizePriority folds an urgency word onto {high, medium, low}.
// Idempotent: feeding an already-normalized value back returns it unchanged.
func NormalizePriority(word string) string {
	if p, ok := priorityVocabulary[strings.ToLower(strings.TrimSpace(word))]; ok {
		return p
	}
	return PriorityMedium
}

// NormalizeCategory folds a category token onto the closed vocabulary,
// defaulting to "general".
func NormalizeCategory(word string) string {
	if c, ok := categoryVocabulary[strings.ToLower(strings.TrimSpace(word))]; ok {
		return c
	}
	return DefaultCategory
}

// ExtractPriority scans text for an urgency word. The second return
// reports whether anything matched; the first is always a valid priority.
func ExtractPriority(text string) (string, bool) {
	m := priorityWordPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return PriorityMedium, false
	}
	return NormalizePriority(m[1]), true
}

// ExtractCategory scans text for a category mention, either through an
// explicit "category X" / "X category" phrase or a bare vocabulary word.
func ExtractCategory(text string) (string, bool) {
	lower := strings.ToLower(text)
	if m := categoryPhrasePattern.FindStringSubmatch(lower); m != nil {
		token := m[1]
		if token == "" {
			token = m[2]
		}
		if c, ok := categoryVocabulary[token]; ok {
			return c, true
		}
	}
	if m := categoryWordPattern.FindStringSubmatch(lower); m != nil {
		return NormalizeCategory(m[1]), true
	}
	return DefaultCategory, false
}
