package interpreter

import "testing"

func TestNormalizeAddDefaults(t *testing.T) {
	cmd := Normalize(IntentAddTask, Slots{}, "add a task", refNow)
	if cmd.Slots.Description != PlaceholderUntitled {
		t.Fatalf("expected %q, got %q", PlaceholderUntitled, cmd.Slots.Description)
	}
	if cmd.Slots.Priority != PriorityMedium {
		t.Fatalf("expected medium priority, got %q", cmd.Slots.Priority)
	}
	if cmd.Slots.Category != DefaultCategory {
		t.Fatalf("expected %q category, got %q", DefaultCategory, cmd.Slots.Category)
	}
	if cmd.RawText != "add a task" {
		t.Fatalf("raw text must be retained, got %q", cmd.RawText)
	}
	if !cmd.ProcessedAt.Equal(refNow) {
		t.Fatalf("expected processing time %v, got %v", refNow, cmd.ProcessedAt)
	}
}

func TestNormalizeKeepsProvidedValues(t *testing.T) {
	in := Slots{Description: "buy milk", Priority: PriorityHigh, Category: "shopping", DueDate: "2026-01-08"}
	cmd := Normalize(IntentAddTask, in, "x", refNow)
	got := cmd.Slots
	if got.Description != in.Description || got.Priority != in.Priority ||
		got.Category != in.Category || got.DueDate != in.DueDate {
		t.Fatalf("provided slots must pass through unchanged: %+v", got)
	}
}

func TestNormalizeListDefaults(t *testing.T) {
	for _, intent := range []Intent{IntentListAll, IntentListPending, IntentListCompleted} {
		cmd := Normalize(intent, Slots{}, "show tasks", refNow)
		if cmd.Slots.SortBy != DefaultSortBy {
			t.Errorf("%s: expected sort by %q, got %q", intent, DefaultSortBy, cmd.Slots.SortBy)
		}
		if cmd.Slots.SortOrder != DefaultSortOrder {
			t.Errorf("%s: expected sort order %q, got %q", intent, DefaultSortOrder, cmd.Slots.SortOrder)
		}
	}
}

func TestNormalizeReferencePlaceholder(t *testing.T) {
	for _, intent := range []Intent{IntentUpdateTask, IntentCompleteTask, IntentDeleteTask} {
		cmd := Normalize(intent, Slots{}, "x", refNow)
		if cmd.Slots.Description != PlaceholderUnspecified {
			t.Errorf("%s: expected %q, got %q", intent, PlaceholderUnspecified, cmd.Slots.Description)
		}
	}

	// an id reference does not need the placeholder
	cmd := Normalize(IntentCompleteTask, Slots{TaskID: "3"}, "x", refNow)
	if cmd.Slots.Description != "" {
		t.Fatalf("id-only reference should not get a placeholder, got %q", cmd.Slots.Description)
	}
}

func TestNormalizeUpdateInitializesUpdates(t *testing.T) {
	cmd := Normalize(IntentUpdateTask, Slots{TaskID: "1"}, "x", refNow)
	if cmd.Slots.Updates == nil {
		t.Fatal("updates map must never be nil for update commands")
	}
}
