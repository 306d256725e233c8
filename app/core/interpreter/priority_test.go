package interpreter

import "testing"

func TestNormalizePriority(t *testing.T) {
	cases := map[string]string{
		"urgent":    PriorityHigh,
		"IMPORTANT": PriorityHigh,
		"asap":      PriorityHigh,
		"critical":  PriorityHigh,
		"low":       PriorityLow,
		"trivial":   PriorityLow,
		"whenever":  PriorityLow,
		"normal":    PriorityMedium,
		"medium":    PriorityMedium,
		"":          PriorityMedium,
		"banana":    PriorityMedium,
	}
	for in, want := range cases {
		if got := NormalizePriority(in); got != want {
			t.Errorf("NormalizePriority(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalizePriorityIdempotent(t *testing.T) {
	for _, word := range []string{"urgent", "low", "normal", "banana"} {
		once := NormalizePriority(word)
		if twice := NormalizePriority(once); twice != once {
			t.Errorf("NormalizePriority not idempotent for %q: %s then %s", word, once, twice)
		}
	}
}

func TestExtractPriority(t *testing.T) {
	p, ok := ExtractPriority("this is urgent, do it now")
	if !ok || p != PriorityHigh {
		t.Fatalf("expected high/true, got %s/%v", p, ok)
	}

	p, ok = ExtractPriority("low priority chore")
	if !ok || p != PriorityLow {
		t.Fatalf("expected low/true, got %s/%v", p, ok)
	}

	p, ok = ExtractPriority("water the plants")
	if ok {
		t.Fatal("expected no priority match")
	}
	if p != PriorityMedium {
		t.Fatalf("unmatched extraction must still return a valid priority, got %s", p)
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"work":     "work",
		"office":   "work",
		"chores":   "home",
		"grocery":  "shopping",
		"doctor":   "health",
		"bills":    "finance",
		"study":    "school",
		"":         DefaultCategory,
		"whatever": DefaultCategory,
	}
	for in, want := range cases {
		if got := NormalizeCategory(in); got != want {
			t.Errorf("NormalizeCategory(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestExtractCategory(t *testing.T) {
	c, ok := ExtractCategory("add this to the work category")
	if !ok || c != "work" {
		t.Fatalf("expected work/true, got %s/%v", c, ok)
	}

	c, ok = ExtractCategory("category finance please")
	if !ok || c != "finance" {
		t.Fatalf("expected finance/true, got %s/%v", c, ok)
	}

	c, ok = ExtractCategory("book a doctor appointment")
	if !ok || c != "health" {
		t.Fatalf("expected health/true, got %s/%v", c, ok)
	}

	c, ok = ExtractCategory("buy some milk")
	if ok {
		t.Fatal("expected no category match")
	}
	if c != DefaultCategory {
		t.Fatalf("unmatched extraction must return the default category, got %s", c)
	}
}
