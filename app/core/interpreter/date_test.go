package interpreter

import (
	"testing"
	"time"
)

// Wednesday, 2026-01-07.
var refNow = time.Date(2026, 1, 7, 15, 30, 0, 0, time.UTC)

func TestResolveDateRelative(t *testing.T) {
	cases := []struct {
		phrase string
		want   string
	}{
		{"today", "2026-01-07"},
		{"tonight", "2026-01-07"},
		{"Tomorrow", "2026-01-08"},
		{"yesterday", "2026-01-06"},
		{"next week", "2026-01-14"},
		{"next month", "2026-02-06"},
		{"next year", "2027-01-07"},
	}
	for _, tc := range cases {
		got, ok := ResolveDate(tc.phrase, refNow)
		if !ok {
			t.Errorf("ResolveDate(%q) failed to resolve", tc.phrase)
			continue
		}
		if FormatDate(got) != tc.want {
			t.Errorf("ResolveDate(%q) = %s, want %s", tc.phrase, FormatDate(got), tc.want)
		}
	}
}

func TestResolveDateWeekday(t *testing.T) {
	cases := []struct {
		phrase string
		want   string
	}{
		{"friday", "2026-01-09"},
		{"next friday", "2026-01-09"},
		{"monday", "2026-01-12"},
		// same weekday as the reference day rolls a full week
		{"wednesday", "2026-01-14"},
		{"next wednesday", "2026-01-14"},
	}
	for _, tc := range cases {
		got, ok := ResolveDate(tc.phrase, refNow)
		if !ok {
			t.Errorf("ResolveDate(%q) failed to resolve", tc.phrase)
			continue
		}
		if FormatDate(got) != tc.want {
			t.Errorf("ResolveDate(%q) = %s, want %s", tc.phrase, FormatDate(got), tc.want)
		}
	}
}

func TestResolveDateNumeric(t *testing.T) {
	cases := []struct {
		phrase string
		want   string
	}{
		{"12/25", "2026-12-25"},
		{"3-15", "2026-03-15"},
		{"3/15/2027", "2027-03-15"},
		{"3/15/24", "2024-03-15"},
		{"01/02/99", "2099-01-02"},
	}
	for _, tc := range cases {
		got, ok := ResolveDate(tc.phrase, refNow)
		if !ok {
			t.Errorf("ResolveDate(%q) failed to resolve", tc.phrase)
			continue
		}
		if FormatDate(got) != tc.want {
			t.Errorf("ResolveDate(%q) = %s, want %s", tc.phrase, FormatDate(got), tc.want)
		}
	}
}

func TestResolveDateRejectsGarbage(t *testing.T) {
	for _, phrase := range []string{"", "   ", "someday", "13/5", "2/30", "0/10", "1/32"} {
		if _, ok := ResolveDate(phrase, refNow); ok {
			t.Errorf("ResolveDate(%q) should not resolve", phrase)
		}
	}
}

func TestFindDate(t *testing.T) {
	d, phrase, ok := FindDate("buy groceries tomorrow after work", refNow)
	if !ok {
		t.Fatal("expected a date")
	}
	if phrase != "tomorrow" {
		t.Fatalf("expected phrase 'tomorrow', got %q", phrase)
	}
	if FormatDate(d) != "2026-01-08" {
		t.Fatalf("expected 2026-01-08, got %s", FormatDate(d))
	}

	if _, _, ok := FindDate("buy groceries after work", refNow); ok {
		t.Fatal("expected no date")
	}
}

func TestParseISODateRoundTrip(t *testing.T) {
	d, ok := ResolveDate("tomorrow", refNow)
	if !ok {
		t.Fatal("resolve failed")
	}
	parsed, err := ParseISODate(FormatDate(d))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !parsed.Equal(time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected round trip value: %v", parsed)
	}

	if _, err := ParseISODate("not-a-date"); err == nil {
		t.Fatal("expected error for invalid input")
	}
}
