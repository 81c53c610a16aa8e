package store

import (
	"testing"
	"time"
)

func TestParseQuickAddExtractsMetadata(t *testing.T) {
	d := ParseQuickAdd("Buy milk #groceries !high @tomorrow", refNow)
	if d.Title != "Buy milk" {
		t.Fatalf("expected title %q, got %q", "Buy milk", d.Title)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "groceries" {
		t.Fatalf("unexpected tags: %#v", d.Tags)
	}
	if d.Priority != PriorityHigh {
		t.Fatalf("expected high priority, got %q", d.Priority)
	}
	if d.DueAt == nil || !d.DueAt.Equal(day(2026, 10, 20)) {
		t.Fatalf("expected due tomorrow, got %v", d.DueAt)
	}
}

func TestParseQuickAddMultiWordDates(t *testing.T) {
	d := ParseQuickAdd("Call mom @in 3 days +family", refNow)
	if d.Title != "Call mom" {
		t.Fatalf("unexpected title %q", d.Title)
	}
	if d.DueAt == nil || !d.DueAt.Equal(day(2026, 10, 22)) {
		t.Fatalf("expected due in 3 days, got %v", d.DueAt)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "family" {
		t.Fatalf("unexpected tags: %#v", d.Tags)
	}

	d = ParseQuickAdd("Plan trip due:next friday", refNow)
	if d.Title != "Plan trip" || d.DueAt == nil || !d.DueAt.Equal(day(2026, 10, 23)) {
		t.Fatalf("unexpected draft: %+v", d)
	}
}

func TestParseQuickAddKeepsUnparsedTokens(t *testing.T) {
	d := ParseQuickAdd("Email bob@example.com about @nowhere !soon #", refNow)
	want := "Email bob@example.com about @nowhere !soon #"
	if d.Title != want {
		t.Fatalf("expected title %q, got %q", want, d.Title)
	}
	if d.DueAt != nil || d.Priority != PriorityNone || len(d.Tags) != 0 {
		t.Fatalf("expected no metadata, got %+v", d)
	}
}

func TestParseQuickAddDuplicateTagsKept(t *testing.T) {
	d := ParseQuickAdd("Pay rent #home #Home", time.Now())
	if len(d.Tags) != 2 {
		t.Fatalf("expected tags to be kept as typed, got %#v", d.Tags)
	}
}
