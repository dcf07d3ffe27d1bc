package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStubSummarizer(t *testing.T) {
	_, err := StubSummarizer{}.Summarize(context.Background(), "anything")
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Summarize() error = %v, want ErrNotImplemented", err)
	}
	if err.Error() != "not implemented" {
		t.Errorf("Summarize() error = %q", err)
	}
}

func TestFormatSummary(t *testing.T) {
	long := strings.Repeat("x", 250)
	s := FormatSummary(long)
	if s.Short != strings.Repeat("x", 200)+"..." {
		t.Errorf("Short has %d characters, want 200 plus ellipsis", len(s.Short))
	}
	if s.Full != long {
		t.Error("Full changed")
	}

	s = FormatSummary("Overview.\n- one\n* two\n• three\n-\nnot a point")
	if s.Short != s.Full {
		t.Errorf("short summary truncated: %q", s.Short)
	}
	want := []string{"one", "two", "three"}
	if strings.Join(s.KeyPoints, "|") != strings.Join(want, "|") {
		t.Errorf("KeyPoints = %v, want %v", s.KeyPoints, want)
	}
}
