package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// Mock handler for testing
type mockHandler struct {
	canHandleResult bool
	handleResult    *TranscriptResult
	handleError     error
	requests        []TranscriptRequest
}

func (m *mockHandler) CanHandle(req TranscriptRequest) bool {
	return m.canHandleResult
}

func (m *mockHandler) Handle(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	m.requests = append(m.requests, req)
	return m.handleResult, m.handleError
}

func TestNewTranscriptFetcher(t *testing.T) {
	settings := defaultSettings()

	fetcher := NewTranscriptFetcher(settings, nil)

	if fetcher == nil {
		t.Fatal("NewTranscriptFetcher() returned nil")
	}

	expectedHandlerCount := 3 // caption API, current page, background page
	if len(fetcher.handlers) != expectedHandlerCount {
		t.Errorf("NewTranscriptFetcher() registered %d handlers, want %d",
			len(fetcher.handlers), expectedHandlerCount)
	}

	if fetcher.strategy != StrategyDOM {
		t.Errorf("strategy = %q, want %q", fetcher.strategy, StrategyDOM)
	}
}

func TestAddHandler(t *testing.T) {
	fetcher := &TranscriptFetcher{}
	initialCount := len(fetcher.handlers)

	mockH := &mockHandler{canHandleResult: true}
	fetcher.AddHandler(mockH)

	if len(fetcher.handlers) != initialCount+1 {
		t.Errorf("AddHandler() handlers count = %d, want %d",
			len(fetcher.handlers), initialCount+1)
	}

	lastHandler := fetcher.handlers[len(fetcher.handlers)-1]
	if lastHandler != mockH {
		t.Error("AddHandler() did not add handler to the end of the chain")
	}
}

func TestFetchHandlerChain(t *testing.T) {
	handler1 := &mockHandler{
		canHandleResult: false, // This handler won't handle
	}

	handler2 := &mockHandler{
		canHandleResult: true, // This handler will handle
		handleResult:    &TranscriptResult{VideoID: "abc123", Transcript: "handler2 result"},
	}

	handler3 := &mockHandler{
		canHandleResult: true, // This handler would handle but won't be reached
		handleResult:    &TranscriptResult{VideoID: "abc123", Transcript: "handler3 result"},
	}

	fetcher := &TranscriptFetcher{
		strategy: StrategyAPI,
		handlers: []TranscriptHandler{handler1, handler2, handler3},
	}

	result, err := fetcher.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if result.Transcript != "handler2 result" {
		t.Errorf("Fetch() result.Transcript = %q, want %q", result.Transcript, "handler2 result")
	}

	if len(handler2.requests) != 1 || handler2.requests[0].Strategy != StrategyAPI {
		t.Errorf("handler2 requests = %+v, want one with strategy api", handler2.requests)
	}
	if len(handler3.requests) != 0 {
		t.Error("Wrong handler was used - should use first matching handler")
	}
}

func TestFetchHandlerError(t *testing.T) {
	fetcher := &TranscriptFetcher{
		handlers: []TranscriptHandler{&mockHandler{canHandleResult: true, handleError: ErrEmptyTranscript}},
	}

	_, err := fetcher.Fetch(context.Background(), "abc123")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("Fetch() error = %v, want ErrEmptyTranscript", err)
	}
}

func TestFetchNoMatchingHandler(t *testing.T) {
	fetcher := &TranscriptFetcher{
		handlers: []TranscriptHandler{&mockHandler{canHandleResult: false}},
	}

	_, err := fetcher.Fetch(context.Background(), "abc123")
	if err == nil {
		t.Fatal("Fetch() expected error when no handler matches")
	}
	if !strings.Contains(err.Error(), "no handler found") {
		t.Errorf("Fetch() error = %q, want 'no handler found'", err)
	}

	if _, err := fetcher.Fetch(context.Background(), ""); err == nil {
		t.Error("Fetch() with empty video ID should fail")
	}
}
