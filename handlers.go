package main

import (
	"context"
	"fmt"
	"log"
)

// TranscriptRequest identifies the transcript wanted and how to prefer getting it
type TranscriptRequest struct {
	VideoID  string
	Strategy Strategy
}

// TranscriptHandler is one way of acquiring a transcript
type TranscriptHandler interface {
	CanHandle(req TranscriptRequest) bool
	Handle(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error)
}

var debugEnabled bool

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// CaptionAPIHandler downloads captions through the Data API
type CaptionAPIHandler struct {
	client *CaptionClient
}

func (h *CaptionAPIHandler) CanHandle(req TranscriptRequest) bool {
	return req.Strategy == StrategyAPI && h.client.Configured()
}

func (h *CaptionAPIHandler) Handle(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	result, err := h.client.Fetch(ctx, req.VideoID)
	if err != nil {
		return nil, fmt.Errorf("caption API: %w", err)
	}
	return result, nil
}

// CurrentPageHandler runs the workflow on the page already showing the video
type CurrentPageHandler struct {
	page     *Page
	settings WorkflowSettings
}

func (h *CurrentPageHandler) CanHandle(req TranscriptRequest) bool {
	if h.page == nil {
		return false
	}
	id, ok := ParseVideoID(h.page.URL())
	return ok && id == req.VideoID
}

func (h *CurrentPageHandler) Handle(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	return NewWorkflow(h.page, h.settings).Run(ctx, req.VideoID)
}

// BackgroundPageHandler loads the video's watch page on its own and runs the
// workflow there. It handles every request that reaches it.
type BackgroundPageHandler struct {
	loader   *PageLoader
	settings WorkflowSettings
}

func (h *BackgroundPageHandler) CanHandle(TranscriptRequest) bool {
	return h.loader != nil
}

func (h *BackgroundPageHandler) Handle(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	page, err := h.loader.Load(ctx, WatchURL(req.VideoID))
	if err != nil {
		return nil, fmt.Errorf("loading watch page: %w", err)
	}
	result, err := NewWorkflow(page, h.settings).Run(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}
	result.Source = SourceIframeAutomation
	return result, nil
}
