package main

import (
	"context"
	"fmt"
	"log"
)

// TranscriptFetcher picks the first handler able to serve a request
type TranscriptFetcher struct {
	handlers []TranscriptHandler
	strategy Strategy
}

// NewTranscriptFetcher creates a fetcher with the default handlers. page is
// the page currently being viewed and may be nil.
func NewTranscriptFetcher(settings *Settings, page *Page) *TranscriptFetcher {
	f := &TranscriptFetcher{strategy: settings.Strategy}

	captions := NewCaptionClient(settings.Captions)
	if settings.Strategy == StrategyAPI && !captions.Configured() {
		log.Printf("Warning: strategy %q without caption credentials, using page automation", StrategyAPI)
	}

	// Register handlers (most specific first)
	f.AddHandler(&CaptionAPIHandler{client: captions})
	f.AddHandler(&CurrentPageHandler{page: page, settings: settings.Workflow})
	f.AddHandler(&BackgroundPageHandler{loader: NewPageLoader(settings), settings: settings.Workflow}) // fallback

	return f
}

// AddHandler adds a transcript handler to the chain
func (f *TranscriptFetcher) AddHandler(handler TranscriptHandler) {
	f.handlers = append(f.handlers, handler)
}

// Fetch acquires the transcript of videoID using handler chain
func (f *TranscriptFetcher) Fetch(ctx context.Context, videoID string) (*TranscriptResult, error) {
	if videoID == "" {
		return nil, fmt.Errorf("no video ID")
	}

	req := TranscriptRequest{VideoID: videoID, Strategy: f.strategy}
	for _, handler := range f.handlers {
		if handler.CanHandle(req) {
			debugLog("fetching %s with %T", videoID, handler)
			return handler.Handle(ctx, req)
		}
	}

	return nil, fmt.Errorf("no handler found for video %s", videoID)
}
