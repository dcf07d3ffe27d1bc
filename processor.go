package main

import (
	"context"
	"io"
	"log"
	"sync"
)

// transcriptSource is what the processor needs from a fetcher
type transcriptSource interface {
	Fetch(ctx context.Context, videoID string) (*TranscriptResult, error)
}

// SummaryResult is the outcome of summarizing a video. When the summarizer
// fails the transcript is still returned and SummaryError is set.
type SummaryResult struct {
	Transcript   *TranscriptResult `json:"transcript"`
	Summary      *Summary          `json:"summary,omitempty"`
	SummaryError string            `json:"summaryError,omitempty"`
}

// VideoProcessor handles the extract and summarize requests
type VideoProcessor struct {
	fetcher    transcriptSource
	summarizer Summarizer
	presenter  Presenter

	mu   sync.Mutex
	last *TranscriptResult
}

// NewVideoProcessor creates a processor. A nil presenter discards overlays.
func NewVideoProcessor(fetcher transcriptSource, summarizer Summarizer, presenter Presenter) *VideoProcessor {
	if presenter == nil {
		presenter = newTextPresenter(io.Discard, OverlaySettings{})
	}
	if summarizer == nil {
		summarizer = StubSummarizer{}
	}
	return &VideoProcessor{
		fetcher:    fetcher,
		summarizer: summarizer,
		presenter:  presenter,
	}
}

// ExtractTranscript acquires a transcript and shows it
func (vp *VideoProcessor) ExtractTranscript(ctx context.Context, videoID string) (*TranscriptResult, error) {
	result, err := vp.fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	vp.presenter.ShowResult(ShowResultMsg{
		Title:     "Transcript Extracted Successfully",
		Content:   result.Transcript,
		VideoID:   result.VideoID,
		Timestamp: result.Timestamp,
	})
	return result, nil
}

// SummarizeVideo acquires a transcript and summarizes it. A summarizer
// failure falls back to showing the transcript.
func (vp *VideoProcessor) SummarizeVideo(ctx context.Context, videoID string) (*SummaryResult, error) {
	result, err := vp.fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	vp.presenter.ShowLoading("Generating AI Summary...")

	text, err := vp.summarizer.Summarize(ctx, result.Transcript)
	if err != nil {
		log.Printf("✗ Summarization failed for %s: %v", videoID, err)
		vp.presenter.ShowResult(ShowResultMsg{
			Title:     "Transcript (Summarization Failed)",
			Content:   result.Transcript,
			VideoID:   result.VideoID,
			Timestamp: result.Timestamp,
			Error:     err.Error(),
		})
		return &SummaryResult{Transcript: result, SummaryError: err.Error()}, nil
	}

	summary := FormatSummary(text)
	log.Printf("✓ Summary generated for %s (%d key points)", videoID, len(summary.KeyPoints))
	vp.presenter.ShowResult(ShowResultMsg{
		Title:     "Video Summary",
		Content:   summary.Full,
		VideoID:   result.VideoID,
		Timestamp: result.Timestamp,
	})
	return &SummaryResult{Transcript: result, Summary: &summary}, nil
}

// LastResult returns the most recent successful extraction
func (vp *VideoProcessor) LastResult() (TranscriptResult, bool) {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	if vp.last == nil {
		return TranscriptResult{}, false
	}
	return *vp.last, true
}

func (vp *VideoProcessor) fetch(ctx context.Context, videoID string) (*TranscriptResult, error) {
	vp.presenter.ShowLoading("")
	log.Printf("→ Extracting transcript for %s", videoID)

	result, err := vp.fetcher.Fetch(ctx, videoID)
	if err != nil {
		log.Printf("✗ Failed %s: %v", videoID, err)
		vp.presenter.ShowError("Failed to extract transcript: " + err.Error())
		return nil, err
	}

	vp.mu.Lock()
	stored := *result
	vp.last = &stored
	vp.mu.Unlock()

	log.Printf("✓ Extracted %s: %d characters via %s", videoID, len([]rune(result.Transcript)), result.Source)
	return result, nil
}
