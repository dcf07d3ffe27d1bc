package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	result *TranscriptResult
	err    error
}

func (f fakeFetcher) Fetch(_ context.Context, videoID string) (*TranscriptResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.VideoID = videoID
	return &r, nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (s fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return s.summary, s.err
}

// recordingPresenter keeps every overlay request in order
type recordingPresenter struct {
	mu     sync.Mutex
	events []string
	last   ShowResultMsg
}

func (p *recordingPresenter) ShowLoading(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if title == "" {
		title = defaultLoadingTitle
	}
	p.events = append(p.events, "loading:"+title)
}

func (p *recordingPresenter) ShowResult(msg ShowResultMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "result:"+msg.Title)
	p.last = msg
}

func (p *recordingPresenter) ShowError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "error:"+message)
}

func testTranscript() *TranscriptResult {
	return &TranscriptResult{
		Transcript: "a transcript long enough to be worth summarizing for the viewer",
		Timestamp:  time.Now(),
		Source:     SourceDOM,
	}
}

func TestExtractTranscript(t *testing.T) {
	presenter := &recordingPresenter{}
	vp := NewVideoProcessor(fakeFetcher{result: testTranscript()}, nil, presenter)

	_, ok := vp.LastResult()
	assert.False(t, ok, "no result before the first extraction")

	result, err := vp.ExtractTranscript(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.VideoID)

	assert.Equal(t, []string{
		"loading:Loading Video...",
		"result:Transcript Extracted Successfully",
	}, presenter.events)
	assert.Equal(t, result.Transcript, presenter.last.Content)

	last, ok := vp.LastResult()
	require.True(t, ok)
	assert.Equal(t, *result, last)
}

func TestExtractTranscriptFailure(t *testing.T) {
	presenter := &recordingPresenter{}
	vp := NewVideoProcessor(fakeFetcher{err: ErrTargetNotFound}, nil, presenter)

	_, err := vp.ExtractTranscript(context.Background(), "abc123")
	require.ErrorIs(t, err, ErrTargetNotFound)

	assert.Equal(t, []string{
		"loading:Loading Video...",
		"error:Failed to extract transcript: target not found",
	}, presenter.events)

	_, ok := vp.LastResult()
	assert.False(t, ok, "failed extraction must not replace the last result")
}

func TestSummarizeVideoFallsBackToTranscript(t *testing.T) {
	presenter := &recordingPresenter{}
	vp := NewVideoProcessor(fakeFetcher{result: testTranscript()}, StubSummarizer{}, presenter)

	result, err := vp.SummarizeVideo(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Nil(t, result.Summary)
	assert.Equal(t, "not implemented", result.SummaryError)

	assert.Equal(t, []string{
		"loading:Loading Video...",
		"loading:Generating AI Summary...",
		"result:Transcript (Summarization Failed)",
	}, presenter.events)
	assert.Equal(t, result.Transcript.Transcript, presenter.last.Content)
	assert.Equal(t, "not implemented", presenter.last.Error)
}

func TestSummarizeVideo(t *testing.T) {
	presenter := &recordingPresenter{}
	summary := "A short video.\n- first point\n- second point"
	vp := NewVideoProcessor(fakeFetcher{result: testTranscript()}, fakeSummarizer{summary: summary}, presenter)

	result, err := vp.SummarizeVideo(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.Equal(t, []string{"first point", "second point"}, result.Summary.KeyPoints)
	assert.Equal(t, "result:Video Summary", presenter.events[len(presenter.events)-1])
	assert.Equal(t, summary, presenter.last.Content)
}

func TestSummarizeVideoExtractionFailure(t *testing.T) {
	presenter := &recordingPresenter{}
	vp := NewVideoProcessor(fakeFetcher{err: errors.New("boom")}, fakeSummarizer{summary: "unused"}, presenter)

	_, err := vp.SummarizeVideo(context.Background(), "abc123")
	require.Error(t, err)
	assert.Equal(t, "error:Failed to extract transcript: boom", presenter.events[len(presenter.events)-1])
}
