package main

import (
	"errors"
	"time"
)

// Source identifies how a transcript was acquired
type Source string

const (
	SourceAPI              Source = "api"
	SourceDOM              Source = "dom"
	SourceUIAutomation     Source = "ui-automation"
	SourceIframeAutomation Source = "iframe-automation"
)

// TranscriptResult is the outcome of one extraction attempt
type TranscriptResult struct {
	VideoID    string    `json:"videoId"`
	Transcript string    `json:"transcript"`
	Timestamp  time.Time `json:"timestamp"`
	Source     Source    `json:"source"`
	Language   string    `json:"language,omitempty"`
}

// Strategy selects which acquisition path the fetcher prefers
type Strategy string

const (
	StrategyDOM Strategy = "dom"
	StrategyAPI Strategy = "api"
)

var (
	// ErrTargetNotFound means a required control or container never appeared.
	ErrTargetNotFound = errors.New("target not found")
	// ErrEmptyTranscript means the extracted text was below the minimum length.
	ErrEmptyTranscript = errors.New("transcript empty or too short")
	// ErrTimeout covers both the wall-clock limit and an exhausted step budget.
	ErrTimeout = errors.New("timed out")
	// ErrNotImplemented is returned by the summarizer stub.
	ErrNotImplemented = errors.New("not implemented")
)
