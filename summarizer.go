package main

import (
	"context"
	"strings"
	"unicode/utf8"
)

const shortSummaryLength = 200

// Summarizer turns a transcript into a summary
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// StubSummarizer is the placeholder until a model backend is chosen
type StubSummarizer struct{}

func (StubSummarizer) Summarize(context.Context, string) (string, error) {
	return "", ErrNotImplemented
}

// Summary is a summary split for display
type Summary struct {
	Short     string   `json:"short"`
	Full      string   `json:"full"`
	KeyPoints []string `json:"keyPoints"`
}

// FormatSummary derives the short form and key points of summary
func FormatSummary(summary string) Summary {
	short := summary
	if utf8.RuneCountInString(summary) > shortSummaryLength {
		short = string([]rune(summary)[:shortSummaryLength]) + "..."
	}

	var points []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		for _, bullet := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(line, bullet) {
				if point := strings.TrimSpace(strings.TrimPrefix(line, bullet)); point != "" {
					points = append(points, point)
				}
				break
			}
		}
	}

	return Summary{Short: short, Full: summary, KeyPoints: points}
}
