package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, string) (*TranscriptResult, error) {
	panic("unexpected markup")
}

func TestDispatcherHandle(t *testing.T) {
	d := NewDispatcher(NewVideoProcessor(fakeFetcher{result: testTranscript()}, nil, nil))

	tests := []struct {
		name    string
		msg     Message
		success bool
		errText string
	}{
		{"extract by id", Message{Type: MessageExtractTranscript, VideoID: "abc123"}, true, ""},
		{"extract by url", Message{Type: MessageExtractTranscript, URL: "https://youtu.be/abc123"}, true, ""},
		{"summarize falls back", Message{Type: MessageSummarizeVideo, VideoID: "abc123"}, true, ""},
		{"missing id", Message{Type: MessageExtractTranscript}, false, "no video ID"},
		{"bad url", Message{Type: MessageSummarizeVideo, URL: "https://example.com/watch?v=x"}, false, "not a YouTube URL"},
		{"unknown type", Message{Type: "PING", VideoID: "abc123"}, false, `unknown message type "PING"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Handle(context.Background(), tt.msg)
			assert.Equal(t, tt.success, resp.Success)
			if tt.errText != "" {
				assert.Contains(t, resp.Error, tt.errText)
			}
		})
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(NewVideoProcessor(panickingFetcher{}, nil, nil))

	resp := d.Handle(context.Background(), Message{Type: MessageExtractTranscript, VideoID: "abc123"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unexpected markup")
}

func TestRouter(t *testing.T) {
	processor := NewVideoProcessor(fakeFetcher{result: testTranscript()}, nil, nil)
	server := httptest.NewServer(NewRouter(NewDispatcher(processor)))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/transcripts/last")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(server.URL+"/messages", "application/json",
		strings.NewReader(`{"type":"EXTRACT_TRANSCRIPT","videoId":"abc123"}`))
	require.NoError(t, err)
	var body struct {
		Success bool              `json:"success"`
		Result  *TranscriptResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.True(t, body.Success)
	require.NotNil(t, body.Result)
	assert.Equal(t, "abc123", body.Result.VideoID)
	assert.Equal(t, SourceDOM, body.Result.Source)

	resp, err = http.Get(server.URL + "/transcripts/last")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterRejectsMalformedMessage(t *testing.T) {
	router := NewRouter(NewDispatcher(NewVideoProcessor(fakeFetcher{result: testTranscript()}, nil, nil)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(`{not json`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "decoding message")
}
