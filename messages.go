package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MessageType names a request sent to the processor
type MessageType string

const (
	MessageExtractTranscript MessageType = "EXTRACT_TRANSCRIPT"
	MessageSummarizeVideo    MessageType = "SUMMARIZE_VIDEO"
)

// Message is a request from another process. Either VideoID or URL identifies the video.
type Message struct {
	Type    MessageType `json:"type"`
	VideoID string      `json:"videoId,omitempty"`
	URL     string      `json:"url,omitempty"`
}

// Response answers a Message
type Response struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher routes messages to the processor
type Dispatcher struct {
	processor *VideoProcessor
}

// NewDispatcher creates a dispatcher for processor
func NewDispatcher(processor *VideoProcessor) *Dispatcher {
	return &Dispatcher{processor: processor}
}

// Handle answers msg. Failures, including panics, become unsuccessful responses.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("✗ message %s: recovered from %v", msg.Type, r)
			resp = Response{Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	videoID := msg.VideoID
	if videoID == "" && msg.URL != "" {
		id, err := extractVideoID(msg.URL)
		if err != nil {
			return Response{Error: err.Error()}
		}
		videoID = id
	}

	switch msg.Type {
	case MessageExtractTranscript:
		if videoID == "" {
			return Response{Error: "no video ID"}
		}
		result, err := d.processor.ExtractTranscript(ctx, videoID)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Success: true, Result: result}

	case MessageSummarizeVideo:
		if videoID == "" {
			return Response{Error: "no video ID"}
		}
		result, err := d.processor.SummarizeVideo(ctx, videoID)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Success: true, Result: result}
	}

	return Response{Error: fmt.Sprintf("unknown message type %q", msg.Type)}
}

// NewRouter exposes the dispatcher over HTTP
func NewRouter(d *Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/messages", d.serveMessage)
	r.Get("/transcripts/last", d.serveLastTranscript)
	return r
}

func (d *Dispatcher) serveMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("decoding message: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, d.Handle(r.Context(), msg))
}

func (d *Dispatcher) serveLastTranscript(w http.ResponseWriter, _ *http.Request) {
	result, ok := d.processor.LastResult()
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{Error: "no transcript extracted yet"})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debugLog("writing response: %v", err)
	}
}
