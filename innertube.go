package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// getTranscriptRE extracts the continuation token a watch page embeds for its transcript panel.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(body []byte) string {
	m := getTranscriptRE.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	// The params value is URL-encoded in page JSON; the endpoint wants it raw.
	if decoded, err := url.QueryUnescape(string(m[1])); err == nil {
		return decoded
	}
	return string(m[1])
}

// TranscriptSegment is one timed line of a transcript panel
type TranscriptSegment struct {
	Start string
	Text  string
}

type getTranscriptResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *struct {
											StartTimeText struct {
												SimpleText string `json:"simpleText"`
											} `json:"startTimeText"`
											Snippet struct {
												Runs []struct {
													Text string `json:"text"`
												} `json:"runs"`
											} `json:"snippet"`
										} `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

// InnertubeClient fetches transcript panels the way the watch page does
type InnertubeClient struct {
	BaseURL       string
	ClientVersion string
	UserAgent     string
	HTTPClient    *http.Client
}

// GetTranscript loads the segments behind a transcript panel token
func (c *InnertubeClient) GetTranscript(ctx context.Context, params string) ([]TranscriptSegment, error) {
	visitorData := generateVisitorData()
	payload := map[string]any{
		"params": params,
		"context": map[string]any{
			"client": map[string]string{
				"clientName":    "WEB",
				"clientVersion": c.ClientVersion,
				"visitorData":   visitorData,
				"hl":            "en",
				"gl":            "US",
			},
		},
	}

	data, err := c.post(ctx, "/get_transcript", payload, visitorData)
	if err != nil {
		return nil, fmt.Errorf("get_transcript: %w", err)
	}

	var resp getTranscriptResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding transcript panel: %w", err)
	}

	var segments []TranscriptSegment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		list := action.UpdateEngagementPanelAction.Content.TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range list {
			if seg.TranscriptSegmentRenderer == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range seg.TranscriptSegmentRenderer.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			segments = append(segments, TranscriptSegment{
				Start: seg.TranscriptSegmentRenderer.StartTimeText.SimpleText,
				Text:  sb.String(),
			})
		}
	}
	return segments, nil
}

func (c *InnertubeClient) post(ctx context.Context, path string, payload any, visitorData string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + path + "?prettyPrint=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("X-Youtube-Client-Name", "1")
	req.Header.Set("X-Youtube-Client-Version", c.ClientVersion)
	req.Header.Set("X-Goog-Visitor-Id", visitorData)
	req.Header.Set("Origin", "https://www.youtube.com")
	req.Header.Set("Referer", "https://www.youtube.com/")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	debugLog("innertube response: status=%d path=%s", resp.StatusCode, path)

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: endpoint}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 3*1024*1024))
}

// generateVisitorData creates a random 11-char visitor ID for Innertube requests.
func generateVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))] //nolint:gosec // non-cryptographic use
	}
	return string(b)
}
