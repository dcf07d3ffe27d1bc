package main

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

var (
	videoIDParamRe = regexp.MustCompile(`[?&]v=([^&#]+)`)
	validURLRe     = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)`)
)

// ParseVideoID returns the value of the first v= query parameter, up to the
// next & or the start of a # fragment. Short youtu.be links are accepted as
// well and yield their first path segment. The host is never validated, so
// any URL carrying v= parses.
func ParseVideoID(rawURL string) (string, bool) {
	if m := videoIDParamRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], true
	}
	if i := strings.Index(rawURL, "youtu.be/"); i >= 0 {
		id := rawURL[i+len("youtu.be/"):]
		if j := strings.IndexAny(id, "/?&#"); j >= 0 {
			id = id[:j]
		}
		if id != "" {
			return id, true
		}
	}
	return "", false
}

// IsValidYouTubeURL reports whether the URL points at a single video
func IsValidYouTubeURL(rawURL string) bool {
	return validURLRe.MatchString(rawURL)
}

// WatchURL builds the canonical watch page URL for a video
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

func extractVideoID(videoURL string) (string, error) {
	parsedURL, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}

	// Validate YouTube domain
	if !strings.Contains(parsedURL.Host, "youtube.com") && !strings.Contains(parsedURL.Host, "youtu.be") {
		return "", errors.New("not a YouTube URL")
	}

	videoID, ok := ParseVideoID(videoURL)
	if !ok {
		return "", fmt.Errorf("no video ID found in URL")
	}
	return videoID, nil
}

// CaptionTrack is one entry of the Data API captions list
type CaptionTrack struct {
	ID      string `json:"id"`
	Snippet struct {
		VideoID   string `json:"videoId"`
		Language  string `json:"language"`
		TrackKind string `json:"trackKind"`
		Name      string `json:"name"`
	} `json:"snippet"`
}

type captionListResponse struct {
	Items []CaptionTrack `json:"items"`
}

// CaptionClient talks to the YouTube Data API captions endpoints
type CaptionClient struct {
	BaseURL     string
	APIKey      string
	AccessToken string
	Format      string
	Retries     int
	HTTPClient  *http.Client
	limiter     *rate.Limiter
}

// NewCaptionClient creates a client from the captions settings
func NewCaptionClient(s CaptionSettings) *CaptionClient {
	rps := s.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	return &CaptionClient{
		BaseURL:     strings.TrimRight(s.APIBase, "/"),
		APIKey:      s.APIKey,
		AccessToken: s.AccessToken,
		Format:      s.Format,
		Retries:     s.Retries,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Configured reports whether any credential is present
func (c *CaptionClient) Configured() bool {
	return c.APIKey != "" || c.AccessToken != ""
}

// Fetch lists the caption tracks for a video, downloads the best one and
// returns its cleaned text.
func (c *CaptionClient) Fetch(ctx context.Context, videoID string) (*TranscriptResult, error) {
	tracks, err := c.ListTracks(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("listing captions: %w", err)
	}
	if len(tracks) == 0 {
		return nil, errors.New("no captions available for this video")
	}

	track := pickCaptionTrack(tracks)
	debugLog("selected caption track %s (lang=%s kind=%s)", track.ID, track.Snippet.Language, track.Snippet.TrackKind)

	raw, err := c.Download(ctx, track.ID)
	if err != nil {
		return nil, fmt.Errorf("downloading captions: %w", err)
	}

	transcript := parseCaptionXML(raw)
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	return &TranscriptResult{
		VideoID:    videoID,
		Transcript: transcript,
		Timestamp:  time.Now().UTC(),
		Source:     SourceAPI,
		Language:   track.Snippet.Language,
	}, nil
}

// ListTracks returns every caption track of a video
func (c *CaptionClient) ListTracks(ctx context.Context, videoID string) ([]CaptionTrack, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("videoId", videoID)

	body, err := c.getWithRetries(ctx, "/captions", q)
	if err != nil {
		return nil, err
	}

	var list captionListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding captions list: %w", err)
	}
	return list.Items, nil
}

// Download fetches the content of one caption track
func (c *CaptionClient) Download(ctx context.Context, trackID string) (string, error) {
	format := c.Format
	if format == "" {
		format = "srv1"
	}
	q := url.Values{}
	q.Set("tfmt", format)

	body, err := c.getWithRetries(ctx, "/captions/"+url.PathEscape(trackID), q)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *CaptionClient) getWithRetries(ctx context.Context, path string, q url.Values) ([]byte, error) {
	retries := c.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		body, err := c.get(ctx, path, q)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
			return nil, err
		}
		if i < retries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}
	if retries == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("exceeded max retries after %d attempts: %w", retries, lastErr)
}

func (c *CaptionClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if c.APIKey != "" {
		q.Set("key", c.APIKey)
	}
	endpoint := c.BaseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	debugLog("caption API response: status=%d path=%s", resp.StatusCode, path)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: c.BaseURL + path}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

// pickCaptionTrack prefers auto-generated English, then any English, then the first track.
func pickCaptionTrack(tracks []CaptionTrack) CaptionTrack {
	for _, t := range tracks {
		if t.Snippet.Language == "en" && t.Snippet.TrackKind == "asr" {
			return t
		}
	}
	for _, t := range tracks {
		if t.Snippet.Language == "en" {
			return t
		}
	}
	return tracks[0]
}

type timedText struct {
	Lines []struct {
		Text string `xml:",innerxml"`
	} `xml:"text"`
}

var xmlTagRe = regexp.MustCompile(`<[^>]*>`)

// parseCaptionXML turns a srv1 caption document into plain text. Documents
// that fail to parse are stripped of tags instead.
func parseCaptionXML(raw string) string {
	var tt timedText
	if err := xml.Unmarshal([]byte(raw), &tt); err != nil || len(tt.Lines) == 0 {
		debugLog("caption XML parse failed, falling back to tag stripping: %v", err)
		return collapseWhitespace(xmlTagRe.ReplaceAllString(raw, " "))
	}

	lines := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		if text := cleanCaptionLine(line.Text); text != "" {
			lines = append(lines, text)
		}
	}
	return CleanTranscript(lines)
}
