package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

//go:embed config/page.html.tmpl
var pageTemplateText string

var pageTemplate = template.Must(template.New("page").Parse(pageTemplateText))

var videoIDJSONRe = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)

const (
	transcriptPanelSelector  = `[data-target-id="engagement-panel-searchable-transcript"]`
	showTranscriptSelector   = `button[aria-label="Show transcript"]`
	descriptionExpandControl = "#expand"
)

// pageModel is what a fetched YouTube page contributes to its headless rendering
type pageModel struct {
	VideoID       string
	Title         string
	Description   string
	HasTranscript bool
	Related       []string
}

// PageLoader fetches YouTube pages and renders the parts of them the
// workflow and the watcher interact with.
type PageLoader struct {
	client    *http.Client
	userAgent string
	innertube *InnertubeClient
}

// NewPageLoader creates a loader from settings
func NewPageLoader(s *Settings) *PageLoader {
	client := &http.Client{Timeout: 30 * time.Second}
	return &PageLoader{
		client:    client,
		userAgent: s.UserAgent,
		innertube: &InnertubeClient{
			BaseURL:       s.Innertube.BaseURL,
			ClientVersion: s.Innertube.ClientVersion,
			UserAgent:     s.UserAgent,
			HTTPClient:    client,
		},
	}
}

// Load fetches pageURL and returns it as a live page
func (l *PageLoader) Load(ctx context.Context, pageURL string) (*Page, error) {
	markup, token, err := l.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	page, err := NewPage(pageURL, markup)
	if err != nil {
		return nil, err
	}
	l.bind(page, token)
	return page, nil
}

// Navigate loads pageURL into an existing page, replacing its document.
// Reactions bound by others, such as an Injector, stay in place.
func (l *PageLoader) Navigate(ctx context.Context, page *Page, pageURL string) error {
	markup, token, err := l.fetch(ctx, pageURL)
	if err != nil {
		return err
	}
	page.unbind(descriptionExpandControl, showTranscriptSelector)
	if err := page.Navigate(pageURL, markup); err != nil {
		return err
	}
	l.bind(page, token)
	return nil
}

func (l *PageLoader) fetch(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", &HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", pageURL, err)
	}

	return hydrate(pageURL, body)
}

// hydrate renders the headless markup for a fetched page and returns it
// together with the transcript panel token, if the page has one.
func hydrate(pageURL string, body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	model := pageModel{
		Title:       doc.Find(`meta[name="title"]`).AttrOr("content", strings.TrimSpace(doc.Find("title").Text())),
		Description: doc.Find(`meta[name="description"]`).AttrOr("content", ""),
	}

	token := ""
	if id, ok := ParseVideoID(pageURL); ok && bytes.Contains(body, []byte("ytInitialPlayerResponse")) {
		model.VideoID = id
		token = extractTranscriptToken(body)
		model.HasTranscript = token != ""
	}

	seen := map[string]bool{model.VideoID: true}
	for _, m := range videoIDJSONRe.FindAllSubmatch(body, -1) {
		id := string(m[1])
		if !seen[id] {
			seen[id] = true
			model.Related = append(model.Related, id)
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, model); err != nil {
		return "", "", fmt.Errorf("rendering page: %w", err)
	}

	debugLog("hydrated %s: video=%q transcript=%v cards=%d", pageURL, model.VideoID, model.HasTranscript, len(model.Related))
	return buf.String(), token, nil
}

// bind attaches the page's reactions to the controls the workflow clicks
func (l *PageLoader) bind(page *Page, token string) {
	page.OnClick(descriptionExpandControl, revealDescription)
	if token != "" {
		page.OnClick(showTranscriptSelector, l.openTranscript(token))
	}
}

func revealDescription(_ context.Context, p *Page, _ *goquery.Selection) error {
	p.Mutate(func(root *goquery.Selection) []*goquery.Selection {
		structured := root.Find("#structured-description")
		structured.RemoveAttr("hidden")
		return []*goquery.Selection{structured}
	})
	return nil
}

func (l *PageLoader) openTranscript(token string) ClickFunc {
	return func(ctx context.Context, p *Page, _ *goquery.Selection) error {
		segments, err := l.innertube.GetTranscript(ctx, token)
		if err != nil {
			return err
		}

		p.Mutate(func(root *goquery.Selection) []*goquery.Selection {
			panel := root.Find(transcriptPanelSelector)
			panel.RemoveAttr("hidden")
			container := panel.Find("#transcript-container")
			container.AppendHtml(renderSegments(segments))
			return []*goquery.Selection{container}
		})
		return nil
	}
}

func renderSegments(segments []TranscriptSegment) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(`<ytd-transcript-segment-renderer><div class="segment-timestamp">`)
		sb.WriteString(html.EscapeString(seg.Start))
		sb.WriteString(`</div><yt-formatted-string class="segment-text">`)
		sb.WriteString(html.EscapeString(seg.Text))
		sb.WriteString(`</yt-formatted-string></ytd-transcript-segment-renderer>`)
	}
	return sb.String()
}
