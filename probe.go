package main

import "github.com/PuerkitoBio/goquery"

// Control is one alternative way of locating an element on the host page.
type Control struct {
	Selector string
	// AllowHidden accepts matches without layout, for expanders that stay
	// clickable while collapsed.
	AllowHidden bool
}

// The tables below mirror one observed revision of YouTube's markup. They are
// data, not logic: expect them to rot and refresh them from recorded fixtures
// (see cmd/record-fixture).
var (
	expandControls = []Control{
		{Selector: "tp-yt-paper-button#expand", AllowHidden: true},
		{Selector: "#expand", AllowHidden: true},
		{Selector: "tp-yt-paper-button.ytd-text-inline-expander"},
		{Selector: `button[aria-label*="more"]`},
		{Selector: `button[aria-label*="More"]`},
		{Selector: `button[aria-label*="Show more"]`},
		{Selector: ".more-button"},
		{Selector: `tp-yt-paper-button[aria-label*="more"]`},
	}

	transcriptControls = []Control{
		{Selector: `button[aria-label*="transcript"]`},
		{Selector: `button[aria-label*="Transcript"]`},
		{Selector: `yt-formatted-string:contains("Show transcript")`},
		{Selector: `[role="menuitem"]:contains("transcript")`},
		{Selector: ".transcript-button"},
	}

	transcriptContainers = []Control{
		{Selector: "#transcript-container"},
		{Selector: ".transcript-container"},
		{Selector: `[data-target-id="engagement-panel-searchable-transcript"]`},
		{Selector: "ytd-transcript-segment-list-renderer"},
	}

	// watchContainers must exist for the workflow to start at all.
	watchContainers = "ytd-watch-flexy, ytd-watch-metadata, #above-the-fold, #description"

	segmentSelector = `.segment-text, yt-formatted-string.segment-text, [class*="segment-text"]`

	videoCardSelector = "ytd-video-renderer, ytd-rich-item-renderer, ytd-compact-video-renderer"

	videoLinkSelectors = []string{
		"a#thumbnail",
		"a#video-title-link",
		"a.ytd-thumbnail",
		"a.yt-lockup-view-model-wiz__content-image",
		"a.yt-lockup-metadata-view-model-wiz__title",
		`a[href*="/watch"]`,
	}

	metadataSelector = "#metadata, #meta, ytd-video-meta-block, #details"

	// menuButtonSelector matches the three-dots buttons that open a card's dropdown.
	menuButtonSelector = `ytd-menu-renderer button, yt-icon-button button, [aria-label*="More"], ` +
		`[aria-label*="Action menu"], button-view-model button, button[aria-label="More actions"]`

	menuPopups = []Control{
		{Selector: "ytd-menu-popup-renderer"},
		{Selector: "tp-yt-iron-dropdown.ytd-popup-container"},
		{Selector: `tp-yt-iron-dropdown[horizontal-align="auto"]`},
		{Selector: ".ytd-popup-container tp-yt-iron-dropdown"},
	}

	// menuOwnerSelector finds the card a dropdown was opened from
	menuOwnerSelector = videoCardSelector + ", ytd-video-meta-block, .ytd-watch-next-secondary-results-renderer"
)

// probe returns the first control, in priority order, with a usable match.
// Callers must hold the page lock.
func probe(root *goquery.Selection, controls []Control) (*goquery.Selection, Control, bool) {
	for _, c := range controls {
		matches := root.Find(c.Selector)
		if matches.Length() == 0 {
			continue
		}
		if c.AllowHidden {
			return matches.First(), c, true
		}
		var found *goquery.Selection
		matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if isRendered(s) {
				found = s
				return false
			}
			return true
		})
		if found != nil {
			return found, c, true
		}
	}
	return nil, Control{}, false
}

// Probe evaluates controls against the page in priority order
func (p *Page) Probe(controls []Control) (*goquery.Selection, Control, bool) {
	var (
		sel   *goquery.Selection
		match Control
		ok    bool
	)
	p.Query(func(root *goquery.Selection) {
		sel, match, ok = probe(root, controls)
	})
	return sel, match, ok
}
