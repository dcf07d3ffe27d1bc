package main

import (
	"context"
	"fmt"
	"html"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	summarizeButtonClass = "nutshell-summarize-btn"
	floatingButtonClass  = "nutshell-floating-btn"
	watchButtonClass     = "nutshell-watch-btn"
	menuOptionClass      = "nutshell-menu-option"
)

// cardButtonSelector matches every injected control that extracts a card's transcript
var cardButtonSelector = "." + summarizeButtonClass + ", ." + summarizeButtonClass + " button, ." +
	floatingButtonClass + " button, ." + menuOptionClass + ", ." + menuOptionClass + " *"

// Injector keeps every rendered video card annotated with a summarize button.
// Its record of annotated videos lives as long as the document it annotated.
type Injector struct {
	page     *Page
	settings WatcherSettings

	// OnExtract is called when a card button or dropdown option is clicked
	OnExtract func(ctx context.Context, videoID string) error
	// OnSummarize is called when the watch page button is clicked
	OnSummarize func(ctx context.Context, videoID string) error

	mu       sync.Mutex
	injected map[string]struct{}
}

// NewInjector creates an injector for page and binds its buttons
func NewInjector(page *Page, settings WatcherSettings) *Injector {
	in := &Injector{
		page:     page,
		settings: settings,
		injected: make(map[string]struct{}),
	}
	page.OnClick(cardButtonSelector, in.handleCardClick)
	page.OnClick("."+watchButtonClass, in.handleWatchClick)
	page.OnClick(menuButtonSelector, in.handleMenuClick)
	return in
}

// Injected reports whether a button was already inserted for videoID
func (in *Injector) Injected(videoID string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.injected[videoID]
	return ok
}

// IDs returns the annotated video ids in sorted order
func (in *Injector) IDs() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	ids := make([]string, 0, len(in.injected))
	for id := range in.injected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProcessExisting reconciles the whole document
func (in *Injector) ProcessExisting() {
	defer in.recoverBoundary("process existing")
	in.page.Mutate(func(root *goquery.Selection) []*goquery.Selection {
		added := in.annotateAll(root.Find("body"))
		if btn := in.injectWatchButton(root); btn != nil {
			added = append(added, btn)
		}
		return added
	})
}

// HandleMutation annotates cards among, or inside, the inserted nodes. A
// navigation starts over on the fresh document.
func (in *Injector) HandleMutation(m Mutation) {
	if m.Navigated {
		in.reset()
		in.ProcessExisting()
		return
	}

	defer in.recoverBoundary("handle mutation")
	in.page.Mutate(func(*goquery.Selection) []*goquery.Selection {
		var added []*goquery.Selection
		for _, node := range m.Added {
			added = append(added, in.annotateAll(node)...)
		}
		return added
	})
}

// Run reconciles on every mutation batch and after every location change
// until ctx is done. Location changes are detected by polling.
func (in *Injector) Run(ctx context.Context) error {
	mutations, cancel := in.page.Subscribe()
	defer cancel()

	in.ProcessExisting()

	interval := in.settings.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastURL := in.page.URL()
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-mutations:
			if !ok {
				return nil
			}
			in.HandleMutation(m)
		case <-ticker.C:
			if u := in.page.URL(); u != lastURL {
				debugLog("location changed: %s -> %s", lastURL, u)
				lastURL = u
				settle = time.After(in.settings.SettleDelay)
			}
		case <-settle:
			settle = nil
			in.ProcessExisting()
		}
	}
}

func (in *Injector) reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	debugLog("fresh document, forgetting %d annotated videos", len(in.injected))
	in.injected = make(map[string]struct{})
}

// annotateAll handles node itself and every card below it. Callers hold the page lock.
func (in *Injector) annotateAll(node *goquery.Selection) []*goquery.Selection {
	var added []*goquery.Selection
	cards := node.Filter(videoCardSelector).AddSelection(node.Find(videoCardSelector))
	cards.Each(func(_ int, card *goquery.Selection) {
		if btn := in.annotate(card); btn != nil {
			added = append(added, btn)
		}
	})
	return added
}

// annotate inserts a button into one card: into its action menu when there
// is one, else as a floating button beside its metadata.
func (in *Injector) annotate(card *goquery.Selection) *goquery.Selection {
	videoID := cardVideoID(card)
	if videoID == "" {
		return nil
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.injected[videoID]; ok {
		return nil
	}

	if buttons := card.Find("ytd-menu-renderer #top-level-buttons").First(); buttons.Length() > 0 {
		if existing := buttons.Find("." + summarizeButtonClass); existing.Length() > 0 {
			in.injected[videoID] = struct{}{}
			return nil
		}
		buttons.AppendHtml(primaryButtonHTML(videoID))
		in.injected[videoID] = struct{}{}
		debugLog("added summary button to video %s", videoID)
		return buttons.Find("." + summarizeButtonClass)
	}

	if card.Find(metadataSelector).Length() > 0 {
		card.SetAttr("style", "position: relative;")
		card.AppendHtml(floatingButtonHTML(videoID))
		in.injected[videoID] = struct{}{}
		debugLog("added floating summary button to video %s", videoID)
		return card.Find("." + floatingButtonClass)
	}

	debugLog("no injection point for video %s", videoID)
	return nil
}

// injectWatchButton adds the summarize button to a watch page's action bar
func (in *Injector) injectWatchButton(root *goquery.Selection) *goquery.Selection {
	actions := root.Find("#actions").First()
	if actions.Length() == 0 || root.Find("."+watchButtonClass).Length() > 0 {
		return nil
	}
	videoID, ok := ParseVideoID(in.page.url)
	if !ok {
		return nil
	}
	actions.AppendHtml(fmt.Sprintf(`<button class="%s" data-video-id="%s">Summarize</button>`,
		watchButtonClass, html.EscapeString(videoID)))
	return actions.Find("." + watchButtonClass)
}

func (in *Injector) handleCardClick(ctx context.Context, p *Page, target *goquery.Selection) error {
	videoID := clickedVideoID(p, target)
	p.Mutate(func(root *goquery.Selection) []*goquery.Selection {
		root.Find("tp-yt-iron-dropdown[opened]").RemoveAttr("opened")
		return nil
	})
	if videoID == "" || in.OnExtract == nil {
		return nil
	}
	return in.OnExtract(ctx, videoID)
}

func (in *Injector) handleWatchClick(ctx context.Context, p *Page, target *goquery.Selection) error {
	videoID := clickedVideoID(p, target)
	if videoID == "" || in.OnSummarize == nil {
		return nil
	}
	return in.OnSummarize(ctx, videoID)
}

// handleMenuClick waits for the dropdown the click opened and adds a
// summarize option to it, once per dropdown.
func (in *Injector) handleMenuClick(ctx context.Context, p *Page, target *goquery.Selection) error {
	defer in.recoverBoundary("menu click")

	var videoID string
	p.Query(func(*goquery.Selection) {
		videoID = cardVideoID(target.Closest(menuOwnerSelector))
	})
	if videoID == "" {
		debugLog("menu opened outside a video card")
		return nil
	}

	delay := in.settings.MenuDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	err := WaitFor(ctx, 10*time.Millisecond, delay, func() bool {
		_, _, ok := p.Probe(menuPopups)
		return ok
	})
	if err != nil {
		debugLog("no dropdown for video %s: %v", videoID, err)
		return nil
	}

	p.Mutate(func(root *goquery.Selection) []*goquery.Selection {
		popup, _, ok := probe(root, menuPopups)
		if !ok || popup.Find("."+menuOptionClass).Length() > 0 {
			return nil
		}
		if option := insertMenuOption(root, popup, videoID); option != nil {
			debugLog("added dropdown option for video %s", videoID)
			return []*goquery.Selection{option}
		}
		debugLog("no insertion point in dropdown for video %s", videoID)
		return nil
	})
	return nil
}

// insertMenuOption puts the option ahead of the dropdown's first item. Callers hold the page lock.
func insertMenuOption(root, popup *goquery.Selection, videoID string) *goquery.Selection {
	first := popup.Find("#items, tp-yt-paper-listbox").First().
		Find("ytd-menu-service-item-renderer, yt-button-view-model").First()
	if first.Length() == 0 {
		list := popup.Find(`yt-list-view-model[role="menu"]`).First()
		if list.Length() == 0 {
			list = root.Find(`yt-list-view-model[role="menu"]`).First()
		}
		first = list.Find(`yt-button-view-model, [role="menuitem"]`).First()
	}
	if first.Length() == 0 {
		first = popup.Find(`ytd-menu-service-item-renderer, yt-button-view-model, [role="menuitem"]`).First()
	}
	if first.Length() == 0 {
		return nil
	}
	first.BeforeHtml(menuOptionHTML(videoID))
	return first.Prev()
}

func clickedVideoID(p *Page, target *goquery.Selection) string {
	var videoID string
	p.Query(func(*goquery.Selection) {
		videoID = target.Closest("[data-video-id]").AttrOr("data-video-id", "")
	})
	return videoID
}

// recoverBoundary keeps unexpected markup from crashing the watch loop
func (in *Injector) recoverBoundary(op string) {
	if r := recover(); r != nil {
		log.Printf("✗ watcher %s: recovered from %v", op, r)
	}
}

// cardVideoID reads the video id from the first matching link of a card.
func cardVideoID(card *goquery.Selection) string {
	for _, selector := range videoLinkSelectors {
		href, ok := card.Find(selector).First().Attr("href")
		if !ok {
			continue
		}
		if id, ok := ParseVideoID(href); ok {
			return id
		}
	}
	return ""
}

func primaryButtonHTML(videoID string) string {
	return fmt.Sprintf(`<ytd-toggle-button-renderer class="style-scope ytd-menu-renderer %s" data-video-id="%s">`+
		`<button aria-label="Summarize video" title="Summarize">Summarize</button></ytd-toggle-button-renderer>`,
		summarizeButtonClass, html.EscapeString(videoID))
}

func menuOptionHTML(videoID string) string {
	return fmt.Sprintf(`<ytd-menu-service-item-renderer class="style-scope ytd-menu-popup-renderer %s" role="menuitem" data-video-id="%s">`+
		`<tp-yt-paper-item role="option">Summarize</tp-yt-paper-item></ytd-menu-service-item-renderer>`,
		menuOptionClass, html.EscapeString(videoID))
}

func floatingButtonHTML(videoID string) string {
	return fmt.Sprintf(`<div class="%s"><button title="Summarize" data-video-id="%s">Summarize</button></div>`,
		floatingButtonClass, html.EscapeString(videoID))
}
