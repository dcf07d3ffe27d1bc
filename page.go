package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const actionedAttr = "data-nutshell-actioned"

// Mutation is one batch of nodes inserted into a page
type Mutation struct {
	URL   string
	Added []*goquery.Selection
	// Navigated marks the batch that replaced the whole document
	Navigated bool
}

// ClickFunc is the page's reaction to a synthetic click on a bound control.
// It runs without the page lock held and may mutate the page.
type ClickFunc func(ctx context.Context, p *Page, target *goquery.Selection) error

type clickBinding struct {
	selector string
	fn       ClickFunc
}

// Page is a headless stand-in for a live host document. Every read goes
// through Query and every write through Mutate so that the workflow, the
// watcher and the host's own updates can run from different goroutines.
type Page struct {
	mu      sync.RWMutex
	url     string
	doc     *goquery.Document
	clicks  []clickBinding
	subs    map[int]chan Mutation
	nextSub int
}

// NewPage parses markup into a page located at url
func NewPage(url, markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing page %s: %w", url, err)
	}
	return &Page{
		url:  url,
		doc:  doc,
		subs: make(map[int]chan Mutation),
	}, nil
}

// URL returns the location currently shown
func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

// SetURL changes the location without replacing the document, the way a
// single-page application pushes history entries.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// Navigate replaces the document and publishes its body as inserted
func (p *Page) Navigate(url, markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parsing page %s: %w", url, err)
	}

	p.mu.Lock()
	p.url = url
	p.doc = doc
	body := doc.Find("body")
	p.mu.Unlock()

	p.publish(Mutation{URL: url, Added: []*goquery.Selection{body}, Navigated: true})
	return nil
}

// Query runs fn with the document root under a read lock. Selections must
// not be traversed after fn returns except through other Page methods.
func (p *Page) Query(fn func(root *goquery.Selection)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(p.doc.Selection)
}

// Mutate runs fn under the write lock and publishes the nodes it reports as added.
func (p *Page) Mutate(fn func(root *goquery.Selection) []*goquery.Selection) {
	added, url := p.mutate(fn)
	if len(added) > 0 {
		p.publish(Mutation{URL: url, Added: added})
	}
}

func (p *Page) mutate(fn func(root *goquery.Selection) []*goquery.Selection) ([]*goquery.Selection, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.doc.Selection), p.url
}

// Insert appends markup to the first element matching parentSelector and
// returns the inserted nodes.
func (p *Page) Insert(parentSelector, markup string) (*goquery.Selection, error) {
	var inserted *goquery.Selection
	p.Mutate(func(root *goquery.Selection) []*goquery.Selection {
		parent := root.Find(parentSelector).First()
		if parent.Length() == 0 {
			return nil
		}
		before := parent.Children().Length()
		parent.AppendHtml(markup)
		inserted = parent.Children().Slice(before, goquery.ToEnd)
		return []*goquery.Selection{inserted}
	})
	if inserted == nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, parentSelector)
	}
	return inserted, nil
}

// Count returns the number of elements matching selector
func (p *Page) Count(selector string) int {
	n := 0
	p.Query(func(root *goquery.Selection) {
		n = root.Find(selector).Length()
	})
	return n
}

// HTML renders the current document
func (p *Page) HTML() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Html()
}

// OnClick binds a reaction to clicks on elements matching selector.
// The first binding registered for a matching element wins.
func (p *Page) OnClick(selector string, fn ClickFunc) {
	p.mu.Lock()
	p.clicks = append(p.clicks, clickBinding{selector: selector, fn: fn})
	p.mu.Unlock()
}

// unbind drops the reactions registered for exactly these selectors
func (p *Page) unbind(selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = slices.DeleteFunc(p.clicks, func(b clickBinding) bool {
		return slices.Contains(selectors, b.selector)
	})
}

// Click dispatches a synthetic click. The target is marked actioned before
// its bound reaction runs. A reaction that fails clears the mark again so
// a later run can retry the control.
func (p *Page) Click(ctx context.Context, target *goquery.Selection) error {
	var fn ClickFunc
	p.mu.Lock()
	desc := describeNode(target)
	target.SetAttr(actionedAttr, "true")
	for _, b := range p.clicks {
		if target.Is(b.selector) {
			fn = b.fn
			break
		}
	}
	p.mu.Unlock()

	if fn == nil {
		debugLog("click on unbound control %s", desc)
		return nil
	}
	if err := fn(ctx, p, target); err != nil {
		p.mu.Lock()
		target.RemoveAttr(actionedAttr)
		p.mu.Unlock()
		return err
	}
	return nil
}

// Subscribe returns a channel of mutation batches and a cancel func.
// Batches are dropped for subscribers that fall behind.
func (p *Page) Subscribe() (<-chan Mutation, func()) {
	ch := make(chan Mutation, 32)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Page) publish(m Mutation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, ch := range p.subs {
		select {
		case ch <- m:
		default:
			debugLog("mutation dropped for slow subscriber %d", id)
		}
	}
}

// isActioned reports whether the workflow already clicked this element.
// Callers must hold the page lock.
func isActioned(sel *goquery.Selection) bool {
	_, ok := sel.Attr(actionedAttr)
	return ok
}

// isRendered approximates "has layout": neither the element nor an ancestor
// is hidden. Callers must hold the page lock.
func isRendered(sel *goquery.Selection) bool {
	if sel.Length() == 0 {
		return false
	}
	hidden := false
	sel.First().Parents().AddSelection(sel.First()).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if nodeHidden(s) {
			hidden = true
			return false
		}
		return true
	})
	return !hidden
}

func nodeHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if v, _ := s.Attr("aria-hidden"); v == "true" {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func describeNode(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return "<none>"
	}
	name := goquery.NodeName(sel)
	if id, ok := sel.Attr("id"); ok {
		name += "#" + id
	}
	if label, ok := sel.Attr("aria-label"); ok {
		name += fmt.Sprintf("[aria-label=%q]", label)
	}
	return name
}
