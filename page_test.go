package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func newTestPage(t *testing.T, url, body string) *Page {
	t.Helper()
	page, err := NewPage(url, "<html><body>"+body+"</body></html>")
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	return page
}

func TestPageInsertPublishesMutation(t *testing.T) {
	page := newTestPage(t, "https://www.youtube.com/", `<div id="contents"></div>`)
	mutations, cancel := page.Subscribe()
	defer cancel()

	inserted, err := page.Insert("#contents", `<p class="a">one</p><p class="b">two</p>`)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if inserted.Length() != 2 {
		t.Errorf("Insert() returned %d nodes, want 2", inserted.Length())
	}

	select {
	case m := <-mutations:
		if m.URL != "https://www.youtube.com/" {
			t.Errorf("Mutation.URL = %q", m.URL)
		}
		if len(m.Added) != 1 || m.Added[0].Length() != 2 {
			t.Errorf("Mutation.Added = %v, want one batch of 2 nodes", m.Added)
		}
	case <-time.After(time.Second):
		t.Fatal("no mutation published")
	}

	if got := page.Count("#contents p"); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestPageInsertMissingParent(t *testing.T) {
	page := newTestPage(t, "https://www.youtube.com/", "")
	_, err := page.Insert("#missing", "<p></p>")
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Insert() error = %v, want ErrTargetNotFound", err)
	}
}

func TestPageClickMarksActionedAndRunsBinding(t *testing.T) {
	page := newTestPage(t, "https://www.youtube.com/watch?v=abc", `<button id="go">Go</button><button id="other">Other</button>`)

	calls := 0
	page.OnClick("#go", func(ctx context.Context, p *Page, target *goquery.Selection) error {
		calls++
		return nil
	})

	sel, _, ok := page.Probe([]Control{{Selector: "#go"}})
	if !ok {
		t.Fatal("Probe() found nothing")
	}
	if err := page.Click(context.Background(), sel); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("binding ran %d times, want 1", calls)
	}
	if page.Count("#go["+actionedAttr+"]") != 1 {
		t.Error("clicked control not marked as actioned")
	}

	other, _, _ := page.Probe([]Control{{Selector: "#other"}})
	if err := page.Click(context.Background(), other); err != nil {
		t.Errorf("Click() on unbound control error = %v", err)
	}
	if calls != 1 {
		t.Error("unbound click ran a binding")
	}
}

func TestPageFailedClickClearsMark(t *testing.T) {
	page := newTestPage(t, "https://www.youtube.com/watch?v=abc", `<button id="go">Go</button>`)
	errBackend := errors.New("backend unavailable")
	page.OnClick("#go", func(context.Context, *Page, *goquery.Selection) error {
		return errBackend
	})

	sel, _, _ := page.Probe([]Control{{Selector: "#go"}})
	if err := page.Click(context.Background(), sel); !errors.Is(err, errBackend) {
		t.Fatalf("Click() error = %v, want %v", err, errBackend)
	}
	if page.Count("#go["+actionedAttr+"]") != 0 {
		t.Error("control whose reaction failed is still marked actioned")
	}
}

func TestPageUnbindKeepsOtherBindings(t *testing.T) {
	page := newTestPage(t, "https://www.youtube.com/", `<button id="a">A</button><button id="b">B</button>`)
	var clicked []string
	record := func(id string) ClickFunc {
		return func(context.Context, *Page, *goquery.Selection) error {
			clicked = append(clicked, id)
			return nil
		}
	}
	page.OnClick("#a", record("a"))
	page.OnClick("#b", record("b"))

	page.unbind("#a")

	for _, id := range []string{"#a", "#b"} {
		sel, _, _ := page.Probe([]Control{{Selector: id}})
		if err := page.Click(context.Background(), sel); err != nil {
			t.Fatalf("Click(%s) error = %v", id, err)
		}
	}
	if len(clicked) != 1 || clicked[0] != "b" {
		t.Errorf("bindings run = %v, want [b]", clicked)
	}
}

func TestPageSubscribeCancel(t *testing.T) {
	page := newTestPage(t, "https://www.youtube.com/", `<div id="contents"></div>`)
	mutations, cancel := page.Subscribe()
	cancel()
	cancel()

	if _, ok := <-mutations; ok {
		t.Error("channel still open after cancel")
	}
	if _, err := page.Insert("#contents", "<p></p>"); err != nil {
		t.Errorf("Insert() after cancel error = %v", err)
	}
}

func TestProbePriorityAndVisibility(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		controls []Control
		wantOK   bool
		wantSel  string
	}{
		{
			name:     "first control wins",
			body:     `<button class="b">b</button><button class="a">a</button>`,
			controls: []Control{{Selector: ".a"}, {Selector: ".b"}},
			wantOK:   true,
			wantSel:  ".a",
		},
		{
			name:     "hidden match skipped",
			body:     `<div hidden><button class="a">a</button></div><button class="b">b</button>`,
			controls: []Control{{Selector: ".a"}, {Selector: ".b"}},
			wantOK:   true,
			wantSel:  ".b",
		},
		{
			name:     "style hidden ancestor",
			body:     `<div style="display: none"><button class="a">a</button></div>`,
			controls: []Control{{Selector: ".a"}},
			wantOK:   false,
		},
		{
			name:     "aria hidden",
			body:     `<button class="a" aria-hidden="true">a</button>`,
			controls: []Control{{Selector: ".a"}},
			wantOK:   false,
		},
		{
			name:     "hidden allowed",
			body:     `<button id="expand" hidden>more</button>`,
			controls: []Control{{Selector: "#expand", AllowHidden: true}},
			wantOK:   true,
			wantSel:  "#expand",
		},
		{
			name:     "text match",
			body:     `<yt-formatted-string>Show transcript</yt-formatted-string>`,
			controls: transcriptControls,
			wantOK:   true,
			wantSel:  `yt-formatted-string:contains("Show transcript")`,
		},
		{
			name:     "nothing matches",
			body:     `<p>nothing</p>`,
			controls: expandControls,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newTestPage(t, "https://www.youtube.com/watch?v=abc", tt.body)
			_, c, ok := page.Probe(tt.controls)
			if ok != tt.wantOK {
				t.Fatalf("Probe() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && c.Selector != tt.wantSel {
				t.Errorf("Probe() matched %q, want %q", c.Selector, tt.wantSel)
			}
		})
	}
}
